package chunks

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const metaFileName = "session.json"

// ErrSessionNotFound is returned when no session directory exists for an
// upload ID.
var ErrSessionNotFound = errors.New("chunk session not found")

// SessionMeta is the sidecar metadata persisted next to the part files.
// Immutable once created except part arrivals.
type SessionMeta struct {
	UploadID      string    `json:"upload_id"`
	UserID        uint64    `json:"user_id"`
	Size          int64     `json:"size"`
	ChunkSize     int64     `json:"chunk_size"`
	TotalParts    int       `json:"total_parts"`
	StoredName    string    `json:"stored_name"`
	Slug          string    `json:"slug"`
	OriginalName  string    `json:"original_name"`
	MimeType      string    `json:"mime_type"`
	Description   string    `json:"description"`
	Visibility    string    `json:"visibility"`
	Password      string    `json:"password"`
	MaxViews      int       `json:"max_views"`
	ContentHash   string    `json:"content_hash"`
	StorageDriver string    `json:"storage_driver"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store keeps one directory per in-flight resumable upload.
type Store struct {
	root string
	ttl  time.Duration
}

// NewStore creates a session store rooted at dir.
func NewStore(dir string, ttl time.Duration) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: abs, ttl: ttl}, nil
}

// TTL returns the fixed session lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// sessionDir validates the upload ID and resolves its directory. Upload IDs
// are UUIDs, so anything else is rejected before it can touch the path.
func (s *Store) sessionDir(uploadID string) (string, error) {
	if err := uuid.Validate(uploadID); err != nil {
		return "", ErrSessionNotFound
	}
	return filepath.Join(s.root, uploadID), nil
}

// partName is fixed and zero-padded so parts are idempotently overwritable
// and sortable.
func partName(index int) string {
	return fmt.Sprintf("part_%06d", index)
}

// Create persists a new session directory with its sidecar metadata.
func (s *Store) Create(meta *SessionMeta) error {
	dir, err := s.sessionDir(meta.UploadID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, metaFileName), data, 0o644)
}

// Load reads the sidecar metadata for an upload ID.
func (s *Store) Load(uploadID string) (*SessionMeta, error) {
	dir, err := s.sessionDir(uploadID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, metaFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	var meta SessionMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("corrupt session metadata for %s: %w", uploadID, err)
	}
	return &meta, nil
}

// Expired reports whether the session passed its TTL. Expiry is enforced
// lazily on next touch, not by a background sweep.
func (s *Store) Expired(meta *SessionMeta) bool {
	return time.Since(meta.CreatedAt) > s.ttl
}

// ExpiresAt returns the session's expiry instant.
func (s *Store) ExpiresAt(meta *SessionMeta) time.Time {
	return meta.CreatedAt.Add(s.ttl)
}

// Remove deletes the whole session directory, best-effort.
func (s *Store) Remove(uploadID string) error {
	dir, err := s.sessionDir(uploadID)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

// WritePart stages one part payload in a temp file, runs the optional
// validate check on the byte count, and only then renames it over any
// earlier copy of the same index. A rejected payload is discarded without
// disturbing a previously accepted part.
func (s *Store) WritePart(uploadID string, index int, reader io.Reader, validate func(written int64) error) (int64, error) {
	dir, err := s.sessionDir(uploadID)
	if err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(dir, partName(index)+".tmp-*")
	if err != nil {
		return 0, err
	}
	written, err := io.Copy(tmp, reader)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil && validate != nil {
		err = validate(written)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return 0, err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, partName(index))); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, err
	}
	return written, nil
}

// PartPath returns the on-disk path of one part file.
func (s *Store) PartPath(uploadID string, index int) (string, error) {
	dir, err := s.sessionDir(uploadID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, partName(index)), nil
}

// PartSizes scans the session directory and returns the size of every
// received part, keyed by index.
func (s *Store) PartSizes(uploadID string) (map[int]int64, error) {
	dir, err := s.sessionDir(uploadID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	sizes := make(map[int]int64)
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "part_") || strings.Contains(name, ".tmp-") {
			continue
		}
		index, err := strconv.Atoi(strings.TrimPrefix(name, "part_"))
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		sizes[index] = info.Size()
	}
	return sizes, nil
}

// Ranges collapses received part indices into contiguous [lo, hi] pairs so
// a client can resume by re-requesting only the missing ranges.
func Ranges(indices []int) [][2]int {
	if len(indices) == 0 {
		return [][2]int{}
	}
	sorted := make([]int, len(indices))
	copy(sorted, indices)
	sort.Ints(sorted)
	ranges := make([][2]int, 0, 4)
	lo, hi := sorted[0], sorted[0]
	for _, index := range sorted[1:] {
		if index == hi || index == hi+1 {
			hi = index
			continue
		}
		ranges = append(ranges, [2]int{lo, hi})
		lo, hi = index, index
	}
	return append(ranges, [2]int{lo, hi})
}
