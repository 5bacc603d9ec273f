package service

import (
	"MediaVault/config"
	"MediaVault/internal/apperr"
	"MediaVault/internal/chunks"
	"MediaVault/internal/dto"
	"MediaVault/internal/jobs"
	"MediaVault/internal/storage"
	"MediaVault/model"
	"MediaVault/utils"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// Sessions is the chunk session store backing all resumable uploads.
var Sessions *chunks.Store

// InitChunkSessions builds the on-disk session store.
func InitChunkSessions() {
	store, err := chunks.NewStore(config.AppConfig.ChunkDataDir, config.AppConfig.ChunkSessionTTL)
	if err != nil {
		log.Fatalln("init chunk session store fail:", err)
	}
	Sessions = store
	log.Println("init chunk session store success")
}

var hexSHA256 = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// effectiveChunkSize picks the chunk size for one session: caller hint or
// process default, clamped into [min, max], then floored at the backend's
// multipart minimum so every part except the last can be uploaded as one
// multipart segment.
func effectiveChunkSize(hint int64, driver storage.Driver) int64 {
	cfg := config.AppConfig
	size := hint
	if size <= 0 {
		size = cfg.DefaultChunkSize
	}
	if size < cfg.MinChunkSize {
		size = cfg.MinChunkSize
	}
	if size > cfg.MaxChunkSize {
		size = cfg.MaxChunkSize
	}
	if floor := driver.MinPartSize(); floor > 0 && size < floor {
		size = floor
	}
	return size
}

// slugify derives a URL-safe slug from a file name.
func slugify(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "file"
	}
	return slug
}

// InitChunkedUpload starts a resumable upload session.
func InitChunkedUpload(userID uint64, req dto.ChunkInitRequest) (*dto.ChunkInitResponse, error) {
	if req.Size <= 0 {
		return nil, apperr.New(apperr.Validation, "size must be positive")
	}
	if strings.TrimSpace(req.FileName) == "" {
		return nil, apperr.New(apperr.Validation, "file_name required")
	}
	contentHash := strings.ToLower(strings.TrimSpace(req.ContentHash))
	if contentHash != "" && !hexSHA256.MatchString(contentHash) {
		return nil, apperr.New(apperr.Validation, "content_hash must be a hex sha-256 digest")
	}

	driver := storage.Default
	chunkSize := effectiveChunkSize(req.ChunkSize, driver)
	totalParts := int((req.Size + chunkSize - 1) / chunkSize)
	if max := driver.MaxParts(); max > 0 && totalParts > max {
		return nil, apperr.Validationf(
			"file of %d bytes needs %d parts, over the %s backend limit of %d",
			req.Size, totalParts, driver.Name(), max,
		)
	}

	slug := strings.TrimSpace(req.Slug)
	if slug == "" {
		slug = slugify(req.FileName)
	}
	visibility := req.Visibility
	if visibility == "" {
		visibility = "private"
	}
	meta := &chunks.SessionMeta{
		UploadID:      utils.GetToken(),
		UserID:        userID,
		Size:          req.Size,
		ChunkSize:     chunkSize,
		TotalParts:    totalParts,
		StoredName:    utils.GetToken() + strings.ToLower(filepath.Ext(req.FileName)),
		Slug:          slug,
		OriginalName:  req.FileName,
		MimeType:      req.MimeType,
		Description:   req.Description,
		Visibility:    visibility,
		Password:      req.Password,
		MaxViews:      req.MaxViews,
		ContentHash:   contentHash,
		StorageDriver: driver.Name(),
		CreatedAt:     time.Now(),
	}
	if err := Sessions.Create(meta); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "create chunk session", err)
	}

	cfg := config.AppConfig
	return &dto.ChunkInitResponse{
		UploadID:   meta.UploadID,
		ChunkSize:  chunkSize,
		TotalParts: totalParts,
		TTLSeconds: int64(Sessions.TTL().Seconds()),
		ExpiresAt:  Sessions.ExpiresAt(meta),
		Retry: dto.RetryHint{
			BaseDelayMs: cfg.UploadRetryBase.Milliseconds(),
			MaxDelayMs:  cfg.UploadRetryMax.Milliseconds(),
			Jitter:      cfg.UploadRetryJitter,
			MaxAttempts: cfg.UploadRetryAttempts,
		},
	}, nil
}

// loadOwnedSession loads a session, checks ownership, and lazily purges it
// when expired.
func loadOwnedSession(userID uint64, uploadID string) (*chunks.SessionMeta, error) {
	meta, err := Sessions.Load(uploadID)
	if err != nil {
		if err == chunks.ErrSessionNotFound {
			return nil, apperr.New(apperr.NotFound, "upload session not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "load chunk session", err)
	}
	if meta.UserID != userID {
		return nil, apperr.New(apperr.Forbidden, "upload session forbidden")
	}
	if Sessions.Expired(meta) {
		_ = Sessions.Remove(uploadID)
		return nil, apperr.New(apperr.Expired, "upload session expired")
	}
	return meta, nil
}

// UploadChunkPart stores one part payload. Parts arrive in any order and a
// re-sent index overwrites its own file only after the payload passes
// validation, so a bad re-send cannot clobber a previously accepted part.
func UploadChunkPart(userID uint64, uploadID string, partIndex int, reader io.Reader) (int64, error) {
	meta, err := loadOwnedSession(userID, uploadID)
	if err != nil {
		return 0, err
	}
	if partIndex < 0 || partIndex >= meta.TotalParts {
		return 0, apperr.Validationf("part index %d out of range [0, %d)", partIndex, meta.TotalParts)
	}
	driver, err := storage.ForName(meta.StorageDriver)
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, "resolve storage driver", err)
	}

	limited := io.LimitReader(reader, meta.ChunkSize+1)
	written, err := Sessions.WritePart(uploadID, partIndex, limited, func(written int64) error {
		if written == 0 {
			return apperr.New(apperr.Validation, "part payload is empty")
		}
		if written > meta.ChunkSize {
			return apperr.Validationf("part payload exceeds chunk size %d", meta.ChunkSize)
		}
		// Failing early lets the client re-chunk before wasting a complete call.
		if floor := driver.MinPartSize(); floor > 0 && partIndex < meta.TotalParts-1 && written < floor {
			return apperr.Validationf("part %d is %d bytes, below the backend minimum of %d", partIndex, written, floor)
		}
		return nil
	})
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return 0, err
		}
		return 0, apperr.Wrap(apperr.Internal, "write part", err)
	}
	return written, nil
}

// verifyDeclaredHash recomputes sha-256 by streaming all parts in order.
// A declared hash, if present, is authoritative.
func verifyDeclaredHash(meta *chunks.SessionMeta) error {
	hasher := sha256.New()
	for index := 0; index < meta.TotalParts; index++ {
		path, err := Sessions.PartPath(meta.UploadID, index)
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(hasher, src)
		_ = src.Close()
		if err != nil {
			return err
		}
	}
	actual := hex.EncodeToString(hasher.Sum(nil))
	if actual != meta.ContentHash {
		return apperr.Validationf("content hash mismatch: declared %s, got %s", meta.ContentHash, actual)
	}
	return nil
}

// CompleteChunkedUpload verifies, assembles, records, and enqueues
// downstream jobs for one finished upload. The session directory is removed
// on first success, so a second call fails with not-found.
func CompleteChunkedUpload(ctx context.Context, userID uint64, uploadID string) (*model.File, error) {
	meta, err := loadOwnedSession(userID, uploadID)
	if err != nil {
		return nil, err
	}
	driver, err := storage.ForName(meta.StorageDriver)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "resolve storage driver", err)
	}

	sizes, err := Sessions.PartSizes(uploadID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "scan parts", err)
	}
	var total int64
	floor := driver.MinPartSize()
	for index := 0; index < meta.TotalParts; index++ {
		size, ok := sizes[index]
		if !ok {
			return nil, apperr.Validationf("part %d missing", index)
		}
		// Defends against a part uploaded under one chunk-size assumption
		// and completed under another.
		if floor > 0 && index < meta.TotalParts-1 && size < floor {
			return nil, apperr.Validationf("part %d is %d bytes, below the backend minimum of %d", index, size, floor)
		}
		total += size
	}
	if total != meta.Size {
		return nil, apperr.Validationf("received %d bytes, declared %d", total, meta.Size)
	}

	// Real content type beats the client declaration.
	mimeType := meta.MimeType
	part0, err := Sessions.PartPath(uploadID, 0)
	if err == nil {
		if detected, detectErr := mimetype.DetectFile(part0); detectErr == nil {
			mimeType = detected.String()
		}
	}

	if meta.ContentHash != "" {
		if err := verifyDeclaredHash(meta); err != nil {
			if apperr.KindOf(err) == apperr.Validation {
				return nil, err
			}
			return nil, apperr.Wrap(apperr.Internal, "verify content hash", err)
		}
	}

	parts := make([]storage.Part, 0, meta.TotalParts)
	for index := 0; index < meta.TotalParts; index++ {
		path, pathErr := Sessions.PartPath(uploadID, index)
		if pathErr != nil {
			return nil, apperr.Wrap(apperr.Internal, "resolve part path", pathErr)
		}
		parts = append(parts, storage.Part{Path: path, Size: sizes[index]})
	}
	key := storage.ObjectKey(meta.UserID, meta.StoredName)
	if err := driver.Assemble(ctx, key, mimeType, parts); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "assemble upload", err)
	}

	file := &model.File{
		UserID:        meta.UserID,
		StoredName:    meta.StoredName,
		Slug:          meta.Slug,
		OriginalName:  meta.OriginalName,
		MimeType:      mimeType,
		Description:   meta.Description,
		Size:          meta.Size,
		ContentHash:   meta.ContentHash,
		Visibility:    meta.Visibility,
		Password:      meta.Password,
		MaxViews:      meta.MaxViews,
		StorageDriver: meta.StorageDriver,
	}
	if err := CreateFile(file); err != nil {
		_ = driver.Delete(ctx, key)
		return nil, err
	}

	enqueueEligibleJobs(file)

	if err := Sessions.Remove(uploadID); err != nil {
		log.Printf("remove chunk session %s failed: %v", uploadID, err)
	}
	return file, nil
}

// enqueueEligibleJobs queues preview and transcode work for media files.
// Job failures never reach the upload caller.
func enqueueEligibleJobs(file *model.File) {
	if strings.HasPrefix(file.MimeType, "video/") {
		quality := config.AppConfig.TranscodeQuality
		if jobID, created, err := jobs.Enqueue(file.UserID, file.ID, model.JobKindTranscode, &quality); err != nil {
			log.Printf("enqueue transcode for file %d failed: %v", file.ID, err)
		} else if created {
			jobs.RequestKick(jobID)
		}
	}
	if strings.HasPrefix(file.MimeType, "video/") || strings.HasPrefix(file.MimeType, "image/") {
		if jobID, created, err := jobs.Enqueue(file.UserID, file.ID, model.JobKindPreview, nil); err != nil {
			log.Printf("enqueue preview for file %d failed: %v", file.ID, err)
		} else if created {
			jobs.RequestKick(jobID)
		}
	}
}

// AbortChunkedUpload removes the session directory unconditionally.
func AbortChunkedUpload(userID uint64, uploadID string) error {
	meta, err := Sessions.Load(uploadID)
	if err != nil {
		if err == chunks.ErrSessionNotFound {
			return nil
		}
		return apperr.Wrap(apperr.Internal, "load chunk session", err)
	}
	if meta.UserID != userID {
		return apperr.New(apperr.Forbidden, "upload session forbidden")
	}
	if err := Sessions.Remove(uploadID); err != nil {
		log.Printf("abort chunk session %s failed: %v", uploadID, err)
	}
	return nil
}

// GetChunkedUploadStatus reports received and missing parts as compressed
// contiguous ranges.
func GetChunkedUploadStatus(userID uint64, uploadID string) (*dto.ChunkStatusResponse, error) {
	meta, err := loadOwnedSession(userID, uploadID)
	if err != nil {
		return nil, err
	}
	sizes, err := Sessions.PartSizes(uploadID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "scan parts", err)
	}
	indices := make([]int, 0, len(sizes))
	for index := range sizes {
		if index >= 0 && index < meta.TotalParts {
			indices = append(indices, index)
		}
	}
	return &dto.ChunkStatusResponse{
		UploadID:       meta.UploadID,
		ChunkSize:      meta.ChunkSize,
		TotalParts:     meta.TotalParts,
		ReceivedCount:  len(indices),
		MissingCount:   meta.TotalParts - len(indices),
		ReceivedRanges: chunks.Ranges(indices),
		TTLSeconds:     int64(Sessions.TTL().Seconds()),
		ExpiresAt:      Sessions.ExpiresAt(meta),
	}, nil
}
