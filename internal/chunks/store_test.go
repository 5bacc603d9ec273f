package chunks

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), ttl)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store
}

func newTestSession(t *testing.T, store *Store, totalParts int) *SessionMeta {
	t.Helper()
	meta := &SessionMeta{
		UploadID:      uuid.NewString(),
		UserID:        7,
		Size:          1024,
		ChunkSize:     256,
		TotalParts:    totalParts,
		StoredName:    uuid.NewString() + ".bin",
		OriginalName:  "video.bin",
		StorageDriver: "local",
		CreatedAt:     time.Now(),
	}
	if err := store.Create(meta); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return meta
}

func TestCreateLoadRoundtrip(t *testing.T) {
	store := newTestStore(t, time.Hour)
	meta := newTestSession(t, store, 4)

	loaded, err := store.Load(meta.UploadID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.UploadID != meta.UploadID {
		t.Fatalf("upload id mismatch: %s vs %s", loaded.UploadID, meta.UploadID)
	}
	if loaded.UserID != meta.UserID || loaded.ChunkSize != meta.ChunkSize || loaded.TotalParts != meta.TotalParts {
		t.Fatalf("loaded metadata differs: %+v", loaded)
	}
}

func TestLoadUnknownSession(t *testing.T) {
	store := newTestStore(t, time.Hour)

	if _, err := store.Load(uuid.NewString()); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestLoadRejectsNonUUID(t *testing.T) {
	store := newTestStore(t, time.Hour)

	for _, id := range []string{"", "../escape", "not-a-uuid", "session.json"} {
		if _, err := store.Load(id); err != ErrSessionNotFound {
			t.Fatalf("id %q: expected ErrSessionNotFound, got %v", id, err)
		}
	}
}

func TestWritePartOverwrite(t *testing.T) {
	store := newTestStore(t, time.Hour)
	meta := newTestSession(t, store, 4)

	written, err := store.WritePart(meta.UploadID, 2, strings.NewReader("first"), nil)
	if err != nil {
		t.Fatalf("WritePart failed: %v", err)
	}
	if written != 5 {
		t.Fatalf("expected 5 bytes, got %d", written)
	}

	written, err = store.WritePart(meta.UploadID, 2, bytes.NewReader([]byte("second body")), nil)
	if err != nil {
		t.Fatalf("re-send WritePart failed: %v", err)
	}
	if written != 11 {
		t.Fatalf("expected 11 bytes on overwrite, got %d", written)
	}

	sizes, err := store.PartSizes(meta.UploadID)
	if err != nil {
		t.Fatalf("PartSizes failed: %v", err)
	}
	if len(sizes) != 1 || sizes[2] != 11 {
		t.Fatalf("expected only part 2 at 11 bytes, got %v", sizes)
	}
}

func TestWritePartRejectedKeepsExisting(t *testing.T) {
	store := newTestStore(t, time.Hour)
	meta := newTestSession(t, store, 4)

	if _, err := store.WritePart(meta.UploadID, 1, strings.NewReader("keep me"), nil); err != nil {
		t.Fatalf("WritePart failed: %v", err)
	}

	rejected := errors.New("payload rejected")
	_, err := store.WritePart(meta.UploadID, 1, strings.NewReader(""), func(written int64) error {
		if written == 0 {
			return rejected
		}
		return nil
	})
	if !errors.Is(err, rejected) {
		t.Fatalf("expected rejection error, got %v", err)
	}

	sizes, err := store.PartSizes(meta.UploadID)
	if err != nil {
		t.Fatalf("PartSizes failed: %v", err)
	}
	if len(sizes) != 1 || sizes[1] != 7 {
		t.Fatalf("earlier part should survive a rejected re-send, got %v", sizes)
	}
}

func TestPartSizesSkipsTempAndMeta(t *testing.T) {
	store := newTestStore(t, time.Hour)
	meta := newTestSession(t, store, 4)

	for _, index := range []int{0, 3} {
		if _, err := store.WritePart(meta.UploadID, index, strings.NewReader("data"), nil); err != nil {
			t.Fatalf("WritePart %d failed: %v", index, err)
		}
	}

	sizes, err := store.PartSizes(meta.UploadID)
	if err != nil {
		t.Fatalf("PartSizes failed: %v", err)
	}
	if len(sizes) != 2 {
		t.Fatalf("expected 2 parts, got %v", sizes)
	}
	if sizes[0] != 4 || sizes[3] != 4 {
		t.Fatalf("unexpected sizes: %v", sizes)
	}
}

func TestExpiry(t *testing.T) {
	store := newTestStore(t, time.Minute)
	meta := newTestSession(t, store, 1)

	if store.Expired(meta) {
		t.Fatal("fresh session should not be expired")
	}

	meta.CreatedAt = time.Now().Add(-2 * time.Minute)
	if !store.Expired(meta) {
		t.Fatal("session past TTL should be expired")
	}
	want := meta.CreatedAt.Add(time.Minute)
	if !store.ExpiresAt(meta).Equal(want) {
		t.Fatalf("ExpiresAt mismatch: %v vs %v", store.ExpiresAt(meta), want)
	}
}

func TestRemove(t *testing.T) {
	store := newTestStore(t, time.Hour)
	meta := newTestSession(t, store, 2)

	if _, err := store.WritePart(meta.UploadID, 0, strings.NewReader("x"), nil); err != nil {
		t.Fatalf("WritePart failed: %v", err)
	}
	if err := store.Remove(meta.UploadID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := store.Load(meta.UploadID); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound after remove, got %v", err)
	}
	// Removing twice is fine.
	if err := store.Remove(meta.UploadID); err != nil {
		t.Fatalf("second Remove failed: %v", err)
	}
}

func TestRanges(t *testing.T) {
	cases := []struct {
		name    string
		indices []int
		want    [][2]int
	}{
		{"empty", nil, [][2]int{}},
		{"single", []int{3}, [][2]int{{3, 3}}},
		{"contiguous", []int{0, 1, 2}, [][2]int{{0, 2}}},
		{"gap", []int{0, 2}, [][2]int{{0, 0}, {2, 2}}},
		{"unsorted", []int{5, 1, 0, 4}, [][2]int{{0, 1}, {4, 5}}},
		{"duplicates", []int{2, 2, 3}, [][2]int{{2, 3}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Ranges(tc.indices)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Ranges(%v) = %v, want %v", tc.indices, got, tc.want)
			}
		})
	}
}
