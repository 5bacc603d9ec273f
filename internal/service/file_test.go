package service

import (
	"MediaVault/internal/apperr"
	"MediaVault/internal/storage"
	"MediaVault/model"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestReadFileUnsatisfiableRange(t *testing.T) {
	setupUploadTest(t)

	file := &model.File{
		UserID:        1,
		StoredName:    "clip.bin",
		OriginalName:  "clip.bin",
		Size:          10,
		StorageDriver: storage.Default.Name(),
	}
	key := storage.ObjectKey(file.UserID, file.StoredName)
	if err := storage.Default.Put(context.Background(), key, strings.NewReader("0123456789"), 10, "application/octet-stream"); err != nil {
		t.Fatalf("put blob: %v", err)
	}

	_, err := ReadFile(context.Background(), file, &storage.ReadRange{Start: 50, End: 60})
	if !errors.Is(err, storage.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange to surface, got %v", err)
	}
	if apperr.KindOf(err) != apperr.Validation {
		t.Fatalf("expected validation kind, got %v", err)
	}

	result, err := ReadFile(context.Background(), file, &storage.ReadRange{Start: 2, End: 4})
	if err != nil {
		t.Fatalf("valid range failed: %v", err)
	}
	defer result.Body.Close()
	if result.ContentRange != "bytes 2-4/10" {
		t.Fatalf("unexpected content range %q", result.ContentRange)
	}
}
