package service

import (
	"MediaVault/config"
	"MediaVault/internal/apperr"
	"MediaVault/internal/repo"
	"MediaVault/internal/storage"
	"MediaVault/model"
	"context"
	"database/sql"
	"fmt"
	"io"
	"testing"
)

// setupCompleteDB wires the upload stack against the test database, skipping
// when no MySQL server is reachable.
func setupCompleteDB(t *testing.T) {
	t.Helper()
	setupUploadTest(t)
	cfg := config.AppConfig

	serverDSN := fmt.Sprintf("%s:%s@tcp(%s:%s)/", cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort)
	serverDB, err := sql.Open("mysql", serverDSN)
	if err != nil {
		t.Skipf("mysql not available: %v", err)
	}
	pingErr := serverDB.Ping()
	_ = serverDB.Close()
	if pingErr != nil {
		t.Skipf("mysql not available: %v", pingErr)
	}

	repo.InitMysqlTest()
	for _, table := range []string{"job", "file"} {
		if err := repo.Db.Exec("DELETE FROM " + table).Error; err != nil {
			t.Fatalf("clean %s table: %v", table, err)
		}
	}
}

func TestCompleteInsertsOneRecordAndDropsSession(t *testing.T) {
	setupCompleteDB(t)
	ctx := context.Background()

	resp := initSession(t, 1, 10_000_000, 3_000_000)
	if resp.TotalParts != 4 {
		t.Fatalf("expected 4 parts, got %d", resp.TotalParts)
	}
	remaining := int64(10_000_000)
	for index := 0; index < resp.TotalParts; index++ {
		size := resp.ChunkSize
		if size > remaining {
			size = remaining
		}
		if _, err := UploadChunkPart(1, resp.UploadID, index, io.LimitReader(neverEnding('v'), size)); err != nil {
			t.Fatalf("part %d failed: %v", index, err)
		}
		remaining -= size
	}

	file, err := CompleteChunkedUpload(ctx, 1, resp.UploadID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if file.ID == 0 || file.Size != 10_000_000 {
		t.Fatalf("unexpected file record: %+v", file)
	}

	var count int64
	if err := repo.Db.Model(&model.File{}).
		Where("user_id = ? AND stored_name = ?", file.UserID, file.StoredName).
		Count(&count).Error; err != nil {
		t.Fatalf("count file records: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one file record, got %d", count)
	}

	meta, err := storage.Default.Stat(ctx, storage.ObjectKey(file.UserID, file.StoredName))
	if err != nil {
		t.Fatalf("stat assembled blob: %v", err)
	}
	if meta.Size != 10_000_000 {
		t.Fatalf("assembled blob is %d bytes, want 10000000", meta.Size)
	}

	// The session directory is gone, so status and a repeat complete both
	// come back not-found.
	if _, err := GetChunkedUploadStatus(1, resp.UploadID); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("expected session to be gone, got %v", err)
	}
	if _, err := CompleteChunkedUpload(ctx, 1, resp.UploadID); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("expected repeat complete to be not-found, got %v", err)
	}
}
