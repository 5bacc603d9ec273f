package service

import (
	"MediaVault/internal/apperr"
	"MediaVault/internal/jobs"
	"MediaVault/internal/repo"
	"MediaVault/internal/storage"
	"MediaVault/model"
	"errors"
	"log"
	"strings"

	"golang.org/x/net/context"
	"gorm.io/gorm"
)

// CreateFile inserts the durable file record.
func CreateFile(file *model.File) error {
	if err := repo.Db.Create(file).Error; err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "duplicate") {
			return apperr.Wrap(apperr.Conflict, "file already exists", err)
		}
		return apperr.Wrap(apperr.Internal, "create file record", err)
	}
	return nil
}

// GetOwnedFile loads a file record owned by the caller.
func GetOwnedFile(userID, fileID uint64) (*model.File, error) {
	var file model.File
	if err := repo.Db.Where("id = ?", fileID).First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "file not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "load file record", err)
	}
	if file.UserID != userID {
		return nil, apperr.New(apperr.Forbidden, "file not found")
	}
	return &file, nil
}

// ReadFile opens the file's blob through its recorded driver, honoring an
// optional byte range.
func ReadFile(ctx context.Context, file *model.File, rng *storage.ReadRange) (*storage.ReadResult, error) {
	driver, err := storage.ForName(file.StorageDriver)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "resolve storage driver", err)
	}
	result, err := driver.Read(ctx, storage.ObjectKey(file.UserID, file.StoredName), rng)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, "file blob not found")
		}
		if errors.Is(err, storage.ErrInvalidRange) {
			return nil, apperr.Wrap(apperr.Validation, "unsatisfiable byte range", err)
		}
		return nil, apperr.Wrap(apperr.Internal, "read file blob", err)
	}
	return result, nil
}

// DeleteFile removes the record, then the blob and its derived assets.
// Storage failures during cleanup never fail the user-facing delete; they
// are converted into a durable cleanup job and retried from there.
func DeleteFile(ctx context.Context, userID, fileID uint64) error {
	file, err := GetOwnedFile(userID, fileID)
	if err != nil {
		return err
	}
	if err := repo.Db.Delete(&model.File{}, file.ID).Error; err != nil {
		return apperr.Wrap(apperr.Internal, "delete file record", err)
	}

	driver, err := storage.ForName(file.StorageDriver)
	if err != nil {
		log.Printf("delete file %d: %v", file.ID, err)
		return nil
	}
	cleanupFailed := false
	if err := driver.Delete(ctx, storage.ObjectKey(file.UserID, file.StoredName)); err != nil {
		log.Printf("delete blob for file %d failed: %v", file.ID, err)
		cleanupFailed = true
	}
	if err := driver.DeletePrefix(ctx, storage.DerivedPrefix(file.UserID, file.StoredName)); err != nil {
		log.Printf("delete derived assets for file %d failed: %v", file.ID, err)
		cleanupFailed = true
	}
	if err := driver.Delete(ctx, storage.ThumbKey(file.UserID, file.StoredName)); err != nil {
		log.Printf("delete thumbnail for file %d failed: %v", file.ID, err)
		cleanupFailed = true
	}
	if cleanupFailed {
		if jobID, created, enqErr := jobs.EnqueueCleanup(file.UserID, file.ID, file.StoredName, file.StorageDriver); enqErr != nil {
			log.Printf("enqueue cleanup for file %d failed: %v", file.ID, enqErr)
		} else if created {
			jobs.RequestKick(jobID)
		}
	}
	return nil
}
