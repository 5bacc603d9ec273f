package jobs

import (
	"MediaVault/internal/mq"
	"MediaVault/internal/repo"
	"MediaVault/model"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"
)

// CleanupPayload is the kind-specific data carried by cleanup jobs.
type CleanupPayload struct {
	StoredName    string `json:"stored_name"`
	StorageDriver string `json:"storage_driver"`
}

// activeSlot is the uniqueness key enforcing one active job per
// (user, file, kind) at the database level.
func activeSlot(userID, fileID uint64, kind string) string {
	return fmt.Sprintf("%d:%d:%s", userID, fileID, kind)
}

func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "duplicate")
}

// activeJobID resolves a lost enqueue race to the job that owns the slot.
func activeJobID(userID, fileID uint64, kind string) (uint64, bool, error) {
	var job model.Job
	err := repo.Db.
		Where("user_id = ? AND file_id = ? AND kind = ? AND status IN ?",
			userID, fileID, kind, []string{model.JobQueued, model.JobProcessing}).
		Order("id desc").
		First(&job).Error
	if err != nil {
		return 0, false, err
	}
	return job.ID, false, nil
}

// Enqueue requests a job for (userID, fileID, kind).
//
// An active job is returned unchanged (dedup). A ready job makes the call a
// no-op returning (0, false, nil): the work is already done. A failed job is
// flipped back to queued with its error cleared (retry by resubmission).
// Otherwise a fresh queued row is inserted. The created flag tells the
// caller whether a kick is worth sending.
//
// The unique index on active_slot backs the dedup: when two enqueues race,
// the loser hits a duplicate-key error and is handed the winner's job id.
func Enqueue(userID, fileID uint64, kind string, quality *int) (uint64, bool, error) {
	slot := activeSlot(userID, fileID, kind)
	var job model.Job
	err := repo.Db.
		Where("user_id = ? AND file_id = ? AND kind = ?", userID, fileID, kind).
		Order("id desc").
		First(&job).Error
	if err == nil {
		switch job.Status {
		case model.JobQueued, model.JobProcessing:
			return job.ID, false, nil
		case model.JobReady:
			return 0, false, nil
		case model.JobFailed:
			updates := map[string]interface{}{
				"status":      model.JobQueued,
				"error_msg":   "",
				"active_slot": slot,
			}
			if quality != nil {
				updates["quality"] = *quality
			}
			res := repo.Db.Model(&model.Job{}).
				Where("id = ? AND status = ?", job.ID, model.JobFailed).
				Updates(updates)
			if res.Error != nil {
				if isDuplicateKey(res.Error) {
					return activeJobID(userID, fileID, kind)
				}
				return 0, false, res.Error
			}
			if res.RowsAffected == 0 {
				return activeJobID(userID, fileID, kind)
			}
			return job.ID, true, nil
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, err
	}

	fresh := model.Job{
		UserID:     userID,
		FileID:     fileID,
		Kind:       kind,
		Status:     model.JobQueued,
		Quality:    quality,
		ActiveSlot: &slot,
	}
	if err := repo.Db.Create(&fresh).Error; err != nil {
		if isDuplicateKey(err) {
			return activeJobID(userID, fileID, kind)
		}
		return 0, false, err
	}
	return fresh.ID, true, nil
}

// EnqueueCleanup queues a durable blob-cleanup job. The blob location is
// stored in the payload because the file record is already deleted.
func EnqueueCleanup(userID, fileID uint64, storedName, storageDriver string) (uint64, bool, error) {
	payload, err := json.Marshal(CleanupPayload{
		StoredName:    storedName,
		StorageDriver: storageDriver,
	})
	if err != nil {
		return 0, false, err
	}
	slot := activeSlot(userID, fileID, model.JobKindCleanup)
	job := model.Job{
		UserID:     userID,
		FileID:     fileID,
		Kind:       model.JobKindCleanup,
		Status:     model.JobQueued,
		Payload:    string(payload),
		ActiveSlot: &slot,
	}
	if err := repo.Db.Create(&job).Error; err != nil {
		if isDuplicateKey(err) {
			return activeJobID(userID, fileID, model.JobKindCleanup)
		}
		return 0, false, err
	}
	return job.ID, true, nil
}

// GetJobsForFile lists jobs on one file for status polling.
func GetJobsForFile(userID, fileID uint64) ([]model.Job, error) {
	var list []model.Job
	err := repo.Db.
		Where("user_id = ? AND file_id = ?", userID, fileID).
		Order("id desc").
		Find(&list).Error
	return list, err
}

// RequestKick tells the worker process that one job has new work. Delivery
// is fire-and-forget: the batch runner will still find the row later if the
// kick is lost.
func RequestKick(jobID uint64) {
	publisher, err := mq.GetPublisher()
	if err != nil {
		log.Printf("job kick publisher unavailable: %v", err)
		return
	}
	body, err := json.Marshal(mq.KickMessage{JobID: &jobID})
	if err != nil {
		log.Printf("job kick encode failed: %v", err)
		return
	}
	if err := publisher.PublishKick(context.Background(), body); err != nil {
		log.Printf("job kick publish failed: %v", err)
	}
}

// RequestBatchKick asks the worker process for one full batch pass.
func RequestBatchKick() {
	publisher, err := mq.GetPublisher()
	if err != nil {
		log.Printf("job kick publisher unavailable: %v", err)
		return
	}
	body, err := json.Marshal(mq.KickMessage{Batch: true})
	if err != nil {
		log.Printf("job kick encode failed: %v", err)
		return
	}
	if err := publisher.PublishKick(context.Background(), body); err != nil {
		log.Printf("job kick publish failed: %v", err)
	}
}
