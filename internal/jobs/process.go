package jobs

import (
	"MediaVault/config"
	"MediaVault/internal/notify"
	"MediaVault/internal/repo"
	"MediaVault/internal/storage"
	"MediaVault/internal/transcode"
	"MediaVault/model"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/gorm"
)

// ProcessJob runs one job through its state machine. Transitions are
// strictly forward; failures are recorded on the row and never propagate to
// the caller.
func ProcessJob(ctx context.Context, jobID uint64) {
	var job model.Job
	if err := repo.Db.Where("id = ?", jobID).First(&job).Error; err != nil {
		log.Printf("job %d load failed: %v", jobID, err)
		return
	}

	res := repo.Db.Model(&model.Job{}).
		Where("id = ? AND status = ?", jobID, model.JobQueued).
		Update("status", model.JobProcessing)
	if res.Error != nil {
		log.Printf("job %d claim failed: %v", jobID, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		// Already claimed or terminal.
		return
	}
	job.Status = model.JobProcessing

	var err error
	switch job.Kind {
	case model.JobKindTranscode:
		err = processTranscode(ctx, &job)
	case model.JobKindPreview:
		err = processPreview(ctx, &job)
	case model.JobKindCleanup:
		err = processCleanup(ctx, &job)
	default:
		err = fmt.Errorf("unknown job kind %q", job.Kind)
	}
	if err != nil {
		markFailed(job.ID, err)
	}
}

func truncateError(err error) string {
	msg := err.Error()
	max := config.AppConfig.JobErrorMaxLen
	if max <= 0 {
		max = 500
	}
	if len(msg) > max {
		msg = msg[:max]
	}
	return msg
}

func markFailed(jobID uint64, cause error) {
	if err := repo.Db.Model(&model.Job{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":      model.JobFailed,
			"error_msg":   truncateError(cause),
			"active_slot": nil,
		}).Error; err != nil {
		log.Printf("job %d mark failed failed: %v", jobID, err)
	}
}

func markReady(jobID uint64, outputMimeType string, outputSize int64) error {
	return repo.Db.Model(&model.Job{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":           model.JobReady,
			"output_mime_type": outputMimeType,
			"output_size":      outputSize,
			"error_msg":        "",
			"active_slot":      nil,
		}).Error
}

// loadJobFile resolves the file a job references. A missing row is a data
// problem, not a transient one: the caller marks the job failed.
func loadJobFile(job *model.Job) (*model.File, error) {
	var file model.File
	err := repo.Db.Where("id = ? AND user_id = ?", job.FileID, job.UserID).First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("file %d not found", job.FileID)
		}
		return nil, err
	}
	return &file, nil
}

// fetchBlob downloads the file's blob into dir so ffmpeg can read it.
func fetchBlob(ctx context.Context, file *model.File, dir string) (string, error) {
	driver, err := storage.ForName(file.StorageDriver)
	if err != nil {
		return "", err
	}
	result, err := driver.Read(ctx, storage.ObjectKey(file.UserID, file.StoredName), nil)
	if err != nil {
		return "", err
	}
	defer result.Body.Close()

	inputPath := filepath.Join(dir, "input"+strings.ToLower(filepath.Ext(file.StoredName)))
	out, err := os.Create(inputPath)
	if err != nil {
		return "", err
	}
	_, err = io.Copy(out, result.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", err
	}
	return inputPath, nil
}

func segmentMimeType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".ts":
		return "video/mp2t"
	default:
		return "application/octet-stream"
	}
}

func transcodeOptions(quality *int) transcode.Options {
	q := config.AppConfig.TranscodeQuality
	if quality != nil {
		q = *quality
	}
	return transcode.Options{
		FFmpegPath:     config.AppConfig.FFmpegPath,
		SegmentSeconds: config.AppConfig.HLSSegmentSeconds,
		Quality:        q,
	}
}

func processTranscode(ctx context.Context, job *model.Job) error {
	file, err := loadJobFile(job)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(file.MimeType, "video/") {
		return fmt.Errorf("unsupported media type %q for transcode", file.MimeType)
	}
	driver, err := storage.ForName(file.StorageDriver)
	if err != nil {
		return err
	}

	prefix := storage.DerivedPrefix(file.UserID, file.StoredName)
	// Prior partial success: if the playlist already exists there is
	// nothing left to do.
	if _, statErr := driver.Stat(ctx, prefix+transcode.PlaylistName); statErr == nil {
		return markReady(job.ID, "application/vnd.apple.mpegurl", job.OutputSize)
	}

	workDir, err := os.MkdirTemp(config.AppConfig.TranscodeTempDir, "transcode-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(workDir)

	inputPath, err := fetchBlob(ctx, file, workDir)
	if err != nil {
		return err
	}
	outDir := filepath.Join(workDir, "hls")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	opts := transcodeOptions(job.Quality)
	// Near-lossless requests try a stream copy first; any copy failure
	// falls back to a full transcode at the same quality.
	if opts.Quality >= 95 {
		if copyErr := transcode.HLSCopy(ctx, inputPath, outDir, opts); copyErr != nil {
			log.Printf("job %d stream copy failed, falling back to transcode: %v", job.ID, copyErr)
			if err := resetOutputDir(outDir); err != nil {
				return err
			}
			if err := transcode.HLS(ctx, inputPath, outDir, opts); err != nil {
				return err
			}
		}
	} else {
		if err := transcode.HLS(ctx, inputPath, outDir, opts); err != nil {
			return err
		}
	}

	totalSize, err := uploadOutputs(ctx, driver, prefix, outDir)
	if err != nil {
		return err
	}
	if err := markReady(job.ID, "application/vnd.apple.mpegurl", totalSize); err != nil {
		return err
	}
	notifyReady(ctx, job, file)
	return nil
}

// resetOutputDir clears a half-written output directory between attempts.
func resetOutputDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// uploadOutputs pushes every produced file through the storage driver,
// accumulating total output size.
func uploadOutputs(ctx context.Context, driver storage.Driver, prefix, outDir string) (int64, error) {
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return 0, err
		}
		src, err := os.Open(filepath.Join(outDir, entry.Name()))
		if err != nil {
			return 0, err
		}
		putErr := driver.Put(ctx, prefix+entry.Name(), src, info.Size(), segmentMimeType(entry.Name()))
		_ = src.Close()
		if putErr != nil {
			return 0, putErr
		}
		total += info.Size()
	}
	return total, nil
}

func processPreview(ctx context.Context, job *model.Job) error {
	file, err := loadJobFile(job)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(file.MimeType, "video/") && !strings.HasPrefix(file.MimeType, "image/") {
		return fmt.Errorf("unsupported media type %q for preview", file.MimeType)
	}
	driver, err := storage.ForName(file.StorageDriver)
	if err != nil {
		return err
	}

	thumbKey := storage.ThumbKey(file.UserID, file.StoredName)
	if _, statErr := driver.Stat(ctx, thumbKey); statErr == nil {
		return markReady(job.ID, "image/jpeg", job.OutputSize)
	}

	workDir, err := os.MkdirTemp(config.AppConfig.TranscodeTempDir, "preview-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(workDir)

	inputPath, err := fetchBlob(ctx, file, workDir)
	if err != nil {
		return err
	}
	thumbPath := filepath.Join(workDir, "thumb.jpg")
	if err := transcode.Thumbnail(ctx, inputPath, thumbPath, transcodeOptions(job.Quality)); err != nil {
		return err
	}

	info, err := os.Stat(thumbPath)
	if err != nil {
		return err
	}
	src, err := os.Open(thumbPath)
	if err != nil {
		return err
	}
	putErr := driver.Put(ctx, thumbKey, src, info.Size(), "image/jpeg")
	_ = src.Close()
	if putErr != nil {
		return putErr
	}
	if err := markReady(job.ID, "image/jpeg", info.Size()); err != nil {
		return err
	}
	notifyReady(ctx, job, file)
	return nil
}

func processCleanup(ctx context.Context, job *model.Job) error {
	var payload CleanupPayload
	if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
		return fmt.Errorf("invalid cleanup payload: %w", err)
	}
	driver, err := storage.ForName(payload.StorageDriver)
	if err != nil {
		return err
	}
	if err := driver.Delete(ctx, storage.ObjectKey(job.UserID, payload.StoredName)); err != nil {
		return err
	}
	if err := driver.DeletePrefix(ctx, storage.DerivedPrefix(job.UserID, payload.StoredName)); err != nil {
		return err
	}
	if err := driver.Delete(ctx, storage.ThumbKey(job.UserID, payload.StoredName)); err != nil {
		return err
	}
	return markReady(job.ID, "", 0)
}

func notifyReady(ctx context.Context, job *model.Job, file *model.File) {
	if notify.Default == nil {
		return
	}
	if err := notify.Default.JobReady(ctx, job.Kind, file.OriginalName); err != nil {
		log.Printf("job %d ready notification failed: %v", job.ID, err)
	}
}
