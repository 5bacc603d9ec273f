package handler

import (
	"MediaVault/internal/apperr"
	"MediaVault/internal/dto"
	"MediaVault/internal/jobs"
	"MediaVault/internal/service"
	"MediaVault/model"
	"MediaVault/utils"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// EnqueueJob requests a processing job for an owned file.
func EnqueueJob(c *gin.Context) {
	var req dto.EnqueueJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}
	if req.Kind == "" {
		req.Kind = model.JobKindTranscode
	}
	if req.Kind != model.JobKindTranscode && req.Kind != model.JobKindPreview {
		utils.Fail(c, apperr.Validationf("unsupported job kind %q", req.Kind))
		return
	}
	if req.Quality != nil && (*req.Quality < 0 || *req.Quality > 100) {
		utils.Fail(c, apperr.Validationf("quality must be in [0,100]"))
		return
	}
	userID := c.MustGet("user_id").(uint64)
	if _, err := service.GetOwnedFile(userID, req.FileID); err != nil {
		utils.Fail(c, err)
		return
	}
	jobID, created, err := jobs.Enqueue(userID, req.FileID, req.Kind, req.Quality)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	if created {
		jobs.RequestKick(jobID)
	}
	utils.Success(c, gin.H{
		"job_id":  jobID,
		"created": created,
	})
}

// KickJobs asks the worker process for a full pass over the queued jobs.
// Useful after an outage when kicks were lost.
func KickJobs(c *gin.Context) {
	jobs.RequestBatchKick()
	utils.Success(c, gin.H{"kicked": true})
}

// JobsForFile lists job states for an owned file.
func JobsForFile(c *gin.Context) {
	fileID, err := strconv.ParseUint(c.Param("file_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid file id"})
		return
	}
	userID := c.MustGet("user_id").(uint64)
	if _, err := service.GetOwnedFile(userID, fileID); err != nil {
		utils.Fail(c, err)
		return
	}
	records, err := jobs.GetJobsForFile(userID, fileID)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	out := make([]gin.H, 0, len(records))
	for _, job := range records {
		entry := gin.H{
			"job_id":  job.ID,
			"kind":    job.Kind,
			"status":  job.Status,
			"updated": job.UpdatedAt,
		}
		if job.Status == model.JobReady {
			entry["output_mime_type"] = job.OutputMimeType
			entry["output_size"] = job.OutputSize
		}
		if job.Status == model.JobFailed {
			entry["error"] = job.ErrorMsg
		}
		out = append(out, entry)
	}
	utils.Success(c, out)
}
