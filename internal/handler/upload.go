package handler

import (
	"MediaVault/internal/dto"
	"MediaVault/internal/repo"
	"MediaVault/internal/service"
	"MediaVault/utils"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// ChunkInit starts a resumable upload session.
func ChunkInit(c *gin.Context) {
	var req dto.ChunkInitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}
	userID := c.MustGet("user_id").(uint64)
	resp, err := service.InitChunkedUpload(userID, req)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, resp)
}

// ChunkPart receives one raw chunk body.
func ChunkPart(c *gin.Context) {
	uploadID := c.Param("upload_id")
	partIndex, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid part index"})
		return
	}
	userID := c.MustGet("user_id").(uint64)
	received, err := service.UploadChunkPart(userID, uploadID, partIndex, c.Request.Body)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, dto.ChunkPartResponse{
		UploadID: uploadID,
		Part:     partIndex,
		Received: received,
	})
}

// ChunkComplete merges received parts into the final object. A per-session
// redis lock keeps concurrent completes from assembling twice.
func ChunkComplete(c *gin.Context) {
	var req dto.ChunkCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}
	userID := c.MustGet("user_id").(uint64)

	lockKey := "lock:merge:" + strconv.FormatUint(userID, 10) + ":" + req.UploadID
	lock := repo.NewRedisLock(repo.Redis, lockKey, 30*time.Second)
	ctx := c.Request.Context()
	if err := lock.Lock(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"msg": "lock failed: " + err.Error()})
		return
	}
	defer lock.Unlock(ctx)

	file, err := service.CompleteChunkedUpload(ctx, userID, req.UploadID)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"code": 0,
		"msg":  "ok",
		"data": gin.H{
			"file_id":     file.ID,
			"slug":        file.Slug,
			"stored_name": file.StoredName,
			"mime_type":   file.MimeType,
			"size":        file.Size,
		},
	})
}

// ChunkAbort cancels a session and discards its parts.
func ChunkAbort(c *gin.Context) {
	var req dto.ChunkAbortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}
	userID := c.MustGet("user_id").(uint64)
	if err := service.AbortChunkedUpload(userID, req.UploadID); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, gin.H{"upload_id": req.UploadID})
}

// ChunkStatus reports which parts a session has received.
func ChunkStatus(c *gin.Context) {
	uploadID := c.Param("upload_id")
	userID := c.MustGet("user_id").(uint64)
	resp, err := service.GetChunkedUploadStatus(userID, uploadID)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, resp)
}
