package handler

import (
	"MediaVault/internal/service"
	"MediaVault/internal/storage"
	"MediaVault/utils"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// parseRangeHeader handles a single "bytes=start-end" range. Suffix ranges
// ("bytes=-N") and multi-range requests are not supported.
func parseRangeHeader(header string) (*storage.ReadRange, bool) {
	if header == "" {
		return nil, true
	}
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return nil, false
	}
	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok || startStr == "" {
		return nil, false
	}
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return nil, false
	}
	end := int64(-1)
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < start {
			return nil, false
		}
	}
	return &storage.ReadRange{Start: start, End: end}, true
}

// DownloadFile streams an owned file, honoring a single byte range.
func DownloadFile(c *gin.Context) {
	fileID, err := strconv.ParseUint(c.Param("file_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid file id"})
		return
	}
	userID := c.MustGet("user_id").(uint64)

	file, err := service.GetOwnedFile(userID, fileID)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	rng, ok := parseRangeHeader(c.GetHeader("Range"))
	if !ok {
		c.Header("Content-Range", fmt.Sprintf("bytes */%d", file.Size))
		c.JSON(http.StatusRequestedRangeNotSatisfiable, gin.H{"msg": "invalid range"})
		return
	}

	result, err := service.ReadFile(c.Request.Context(), file, rng)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidRange) {
			c.Header("Content-Range", fmt.Sprintf("bytes */%d", file.Size))
			c.JSON(http.StatusRequestedRangeNotSatisfiable, gin.H{"msg": "invalid range"})
			return
		}
		utils.Fail(c, err)
		return
	}
	defer result.Body.Close()

	fileName := utils.SanitizeHeaderFilename(file.OriginalName)
	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", fileName))
	c.Header("Content-Type", contentType)
	c.Header("Accept-Ranges", "bytes")

	status := http.StatusOK
	if result.Partial {
		c.Header("Content-Range", result.ContentRange)
		var start, end, total int64
		if _, err := fmt.Sscanf(result.ContentRange, "bytes %d-%d/%d", &start, &end, &total); err == nil {
			c.Header("Content-Length", fmt.Sprintf("%d", end-start+1))
		}
		status = http.StatusPartialContent
	} else {
		c.Header("Content-Length", fmt.Sprintf("%d", file.Size))
	}
	c.Status(status)

	if _, err := io.Copy(c.Writer, result.Body); err != nil {
		log.Println("download error:", err)
	}
}

// DeleteFile removes a file record and its stored blobs.
func DeleteFile(c *gin.Context) {
	fileID, err := strconv.ParseUint(c.Param("file_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid file id"})
		return
	}
	userID := c.MustGet("user_id").(uint64)
	if err := service.DeleteFile(c.Request.Context(), userID, fileID); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, gin.H{"file_id": fileID})
}
