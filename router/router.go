package router

import (
	"MediaVault/internal/handler"
	"MediaVault/utils"

	"github.com/gin-gonic/gin"
)

// InitRouter builds API routes.
func InitRouter() *gin.Engine {
	r := gin.Default()
	r.Use(utils.CORSMiddleware())

	api := r.Group("/api")
	{
		auth := api.Group("")
		auth.Use(utils.AuthMiddleware())

		upload := auth.Group("/upload/chunked")
		{
			upload.POST("/init", handler.ChunkInit)
			upload.PUT("/:upload_id/part/:index", handler.ChunkPart)
			upload.POST("/complete", handler.ChunkComplete)
			upload.POST("/abort", handler.ChunkAbort)
			upload.GET("/:upload_id/status", handler.ChunkStatus)
		}

		file := auth.Group("/file")
		{
			file.GET("/download/:file_id", handler.DownloadFile)
			file.POST("/delete/:file_id", handler.DeleteFile)
		}

		jobs := auth.Group("/jobs")
		{
			jobs.POST("/enqueue", handler.EnqueueJob)
			jobs.POST("/kick", handler.KickJobs)
			jobs.GET("/file/:file_id", handler.JobsForFile)
		}
	}
	return r
}
