package dto

// ChunkInitRequest starts a resumable upload.
type ChunkInitRequest struct {
	Size        int64  `json:"size" binding:"required"`
	MimeType    string `json:"mime_type"`
	FileName    string `json:"file_name" binding:"required"`
	ChunkSize   int64  `json:"chunk_size"`
	ContentHash string `json:"content_hash"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Visibility  string `json:"visibility"`
	Password    string `json:"password"`
	MaxViews    int    `json:"max_views"`
}

// ChunkCompleteRequest finishes a resumable upload.
type ChunkCompleteRequest struct {
	UploadID string `json:"upload_id" binding:"required"`
}

// ChunkAbortRequest cancels a resumable upload.
type ChunkAbortRequest struct {
	UploadID string `json:"upload_id" binding:"required"`
}

// EnqueueJobRequest asks for a job on an owned file.
type EnqueueJobRequest struct {
	FileID  uint64 `json:"file_id" binding:"required"`
	Kind    string `json:"kind"`
	Quality *int   `json:"quality"`
}
