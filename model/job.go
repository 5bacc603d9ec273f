package model

import "time"

// Job statuses. The only backward transition is failed -> queued,
// triggered by a fresh enqueue call.
const (
	JobQueued     = "queued"
	JobProcessing = "processing"
	JobReady      = "ready"
	JobFailed     = "failed"
)

// Job kinds.
const (
	JobKindTranscode = "transcode"
	JobKindPreview   = "preview"
	JobKindCleanup   = "cleanup"
)

type Job struct {
	ID uint64 `gorm:"primaryKey" json:"id"`

	UserID uint64 `gorm:"column:user_id;not null;index:idx_user_file" json:"user_id"`
	FileID uint64 `gorm:"column:file_id;not null;index:idx_user_file" json:"file_id"`

	Kind   string `gorm:"column:kind;size:32;not null;index" json:"kind"`
	Status string `gorm:"column:status;size:16;not null;index" json:"status"`

	Quality *int `gorm:"column:quality" json:"quality,omitempty"`

	// Set to "user:file:kind" while the job is queued or processing, NULL
	// otherwise. The unique index makes one-active-job-per-slot a database
	// guarantee, not just a check-then-insert.
	ActiveSlot *string `gorm:"column:active_slot;size:191;uniqueIndex:uk_active_slot" json:"-"`

	OutputMimeType string `gorm:"column:output_mime_type;size:128" json:"output_mime_type,omitempty"`
	OutputSize     int64  `gorm:"column:output_size;default:0" json:"output_size,omitempty"`

	// Kind-specific data; cleanup jobs keep the blob location here because
	// the file record is already gone when they run.
	Payload string `gorm:"column:payload;type:text" json:"-"`

	ErrorMsg string `gorm:"column:error_msg;size:512" json:"error_msg,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name.
func (Job) TableName() string {
	return "job"
}

// Active reports whether the job still owns its (user, file, kind) slot.
func (j *Job) Active() bool {
	return j.Status == JobQueued || j.Status == JobProcessing
}
