package dto

import "time"

// RetryHint is the advisory client-side retry policy returned at init.
// The protocol has no server-side retry; all retry is client-driven.
type RetryHint struct {
	BaseDelayMs int64 `json:"base_delay_ms"`
	MaxDelayMs  int64 `json:"max_delay_ms"`
	Jitter      bool  `json:"jitter"`
	MaxAttempts int   `json:"max_attempts"`
}

// ChunkInitResponse carries the resumability contract for one upload.
type ChunkInitResponse struct {
	UploadID   string    `json:"upload_id"`
	ChunkSize  int64     `json:"chunk_size"`
	TotalParts int       `json:"total_parts"`
	TTLSeconds int64     `json:"ttl_seconds"`
	ExpiresAt  time.Time `json:"expires_at"`
	Retry      RetryHint `json:"retry"`
}

// ChunkPartResponse acknowledges one received part.
type ChunkPartResponse struct {
	UploadID string `json:"upload_id"`
	Part     int    `json:"part"`
	Received int64  `json:"received"`
}

// ChunkStatusResponse lets a client resume by re-requesting only missing
// ranges instead of polling per-part.
type ChunkStatusResponse struct {
	UploadID       string    `json:"upload_id"`
	ChunkSize      int64     `json:"chunk_size"`
	TotalParts     int       `json:"total_parts"`
	ReceivedCount  int       `json:"received_count"`
	MissingCount   int       `json:"missing_count"`
	ReceivedRanges [][2]int  `json:"received_ranges"`
	TTLSeconds     int64     `json:"ttl_seconds"`
	ExpiresAt      time.Time `json:"expires_at"`
}
