package model

import "time"

type File struct {
	ID uint64 `gorm:"primaryKey" json:"id,omitempty"`

	UserID uint64 `gorm:"column:user_id;not null;index;uniqueIndex:uk_user_stored_name,priority:1" json:"user_id,omitempty"`

	StoredName   string `gorm:"column:stored_name;size:255;not null;uniqueIndex:uk_user_stored_name,priority:2" json:"stored_name,omitempty"`
	Slug         string `gorm:"column:slug;size:255;not null;index" json:"slug,omitempty"`
	OriginalName string `gorm:"column:original_name;size:255;not null" json:"original_name,omitempty"`

	MimeType    string `gorm:"column:mime_type;size:128;not null" json:"mime_type,omitempty"`
	Description string `gorm:"column:description;type:text" json:"description,omitempty"`

	Size        int64  `gorm:"column:size;not null" json:"size,omitempty"`
	ContentHash string `gorm:"column:content_hash;size:64" json:"content_hash,omitempty"`

	// Opaque pass-through fields owned by the policy layer.
	Visibility string `gorm:"column:visibility;size:32;not null;default:private" json:"visibility,omitempty"`
	Password   string `gorm:"column:password;size:255" json:"-"`
	MaxViews   int    `gorm:"column:max_views;default:0" json:"max_views,omitempty"`

	// Backend recorded at write time and honored on every later read.
	StorageDriver string `gorm:"column:storage_driver;size:16;not null" json:"storage_driver,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name.
func (File) TableName() string {
	return "file"
}
