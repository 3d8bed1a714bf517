package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ResourceTags struct {
	Course    string `json:"course,omitempty"`
	Professor string `json:"professor,omitempty"`
	Topic     string `json:"topic,omitempty"`
}

type Resource struct {
	ID              string                           `gorm:"primaryKey;size:36" json:"id"`
	GroupID         string                           `gorm:"size:36;not null;index" json:"group_id"`
	UploadedBy      string                           `gorm:"size:36;not null" json:"uploaded_by"`
	FileName        string                           `gorm:"size:255;not null" json:"file_name"`
	StorageHash     string                           `gorm:"size:128;not null" json:"storage_hash"` // IPFS CID
	Tags            datatypes.JSONType[ResourceTags] `json:"tags"`
	Description     string                           `gorm:"type:text" json:"description"`
	UploadTimestamp time.Time                        `gorm:"not null;index" json:"upload_timestamp"`
	DownloadCount   int64                            `gorm:"not null" json:"download_count"`
	Featured        bool                             `gorm:"not null;index" json:"featured"`
	FeaturedUntil   *time.Time                       `json:"featured_until"`
}

func (Resource) TableName() string {
	return "resources"
}

func (r *Resource) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}
