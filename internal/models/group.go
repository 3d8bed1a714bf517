package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Group struct {
	ID            string                      `gorm:"primaryKey;size:36" json:"id"`
	Name          string                      `gorm:"size:255;not null" json:"name"`
	Description   string                      `gorm:"type:text" json:"description"`
	Members       datatypes.JSONSlice[string] `json:"members"`
	Interests     datatypes.JSONSlice[string] `json:"interests"`
	PrivacyLevel  string                      `gorm:"size:10;not null;index" json:"privacy_level"`
	CreatedBy     string                      `gorm:"size:36;not null;index" json:"created_by"`
	MemberCount   int                         `gorm:"not null" json:"member_count"`
	Featured      bool                        `gorm:"not null;index" json:"featured"`
	FeaturedUntil *time.Time                  `json:"featured_until"`
	CreatedAt     time.Time                   `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}

func (Group) TableName() string {
	return "groups"
}

func (g *Group) BeforeCreate(*gorm.DB) error {
	assignID(&g.ID)
	return nil
}
