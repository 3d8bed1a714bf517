package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Project struct {
	ID             string                      `gorm:"primaryKey;size:36" json:"id"`
	Title          string                      `gorm:"size:255;not null" json:"title"`
	Description    string                      `gorm:"type:text" json:"description"`
	RequiredSkills datatypes.JSONSlice[string] `json:"required_skills"`
	CreatedBy      string                      `gorm:"size:36;not null;index" json:"created_by"`
	Collaborators  datatypes.JSONSlice[string] `json:"collaborators"`
	Status         string                      `gorm:"size:20;not null;index" json:"status"`
	Deadline       *time.Time                  `json:"deadline"`
	Category       string                      `gorm:"size:20;not null;index" json:"category"`
	CreatedAt      time.Time                   `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

func (Project) TableName() string {
	return "projects"
}

func (p *Project) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
