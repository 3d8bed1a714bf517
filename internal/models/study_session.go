package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type StudySession struct {
	ID           string                      `gorm:"primaryKey;size:36" json:"id"`
	GroupID      string                      `gorm:"size:36;not null;index" json:"group_id"`
	Title        string                      `gorm:"size:255;not null" json:"title"`
	Description  string                      `gorm:"type:text" json:"description"`
	DateTime     time.Time                   `gorm:"not null;index" json:"date_time"`
	Location     string                      `gorm:"size:255" json:"location"`
	Attendees    datatypes.JSONSlice[string] `json:"attendees"`
	MaxAttendees *int                        `json:"max_attendees"` // nil: unlimited
	CreatedBy    string                      `gorm:"size:36;not null" json:"created_by"`
	Status       string                      `gorm:"size:20;not null" json:"status"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

func (StudySession) TableName() string {
	return "study_sessions"
}

func (s *StudySession) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// IsFull reports whether the session has reached its attendee cap.
func (s *StudySession) IsFull() bool {
	return s.MaxAttendees != nil && *s.MaxAttendees > 0 && len(s.Attendees) >= *s.MaxAttendees
}
