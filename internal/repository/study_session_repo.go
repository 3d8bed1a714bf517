package repository

import (
	"context"
	"errors"
	"slices"

	"campusconnect/internal/domain"
	"campusconnect/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrSessionFull = errors.New("study session is full")

type StudySessionRepository struct {
	db *gorm.DB
}

func NewStudySessionRepository(db *gorm.DB) *StudySessionRepository {
	return &StudySessionRepository{db: db}
}

// Create stores the session with its creator attending and status upcoming.
func (r *StudySessionRepository) Create(ctx context.Context, s *models.StudySession) error {
	s.Attendees = datatypes.JSONSlice[string]{s.CreatedBy}
	s.Status = domain.SessionUpcoming
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *StudySessionRepository) Get(ctx context.Context, id string) (*models.StudySession, error) {
	var s models.StudySession
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns sessions soonest first, optionally limited to one group.
func (r *StudySessionRepository) List(ctx context.Context, groupID string) ([]models.StudySession, error) {
	q := r.db.WithContext(ctx).Order("date_time ASC")
	if groupID != "" {
		q = q.Where("group_id = ?", groupID)
	}
	var list []models.StudySession
	err := q.Find(&list).Error
	return list, err
}

// Join adds userID to the attendees. A user already attending gets the session
// back unchanged; a session at capacity returns ErrSessionFull.
func (r *StudySessionRepository) Join(ctx context.Context, sessionID, userID string) (*models.StudySession, error) {
	s, err := r.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if slices.Contains(s.Attendees, userID) {
		return s, nil
	}
	if s.IsFull() {
		return nil, ErrSessionFull
	}
	attendees := appendUnique(s.Attendees, userID)
	err = r.db.WithContext(ctx).Model(&models.StudySession{}).Where("id = ?", sessionID).
		Update("attendees", datatypes.JSONSlice[string](attendees)).Error
	if err != nil {
		return nil, err
	}
	s.Attendees = attendees
	return s, nil
}
