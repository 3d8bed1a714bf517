package repository

import (
	"context"
	"time"

	"campusconnect/internal/domain"
	"campusconnect/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type GroupFilters struct {
	Search       string
	Interests    []string // any overlap
	PrivacyLevel string
}

type GroupRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGroupRepository(db *gorm.DB) *GroupRepository {
	return &GroupRepository{db: db, now: time.Now}
}

// Create stores the group with its creator as the only member.
func (r *GroupRepository) Create(ctx context.Context, g *models.Group) error {
	g.Members = datatypes.JSONSlice[string]{g.CreatedBy}
	g.MemberCount = 1
	g.Featured = false
	g.FeaturedUntil = nil
	return r.db.WithContext(ctx).Create(g).Error
}

func (r *GroupRepository) Get(ctx context.Context, id string) (*models.Group, error) {
	var g models.Group
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// List returns groups newest first. Interest overlap is applied after the query
// since JSON array operators differ across dialects.
func (r *GroupRepository) List(ctx context.Context, f GroupFilters) ([]models.Group, error) {
	q := r.db.WithContext(ctx).Model(&models.Group{}).
		Scopes(searchScope(f.Search, "name", "description")).
		Order("created_at DESC")
	if f.PrivacyLevel != "" {
		q = q.Where("privacy_level = ?", f.PrivacyLevel)
	}
	var list []models.Group
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	if len(f.Interests) == 0 {
		return list, nil
	}
	out := list[:0]
	for _, g := range list {
		if overlaps(g.Interests, f.Interests) {
			out = append(out, g)
		}
	}
	return out, nil
}

// Join adds userID to the member list. It reads the current members and writes
// the new list back without locking, so two concurrent joins can lose one.
func (r *GroupRepository) Join(ctx context.Context, groupID, userID string) (*models.Group, error) {
	g, err := r.Get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	members := appendUnique(g.Members, userID)
	err = r.db.WithContext(ctx).Model(&models.Group{}).Where("id = ?", groupID).Updates(map[string]interface{}{
		"members":      datatypes.JSONSlice[string](members),
		"member_count": len(members),
	}).Error
	if err != nil {
		return nil, err
	}
	g.Members = members
	g.MemberCount = len(members)
	return g, nil
}

// Feature marks the group featured for the given number of days from now.
func (r *GroupRepository) Feature(ctx context.Context, id string, days int) error {
	until := r.now().Add(domain.Days(days))
	res := r.db.WithContext(ctx).Model(&models.Group{}).Where("id = ?", id).Updates(map[string]interface{}{
		"featured":       true,
		"featured_until": until,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
