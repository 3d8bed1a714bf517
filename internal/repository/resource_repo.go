package repository

import (
	"context"
	"time"

	"campusconnect/internal/domain"
	"campusconnect/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ResourceFilters struct {
	GroupID   string
	Search    string
	Course    string
	Professor string
	Topic     string
}

type ResourceRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewResourceRepository(db *gorm.DB) *ResourceRepository {
	return &ResourceRepository{db: db, now: time.Now}
}

func (r *ResourceRepository) Create(ctx context.Context, res *models.Resource) error {
	res.DownloadCount = 0
	res.Featured = false
	res.FeaturedUntil = nil
	if res.UploadTimestamp.IsZero() {
		res.UploadTimestamp = r.now()
	}
	return r.db.WithContext(ctx).Create(res).Error
}

func (r *ResourceRepository) Get(ctx context.Context, id string) (*models.Resource, error) {
	var res models.Resource
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&res).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

// List returns resources most recently uploaded (or bumped) first.
func (r *ResourceRepository) List(ctx context.Context, f ResourceFilters) ([]models.Resource, error) {
	q := r.db.WithContext(ctx).Model(&models.Resource{}).
		Scopes(searchScope(f.Search, "file_name", "description")).
		Order("upload_timestamp DESC")
	if f.GroupID != "" {
		q = q.Where("group_id = ?", f.GroupID)
	}
	for key, v := range map[string]string{"course": f.Course, "professor": f.Professor, "topic": f.Topic} {
		if v != "" {
			q = q.Where(datatypes.JSONQuery("tags").Equals(v, key))
		}
	}
	var list []models.Resource
	err := q.Find(&list).Error
	return list, err
}

func (r *ResourceRepository) IncrementDownloadCount(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&models.Resource{}).Where("id = ?", id).
		UpdateColumn("download_count", gorm.Expr("download_count + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Feature marks the resource featured for the given number of days from now.
func (r *ResourceRepository) Feature(ctx context.Context, id string, days int) error {
	until := r.now().Add(domain.Days(days))
	res := r.db.WithContext(ctx).Model(&models.Resource{}).Where("id = ?", id).Updates(map[string]interface{}{
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

// Bump moves the resource to the top of upload-ordered listings. Only the
// upload timestamp changes, and it always moves forward by at least one
// millisecond, the coarsest precision the supported databases store.
func (r *ResourceRepository) Bump(ctx context.Context, id string) error {
	var cur models.Resource
	if err := r.db.WithContext(ctx).Select("upload_timestamp").Where("id = ?", id).Take(&cur).Error; err != nil {
		return err
	}
	next := r.now()
	if stored := cur.UploadTimestamp.Truncate(time.Millisecond); !next.Truncate(time.Millisecond).After(stored) {
		next = stored.Add(time.Millisecond)
	}
	res := r.db.WithContext(ctx).Model(&models.Resource{}).Where("id = ?", id).
		UpdateColumn("upload_timestamp", next)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
