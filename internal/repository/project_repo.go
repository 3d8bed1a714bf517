package repository

import (
	"context"

	"campusconnect/internal/domain"
	"campusconnect/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ProjectFilters struct {
	Search   string
	Category string
	Status   string
	Skills   []string // any overlap
}

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create stores the project open with no collaborators.
func (r *ProjectRepository) Create(ctx context.Context, p *models.Project) error {
	p.Collaborators = datatypes.JSONSlice[string]{}
	p.Status = domain.ProjectOpen
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *ProjectRepository) Get(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepository) List(ctx context.Context, f ProjectFilters) ([]models.Project, error) {
	q := r.db.WithContext(ctx).Model(&models.Project{}).
		Scopes(searchScope(f.Search, "title", "description")).
		Order("created_at DESC")
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var list []models.Project
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	if len(f.Skills) == 0 {
		return list, nil
	}
	out := list[:0]
	for _, p := range list {
		if overlaps(p.RequiredSkills, f.Skills) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Join adds userID to the collaborators with the same unlocked read-then-write
// as group membership.
func (r *ProjectRepository) Join(ctx context.Context, projectID, userID string) (*models.Project, error) {
	p, err := r.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	collaborators := appendUnique(p.Collaborators, userID)
	err = r.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", projectID).
		Update("collaborators", datatypes.JSONSlice[string](collaborators)).Error
	if err != nil {
		return nil, err
	}
	p.Collaborators = collaborators
	return p, nil
}

func (r *ProjectRepository) UpdateStatus(ctx context.Context, id, status string) error {
	res := r.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
