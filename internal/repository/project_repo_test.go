package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"campusconnect/internal/domain"
	"campusconnect/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectCreateAndJoin(t *testing.T) {
	repo := NewProjectRepository(newTestDB(t))
	ctx := context.Background()
	p := &models.Project{Title: "Campus map", CreatedBy: "lead", Category: domain.CategoryHackathon, RequiredSkills: []string{"go", "react"}}
	require.NoError(t, repo.Create(ctx, p))
	assert.Equal(t, domain.ProjectOpen, p.Status)
	assert.Empty(t, p.Collaborators)

	got, err := repo.Join(ctx, p.ID, "dev")
	require.NoError(t, err)
	assert.Equal(t, []string{"dev"}, []string(got.Collaborators))

	got, err = repo.Join(ctx, p.ID, "dev")
	require.NoError(t, err)
	assert.Len(t, got.Collaborators, 1)

	require.NoError(t, repo.UpdateStatus(ctx, p.ID, domain.ProjectInProgress))
	stored, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectInProgress, stored.Status)
}

func TestProjectListFilters(t *testing.T) {
	repo := NewProjectRepository(newTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &models.Project{Title: "Compiler", CreatedBy: "a", Category: domain.CategoryCoursework, RequiredSkills: []string{"c"}}))
	require.NoError(t, repo.Create(ctx, &models.Project{Title: "Rover", CreatedBy: "b", Category: domain.CategoryResearch, RequiredSkills: []string{"c", "python"}}))

	list, err := repo.List(ctx, ProjectFilters{Skills: []string{"python"}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Rover", list[0].Title)

	list, err = repo.List(ctx, ProjectFilters{Category: domain.CategoryCoursework, Status: domain.ProjectOpen})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Compiler", list[0].Title)
}

func TestProjectGetSurfacesStoreError(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := NewProjectRepository(gormDB)
	boom := errors.New("permission denied for table projects")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "projects"`)).WillReturnError(boom)

	_, err := repo.Get(context.Background(), "p1")
	assert.ErrorIs(t, err, boom)
}
