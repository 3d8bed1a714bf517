package handler

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"campusconnect/internal/domain"
	"campusconnect/internal/middleware"
	"campusconnect/internal/models"
	"campusconnect/internal/repository"
	"campusconnect/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ProjectHandler struct {
	repo     *repository.ProjectRepository
	notifier *service.NotificationService
	log      *zap.Logger
}

func NewProjectHandler(repo *repository.ProjectRepository, notifier *service.NotificationService, log *zap.Logger) *ProjectHandler {
	return &ProjectHandler{repo: repo, notifier: notifier, log: log}
}

type createProjectRequest struct {
	Title          string     `json:"title" binding:"required"`
	Description    string     `json:"description"`
	RequiredSkills []string   `json:"required_skills"`
	Category       string     `json:"category" binding:"required"`
	Deadline       *time.Time `json:"deadline"`
}

// List supports ?search=, ?skills=a,b, ?category= and ?status=.
func (h *ProjectHandler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context(), repository.ProjectFilters{
		Search:   c.Query("search"),
		Category: c.Query("category"),
		Status:   c.Query("status"),
		Skills:   queryList(c.Query("skills")),
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": list})
}

func (h *ProjectHandler) Create(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		badRequest(c, "title and category required")
		return
	}
	if !domain.ValidCategory(req.Category) {
		badRequest(c, "category must be hackathon, coursework, research or extracurricular")
		return
	}
	p := &models.Project{
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		RequiredSkills: cleanList(req.RequiredSkills),
		Category:       req.Category,
		Deadline:       req.Deadline,
		CreatedBy:      middleware.GetUserID(c),
	}
	if err := h.repo.Create(c.Request.Context(), p); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"project": p})
}

func (h *ProjectHandler) Join(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)
	before, err := h.repo.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if slices.Contains(before.Collaborators, userID) {
		c.JSON(http.StatusOK, gin.H{"project": before})
		return
	}
	p, err := h.repo.Join(ctx, before.ID, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if u := currentUser(c); u != nil && p.CreatedBy != userID {
		h.notifier.NotifyProjectJoined(ctx, p, u.DisplayName)
	}
	c.JSON(http.StatusOK, gin.H{"project": p})
}

// UpdateStatus lets the creator move the project between open, in-progress and completed.
func (h *ProjectHandler) UpdateStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || !domain.ValidProjectStatus(req.Status) {
		badRequest(c, "status must be open, in-progress or completed")
		return
	}
	ctx := c.Request.Context()
	p, err := h.repo.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if p.CreatedBy != middleware.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the creator can change the status"})
		return
	}
	if err := h.repo.UpdateStatus(ctx, p.ID, req.Status); err != nil {
		respondError(c, h.log, err)
		return
	}
	p.Status = req.Status
	c.JSON(http.StatusOK, gin.H{"project": p})
}
