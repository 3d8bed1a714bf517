package handler

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"campusconnect/internal/middleware"
	"campusconnect/internal/models"
	"campusconnect/internal/repository"
	"campusconnect/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SessionHandler struct {
	repo      *repository.StudySessionRepository
	groupRepo *repository.GroupRepository
	notifier  *service.NotificationService
	log       *zap.Logger
}

func NewSessionHandler(repo *repository.StudySessionRepository, groupRepo *repository.GroupRepository, notifier *service.NotificationService, log *zap.Logger) *SessionHandler {
	return &SessionHandler{repo: repo, groupRepo: groupRepo, notifier: notifier, log: log}
}

type createSessionRequest struct {
	GroupID      string    `json:"group_id" binding:"required"`
	Title        string    `json:"title" binding:"required"`
	Description  string    `json:"description"`
	DateTime     time.Time `json:"date_time" binding:"required"`
	Location     string    `json:"location"`
	MaxAttendees *int      `json:"max_attendees"`
}

// List returns sessions by start time, optionally for one group (?group_id=).
func (h *SessionHandler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context(), c.Query("group_id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": list})
}

func (h *SessionHandler) Create(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		badRequest(c, "group_id, title and date_time required")
		return
	}
	if req.MaxAttendees != nil && *req.MaxAttendees < 0 {
		badRequest(c, "max_attendees cannot be negative")
		return
	}
	ctx := c.Request.Context()
	if _, err := h.groupRepo.Get(ctx, req.GroupID); err != nil {
		respondError(c, h.log, err)
		return
	}
	s := &models.StudySession{
		GroupID:      req.GroupID,
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		DateTime:     req.DateTime,
		Location:     req.Location,
		MaxAttendees: req.MaxAttendees,
		CreatedBy:    middleware.GetUserID(c),
	}
	if err := h.repo.Create(ctx, s); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": s})
}

// Join answers 409 with "study session is full" at capacity.
func (h *SessionHandler) Join(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)
	before, err := h.repo.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if slices.Contains(before.Attendees, userID) {
		c.JSON(http.StatusOK, gin.H{"session": before})
		return
	}
	s, err := h.repo.Join(ctx, before.ID, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if u := currentUser(c); u != nil && s.CreatedBy != userID {
		h.notifier.NotifySessionJoined(ctx, s, u.DisplayName)
	}
	c.JSON(http.StatusOK, gin.H{"session": s})
}
