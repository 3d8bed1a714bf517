package handler

import (
	"net/http"
	"slices"
	"strings"

	"campusconnect/internal/domain"
	"campusconnect/internal/middleware"
	"campusconnect/internal/models"
	"campusconnect/internal/repository"
	"campusconnect/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type GroupHandler struct {
	repo     *repository.GroupRepository
	notifier *service.NotificationService
	log      *zap.Logger
}

func NewGroupHandler(repo *repository.GroupRepository, notifier *service.NotificationService, log *zap.Logger) *GroupHandler {
	return &GroupHandler{repo: repo, notifier: notifier, log: log}
}

type createGroupRequest struct {
	Name         string   `json:"name" binding:"required"`
	Description  string   `json:"description"`
	Interests    []string `json:"interests"`
	PrivacyLevel string   `json:"privacy_level"`
}

// List supports ?search=, ?interests=a,b and ?privacy=.
func (h *GroupHandler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context(), repository.GroupFilters{
		Search:       c.Query("search"),
		Interests:    queryList(c.Query("interests")),
		PrivacyLevel: c.Query("privacy"),
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": list})
}

func (h *GroupHandler) Create(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		badRequest(c, "name required")
		return
	}
	if req.PrivacyLevel == "" {
		req.PrivacyLevel = domain.PrivacyPublic
	}
	if !domain.ValidPrivacy(req.PrivacyLevel) {
		badRequest(c, "privacy_level must be public or private")
		return
	}
	g := &models.Group{
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		Interests:    cleanList(req.Interests),
		PrivacyLevel: req.PrivacyLevel,
		CreatedBy:    middleware.GetUserID(c),
	}
	if err := h.repo.Create(c.Request.Context(), g); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"group": g})
}

func (h *GroupHandler) Get(c *gin.Context) {
	g, err := h.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"group": g})
}

func (h *GroupHandler) Join(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)
	before, err := h.repo.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if slices.Contains(before.Members, userID) {
		c.JSON(http.StatusOK, gin.H{"group": before})
		return
	}
	g, err := h.repo.Join(ctx, before.ID, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if u := currentUser(c); u != nil {
		h.notifier.NotifyGroupJoined(ctx, g, u.DisplayName)
	}
	c.JSON(http.StatusOK, gin.H{"group": g})
}
