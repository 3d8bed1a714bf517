package handler

import (
	"net/http"
	"strings"

	"campusconnect/internal/middleware"
	"campusconnect/internal/repository"
	"campusconnect/internal/service"
	"campusconnect/pkg/cloudinary"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const maxAvatarSize = 5 << 20

type MeHandler struct {
	userRepo   *repository.UserRepository
	paymentSvc *service.PaymentService
	cloud      cloudinary.Client
	log        *zap.Logger
}

func NewMeHandler(userRepo *repository.UserRepository, paymentSvc *service.PaymentService, cloud cloudinary.Client, log *zap.Logger) *MeHandler {
	return &MeHandler{userRepo: userRepo, paymentSvc: paymentSvc, cloud: cloud, log: log}
}

type profileRequest struct {
	DisplayName *string  `json:"display_name"`
	Major       *string  `json:"major"`
	Interests   []string `json:"interests"`
	Bio         *string  `json:"bio"`
}

func (r profileRequest) updates() map[string]interface{} {
	out := map[string]interface{}{}
	if r.DisplayName != nil {
		out["display_name"] = strings.TrimSpace(*r.DisplayName)
	}
	if r.Major != nil {
		out["major"] = *r.Major
	}
	if r.Interests != nil {
		out["interests"] = datatypes.JSONSlice[string](cleanList(r.Interests))
	}
	if r.Bio != nil {
		out["bio"] = *r.Bio
	}
	return out
}

// GetProfile returns the current user. needs_onboarding tells the client to
// show profile creation.
func (h *MeHandler) GetProfile(c *gin.Context) {
	u, err := h.userRepo.Get(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "needs_onboarding": u.DisplayName == ""})
}

// CreateProfile completes onboarding; display_name is required.
func (h *MeHandler) CreateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	if req.DisplayName == nil || strings.TrimSpace(*req.DisplayName) == "" {
		badRequest(c, "display_name required")
		return
	}
	h.applyUpdates(c, req.updates(), http.StatusCreated)
}

func (h *MeHandler) UpdateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	if req.DisplayName != nil && strings.TrimSpace(*req.DisplayName) == "" {
		badRequest(c, "display_name cannot be empty")
		return
	}
	h.applyUpdates(c, req.updates(), http.StatusOK)
}

func (h *MeHandler) applyUpdates(c *gin.Context, updates map[string]interface{}, status int) {
	u, err := h.userRepo.Update(c.Request.Context(), middleware.GetUserID(c), updates)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(status, gin.H{"user": u})
}

// UploadAvatar stores the image on Cloudinary and replaces the previous avatar.
func (h *MeHandler) UploadAvatar(c *gin.Context) {
	userID := middleware.GetUserID(c)
	file, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file required")
		return
	}
	if file.Size > maxAvatarSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "avatar must be 5MB or smaller"})
		return
	}
	if !strings.HasPrefix(file.Header.Get("Content-Type"), "image/") {
		badRequest(c, "avatar must be an image")
		return
	}
	f, err := file.Open()
	if err != nil {
		badRequest(c, "could not read file")
		return
	}
	defer f.Close()

	ctx := c.Request.Context()
	prev, err := h.userRepo.Get(ctx, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	url, thumb, err := h.cloud.UploadAvatar(ctx, f, userID)
	if err != nil {
		h.log.Error("avatar upload failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "upload failed"})
		return
	}
	u, err := h.userRepo.Update(ctx, userID, map[string]interface{}{"avatar": url})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if prev != nil && prev.Avatar != nil && *prev.Avatar != url {
		if err := h.cloud.DeleteAvatar(ctx, *prev.Avatar); err != nil {
			h.log.Warn("old avatar not deleted", zap.String("user_id", userID), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "thumbnail_url": thumb})
}

// CreateWallet provisions the custodial wallet used for platform payments.
func (h *MeHandler) CreateWallet(c *gin.Context) {
	u, err := h.paymentSvc.CreateWallet(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"custodial_address": u.CustodialAddress})
}

func (h *MeHandler) Payments(c *gin.Context) {
	list, err := h.paymentSvc.GetPaymentHistory(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": list})
}
