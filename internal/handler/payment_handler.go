package handler

import (
	"errors"
	"net/http"

	"campusconnect/internal/domain"
	"campusconnect/internal/middleware"
	"campusconnect/internal/repository"
	"campusconnect/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	svc          *service.PaymentService
	groupRepo    *repository.GroupRepository
	resourceRepo *repository.ResourceRepository
	log          *zap.Logger
}

func NewPaymentHandler(svc *service.PaymentService, groupRepo *repository.GroupRepository, resourceRepo *repository.ResourceRepository, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{svc: svc, groupRepo: groupRepo, resourceRepo: resourceRepo, log: log}
}

type featureRequest struct {
	PostID   string `json:"post_id" binding:"required"`
	PostType string `json:"post_type" binding:"required"`
}

type bumpRequest struct {
	ResourceID string `json:"resource_id" binding:"required"`
}

type premiumGroupRequest struct {
	GroupID string `json:"group_id" binding:"required"`
}

func (h *PaymentHandler) Prices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"currency": domain.Currency, "prices": h.svc.Prices()})
}

// Get returns one of the caller's payments.
func (h *PaymentHandler) Get(c *gin.Context) {
	p, err := h.svc.GetPaymentStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if p.UserID != middleware.GetUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": p})
}

func (h *PaymentHandler) Feature(c *gin.Context) {
	var req featureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "post_id and post_type required")
		return
	}
	ctx := c.Request.Context()
	var err error
	switch req.PostType {
	case domain.PostTypeGroup:
		_, err = h.groupRepo.Get(ctx, req.PostID)
	case domain.PostTypeResource:
		_, err = h.resourceRepo.Get(ctx, req.PostID)
	default:
		err = service.ErrInvalidPostType
	}
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	res, err := h.svc.FeaturePost(ctx, middleware.GetUserID(c), req.PostID, req.PostType)
	h.respondPayment(c, res, err)
}

func (h *PaymentHandler) Bump(c *gin.Context) {
	var req bumpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "resource_id required")
		return
	}
	ctx := c.Request.Context()
	if _, err := h.resourceRepo.Get(ctx, req.ResourceID); err != nil {
		respondError(c, h.log, err)
		return
	}
	res, err := h.svc.BumpResource(ctx, middleware.GetUserID(c), req.ResourceID)
	h.respondPayment(c, res, err)
}

func (h *PaymentHandler) AdvancedFilters(c *gin.Context) {
	res, err := h.svc.PurchaseAdvancedFilters(c.Request.Context(), middleware.GetUserID(c))
	h.respondPayment(c, res, err)
}

func (h *PaymentHandler) PremiumGroup(c *gin.Context) {
	var req premiumGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "group_id required")
		return
	}
	ctx := c.Request.Context()
	if _, err := h.groupRepo.Get(ctx, req.GroupID); err != nil {
		respondError(c, h.log, err)
		return
	}
	res, err := h.svc.CreatePremiumGroup(ctx, middleware.GetUserID(c), req.GroupID)
	h.respondPayment(c, res, err)
}

// respondPayment includes the payment in error responses whenever one was
// recorded so the client can poll its status.
func (h *PaymentHandler) respondPayment(c *gin.Context, res *service.PaymentResult, err error) {
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"payment": res})
		return
	}
	if errors.Is(err, service.ErrSideEffectFailed) {
		h.log.Error("paid action not applied", zap.String("payment_id", res.PaymentID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": service.ErrSideEffectFailed.Error(), "payment": res})
		return
	}
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError || status == http.StatusPaymentRequired {
		h.log.Warn("payment failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	body := gin.H{"error": msg}
	if res != nil {
		body["payment"] = res
	}
	c.JSON(status, body)
}
