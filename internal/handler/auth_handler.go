package handler

import (
	"net/http"

	"campusconnect/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	svc *service.AuthService
	log *zap.Logger
}

func NewAuthHandler(svc *service.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, log: log}
}

type nonceRequest struct {
	Address string `json:"address" binding:"required"`
}

type walletLoginRequest struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// Nonce returns the message the wallet has to sign to log in.
func (h *AuthHandler) Nonce(c *gin.Context) {
	var req nonceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "address required")
		return
	}
	msg, err := h.svc.RequestNonce(c.Request.Context(), req.Address)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *AuthHandler) Wallet(c *gin.Context) {
	var req walletLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "address and signature required")
		return
	}
	u, token, isNew, err := h.svc.LoginWithWallet(c.Request.Context(), req.Address, req.Signature)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":     token,
		"token_type":       "Bearer",
		"user":             u,
		"is_new":           isNew,
		"needs_onboarding": u.DisplayName == "",
	})
}
