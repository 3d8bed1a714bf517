package handler

import (
	"errors"
	"net/http"

	"campusconnect/internal/auth"
	"campusconnect/internal/models"
	"campusconnect/internal/repository"
	"campusconnect/internal/service"
	"campusconnect/pkg/cloudinary"
	"campusconnect/pkg/pinata"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// statusFor maps business-rule errors to a status and a message safe to show.
// Anything else is a 500 with a generic message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, repository.ErrSessionFull),
		errors.Is(err, repository.ErrPaymentNotPending),
		errors.Is(err, repository.ErrWalletNotProvisioned):
		return http.StatusConflict, rootMessage(err)
	case errors.Is(err, pinata.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, pinata.ErrFileTooLarge.Error()
	case errors.Is(err, pinata.ErrFileTypeNotSupported),
		errors.Is(err, service.ErrInvalidPurpose),
		errors.Is(err, service.ErrInvalidPostType),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidWallet),
		errors.Is(err, models.ErrIllegalTransition),
		errors.Is(err, cloudinary.ErrNotCloudinaryURL):
		return http.StatusBadRequest, rootMessage(err)
	case errors.Is(err, auth.ErrNonceNotFound), errors.Is(err, auth.ErrInvalidSignature):
		return http.StatusUnauthorized, rootMessage(err)
	case errors.Is(err, service.ErrPaymentFailed):
		return http.StatusPaymentRequired, service.ErrPaymentFailed.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

var sentinels = []error{
	repository.ErrSessionFull,
	repository.ErrPaymentNotPending,
	repository.ErrWalletNotProvisioned,
	pinata.ErrFileTypeNotSupported,
	service.ErrInvalidPurpose,
	service.ErrInvalidPostType,
	service.ErrInvalidAmount,
	service.ErrInvalidWallet,
	models.ErrIllegalTransition,
	cloudinary.ErrNotCloudinaryURL,
	auth.ErrNonceNotFound,
	auth.ErrInvalidSignature,
}

// rootMessage returns the message of the sentinel err wraps, without the
// context added on the way up.
func rootMessage(err error) string {
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return err.Error()
}

func respondError(c *gin.Context, log *zap.Logger, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// currentUser is the profile loaded by middleware.ProfileRequired.
func currentUser(c *gin.Context) *models.User {
	v, _ := c.Get("user")
	u, _ := v.(*models.User)
	return u
}
