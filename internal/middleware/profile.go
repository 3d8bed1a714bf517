package middleware

import (
	"context"
	"net/http"

	"campusconnect/internal/models"

	"github.com/gin-gonic/gin"
)

type userGetter interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

// ProfileRequired rejects users that have not created their profile yet and
// stores the loaded profile under "user". Use after AuthRequired.
func ProfileRequired(users userGetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := GetUserID(c)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		u, err := users.Get(c.Request.Context(), userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
			return
		}
		if u == nil || u.DisplayName == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "profile required"})
			return
		}
		c.Set("user", u)
		c.Next()
	}
}
