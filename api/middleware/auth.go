package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/leafsignal/menuwatch/models"
)

// BearerAuth requires "Authorization: Bearer <token>" on the protected
// endpoints. An empty configured token disables the check, which is the
// expected state for local runs.
func BearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		provided, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			detail := models.NewScrapeError(models.ErrCodeInvalidInput, "missing or invalid bearer token", nil)
			c.AbortWithStatusJSON(http.StatusUnauthorized, detail.ToDetail())
			return
		}
		c.Next()
	}
}
