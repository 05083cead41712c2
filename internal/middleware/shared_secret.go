package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SharedSecret only lets requests through whose Authorization header equals secret
func SharedSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := c.GetHeader("Authorization")
		if secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(presented)) != 1 {
			Logger(c).WithField("path", c.FullPath()).Warn("Rejected request with invalid authorization")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
			return
		}
		c.Next()
	}
}
