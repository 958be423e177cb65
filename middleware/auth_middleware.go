package middleware

import (
	"crypto/subtle"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// APIKeyMiddleware authenticates requests against the static API key in
// LAUNCHFORGE_API_KEY. When the key is unset the API runs open, which is only
// acceptable for local development.
func APIKeyMiddleware() gin.HandlerFunc {
	apiKey := os.Getenv("LAUNCHFORGE_API_KEY")
	if apiKey == "" {
		log.Println("⚠️ LAUNCHFORGE_API_KEY not set, API authentication disabled (INSECURE)")
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		requestKey := c.GetHeader("X-API-Key")
		if requestKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status":  "error",
				"message": "API key is required",
			})
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(requestKey), []byte(apiKey)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status":  "error",
				"message": "Invalid API key",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
