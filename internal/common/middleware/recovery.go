// internal/common/middleware/recovery.go
package middleware

import (
	"fmt"
	"net/http"

	"intake-crm/internal/common/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Recovery turns panics into a 500 JSON body without leaking the panic value.
func Recovery(log logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Error("Panic recovered", map[string]interface{}{
			"event":  "panic_recovered",
			"route":  c.FullPath(),
			"method": c.Request.Method,
			"panic":  fmt.Sprint(recovered),
		})
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Internal server error",
		})
	})
}

// CORS allows the given origins, or any origin when none are configured.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(allowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
		cfg.AllowCredentials = true
	}
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions}
	cfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-CRM-Token"}
	return cors.New(cfg)
}
