package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ticglobal/tokenledger/pkg/config"
	"github.com/ticglobal/tokenledger/pkg/response"
)

// CronAuthMiddleware gates the cron trigger endpoints behind a shared
// bearer secret. Requests fail closed when no secret is configured.
func CronAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := ""
		if cfg != nil {
			secret = cfg.CronSecret
		}
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				response.ErrorT[any](response.APIResponseCodeBadRequest, "unauthorized"))
			return
		}
		c.Next()
	}
}
