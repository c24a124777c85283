package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"

	"github.com/ticglobal/tokenledger/pkg/config"
	"github.com/ticglobal/tokenledger/pkg/response"
)

// AdminAuthMiddleware verifies an HS256 bearer token on admin routes.
// The token subject is stored in gin.Context under "operatorID".
func AdminAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := ""
		if cfg != nil {
			secret = cfg.AdminJWTSecret
		}
		raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if secret == "" || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				response.ErrorT[any](response.APIResponseCodeBadRequest, "unauthorized"))
			return
		}

		claims := &jwt.StandardClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				response.ErrorT[any](response.APIResponseCodeBadRequest, "unauthorized"))
			return
		}

		c.Set("operatorID", claims.Subject)
		c.Next()
	}
}
