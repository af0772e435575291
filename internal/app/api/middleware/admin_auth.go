package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/iftar/internal/app/service/auth"
	"github.com/fatflowers/iftar/pkg/logctx"
	"github.com/fatflowers/iftar/pkg/response"
)

type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// AdminAuth requires a valid admin bearer token. The subject is stored under logctx.AdminKey
// and added to the request logger.
func AdminAuth(v TokenVerifier, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeUnauthorized, "missing bearer token"))
			return
		}
		claims, err := v.Verify(strings.TrimSpace(token))
		if err != nil {
			logctx.FromGin(c, base).Warnw("admin_token_rejected", "err", err)
			c.AbortWithStatusJSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeUnauthorized, err.Error()))
			return
		}

		lg := logctx.FromGin(c, base).With("admin", claims.Subject)
		c.Set(logctx.AdminKey, claims.Subject)
		c.Set(logctx.LoggerKey, lg)
		ctx := logctx.WithAdmin(c.Request.Context(), claims.Subject)
		c.Request = c.Request.WithContext(logctx.WithLogger(ctx, lg))
		c.Next()
	}
}
