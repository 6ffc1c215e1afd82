package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-stats-api/internal/models"
	appErrors "github.com/noah-isme/exam-stats-api/pkg/errors"
	"github.com/noah-isme/exam-stats-api/pkg/response"
)

// RequireRoles admits only requests whose token carries one of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
