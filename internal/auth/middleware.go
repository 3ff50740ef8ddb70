package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"blue-carbon/mrv-portal/mrv-portal-backend/internal/apperrors"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/httpx"
)

const principalKey = "auth.principal"

// extractToken pulls a bearer token from the Authorization header, falling
// back to the session cookie.
func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := c.Cookie("token"); err == nil {
		return cookie
	}
	return ""
}

// RequireAuth authenticates the request and aborts with the mapped status
// on failure.
func (s *Service) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := s.Authenticate(c.Request.Context(), extractToken(c))
		if err != nil {
			httpx.AbortWithError(c, err)
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

// OptionalAuth resolves a principal when a valid token is present and
// continues anonymously otherwise. It never rejects the request.
func (s *Service) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if principal := s.AuthenticateOptional(c.Request.Context(), extractToken(c)); principal != nil {
			c.Set(principalKey, principal)
		}
		c.Next()
	}
}

// RequireRoles gates a route to the given roles. Must run after RequireAuth.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := RequireRole(FromContext(c), roles...); err != nil {
			httpx.AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// FromContext returns the request principal, or nil for anonymous callers.
func FromContext(c *gin.Context) *Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(*Principal); ok {
			return p
		}
	}
	return nil
}

// MustFromContext returns the principal or an Unauthenticated error.
func MustFromContext(c *gin.Context) (*Principal, error) {
	p := FromContext(c)
	if p == nil {
		return nil, apperrors.Unauthenticated("access denied, please login")
	}
	return p, nil
}
