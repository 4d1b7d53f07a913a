package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"inboxintel/internal/service/auth"
	"inboxintel/pkg/metrics"
)

// SessionResolver maps a session token to its live session.
type SessionResolver interface {
	Resolve(ctx context.Context, tokenStr string) (*auth.Session, error)
}

// AuthMiddleware resolves the caller's session from the cookie (or a bearer
// header) and stores the verified email and mail access token in the request
// context. Anything short of a live session is a 401.
func AuthMiddleware(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractSessionToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		sess, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		c.Set("user_email", sess.Email)
		c.Set("access_token", sess.AccessToken)

		c.Next()
	}
}

func extractSessionToken(c *gin.Context) string {
	if cookie, err := c.Cookie(auth.CookieName); err == nil && cookie != "" {
		return cookie
	}

	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

// MetricsMiddleware records per-request duration labeled by route template.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metrics.RecordHTTPRequestDuration(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
		)
	}
}
