package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"inboxintel/internal/service/auth"
)

const stateCookie = "ii_oauth_state"

// AuthService is the sign-in flow the handlers drive.
type AuthService interface {
	AuthCodeURL(state string) string
	HandleCallback(ctx context.Context, code string) (*auth.Session, string, error)
	Logout(ctx context.Context, tokenStr string) error
}

type AuthHandler struct {
	service AuthService
	logger  *zap.Logger
}

func NewAuthHandler(service AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{service: service, logger: logger}
}

// Login handles GET /auth/login: stash a state nonce and send the browser
// to the provider's consent page.
func (h *AuthHandler) Login(c *gin.Context) {
	state := uuid.NewString()
	c.SetCookie(stateCookie, state, 600, "/", "", false, true)
	c.Redirect(http.StatusFound, h.service.AuthCodeURL(state))
}

// Callback handles GET /auth/callback from the provider.
func (h *AuthHandler) Callback(c *gin.Context) {
	state, err := c.Cookie(stateCookie)
	if err != nil || state == "" || c.Query("state") != state {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid OAuth state."})
		return
	}
	c.SetCookie(stateCookie, "", -1, "/", "", false, true)

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing authorization code."})
		return
	}

	sess, signed, err := h.service.HandleCallback(c.Request.Context(), code)
	if err != nil {
		h.logger.Error("OAuth callback failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sign-in failed."})
		return
	}

	h.logger.Info("Session created", zap.String("user_email", sess.Email))
	c.SetCookie(auth.CookieName, signed, 24*60*60, "/", "", false, true)
	c.Redirect(http.StatusFound, "/")
}

// Logout handles GET /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	if token, err := c.Cookie(auth.CookieName); err == nil && token != "" {
		if err := h.service.Logout(c.Request.Context(), token); err != nil {
			h.logger.Warn("Failed to delete session", zap.Error(err))
		}
	}
	c.SetCookie(auth.CookieName, "", -1, "/", "", false, true)
	c.Redirect(http.StatusFound, "/")
}

// Me handles GET /auth/me for the dashboard; the auth middleware already
// rejected anonymous callers.
func (h *AuthHandler) Me(c *gin.Context) {
	userEmail, ok := getUserEmail(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": userEmail})
}
