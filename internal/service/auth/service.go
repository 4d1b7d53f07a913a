package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"inboxintel/pkg/config"
)

// CookieName is the browser cookie holding the signed session token.
const CookieName = "ii_session"

const sessionTTL = 24 * time.Hour

// Service runs the Google sign-in flow and manages sessions. Identity is
// fully delegated to the OAuth provider; the only thing this service trusts
// is the verified email it hands back.
type Service struct {
	oauth     *oauth2.Config
	store     SessionStore
	jwtSecret string
	logger    *zap.Logger
	apiOpts   []option.ClientOption
}

// NewService builds the auth service. Extra client options are passed to the
// userinfo call; tests use them to point at a local server.
func NewService(cfg config.GoogleConfig, jwtSecret string, store SessionStore, logger *zap.Logger, apiOpts ...option.ClientOption) *Service {
	return &Service{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				gmail.GmailReadonlyScope,
			},
			Endpoint: google.Endpoint,
		},
		store:     store,
		jwtSecret: jwtSecret,
		logger:    logger,
		apiOpts:   apiOpts,
	}
}

// AuthCodeURL returns the provider consent page URL for one login attempt.
func (s *Service) AuthCodeURL(state string) string {
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// HandleCallback exchanges the authorization code, resolves the verified
// email, persists a session, and returns it with a signed cookie token.
func (s *Service) HandleCallback(ctx context.Context, code string) (*Session, string, error) {
	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	email, err := s.fetchVerifiedEmail(ctx, tok)
	if err != nil {
		return nil, "", err
	}

	sess := &Session{
		ID:           uuid.NewString(),
		Email:        email,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenExpiry:  tok.Expiry,
		ExpiresAt:    time.Now().Add(sessionTTL),
	}
	if err := s.store.Save(ctx, sess, sessionTTL); err != nil {
		return nil, "", err
	}

	signed, err := s.signSessionToken(sess.ID)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("User signed in", zap.String("user_email", email))
	return sess, signed, nil
}

func (s *Service) fetchVerifiedEmail(ctx context.Context, tok *oauth2.Token) (string, error) {
	opts := append([]option.ClientOption{
		option.WithTokenSource(s.oauth.TokenSource(ctx, tok)),
	}, s.apiOpts...)
	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create userinfo service: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to fetch userinfo: %w", err)
	}
	if info.Email == "" {
		return "", errors.New("provider returned no email")
	}
	return info.Email, nil
}

// Resolve maps a cookie token back to its live session, renewing the Gmail
// access token if it has expired inside the session's lifetime.
func (s *Service) Resolve(ctx context.Context, tokenStr string) (*Session, error) {
	sid, err := s.parseSessionToken(tokenStr)
	if err != nil {
		return nil, err
	}
	sess, err := s.store.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	s.refreshAccessToken(ctx, sess)
	return sess, nil
}

// refreshAccessToken trades the refresh token for a fresh access token once
// the old one is past its expiry. Sessions last 24h while Google access
// tokens last about an hour. A failed refresh keeps the stale token; the
// Gmail call then surfaces the failure.
func (s *Service) refreshAccessToken(ctx context.Context, sess *Session) {
	if sess.RefreshToken == "" || sess.TokenExpiry.IsZero() || time.Now().Before(sess.TokenExpiry) {
		return
	}

	src := s.oauth.TokenSource(ctx, &oauth2.Token{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		Expiry:       sess.TokenExpiry,
	})
	tok, err := src.Token()
	if err != nil {
		s.logger.Warn("Failed to refresh access token",
			zap.String("user_email", sess.Email),
			zap.Error(err))
		return
	}

	sess.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		sess.RefreshToken = tok.RefreshToken
	}
	sess.TokenExpiry = tok.Expiry

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return
	}
	if err := s.store.Save(ctx, sess, ttl); err != nil {
		s.logger.Warn("Failed to persist refreshed session",
			zap.String("user_email", sess.Email),
			zap.Error(err))
	}
}

// Logout deletes the session behind the token. An already-invalid token is
// not an error; the caller clears the cookie either way.
func (s *Service) Logout(ctx context.Context, tokenStr string) error {
	sid, err := s.parseSessionToken(tokenStr)
	if err != nil {
		return nil
	}
	return s.store.Delete(ctx, sid)
}

func (s *Service) signSessionToken(sessionID string) (string, error) {
	claims := jwt.MapClaims{
		"sid": sessionID,
		"exp": time.Now().Add(sessionTTL).Unix(),
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

func (s *Service) parseSessionToken(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", jwt.ErrTokenMalformed
	}
	sid, ok := claims["sid"].(string)
	if !ok || sid == "" {
		return "", jwt.ErrTokenMalformed
	}
	return sid, nil
}
