package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/storefront-auth/internal/core/domain"
	"github.com/arklim/storefront-auth/internal/infra/config"
	"github.com/arklim/storefront-auth/internal/usecase"
)

// TokenSettings describes how session tokens travel between client and server.
type TokenSettings struct {
	Method          string
	CookieName      string
	CookieSecure    bool
	HeaderName      string
	SessionDuration time.Duration
}

// NewTokenSettings extracts the token transport settings from the auth configuration.
func NewTokenSettings(cfg config.AuthSettings) TokenSettings {
	return TokenSettings{
		Method:          cfg.TokenMethod,
		CookieName:      cfg.CookieName,
		CookieSecure:    cfg.CookieSecure,
		HeaderName:      cfg.AuthTokenHeader,
		SessionDuration: cfg.SessionDuration,
	}
}

// SessionResolver loads the active session behind a presented token for one API surface.
type SessionResolver interface {
	ResolveSession(ctx context.Context, apiType domain.APIType, token string) (*domain.Session, error)
}

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorBody{Error: message, Code: code, RequestID: GetRequestID(c)})
}

// ResolveSession attaches the caller's session to the request context when a valid token is
// presented. Unknown or expired tokens, and sessions the surface does not accept, leave the request
// anonymous. It must run after APIContext.
func ResolveSession(resolver SessionResolver, settings TokenSettings, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		token := settings.extractToken(c)
		if token == "" || resolver == nil {
			c.Next()
			return
		}

		reqCtx := GetRequestContext(c)
		session, err := resolver.ResolveSession(c.Request.Context(), reqCtx.APIType, token)
		if err != nil {
			if errors.Is(err, usecase.ErrSessionNotFound) {
				c.Next()
				return
			}
			log.Error("session lookup failed",
				zap.String("request_id", GetRequestID(c)),
				zap.Error(err),
			)
			abortWithError(c, http.StatusServiceUnavailable, "SESSION_LOOKUP_ERROR", "session lookup failed")
			return
		}

		reqCtx.Session = session
		c.Next()
	}
}

// RequireSession rejects requests that carry no authenticated session.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := GetRequestContext(c).Session
		if session == nil || session.User == nil {
			abortWithError(c, http.StatusUnauthorized, "FORBIDDEN", "authentication required")
			return
		}
		c.Next()
	}
}

func (s TokenSettings) extractToken(c *gin.Context) string {
	if s.Method == config.TokenMethodBearer {
		if header := strings.TrimSpace(c.GetHeader("Authorization")); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				return strings.TrimSpace(parts[1])
			}
			return ""
		}
		if s.HeaderName != "" {
			return strings.TrimSpace(c.GetHeader(s.HeaderName))
		}
		return ""
	}

	if s.CookieName == "" {
		return ""
	}
	token, err := c.Cookie(s.CookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(token)
}
