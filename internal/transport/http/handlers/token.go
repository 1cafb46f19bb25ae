package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/storefront-auth/internal/core/port"
	"github.com/arklim/storefront-auth/internal/infra/config"
	"github.com/arklim/storefront-auth/internal/transport/http/middleware"
)

// SessionTokenWriter hands a freshly minted session token to the client, either as an HttpOnly
// cookie or as a response header for bearer clients.
type SessionTokenWriter struct {
	c        *gin.Context
	settings middleware.TokenSettings
}

// NewSessionTokenWriter binds a writer to the response of c.
func NewSessionTokenWriter(c *gin.Context, settings middleware.TokenSettings) *SessionTokenWriter {
	return &SessionTokenWriter{c: c, settings: settings}
}

// AttachSessionToken writes the token. Without rememberMe the cookie lives for the browser session only.
func (w *SessionTokenWriter) AttachSessionToken(token string, rememberMe bool) {
	if w.settings.Method == config.TokenMethodBearer {
		w.c.Header(w.settings.HeaderName, token)
		return
	}

	maxAge := 0
	if rememberMe {
		maxAge = int(w.settings.SessionDuration.Seconds())
	}

	w.c.SetSameSite(http.SameSiteLaxMode)
	w.c.SetCookie(w.settings.CookieName, token, maxAge, "/", "", w.settings.CookieSecure, true)
}

var _ port.SessionTokenWriter = (*SessionTokenWriter)(nil)
