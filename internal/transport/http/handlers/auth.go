package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/storefront-auth/internal/core/domain"
	"github.com/arklim/storefront-auth/internal/core/port"
	"github.com/arklim/storefront-auth/internal/transport/http/middleware"
	"github.com/arklim/storefront-auth/internal/usecase"
)

// LoginGate runs the login mutations of one API surface.
type LoginGate interface {
	Login(ctx context.Context, reqCtx domain.RequestContext, input usecase.LoginInput, tokens port.SessionTokenWriter) (domain.CurrentUser, error)
	Authenticate(ctx context.Context, reqCtx domain.RequestContext, input usecase.AuthenticateInput, tokens port.SessionTokenWriter) (domain.CurrentUser, error)
}

var authErrorCases = []ErrorCase{
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Code: CodeInvalidCredentials},
	{Err: usecase.ErrNotVerified, Status: http.StatusForbidden, Code: CodeNotVerified, Message: "please verify this account before logging in"},
	{Err: usecase.ErrNativeStrategyNotConfigured, Status: http.StatusInternalServerError, Code: CodeNativeAuthStrategy},
	{Err: usecase.ErrInvalidAuthenticationInput, Status: http.StatusBadRequest, Code: CodeInvalidInput},
	{Err: usecase.ErrStrategyNotRecognized, Status: http.StatusInternalServerError, Code: CodeStrategyNotFound, Message: "authentication strategy not available"},
}

// AuthHandler exposes the login endpoints of one API surface.
type AuthHandler struct {
	gate   LoginGate
	tokens middleware.TokenSettings
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(gate LoginGate, tokens middleware.TokenSettings) *AuthHandler {
	return &AuthHandler{gate: gate, tokens: tokens}
}

// RegisterRoutes binds the login routes on the API group.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/login", h.login)
	r.POST("/authenticate", h.authenticate)
	r.GET("/me", middleware.RequireSession(), h.me)
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, CodeInvalidInput, "username and password are required"))
		return
	}

	current, err := h.gate.Login(c.Request.Context(), *middleware.GetRequestContext(c), usecase.LoginInput{
		Username:   req.Username,
		Password:   req.Password,
		RememberMe: req.RememberMe,
	}, NewSessionTokenWriter(c, h.tokens))
	if err != nil {
		RespondWithMappedError(c, err, authErrorCases, http.StatusInternalServerError, "failed to log in")
		return
	}

	c.JSON(http.StatusOK, current)
}

func (h *AuthHandler) authenticate(c *gin.Context) {
	var req AuthenticateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, CodeInvalidInput, "input is required"))
		return
	}

	current, err := h.gate.Authenticate(c.Request.Context(), *middleware.GetRequestContext(c), usecase.AuthenticateInput{
		Input:      req.Input,
		RememberMe: req.RememberMe,
	}, NewSessionTokenWriter(c, h.tokens))
	if err != nil {
		RespondWithMappedError(c, err, authErrorCases, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	c.JSON(http.StatusOK, current)
}

func (h *AuthHandler) me(c *gin.Context) {
	session := middleware.GetRequestContext(c).Session
	c.JSON(http.StatusOK, domain.NewCurrentUser(*session.User))
}
