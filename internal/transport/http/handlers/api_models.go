package handlers

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/storefront-auth/internal/transport/http/middleware"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidCredentials  = "INVALID_CREDENTIALS_ERROR"
	CodeNotVerified         = "NOT_VERIFIED_ERROR"
	CodeNativeAuthStrategy  = "NATIVE_AUTH_STRATEGY_ERROR"
	CodeInvalidInput        = "INVALID_INPUT_ERROR"
	CodeStrategyNotFound    = "AUTH_STRATEGY_NOT_FOUND_ERROR"
	CodeInternalServerError = "INTERNAL_SERVER_ERROR"
)

// ErrorResponse is the error payload of every endpoint.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// NewErrorResponse creates an error response carrying the request id.
func NewErrorResponse(c *gin.Context, code, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:     errorMsg,
		Code:      code,
		RequestID: middleware.GetRequestID(c),
	}
}

// LoginRequest is the native username/password login payload.
type LoginRequest struct {
	Username   string `json:"username" binding:"required"`
	Password   string `json:"password" binding:"required"`
	RememberMe bool   `json:"rememberMe"`
}

// AuthenticateRequest names exactly one strategy and its payload, e.g. {"input":{"native":{...}}}.
type AuthenticateRequest struct {
	Input      map[string]json.RawMessage `json:"input" binding:"required"`
	RememberMe bool                       `json:"rememberMe"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
