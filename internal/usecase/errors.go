package usecase

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidCredentials indicates the presented credential did not resolve to an identity.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotVerified indicates the identity authenticated but has not verified its account.
	ErrNotVerified = errors.New("account not verified")
	// ErrStrategyNotRecognized indicates no configured strategy matches the surface and method.
	ErrStrategyNotRecognized = errors.New("authentication strategy not recognized")
	// ErrNativeStrategyNotConfigured indicates the native strategy is missing from the shop surface.
	ErrNativeStrategyNotConfigured = errors.New("native authentication strategy not configured")
	// ErrInvalidAuthenticationInput indicates the generic authenticate input did not name exactly one method.
	ErrInvalidAuthenticationInput = errors.New("invalid authentication input")
)

// InvalidCredentialsError carries an optional strategy-specific rejection reason.
type InvalidCredentialsError struct {
	Reason string
}

func (e *InvalidCredentialsError) Error() string {
	if e.Reason == "" {
		return ErrInvalidCredentials.Error()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidCredentials, e.Reason)
}

// Is lets errors.Is match ErrInvalidCredentials.
func (e *InvalidCredentialsError) Is(target error) bool {
	return target == ErrInvalidCredentials
}

// NativeStrategyNotConfiguredError names the strategies the shop surface does have.
type NativeStrategyNotConfiguredError struct {
	Configured []string
}

func (e *NativeStrategyNotConfiguredError) Error() string {
	return fmt.Sprintf(
		"this operation requires that the native authentication strategy be configured for the shop API; currently enabled: %s",
		strings.Join(e.Configured, ", "),
	)
}

// Is lets errors.Is match ErrNativeStrategyNotConfigured.
func (e *NativeStrategyNotConfiguredError) Is(target error) bool {
	return target == ErrNativeStrategyNotConfigured
}
