package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/storefront-auth/internal/core/domain"
	"github.com/arklim/storefront-auth/internal/core/port"
	"github.com/arklim/storefront-auth/internal/infra/logger"
)

// StubPublisher logs audit events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly audit publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		append([]zap.Field{
			zap.String("event_type", eventType),
			zap.String("user_id", userID),
			zap.Time("timestamp", at.UTC()),
		}, fields...)...,
	)
}

// PublishAttemptedLogin logs auth.login.attempted events.
func (p *StubPublisher) PublishAttemptedLogin(_ context.Context, event domain.AttemptedLoginEvent) error {
	identifier := ""
	if event.Identifier != nil {
		identifier = logger.MaskIdentifier(*event.Identifier)
	}
	p.logEvent(EventLoginAttempted, "", event.At,
		zap.String("api_type", string(event.APIType)),
		zap.String("strategy", event.Strategy),
		zap.String("identifier", identifier),
		zap.String("ip", logger.MaskIP(event.IP)),
	)
	return nil
}

// PublishLogin logs auth.login.succeeded events.
func (p *StubPublisher) PublishLogin(_ context.Context, event domain.LoginEvent) error {
	p.logEvent(EventLoginSucceeded, event.UserID, event.At,
		zap.String("api_type", string(event.APIType)),
		zap.String("strategy", event.Strategy),
		zap.String("session_id", event.SessionID),
		zap.String("ip", logger.MaskIP(event.IP)),
	)
	return nil
}

var _ port.AuditPublisher = (*StubPublisher)(nil)
