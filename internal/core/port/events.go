package port

import (
	"context"

	"github.com/arklim/storefront-auth/internal/core/domain"
)

// AuditPublisher publishes login audit events to the message bus.
type AuditPublisher interface {
	PublishAttemptedLogin(ctx context.Context, event domain.AttemptedLoginEvent) error
	PublishLogin(ctx context.Context, event domain.LoginEvent) error
}
