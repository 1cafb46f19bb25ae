package port

import (
	"context"

	"github.com/arklim/storefront-auth/internal/core/domain"
)

// SessionRepository deals with session storage.
type SessionRepository interface {
	Create(ctx context.Context, session domain.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	// DeleteByActiveOrderID removes every session bound to the order and returns their token hashes.
	DeleteByActiveOrderID(ctx context.Context, orderID string) ([]string, error)
	Delete(ctx context.Context, sessionID string) error
}

// Transactor runs fn inside a single database transaction carried by the returned context.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
