package port

import (
	"context"
	"errors"
	"time"

	"github.com/arklim/storefront-auth/internal/core/domain"
)

// ErrCacheEntryCorrupt is returned by SessionCache.Get when a stored entry cannot be decoded.
var ErrCacheEntryCorrupt = errors.New("session cache entry corrupt")

// SessionCache keeps recently issued sessions keyed by token hash.
// Get returns nil without error on a miss.
type SessionCache interface {
	Get(ctx context.Context, tokenHash string) (*domain.Session, error)
	Set(ctx context.Context, session domain.Session, ttl time.Duration) error
	Delete(ctx context.Context, tokenHashes ...string) error
}
