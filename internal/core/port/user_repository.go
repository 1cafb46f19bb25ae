package port

import (
	"context"
	"time"

	"github.com/arklim/storefront-auth/internal/core/domain"
)

// IdentityFilter narrows identity lookups.
type IdentityFilter struct {
	// RequireApprovedCustomer restricts the lookup to users owning an approved, non-deleted customer profile.
	RequireApprovedCustomer bool
}

// UserRepository exposes persistence behavior for users and their native credentials.
type UserRepository interface {
	// FindActiveByIdentifier returns the non-deleted user owning the identifier.
	// Returns repository.ErrNotFound when no user matches the filter.
	FindActiveByIdentifier(ctx context.Context, identifier string, filter IdentityFilter) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// ListRolesWithChannels returns the user's roles with channels joined in.
	ListRolesWithChannels(ctx context.Context, userID string) ([]domain.Role, error)
	GetNativeAuthenticationMethod(ctx context.Context, userID string) (*domain.NativeAuthenticationMethod, error)
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
}
