package port

import (
	"context"

	"github.com/arklim/storefront-auth/internal/core/domain"
)

// AdministratorRepository looks up back-office accounts.
type AdministratorRepository interface {
	FindByUserID(ctx context.Context, userID string) (*domain.Administrator, error)
}
