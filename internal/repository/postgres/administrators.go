package postgres

import (
	"context"
	"database/sql"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/arklim/storefront-auth/internal/core/domain"
	"github.com/arklim/storefront-auth/internal/core/port"
	"github.com/arklim/storefront-auth/internal/repository"
)

// AdministratorRepository implements port.AdministratorRepository using PostgreSQL.
type AdministratorRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAdministratorRepository constructs an AdministratorRepository.
func NewAdministratorRepository(exec pgExecutor) *AdministratorRepository {
	return &AdministratorRepository{
		exec:    exec,
		builder: newBuilder(),
	}
}

// FindByUserID returns the active administrator bound to the user.
func (r *AdministratorRepository) FindByUserID(ctx context.Context, userID string) (*domain.Administrator, error) {
	stmt, args, err := r.builder.
		Select("id", "user_id", "first_name", "last_name", "email_address").
		From("administrators").
		Where(squirrel.Eq{"user_id": userID}).
		Where("deleted_at IS NULL").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select administrator sql: %w", err)
	}

	var (
		admin     domain.Administrator
		firstName sql.NullString
		lastName  sql.NullString
	)
	if err := executor(ctx, r.exec).QueryRow(ctx, stmt, args...).Scan(
		&admin.ID,
		&admin.UserID,
		&firstName,
		&lastName,
		&admin.EmailAddress,
	); err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan administrator: %w", err)
	}

	admin.FirstName = firstName.String
	admin.LastName = lastName.String

	return &admin, nil
}

var _ port.AdministratorRepository = (*AdministratorRepository)(nil)
