package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/arklim/storefront-auth/internal/core/domain"
	"github.com/arklim/storefront-auth/internal/core/port"
	"github.com/arklim/storefront-auth/internal/repository"
)

var userColumns = []string{
	"u.id",
	"u.identifier",
	"u.verified",
	"u.last_login",
	"u.deleted_at",
	"u.created_at",
	"u.updated_at",
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository wires a PostgreSQL-backed user repository.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: newBuilder(),
	}
}

// FindActiveByIdentifier retrieves a non-deleted user whose customer profile is approved.
func (r *UserRepository) FindActiveByIdentifier(ctx context.Context, identifier string, filter port.IdentityFilter) (*domain.User, error) {
	query := r.builder.
		Select(userColumns...).
		From("users AS u")

	if filter.RequireApprovedCustomer {
		query = query.Join("customers AS c ON c.user_id = u.id")
	}

	query = query.
		Where(squirrel.Eq{"u.identifier": identifier}).
		Where("u.deleted_at IS NULL")

	if filter.RequireApprovedCustomer {
		query = query.
			Where("c.deleted_at IS NULL").
			Where(squirrel.Eq{"c.approved": true})
	}

	stmt, args, err := query.Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user by identifier sql: %w", err)
	}

	user, err := scanUser(executor(ctx, r.exec).QueryRow(ctx, stmt, args...))
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("scan user by identifier: %w", err)
	}

	return user, nil
}

// GetByID retrieves a user by identifier, including soft-deleted rows.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From("users AS u").
		Where(squirrel.Eq{"u.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	user, err := scanUser(executor(ctx, r.exec).QueryRow(ctx, stmt, args...))
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return user, nil
}

// ListRolesWithChannels joins the user's roles with the channels they apply to.
// Roles without channels are returned with an empty, non-nil channel slice.
func (r *UserRepository) ListRolesWithChannels(ctx context.Context, userID string) ([]domain.Role, error) {
	stmt, args, err := r.builder.
		Select(
			"r.id",
			"r.code",
			"r.description",
			"r.permissions",
			"ch.id",
			"ch.code",
			"ch.token",
		).
		From("user_roles AS ur").
		Join("roles AS r ON r.id = ur.role_id").
		LeftJoin("role_channels AS rc ON rc.role_id = r.id").
		LeftJoin("channels AS ch ON ch.id = rc.channel_id").
		Where(squirrel.Eq{"ur.user_id": userID}).
		OrderBy("ur.assigned_at", "r.id", "ch.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list user roles sql: %w", err)
	}

	rows, err := executor(ctx, r.exec).Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query user roles: %w", err)
	}
	defer rows.Close()

	roles := make([]domain.Role, 0)
	index := make(map[string]int)
	for rows.Next() {
		var (
			role         domain.Role
			description  sql.NullString
			channelID    sql.NullString
			channelCode  sql.NullString
			channelToken sql.NullString
		)
		if err := rows.Scan(
			&role.ID,
			&role.Code,
			&description,
			&role.Permissions,
			&channelID,
			&channelCode,
			&channelToken,
		); err != nil {
			return nil, fmt.Errorf("scan user role: %w", err)
		}

		pos, ok := index[role.ID]
		if !ok {
			role.Description = description.String
			role.Channels = make([]domain.Channel, 0, 1)
			if role.Permissions == nil {
				role.Permissions = []string{}
			}
			pos = len(roles)
			index[role.ID] = pos
			roles = append(roles, role)
		}

		if channelID.Valid {
			roles[pos].Channels = append(roles[pos].Channels, domain.Channel{
				ID:    channelID.String,
				Code:  channelCode.String,
				Token: channelToken.String,
			})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user roles: %w", err)
	}

	return roles, nil
}

// GetNativeAuthenticationMethod loads the username/password credential of a user.
func (r *UserRepository) GetNativeAuthenticationMethod(ctx context.Context, userID string) (*domain.NativeAuthenticationMethod, error) {
	stmt, args, err := r.builder.
		Select("id", "user_id", "identifier", "password_hash").
		From("native_authentication_methods").
		Where(squirrel.Eq{"user_id": userID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select native auth method sql: %w", err)
	}

	var method domain.NativeAuthenticationMethod
	if err := executor(ctx, r.exec).QueryRow(ctx, stmt, args...).Scan(
		&method.ID,
		&method.UserID,
		&method.Identifier,
		&method.PasswordHash,
	); err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan native auth method: %w", err)
	}

	return &method, nil
}

// UpdateLastLogin stamps the last successful login time of a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	at = at.UTC()
	stmt, args, err := r.builder.Update("users").
		Set("last_login", at).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": userID}).
		Where("deleted_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update last login sql: %w", err)
	}

	tag, err := executor(ctx, r.exec).Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user      domain.User
		lastLogin sql.NullTime
		deletedAt sql.NullTime
	)

	if err := row.Scan(
		&user.ID,
		&user.Identifier,
		&user.Verified,
		&lastLogin,
		&deletedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	user.LastLogin = nullableTimePtr(lastLogin)
	user.DeletedAt = nullableTimePtr(deletedAt)

	return &user, nil
}

var _ port.UserRepository = (*UserRepository)(nil)
