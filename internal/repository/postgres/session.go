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

var sessionColumns = []string{
	"id",
	"token_hash",
	"user_id",
	"authentication_strategy",
	"active_order_id",
	"active_channel_id",
	"expires_at",
	"invalidated",
	"created_at",
	"updated_at",
}

// SessionRepository implements port.SessionRepository backed by PostgreSQL.
type SessionRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSessionRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewSessionRepository(exec pgExecutor) *SessionRepository {
	return &SessionRepository{
		exec:    exec,
		builder: newBuilder(),
	}
}

// Create persists a new authenticated session. Only the token hash is stored.
func (r *SessionRepository) Create(ctx context.Context, session domain.Session) error {
	stmt, args, err := r.builder.Insert("sessions").
		Columns(sessionColumns...).
		Values(
			session.ID,
			session.TokenHash,
			session.UserID,
			session.AuthenticationStrategy,
			optionalString(session.ActiveOrderID),
			optionalString(session.ActiveChannelID),
			session.ExpiresAt.UTC(),
			session.Invalidated,
			session.CreatedAt.UTC(),
			session.UpdatedAt.UTC(),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := executor(ctx, r.exec).Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// GetByTokenHash loads a session by the hash of its bearer token.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	stmt, args, err := r.builder.
		Select(sessionColumns...).
		From("sessions").
		Where(squirrel.Eq{"token_hash": tokenHash}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	session, err := scanSession(executor(ctx, r.exec).QueryRow(ctx, stmt, args...))
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	return session, nil
}

// DeleteByActiveOrderID removes every session bound to the order and returns their token hashes.
func (r *SessionRepository) DeleteByActiveOrderID(ctx context.Context, orderID string) ([]string, error) {
	stmt, args, err := r.builder.Delete("sessions").
		Where(squirrel.Eq{"active_order_id": orderID}).
		Suffix("RETURNING token_hash").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build delete sessions by order sql: %w", err)
	}

	rows, err := executor(ctx, r.exec).Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("delete sessions by order: %w", err)
	}
	defer rows.Close()

	hashes := make([]string, 0)
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("scan deleted session: %w", err)
		}
		hashes = append(hashes, hash)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deleted sessions: %w", err)
	}

	return hashes, nil
}

// Delete removes a single session.
func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	stmt, args, err := r.builder.Delete("sessions").
		Where(squirrel.Eq{"id": sessionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete session sql: %w", err)
	}

	tag, err := executor(ctx, r.exec).Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		session   domain.Session
		orderID   sql.NullString
		channelID sql.NullString
		expiresAt time.Time
	)

	if err := row.Scan(
		&session.ID,
		&session.TokenHash,
		&session.UserID,
		&session.AuthenticationStrategy,
		&orderID,
		&channelID,
		&expiresAt,
		&session.Invalidated,
		&session.CreatedAt,
		&session.UpdatedAt,
	); err != nil {
		if isNoRows(err) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	session.ActiveOrderID = nullableStringPtr(orderID)
	session.ActiveChannelID = nullableStringPtr(channelID)
	session.ExpiresAt = expiresAt.UTC()

	return &session, nil
}

var _ port.SessionRepository = (*SessionRepository)(nil)
