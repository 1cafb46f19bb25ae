package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/storefront-auth/internal/core/domain"
	"github.com/arklim/storefront-auth/internal/core/port"
)

const defaultSessionPrefix = "auth:session"

// SessionCache keeps recently issued sessions in Redis keyed by token hash.
type SessionCache struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

// NewSessionCache wires a Redis client into a session cache.
func NewSessionCache(client *red.Client, keyPrefix string) *SessionCache {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultSessionPrefix
	}

	return &SessionCache{client: client, prefix: prefix, now: time.Now}
}

type cachedSession struct {
	ID                     string      `json:"id"`
	TokenHash              string      `json:"token_hash"`
	UserID                 string      `json:"user_id"`
	AuthenticationStrategy string      `json:"authentication_strategy"`
	ActiveOrderID          *string     `json:"active_order_id,omitempty"`
	ActiveChannelID        *string     `json:"active_channel_id,omitempty"`
	ExpiresAt              time.Time   `json:"expires_at"`
	Invalidated            bool        `json:"invalidated"`
	CreatedAt              time.Time   `json:"created_at"`
	UpdatedAt              time.Time   `json:"updated_at"`
	User                   *cachedUser `json:"user,omitempty"`
}

type cachedUser struct {
	ID         string        `json:"id"`
	Identifier string        `json:"identifier"`
	Verified   bool          `json:"verified"`
	LastLogin  *time.Time    `json:"last_login,omitempty"`
	DeletedAt  *time.Time    `json:"deleted_at,omitempty"`
	Roles      []domain.Role `json:"roles"`
}

// Set stores the session for at most ttl, never beyond its own expiry.
// The plaintext token is never written.
func (c *SessionCache) Set(ctx context.Context, session domain.Session, ttl time.Duration) error {
	key := c.key(session.TokenHash)
	if key == "" {
		return errors.New("token hash must not be empty")
	}

	if remaining := session.ExpiresAt.Sub(c.now()); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(toCachedSession(session))
	if err != nil {
		return fmt.Errorf("marshal cached session: %w", err)
	}

	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}

	return nil
}

// Get returns the cached session or nil on a miss.
func (c *SessionCache) Get(ctx context.Context, tokenHash string) (*domain.Session, error) {
	key := c.key(tokenHash)
	if key == "" {
		return nil, errors.New("token hash must not be empty")
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var cached cachedSession
	if err := json.Unmarshal(payload, &cached); err != nil {
		return nil, fmt.Errorf("%w: %v", port.ErrCacheEntryCorrupt, err)
	}

	session := fromCachedSession(cached)
	return &session, nil
}

// Delete evicts the sessions identified by the supplied token hashes.
func (c *SessionCache) Delete(ctx context.Context, tokenHashes ...string) error {
	keys := make([]string, 0, len(tokenHashes))
	for _, hash := range tokenHashes {
		if key := c.key(hash); key != "" {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete sessions: %w", err)
	}

	return nil
}

func (c *SessionCache) key(tokenHash string) string {
	trimmed := strings.TrimSpace(tokenHash)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", c.prefix, trimmed)
}

func toCachedSession(session domain.Session) cachedSession {
	cached := cachedSession{
		ID:                     session.ID,
		TokenHash:              session.TokenHash,
		UserID:                 session.UserID,
		AuthenticationStrategy: session.AuthenticationStrategy,
		ActiveOrderID:          session.ActiveOrderID,
		ActiveChannelID:        session.ActiveChannelID,
		ExpiresAt:              session.ExpiresAt.UTC(),
		Invalidated:            session.Invalidated,
		CreatedAt:              session.CreatedAt.UTC(),
		UpdatedAt:              session.UpdatedAt.UTC(),
	}
	if session.User != nil {
		cached.User = &cachedUser{
			ID:         session.User.ID,
			Identifier: session.User.Identifier,
			Verified:   session.User.Verified,
			LastLogin:  session.User.LastLogin,
			DeletedAt:  session.User.DeletedAt,
			Roles:      session.User.Roles,
		}
	}
	return cached
}

func fromCachedSession(cached cachedSession) domain.Session {
	session := domain.Session{
		ID:                     cached.ID,
		TokenHash:              cached.TokenHash,
		UserID:                 cached.UserID,
		AuthenticationStrategy: cached.AuthenticationStrategy,
		ActiveOrderID:          cached.ActiveOrderID,
		ActiveChannelID:        cached.ActiveChannelID,
		ExpiresAt:              cached.ExpiresAt,
		Invalidated:            cached.Invalidated,
		CreatedAt:              cached.CreatedAt,
		UpdatedAt:              cached.UpdatedAt,
	}
	if cached.User != nil {
		session.User = &domain.User{
			ID:         cached.User.ID,
			Identifier: cached.User.Identifier,
			Verified:   cached.User.Verified,
			LastLogin:  cached.User.LastLogin,
			DeletedAt:  cached.User.DeletedAt,
			Roles:      cached.User.Roles,
		}
	}
	return session
}

var _ port.SessionCache = (*SessionCache)(nil)
