package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/storefront-auth/internal/core/domain"
	"github.com/arklim/storefront-auth/internal/core/port"
	"github.com/arklim/storefront-auth/internal/infra/config"
	"github.com/arklim/storefront-auth/internal/infra/security"
	"github.com/arklim/storefront-auth/internal/repository"
)

// ErrSessionNotFound indicates the presented token does not resolve to an active session.
var ErrSessionNotFound = errors.New("session not found")

const defaultSessionCacheTTL = 5 * time.Minute

// SessionService issues and resolves authenticated sessions.
type SessionService struct {
	users               port.UserRepository
	sessions            port.SessionRepository
	tx                  port.Transactor
	cache               port.SessionCache
	cacheTTL            time.Duration
	metrics             port.LoginMetrics
	degradation         domain.DegradationPolicy
	logger              *zap.Logger
	requireVerification bool
	duration            time.Duration
	now                 func() time.Time
	newToken            func() (string, string, error)
}

// NewSessionService constructs a SessionService from the immutable auth settings.
func NewSessionService(
	users port.UserRepository,
	sessions port.SessionRepository,
	tx port.Transactor,
	settings config.AuthSettings,
	logger *zap.Logger,
) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		users:               users,
		sessions:            sessions,
		tx:                  tx,
		logger:              logger,
		degradation:         domain.NewDegradationPolicy(domain.DegradationPolicyModeLenient),
		requireVerification: settings.RequireVerification,
		duration:            settings.SessionDuration,
		now:                 func() time.Time { return time.Now().UTC() },
		newToken:            security.GenerateSessionToken,
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *SessionService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithCache enables the read-through session cache.
func (s *SessionService) WithCache(cache port.SessionCache, ttl time.Duration) *SessionService {
	if cache != nil {
		s.cache = cache
		s.cacheTTL = ttl
		if s.cacheTTL <= 0 {
			s.cacheTTL = defaultSessionCacheTTL
		}
	}
	return s
}

// WithMetrics records evicted order sessions.
func (s *SessionService) WithMetrics(metrics port.LoginMetrics) *SessionService {
	s.metrics = metrics
	return s
}

// WithDegradationPolicy decides whether a failing cache read falls back to the session store.
func (s *SessionService) WithDegradationPolicy(policy domain.DegradationPolicy) *SessionService {
	s.degradation = policy
	return s
}

// EnsureRolesLoaded hydrates role grants and their channels on the user. It is a no-op when
// the grants are already present.
func (s *SessionService) EnsureRolesLoaded(ctx context.Context, user *domain.User) error {
	if user == nil {
		return fmt.Errorf("user is required")
	}
	if user.RolesLoaded() {
		return nil
	}

	roles, err := s.users.ListRolesWithChannels(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("load user roles: %w", err)
	}
	user.Roles = roles
	return nil
}

// CreateAuthenticatedSession issues a session for a verified identity. Order eviction, the last-login
// stamp and the insert run in one transaction so a concurrent login cannot bind a second session to
// the same order.
func (s *SessionService) CreateAuthenticatedSession(ctx context.Context, reqCtx domain.RequestContext, user *domain.User, strategyName string) (*domain.Session, error) {
	if s.sessions == nil || s.users == nil {
		return nil, fmt.Errorf("session repository not configured")
	}
	if strings.TrimSpace(strategyName) == "" {
		return nil, fmt.Errorf("strategy name is required")
	}

	if err := s.EnsureRolesLoaded(ctx, user); err != nil {
		return nil, err
	}

	if s.requireVerification && !user.Verified {
		return nil, ErrNotVerified
	}

	token, tokenHash, err := s.newToken()
	if err != nil {
		return nil, fmt.Errorf("mint session token: %w", err)
	}

	now := s.now()
	session := domain.Session{
		ID:                     uuid.NewString(),
		Token:                  token,
		TokenHash:              tokenHash,
		UserID:                 user.ID,
		AuthenticationStrategy: strategyName,
		ExpiresAt:              now.Add(s.duration),
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if reqCtx.Session != nil && reqCtx.Session.ActiveChannelID != nil {
		channelID := *reqCtx.Session.ActiveChannelID
		session.ActiveChannelID = &channelID
	}

	var evicted []string
	err = s.withinTransaction(ctx, func(txCtx context.Context) error {
		if reqCtx.Session.HasActiveOrder() {
			hashes, err := s.sessions.DeleteByActiveOrderID(txCtx, *reqCtx.Session.ActiveOrderID)
			if err != nil {
				return fmt.Errorf("delete order sessions: %w", err)
			}
			evicted = hashes
		}

		if err := s.users.UpdateLastLogin(txCtx, user.ID, now); err != nil {
			return fmt.Errorf("stamp last login: %w", err)
		}

		if err := s.sessions.Create(txCtx, session); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	lastLogin := now
	user.LastLogin = &lastLogin
	session.User = user

	if len(evicted) > 0 {
		if s.metrics != nil {
			s.metrics.ObserveEvictedSessions(len(evicted))
		}
		s.evict(ctx, evicted...)
	}
	s.remember(ctx, session)

	return &session, nil
}

// DeleteSession removes a session from storage and from the cache.
func (s *SessionService) DeleteSession(ctx context.Context, session *domain.Session) error {
	if session == nil {
		return nil
	}
	if s.sessions == nil {
		return fmt.Errorf("session repository not configured")
	}

	if err := s.sessions.Delete(ctx, session.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	s.evict(ctx, session.TokenHash)
	return nil
}

// ResolveSession loads the active session identified by a bearer token. Expired and invalidated
// sessions, and sessions whose user is gone, resolve to ErrSessionNotFound.
func (s *SessionService) ResolveSession(ctx context.Context, token string) (*domain.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrSessionNotFound
	}
	if s.sessions == nil {
		return nil, fmt.Errorf("session repository not configured")
	}

	tokenHash := security.HashToken(token)
	now := s.now()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, tokenHash)
		if err != nil {
			reason := domain.DegradationReasonCacheUnavailable
			if errors.Is(err, port.ErrCacheEntryCorrupt) {
				reason = domain.DegradationReasonCacheCorrupt
				s.evict(ctx, tokenHash)
			}
			if !s.degradation.AllowsFallback(reason) {
				return nil, fmt.Errorf("read session cache: %w", err)
			}
			s.logger.Warn("session cache read failed, falling back to store",
				zap.String("reason", string(reason)),
				zap.Error(err),
			)
		} else if cached != nil {
			if cached.IsActive(now) && (cached.User == nil || cached.User.DeletedAt == nil) {
				return cached, nil
			}
			s.evict(ctx, tokenHash)
			return nil, ErrSessionNotFound
		}
	}

	session, err := s.sessions.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !session.IsActive(now) {
		return nil, ErrSessionNotFound
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session user: %w", err)
	}
	if user.DeletedAt != nil {
		return nil, ErrSessionNotFound
	}
	if err := s.EnsureRolesLoaded(ctx, user); err != nil {
		return nil, err
	}
	session.User = user

	s.remember(ctx, *session)
	return session, nil
}

func (s *SessionService) withinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.WithinTransaction(ctx, fn)
}

func (s *SessionService) remember(ctx context.Context, session domain.Session) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, session, s.cacheTTL); err != nil {
		s.logger.Warn("session cache write failed",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
	}
}

func (s *SessionService) evict(ctx context.Context, tokenHashes ...string) {
	if s.cache == nil || len(tokenHashes) == 0 {
		return
	}
	if err := s.cache.Delete(ctx, tokenHashes...); err != nil {
		s.logger.Warn("session cache eviction failed",
			zap.Int("sessions", len(tokenHashes)),
			zap.Error(err),
		)
	}
}
