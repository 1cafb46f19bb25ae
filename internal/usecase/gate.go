package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/arklim/storefront-auth/internal/core/domain"
	"github.com/arklim/storefront-auth/internal/core/port"
	"github.com/arklim/storefront-auth/internal/repository"
)

// LoginInput is the native username/password login mutation.
type LoginInput struct {
	Username   string
	Password   string
	RememberMe bool
}

// AuthenticateInput is the generic authenticate mutation keyed by strategy name.
type AuthenticateInput struct {
	Input      map[string]json.RawMessage
	RememberMe bool
}

// LoginService applies the per-surface rules around the authentication pipeline.
type LoginService struct {
	auth     *AuthService
	registry *StrategyRegistry
	sessions *SessionService
	admins   port.AdministratorRepository
	logger   *zap.Logger
}

// NewLoginService constructs a LoginService.
func NewLoginService(auth *AuthService, registry *StrategyRegistry, sessions *SessionService, admins port.AdministratorRepository, logger *zap.Logger) *LoginService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoginService{
		auth:     auth,
		registry: registry,
		sessions: sessions,
		admins:   admins,
		logger:   logger,
	}
}

// Login runs the native login mutation. On the shop surface the native strategy must be configured,
// otherwise the request is refused before any credential is looked at.
func (s *LoginService) Login(ctx context.Context, reqCtx domain.RequestContext, input LoginInput, tokens port.SessionTokenWriter) (domain.CurrentUser, error) {
	if reqCtx.APIType == domain.APITypeShop && !s.registry.IsConfigured(domain.APITypeShop, domain.NativeStrategyName) {
		err := &NativeStrategyNotConfiguredError{Configured: s.registry.Configured(domain.APITypeShop)}
		s.logger.Error("native authentication strategy is required for the shop login mutation",
			zap.String("request_id", reqCtx.RequestID),
			zap.Strings("configured_strategies", err.Configured),
		)
		return domain.CurrentUser{}, err
	}

	data, err := json.Marshal(NativeCredentials{Username: input.Username, Password: input.Password})
	if err != nil {
		return domain.CurrentUser{}, fmt.Errorf("encode native credentials: %w", err)
	}

	return s.authenticate(ctx, reqCtx, AuthenticationRequest{
		Method:     domain.NativeStrategyName,
		Data:       data,
		RememberMe: input.RememberMe,
	}, tokens)
}

// Authenticate runs the generic mutation. Input must name exactly one strategy.
func (s *LoginService) Authenticate(ctx context.Context, reqCtx domain.RequestContext, input AuthenticateInput, tokens port.SessionTokenWriter) (domain.CurrentUser, error) {
	if len(input.Input) != 1 {
		return domain.CurrentUser{}, fmt.Errorf("%w: exactly one authentication method must be supplied", ErrInvalidAuthenticationInput)
	}

	var (
		method string
		data   json.RawMessage
	)
	for name, payload := range input.Input {
		method, data = strings.TrimSpace(name), payload
	}
	if method == "" {
		return domain.CurrentUser{}, fmt.Errorf("%w: method name is empty", ErrInvalidAuthenticationInput)
	}

	return s.authenticate(ctx, reqCtx, AuthenticationRequest{
		Method:     method,
		Data:       data,
		RememberMe: input.RememberMe,
	}, tokens)
}

func (s *LoginService) authenticate(ctx context.Context, reqCtx domain.RequestContext, req AuthenticationRequest, tokens port.SessionTokenWriter) (domain.CurrentUser, error) {
	if reqCtx.APIType != domain.APITypeAdmin {
		session, err := s.auth.Authenticate(ctx, reqCtx, req, tokens)
		if err != nil {
			return domain.CurrentUser{}, err
		}
		return currentUserOf(session), nil
	}

	// Privileged sessions reach the transport only once the administrator check passed.
	pending := &pendingTokenWriter{}
	session, err := s.auth.Authenticate(ctx, reqCtx, req, pending)
	if err != nil {
		return domain.CurrentUser{}, err
	}

	if err := s.requireAdministrator(ctx, reqCtx, session); err != nil {
		return domain.CurrentUser{}, err
	}

	pending.flush(tokens)
	return currentUserOf(session), nil
}

// ResolveSession loads the session behind token for the surface the request arrived on. The admin
// surface only accepts sessions of users that still hold an administrator account; any other session
// resolves to ErrSessionNotFound there.
func (s *LoginService) ResolveSession(ctx context.Context, apiType domain.APIType, token string) (*domain.Session, error) {
	session, err := s.sessions.ResolveSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if apiType != domain.APITypeAdmin {
		return session, nil
	}

	if _, err := s.admins.FindByUserID(ctx, session.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("admin request presented a session without administrator account",
				zap.String("user_id", session.UserID),
				zap.String("session_id", session.ID),
			)
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("lookup administrator: %w", err)
	}
	return session, nil
}

func (s *LoginService) requireAdministrator(ctx context.Context, reqCtx domain.RequestContext, session *domain.Session) error {
	_, err := s.admins.FindByUserID(ctx, session.UserID)
	if err == nil {
		return nil
	}

	if delErr := s.sessions.DeleteSession(ctx, session); delErr != nil {
		return fmt.Errorf("discard privileged session: %w", delErr)
	}

	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("admin login rejected for user without administrator account",
			zap.String("request_id", reqCtx.RequestID),
			zap.String("user_id", session.UserID),
		)
		return &InvalidCredentialsError{}
	}
	return fmt.Errorf("lookup administrator: %w", err)
}

func currentUserOf(session *domain.Session) domain.CurrentUser {
	if session.User == nil {
		return domain.CurrentUser{ID: session.UserID, Channels: []domain.CurrentUserChannel{}}
	}
	return domain.NewCurrentUser(*session.User)
}

type pendingTokenWriter struct {
	token      string
	rememberMe bool
	attached   bool
}

func (p *pendingTokenWriter) AttachSessionToken(token string, rememberMe bool) {
	p.token = token
	p.rememberMe = rememberMe
	p.attached = true
}

func (p *pendingTokenWriter) flush(dst port.SessionTokenWriter) {
	if !p.attached || dst == nil {
		return
	}
	dst.AttachSessionToken(p.token, p.rememberMe)
}
