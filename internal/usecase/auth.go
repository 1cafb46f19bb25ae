package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/storefront-auth/internal/core/domain"
	"github.com/arklim/storefront-auth/internal/core/port"
	"github.com/arklim/storefront-auth/internal/infra/logger"
)

const tracerName = "github.com/arklim/storefront-auth/internal/usecase"

// Login outcome labels.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeNotVerified        = "not_verified"
	OutcomeStrategyError      = "strategy_error"
	OutcomeError              = "error"
)

// AuthenticationRequest is a single credential presented through one strategy.
type AuthenticationRequest struct {
	Method     string
	Data       json.RawMessage
	RememberMe bool
}

// AuthService runs the authentication pipeline: audit, resolve, verify, issue, audit, attach.
type AuthService struct {
	registry *StrategyRegistry
	sessions *SessionService
	audit    port.AuditPublisher
	metrics  port.LoginMetrics
	logger   *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(registry *StrategyRegistry, sessions *SessionService, audit port.AuditPublisher, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		registry: registry,
		sessions: sessions,
		audit:    audit,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithMetrics records login outcomes.
func (s *AuthService) WithMetrics(metrics port.LoginMetrics) *AuthService {
	s.metrics = metrics
	return s
}

// WithTracer overrides the tracer taken from the global provider.
func (s *AuthService) WithTracer(tracer trace.Tracer) *AuthService {
	if tracer != nil {
		s.tracer = tracer
	}
	return s
}

// Authenticate verifies the credential and issues a session. The minted token is handed to tokens
// exactly once, after the session exists and the login event has been published.
func (s *AuthService) Authenticate(ctx context.Context, reqCtx domain.RequestContext, req AuthenticationRequest, tokens port.SessionTokenWriter) (*domain.Session, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Authenticate", trace.WithAttributes(
		attribute.String("auth.api", string(reqCtx.APIType)),
		attribute.String("auth.method", req.Method),
	))
	defer span.End()
	if reqCtx.ChannelToken != "" {
		span.SetAttributes(attribute.String("auth.channel_token", reqCtx.ChannelToken))
	}

	started := time.Now()
	methodLabel := "unknown"
	outcome := OutcomeError
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveLogin(string(reqCtx.APIType), methodLabel, outcome, time.Since(started))
		}
	}()

	log := s.logger.With(
		zap.String("request_id", reqCtx.RequestID),
		zap.String("api", string(reqCtx.APIType)),
		zap.String("method", req.Method),
	)

	attempted := domain.AttemptedLoginEvent{
		EventID:   uuid.NewString(),
		APIType:   reqCtx.APIType,
		Strategy:  req.Method,
		IP:        reqCtx.IP,
		RequestID: reqCtx.RequestID,
		At:        s.now(),
	}
	if req.Method == domain.NativeStrategyName {
		attempted.Identifier = attemptedIdentifier(req.Data)
	}
	s.publishAttempted(ctx, log, attempted)

	strategy, err := s.registry.Resolve(reqCtx.APIType, req.Method)
	if err != nil {
		outcome = OutcomeStrategyError
		log.Error("authentication strategy not resolved", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "strategy not recognized")
		return nil, err
	}
	methodLabel = strategy.Name()

	result, err := strategy.Authenticate(ctx, reqCtx, req.Data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "strategy failed")
		return nil, fmt.Errorf("%s strategy: %w", strategy.Name(), err)
	}
	if result.Reason != "" || result.User == nil {
		outcome = OutcomeInvalidCredentials
		log.Info("login rejected", zap.String("reason", result.Reason))
		return nil, &InvalidCredentialsError{Reason: result.Reason}
	}

	session, err := s.sessions.CreateAuthenticatedSession(ctx, reqCtx, result.User, strategy.Name())
	if err != nil {
		if errors.Is(err, ErrNotVerified) {
			outcome = OutcomeNotVerified
			log.Info("login blocked until account is verified", zap.String("user_id", result.User.ID))
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "session issuance failed")
		return nil, err
	}

	s.publishLogin(ctx, log, domain.LoginEvent{
		EventID:    uuid.NewString(),
		APIType:    reqCtx.APIType,
		UserID:     result.User.ID,
		Identifier: result.User.Identifier,
		Strategy:   strategy.Name(),
		SessionID:  session.ID,
		IP:         reqCtx.IP,
		RequestID:  reqCtx.RequestID,
		At:         s.now(),
	})

	if tokens != nil {
		tokens.AttachSessionToken(session.Token, req.RememberMe)
	}

	outcome = OutcomeSuccess
	span.SetAttributes(attribute.String("auth.session_id", session.ID))
	log.Info("login succeeded",
		zap.String("user_id", result.User.ID),
		zap.String("identifier", logger.MaskIdentifier(result.User.Identifier)),
		zap.String("session_id", session.ID),
	)

	return session, nil
}

func (s *AuthService) publishAttempted(ctx context.Context, log *zap.Logger, event domain.AttemptedLoginEvent) {
	if s.audit == nil {
		return
	}
	if err := s.audit.PublishAttemptedLogin(ctx, event); err != nil {
		log.Warn("publish attempted login event failed", zap.Error(err))
	}
}

func (s *AuthService) publishLogin(ctx context.Context, log *zap.Logger, event domain.LoginEvent) {
	if s.audit == nil {
		return
	}
	if err := s.audit.PublishLogin(ctx, event); err != nil {
		log.Warn("publish login event failed", zap.Error(err))
	}
}
