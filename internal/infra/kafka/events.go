package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/storefront-auth/internal/core/domain"
	"github.com/arklim/storefront-auth/internal/core/port"
	"github.com/arklim/storefront-auth/internal/infra/config"
)

const schemaVersion = "1.0"

const (
	// EventLoginAttempted is emitted for every login attempt, before the credentials are checked.
	EventLoginAttempted = "auth.login.attempted"
	// EventLoginSucceeded is emitted once a session has been issued.
	EventLoginSucceeded = "auth.login.succeeded"
)

// AuditPublisher implements port.AuditPublisher using Kafka.
type AuditPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewAuditPublisher constructs a Kafka-backed audit publisher.
func NewAuditPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *AuditPublisher {
	return &AuditPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *AuditPublisher) publish(ctx context.Context, eventID, eventType, userID, requestID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if requestID != "" {
		metadata["request_id"] = requestID
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}
	if userID != "" {
		message.Key = sarama.StringEncoder(userID)
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishAttemptedLogin publishes auth.login.attempted events.
func (p *AuditPublisher) PublishAttemptedLogin(ctx context.Context, event domain.AttemptedLoginEvent) error {
	payload := struct {
		APIType     string    `json:"api_type"`
		Strategy    string    `json:"strategy"`
		Identifier  *string   `json:"identifier,omitempty"`
		IPAddress   string    `json:"ip_address,omitempty"`
		AttemptedAt time.Time `json:"attempted_at"`
	}{
		APIType:     string(event.APIType),
		Strategy:    event.Strategy,
		Identifier:  event.Identifier,
		IPAddress:   event.IP,
		AttemptedAt: event.At.UTC(),
	}

	return p.publish(ctx, event.EventID, EventLoginAttempted, "", event.RequestID, event.At, payload)
}

// PublishLogin publishes auth.login.succeeded events.
func (p *AuditPublisher) PublishLogin(ctx context.Context, event domain.LoginEvent) error {
	payload := struct {
		APIType    string    `json:"api_type"`
		UserID     string    `json:"user_id"`
		Identifier string    `json:"identifier"`
		Strategy   string    `json:"strategy"`
		SessionID  string    `json:"session_id"`
		IPAddress  string    `json:"ip_address,omitempty"`
		LoggedInAt time.Time `json:"logged_in_at"`
	}{
		APIType:    string(event.APIType),
		UserID:     event.UserID,
		Identifier: event.Identifier,
		Strategy:   event.Strategy,
		SessionID:  event.SessionID,
		IPAddress:  event.IP,
		LoggedInAt: event.At.UTC(),
	}

	return p.publish(ctx, event.EventID, EventLoginSucceeded, event.UserID, event.RequestID, event.At, payload)
}

var _ port.AuditPublisher = (*AuditPublisher)(nil)
