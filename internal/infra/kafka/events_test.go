package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/storefront-auth/internal/core/domain"
	"github.com/arklim/storefront-auth/internal/infra/config"
)

type fakeAsyncProducer struct {
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func newFakeAsyncProducer() *fakeAsyncProducer {
	return &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage, 1),
		errors: make(chan *sarama.ProducerError, 1),
	}
}

func (f *fakeAsyncProducer) AsyncClose() {}

func (f *fakeAsyncProducer) Close() error { return nil }

func (f *fakeAsyncProducer) Input() chan<- *sarama.ProducerMessage { return f.input }

func (f *fakeAsyncProducer) Successes() <-chan *sarama.ProducerMessage { return nil }

func (f *fakeAsyncProducer) Errors() <-chan *sarama.ProducerError { return f.errors }

func (f *fakeAsyncProducer) IsTransactional() bool { return false }

func (f *fakeAsyncProducer) BeginTxn() error { return nil }

func (f *fakeAsyncProducer) CommitTxn() error { return nil }

func (f *fakeAsyncProducer) AbortTxn() error { return nil }

func (f *fakeAsyncProducer) AddOffsetsToTxn(offsets map[string][]*sarama.PartitionOffsetMetadata, groupID string) error {
	return nil
}

func (f *fakeAsyncProducer) AddMessageToTxn(msg *sarama.ConsumerMessage, groupID string, metadata *string) error {
	return nil
}

func (f *fakeAsyncProducer) TxnStatus() sarama.ProducerTxnStatusFlag {
	return sarama.ProducerTxnStatusFlag(0)
}

func newTestPublisher(t *testing.T) (*AuditPublisher, *fakeAsyncProducer) {
	t.Helper()

	asyncProducer := newFakeAsyncProducer()
	producer := &Producer{
		producer: asyncProducer,
		logger:   zaptest.NewLogger(t),
		cfg: config.KafkaSettings{
			TopicPrefix: "storefront",
		},
		done: make(chan struct{}),
	}

	publisher := NewAuditPublisher(producer, config.AppSettings{
		Name: "storefront-auth",
		Env:  "test",
	}, zaptest.NewLogger(t))

	return publisher, asyncProducer
}

func receiveEnvelope(t *testing.T, asyncProducer *fakeAsyncProducer) (*sarama.ProducerMessage, map[string]any) {
	t.Helper()

	select {
	case msg := <-asyncProducer.input:
		bytes, err := msg.Value.Encode()
		if err != nil {
			t.Fatalf("Value.Encode returned error: %v", err)
		}

		var envelope map[string]any
		if err := json.Unmarshal(bytes, &envelope); err != nil {
			t.Fatalf("failed to unmarshal envelope: %v", err)
		}
		return msg, envelope
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message on async producer input channel")
	}
	return nil, nil
}

func TestPublishAttemptedLogin(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	identifier := "alice@example.com"
	attemptedAt := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	event := domain.AttemptedLoginEvent{
		EventID:    "event-123",
		APIType:    domain.APITypeShop,
		Strategy:   domain.NativeStrategyName,
		Identifier: &identifier,
		IP:         "203.0.113.7",
		RequestID:  "req-1",
		At:         attemptedAt,
	}

	if err := publisher.PublishAttemptedLogin(context.Background(), event); err != nil {
		t.Fatalf("PublishAttemptedLogin returned error: %v", err)
	}

	msg, envelope := receiveEnvelope(t, asyncProducer)
	if msg.Topic != "storefront.auth.login.attempted" {
		t.Fatalf("unexpected topic: %s", msg.Topic)
	}
	if msg.Key != nil {
		t.Fatalf("attempted events carry no partition key")
	}

	if got := envelope["event_type"]; got != EventLoginAttempted {
		t.Fatalf("unexpected event_type: %v", got)
	}
	if got := envelope["event_id"]; got != "event-123" {
		t.Fatalf("unexpected event_id: %v", got)
	}
	if _, ok := envelope["user_id"]; ok {
		t.Fatalf("attempted events must not name a user")
	}

	payload, ok := envelope["payload"].(map[string]any)
	if !ok {
		t.Fatalf("payload not a map: %T", envelope["payload"])
	}
	if payload["api_type"] != "shop" || payload["strategy"] != "native" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if payload["identifier"] != identifier {
		t.Fatalf("unexpected identifier: %v", payload["identifier"])
	}
	if payload["attempted_at"] != attemptedAt.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected attempted_at: %v", payload["attempted_at"])
	}

	metadata, ok := envelope["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("envelope metadata not a map: %T", envelope["metadata"])
	}
	if metadata["service"] != "storefront-auth" || metadata["environment"] != "test" {
		t.Fatalf("unexpected metadata: %v", metadata)
	}
	if metadata["request_id"] != "req-1" {
		t.Fatalf("unexpected request_id: %v", metadata["request_id"])
	}
}

func TestPublishAttemptedLoginOmitsIdentifier(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	event := domain.AttemptedLoginEvent{
		APIType:  domain.APITypeAdmin,
		Strategy: "external",
		At:       time.Now().UTC(),
	}
	if err := publisher.PublishAttemptedLogin(context.Background(), event); err != nil {
		t.Fatalf("PublishAttemptedLogin returned error: %v", err)
	}

	_, envelope := receiveEnvelope(t, asyncProducer)
	payload := envelope["payload"].(map[string]any)
	if _, ok := payload["identifier"]; ok {
		t.Fatalf("identifier must be omitted for non-native strategies: %v", payload)
	}
	if id, _ := envelope["event_id"].(string); id == "" {
		t.Fatalf("expected a generated event id")
	}
}

func TestPublishLogin(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	loggedInAt := time.Date(2024, 5, 1, 9, 30, 1, 0, time.UTC)
	event := domain.LoginEvent{
		EventID:    "event-456",
		APIType:    domain.APITypeAdmin,
		UserID:     "user-789",
		Identifier: "root@example.com",
		Strategy:   domain.NativeStrategyName,
		SessionID:  "session-1",
		IP:         "198.51.100.1",
		At:         loggedInAt,
	}

	if err := publisher.PublishLogin(context.Background(), event); err != nil {
		t.Fatalf("PublishLogin returned error: %v", err)
	}

	msg, envelope := receiveEnvelope(t, asyncProducer)
	if msg.Topic != "storefront.auth.login.succeeded" {
		t.Fatalf("unexpected topic: %s", msg.Topic)
	}
	key, err := msg.Key.Encode()
	if err != nil || string(key) != event.UserID {
		t.Fatalf("expected message keyed by user id, got %q (%v)", key, err)
	}

	if got := envelope["user_id"]; got != event.UserID {
		t.Fatalf("unexpected user_id: %v", got)
	}
	if got := envelope["timestamp"]; got != loggedInAt.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected timestamp: %v", got)
	}

	payload, ok := envelope["payload"].(map[string]any)
	if !ok {
		t.Fatalf("payload not a map: %T", envelope["payload"])
	}
	if payload["session_id"] != event.SessionID || payload["strategy"] != event.Strategy {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if payload["api_type"] != "admin" || payload["identifier"] != event.Identifier {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestPublishRespectsCancelledContext(t *testing.T) {
	asyncProducer := &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage),
		errors: make(chan *sarama.ProducerError, 1),
	}
	producer := &Producer{
		producer: asyncProducer,
		logger:   zaptest.NewLogger(t),
		done:     make(chan struct{}),
	}
	publisher := NewAuditPublisher(producer, config.AppSettings{Name: "storefront-auth"}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := publisher.PublishLogin(ctx, domain.LoginEvent{UserID: "u"}); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTopicName(t *testing.T) {
	producer := &Producer{cfg: config.KafkaSettings{TopicPrefix: "storefront"}}

	if got := producer.TopicName(EventLoginSucceeded); got != "storefront.auth.login.succeeded" {
		t.Fatalf("unexpected topic: %s", got)
	}
	if got := producer.TopicName("storefront.auth.login.succeeded"); got != "storefront.auth.login.succeeded" {
		t.Fatalf("prefix must not be applied twice: %s", got)
	}

	bare := &Producer{}
	if got := bare.TopicName(EventLoginAttempted); got != EventLoginAttempted {
		t.Fatalf("unexpected topic without prefix: %s", got)
	}
}

func TestNewSaramaConfigDeliveryModes(t *testing.T) {
	async := newSaramaConfig(config.KafkaSettings{ClientID: "storefront-auth", Async: true})
	if async.Producer.RequiredAcks != sarama.WaitForLocal {
		t.Fatalf("async mode should wait for the leader only, got %v", async.Producer.RequiredAcks)
	}
	if async.Producer.Flush.Messages != 100 {
		t.Fatalf("async mode should batch messages, got %d", async.Producer.Flush.Messages)
	}
	if async.ClientID != "storefront-auth" {
		t.Fatalf("unexpected client id %q", async.ClientID)
	}

	sync := newSaramaConfig(config.KafkaSettings{})
	if sync.Producer.RequiredAcks != sarama.WaitForAll {
		t.Fatalf("sync mode should wait for all replicas, got %v", sync.Producer.RequiredAcks)
	}
	if sync.Producer.Flush.Messages != 1 {
		t.Fatalf("sync mode should flush every message, got %d", sync.Producer.Flush.Messages)
	}
	if !sync.Producer.Return.Errors {
		t.Fatal("delivery errors must be returned for logging")
	}
}
