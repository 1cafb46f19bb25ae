package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/arklim/storefront-auth/internal/infra/config"
)

// Producer wraps a Sarama AsyncProducer carrying audit events.
type Producer struct {
	producer sarama.AsyncProducer
	logger   *zap.Logger
	cfg      config.KafkaSettings
	done     chan struct{}
}

// NewProducer connects to the brokers and starts draining delivery errors.
func NewProducer(cfg config.KafkaSettings, logger *zap.Logger) (*Producer, error) {
	producer, err := sarama.NewAsyncProducer(cfg.Brokers, newSaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	p := &Producer{
		producer: producer,
		logger:   logger,
		cfg:      cfg,
		done:     make(chan struct{}),
	}

	go p.drainErrors()

	logger.Info("kafka producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", cfg.TopicPrefix),
		zap.Bool("async", cfg.Async),
	)

	return p, nil
}

// newSaramaConfig batches events when cfg.Async is set. Otherwise every event is
// flushed on its own and acknowledged by all in-sync replicas.
func newSaramaConfig(cfg config.KafkaSettings) *sarama.Config {
	sc := sarama.NewConfig()
	sc.Version = sarama.V3_5_0_0
	sc.ClientID = cfg.ClientID

	sc.Producer.Return.Successes = false
	sc.Producer.Return.Errors = true
	sc.Producer.Retry.Max = 3
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	sc.Producer.Compression = sarama.CompressionSnappy

	if cfg.Async {
		sc.Producer.RequiredAcks = sarama.WaitForLocal
		sc.Producer.Flush.Frequency = 100 * time.Millisecond
		sc.Producer.Flush.Messages = 100
	} else {
		sc.Producer.RequiredAcks = sarama.WaitForAll
		sc.Producer.Flush.Messages = 1
	}

	sc.Metadata.Retry.Max = 3
	sc.Metadata.Retry.Backoff = 250 * time.Millisecond

	return sc
}

// drainErrors logs delivery failures so a failing broker never blocks Input.
func (p *Producer) drainErrors() {
	for {
		select {
		case err, ok := <-p.producer.Errors():
			if !ok {
				return
			}
			if err != nil {
				p.logger.Error("audit event delivery failed",
					zap.Error(err.Err),
					zap.String("topic", err.Msg.Topic),
				)
			}
		case <-p.done:
			return
		}
	}
}

// Input is the channel audit messages are queued on.
func (p *Producer) Input() chan<- *sarama.ProducerMessage {
	return p.producer.Input()
}

// Close flushes buffered messages and releases broker connections.
func (p *Producer) Close() error {
	close(p.done)

	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}

	p.logger.Info("kafka producer closed")
	return nil
}

// TopicName prefixes eventType with the configured topic prefix once.
func (p *Producer) TopicName(eventType string) string {
	if p.cfg.TopicPrefix == "" {
		return eventType
	}

	prefix := p.cfg.TopicPrefix + "."
	if strings.HasPrefix(eventType, prefix) {
		return eventType
	}

	return prefix + eventType
}
