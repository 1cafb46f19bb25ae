package telemetry

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arklim/storefront-auth/internal/core/port"
)

// MetricsNamespace prefixes every collector exported by the service.
const MetricsNamespace = "storefront_auth"

// AuthMetrics records login outcomes and session housekeeping.
type AuthMetrics struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
	evicted  prometheus.Counter
}

// NewAuthMetrics registers the authentication collectors on reg.
// Collectors that are already registered are reused.
func NewAuthMetrics(reg prometheus.Registerer) (*AuthMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "login_attempts_total",
		Help:      "Login attempts partitioned by API surface, strategy and outcome.",
	}, []string{"api", "method", "outcome"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "login_duration_seconds",
		Help:      "Time spent authenticating a login attempt.",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"api", "method"})

	evicted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "order_sessions_evicted_total",
		Help:      "Sessions removed because a new login took over their active order.",
	})

	var err error
	if attempts, err = Register(reg, attempts); err != nil {
		return nil, err
	}
	if duration, err = Register(reg, duration); err != nil {
		return nil, err
	}
	if evicted, err = Register(reg, evicted); err != nil {
		return nil, err
	}

	return &AuthMetrics{attempts: attempts, duration: duration, evicted: evicted}, nil
}

// Register adds collector to reg, returning the collector already registered under the same
// descriptor when there is one.
func Register[T prometheus.Collector](reg prometheus.Registerer, collector T) (T, error) {
	if err := reg.Register(collector); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, fmt.Errorf("register collector: %w", err)
	}
	return collector, nil
}

// ObserveLogin records the outcome of one authentication attempt.
func (m *AuthMetrics) ObserveLogin(api, method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(api, method, outcome).Inc()
	m.duration.WithLabelValues(api, method).Observe(elapsed.Seconds())
}

// ObserveEvictedSessions counts sessions dropped by order takeover.
func (m *AuthMetrics) ObserveEvictedSessions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evicted.Add(float64(n))
}

var _ port.LoginMetrics = (*AuthMetrics)(nil)
