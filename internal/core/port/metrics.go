package port

import "time"

// LoginMetrics receives login outcome observations.
type LoginMetrics interface {
	ObserveLogin(api, method, outcome string, elapsed time.Duration)
	ObserveEvictedSessions(n int)
}
