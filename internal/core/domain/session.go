package domain

import "time"

// NativeStrategyName is the name token of the username/password strategy.
const NativeStrategyName = "native"

// Session represents a persisted authenticated session.
type Session struct {
	ID string
	// Token is the plaintext session token. It is only populated on a freshly minted session;
	// storage keeps TokenHash.
	Token                  string
	TokenHash              string
	UserID                 string
	AuthenticationStrategy string
	ActiveOrderID          *string
	ActiveChannelID        *string
	ExpiresAt              time.Time
	Invalidated            bool
	CreatedAt              time.Time
	UpdatedAt              time.Time

	User *User
}

// IsActive reports whether the session is still valid at the supplied moment.
func (s Session) IsActive(at time.Time) bool {
	if s.Invalidated {
		return false
	}
	return s.ExpiresAt.After(at)
}

// HasActiveOrder reports whether the session is bound to an in-progress order.
func (s *Session) HasActiveOrder() bool {
	return s != nil && s.ActiveOrderID != nil && *s.ActiveOrderID != ""
}
