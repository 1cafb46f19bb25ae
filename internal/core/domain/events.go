package domain

import "time"

// AttemptedLoginEvent represents the payload for auth.login.attempted messages.
// Identifier is only set for the native strategy.
type AttemptedLoginEvent struct {
	EventID    string
	APIType    APIType
	Strategy   string
	Identifier *string
	IP         string
	RequestID  string
	At         time.Time
}

// LoginEvent represents the payload for auth.login.succeeded messages.
type LoginEvent struct {
	EventID    string
	APIType    APIType
	UserID     string
	Identifier string
	Strategy   string
	SessionID  string
	IP         string
	RequestID  string
	At         time.Time
}
