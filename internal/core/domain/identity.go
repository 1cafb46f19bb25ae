package domain

import "time"

// User mirrors the persisted representation in the users table.
type User struct {
	ID         string
	Identifier string
	Verified   bool
	LastLogin  *time.Time
	DeletedAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time

	// Roles is ordered by assignment. A nil slice means the grants were never loaded.
	Roles []Role
}

// RolesLoaded reports whether role grants and their channels are hydrated on the user.
func (u *User) RolesLoaded() bool {
	if u == nil || len(u.Roles) == 0 {
		return false
	}
	return u.Roles[0].Channels != nil
}

// NativeAuthenticationMethod holds the username/password credential of a user.
type NativeAuthenticationMethod struct {
	ID           string
	UserID       string
	Identifier   string
	PasswordHash string
}

// Administrator links a user to the administrative back office.
type Administrator struct {
	ID           string
	UserID       string
	FirstName    string
	LastName     string
	EmailAddress string
}
