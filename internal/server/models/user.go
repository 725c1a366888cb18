// Package models holds the persisted user record and the views derived
// from it.
package models

import (
	"slices"
	"time"
)

// MaxPasswordHistory bounds the number of previous digests kept per user.
const MaxPasswordHistory = 5

// User is the persisted credential record. JSON tags define the file and
// object-store layout.
type User struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	Username        string     `json:"username"`
	PasswordDigest  string     `json:"password"`
	PasswordHistory []string   `json:"password_history"`
	LoginAttempts   int        `json:"login_attempts"`
	LastFailedAt    *time.Time `json:"last_failed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Clone returns a deep copy so callers never share mutable state with a
// store.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.PasswordHistory = slices.Clone(u.PasswordHistory)
	if u.LastFailedAt != nil {
		t := *u.LastFailedAt
		c.LastFailedAt = &t
	}
	return &c
}

// RotatePassword makes digest current and pushes the previous digest onto
// the front of the history, trimming it to MaxPasswordHistory entries.
func (u *User) RotatePassword(digest string) {
	history := make([]string, 0, MaxPasswordHistory)
	if u.PasswordDigest != "" {
		history = append(history, u.PasswordDigest)
	}
	history = append(history, u.PasswordHistory...)
	if len(history) > MaxPasswordHistory {
		history = history[:MaxPasswordHistory]
	}
	u.PasswordHistory = history
	u.PasswordDigest = digest
}

// View strips credential material from the record.
func (u *User) View() *UserView {
	if u == nil {
		return nil
	}
	return &UserView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// UserView is the sanitized user exposed outside the directory. It has no
// digest, history or counters.
type UserView struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUser carries the inputs for creating a user. PasswordDigest must
// already be hashed.
type NewUser struct {
	Email          string
	Username       string
	PasswordDigest string
}

// UserUpdate is a partial update; nil fields are left unchanged. Setting
// PasswordDigest rotates the previous digest into the history.
type UserUpdate struct {
	Email          *string
	Username       *string
	PasswordDigest *string
	LoginAttempts  *int
}
