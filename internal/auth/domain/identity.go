package domain

import (
	"strings"
	"time"
)

// Identity is the authenticated principal record. All security-relevant
// fields are mutated exclusively through the login, lockout, OTP, and
// session operations and persisted via CompareAndSwapUpdate.
type Identity struct {
	ID           string
	Email        string
	PasswordHash string
	Role         Role
	IsActive     bool

	// SessionVersion is the single-active-session epoch. It only ever
	// grows; a token is valid only while its claim matches exactly.
	SessionVersion uint64

	// PasswordChangedAt gates tokens issued before the last password
	// change. It is always back-dated by one second when written.
	PasswordChangedAt time.Time

	FailedLoginAttempts int
	LastFailedLoginAt   *time.Time
	LockUntil           *time.Time

	// OTPHash and OTPExpiresAt are both set or both nil.
	OTPHash      *string
	OTPExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Locked reports whether the identity is inside an active lock window.
func (i *Identity) Locked(now time.Time) bool {
	return i.LockUntil != nil && now.Before(*i.LockUntil)
}

// Clone returns a deep copy, used as the expected snapshot for
// compare-and-swap updates.
func (i *Identity) Clone() *Identity {
	c := *i
	if i.LastFailedLoginAt != nil {
		t := *i.LastFailedLoginAt
		c.LastFailedLoginAt = &t
	}
	if i.LockUntil != nil {
		t := *i.LockUntil
		c.LockUntil = &t
	}
	if i.OTPHash != nil {
		h := *i.OTPHash
		c.OTPHash = &h
	}
	if i.OTPExpiresAt != nil {
		t := *i.OTPExpiresAt
		c.OTPExpiresAt = &t
	}
	return &c
}

// NormalizeEmail lower-cases and trims an email so lookups and rate-limit
// keys agree on a single canonical form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
