package errors

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailAlreadyInUse  = errors.New("email already in use")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrAccountInactive    = errors.New("account inactive")
	ErrUserNotFound       = errors.New("user not found")
	ErrWeakPassword       = errors.New("password does not meet minimum requirements")

	ErrTokenMissing       = errors.New("authorization token missing")
	ErrTokenMalformed     = errors.New("token malformed")
	ErrTokenSignature     = errors.New("token signature invalid")
	ErrTokenExpired       = errors.New("token expired")
	ErrSessionInvalidated = errors.New("session invalidated by a newer login")
	ErrPasswordChanged    = errors.New("password changed after token was issued")

	ErrOTPNotRequested = errors.New("no password reset pending")
	ErrOTPExpired      = errors.New("one-time code expired")
	ErrOTPMismatch     = errors.New("one-time code mismatch")

	ErrTooManyRequests  = errors.New("too many requests")
	ErrConcurrentUpdate = errors.New("identity modified concurrently, retries exhausted")
)

// LockedError carries the lock deadline so clients can render a countdown.
type LockedError struct {
	LockUntil time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account temporarily locked until %s", e.LockUntil.Format(time.RFC3339))
}

func (e *LockedError) Unwrap() error { return ErrAccountLocked }

// CredentialsError carries the remaining attempt budget before lockout.
type CredentialsError struct {
	AttemptsLeft int
}

func (e *CredentialsError) Error() string {
	return fmt.Sprintf("invalid credentials (%d attempts left)", e.AttemptsLeft)
}

func (e *CredentialsError) Unwrap() error { return ErrInvalidCredentials }
