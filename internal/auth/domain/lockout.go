package domain

import "time"

// LockoutPolicy is the tunable part of the failed-login state machine.
type LockoutPolicy struct {
	MaxAttempts  int
	Window       time.Duration
	LockDuration time.Duration
}

// LockoutOutcome is what the login path discloses to the client after a
// failed attempt.
type LockoutOutcome struct {
	AttemptsLeft int
	LockUntil    *time.Time
}

// RegisterFailedAttempt advances the lockout state machine in memory.
// The caller persists the mutation with a compare-and-swap so concurrent
// failures never lose counts.
//
// A failure after the attempt window has elapsed restarts the counter at 1.
// The lock deadline is set only when the threshold is crossed while no lock
// is active; an already-active lock is never extended, which bounds the lock
// duration against repeated probing.
func RegisterFailedAttempt(identity *Identity, now time.Time, policy LockoutPolicy) LockoutOutcome {
	if identity.LastFailedLoginAt == nil || now.Sub(*identity.LastFailedLoginAt) > policy.Window {
		identity.FailedLoginAttempts = 1
	} else {
		identity.FailedLoginAttempts++
	}

	failedAt := now
	identity.LastFailedLoginAt = &failedAt

	if identity.FailedLoginAttempts >= policy.MaxAttempts &&
		(identity.LockUntil == nil || !now.Before(*identity.LockUntil)) {
		lockUntil := now.Add(policy.LockDuration)
		identity.LockUntil = &lockUntil
	}

	attemptsLeft := policy.MaxAttempts - identity.FailedLoginAttempts
	if attemptsLeft < 0 {
		attemptsLeft = 0
	}

	return LockoutOutcome{AttemptsLeft: attemptsLeft, LockUntil: identity.LockUntil}
}

// ClearLockout zeroes the failed-login state after a successful login.
func ClearLockout(identity *Identity) {
	identity.FailedLoginAttempts = 0
	identity.LastFailedLoginAt = nil
	identity.LockUntil = nil
}
