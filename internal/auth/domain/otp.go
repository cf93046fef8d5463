package domain

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	autherror "github.com/adityarizkyr/session-service/internal/errors"
)

// HashOTP returns the hex SHA-256 digest of a one-time code. Only the
// digest is ever persisted.
func HashOTP(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// IssueOTP arms the reset state: both fields set, prior state overwritten.
func IssueOTP(identity *Identity, code string, now time.Time, ttl time.Duration) {
	hash := HashOTP(code)
	expiresAt := now.Add(ttl)
	identity.OTPHash = &hash
	identity.OTPExpiresAt = &expiresAt
}

// ConsumeOTP verifies a submitted code against the pending reset state.
// On success and on expiry the state is cleared; a plain mismatch keeps the
// pending code so the user can retry until it expires. The caller persists
// any mutation.
func ConsumeOTP(identity *Identity, code string, now time.Time) error {
	if identity.OTPHash == nil || identity.OTPExpiresAt == nil {
		return autherror.ErrOTPNotRequested
	}
	if now.After(*identity.OTPExpiresAt) {
		ClearOTP(identity)
		return autherror.ErrOTPExpired
	}
	if subtle.ConstantTimeCompare([]byte(HashOTP(code)), []byte(*identity.OTPHash)) != 1 {
		return autherror.ErrOTPMismatch
	}
	ClearOTP(identity)
	return nil
}

// ClearOTP disarms the reset state unconditionally.
func ClearOTP(identity *Identity) {
	identity.OTPHash = nil
	identity.OTPExpiresAt = nil
}
