package constant

const (
	// DefaultUserRoleID is assigned to newly registered identities.
	DefaultUserRoleID = 1

	// OTPLength is the number of digits in a password-reset code.
	OTPLength = 6

	// MinPasswordLength applies to registration and password reset.
	MinPasswordLength = 8

	// MaxCASRetries bounds the reload-and-retry loop around conditional
	// identity updates when a concurrent writer wins the race.
	MaxCASRetries = 3
)
