package domain

//go:generate mockgen -destination=../../mocks/mock_identity_repository.go -package=mocks github.com/adityarizkyr/session-service/internal/auth/domain IdentityRepository

import "context"

// IdentityRepository is the persistence boundary for Identity records.
//
// Lookups return (nil, nil) when no record matches. CompareAndSwapUpdate
// writes the updated record only while the stored security fields still
// match the expected snapshot, so concurrent read-modify-write cycles on
// lockout counters, OTP state, and the session epoch cannot lose updates;
// callers reload and retry when swapped is false.
type IdentityRepository interface {
	GetByEmail(ctx context.Context, email string) (*Identity, error)
	GetByID(ctx context.Context, id string) (*Identity, error)
	Create(ctx context.Context, identity *Identity) error
	CompareAndSwapUpdate(ctx context.Context, updated *Identity, expected *Identity) (swapped bool, err error)
}
