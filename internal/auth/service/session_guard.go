package service

import (
	"context"
	"time"

	"github.com/adityarizkyr/session-service/internal/auth/domain"
	autherror "github.com/adityarizkyr/session-service/internal/errors"
)

// AuthenticatedContext is the typed identity context built once per
// request by the SessionGuard and handed to downstream logic. Role is the
// live stored role, not the token claim.
type AuthenticatedContext struct {
	IdentityID     string
	Email          string
	Role           domain.Role
	SessionVersion uint64
}

// SessionGuard validates an access token against the live identity record
// on every authenticated request, enforcing the single-active-session
// epoch and password-change invalidation.
type SessionGuard struct {
	repo         domain.IdentityRepository
	tokenService TokenGenerator
}

func NewSessionGuard(repo domain.IdentityRepository, tokenService TokenGenerator) *SessionGuard {
	return &SessionGuard{repo: repo, tokenService: tokenService}
}

// Authenticate verifies the raw bearer token and re-validates its claims
// against the stored identity. A repository failure denies the request;
// authentication never fails open.
func (g *SessionGuard) Authenticate(ctx context.Context, rawToken string) (*AuthenticatedContext, error) {
	if rawToken == "" {
		return nil, autherror.ErrTokenMissing
	}

	claims, err := g.tokenService.VerifyAccessToken(rawToken)
	if err != nil {
		return nil, err
	}

	identity, err := g.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, autherror.ErrSessionInvalidated
	}
	if !identity.IsActive {
		return nil, autherror.ErrAccountInactive
	}
	// Exact match: a smaller stored value is just as invalid as a larger one.
	if claims.SessionVersion != identity.SessionVersion {
		return nil, autherror.ErrSessionInvalidated
	}
	if issuedBefore(claims, identity.PasswordChangedAt) {
		return nil, autherror.ErrPasswordChanged
	}

	return &AuthenticatedContext{
		IdentityID:     identity.ID,
		Email:          identity.Email,
		Role:           identity.Role,
		SessionVersion: identity.SessionVersion,
	}, nil
}

func issuedBefore(claims *JWTCustomClaims, changedAt time.Time) bool {
	if claims.IssuedAt == nil {
		return true
	}
	return claims.IssuedAt.Time.Before(changedAt)
}
