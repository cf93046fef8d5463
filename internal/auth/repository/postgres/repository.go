package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/adityarizkyr/session-service/internal/auth/domain"
)

// DBTX is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresRepository struct {
	db DBTX
}

func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const identityColumns = `id, email, password_hash, role_id, is_active, session_version,
		       password_changed_at, failed_login_attempts, last_failed_login_at,
		       lock_until, otp_hash, otp_expires_at, created_at, updated_at`

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	query := `
		SELECT ` + identityColumns + `
		FROM identities
		WHERE email = $1
		LIMIT 1;
	`
	return r.scanIdentity(r.db.QueryRow(ctx, query, email))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	query := `
		SELECT ` + identityColumns + `
		FROM identities
		WHERE id = $1
		LIMIT 1;
	`
	return r.scanIdentity(r.db.QueryRow(ctx, query, id))
}

func (r *PostgresRepository) scanIdentity(row pgx.Row) (*domain.Identity, error) {
	var identity domain.Identity
	var roleID int

	err := row.Scan(
		&identity.ID, &identity.Email, &identity.PasswordHash, &roleID,
		&identity.IsActive, &identity.SessionVersion, &identity.PasswordChangedAt,
		&identity.FailedLoginAttempts, &identity.LastFailedLoginAt,
		&identity.LockUntil, &identity.OTPHash, &identity.OTPExpiresAt,
		&identity.CreatedAt, &identity.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}

	identity.Role = domain.Role(roleID)

	return &identity, nil
}

func (r *PostgresRepository) Create(ctx context.Context, identity *domain.Identity) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO identities (id, email, password_hash, role_id, is_active, session_version,
                                password_changed_at, failed_login_attempts, last_failed_login_at,
                                lock_until, otp_hash, otp_expires_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
    `, identity.ID, identity.Email, identity.PasswordHash, int(identity.Role),
		identity.IsActive, identity.SessionVersion, identity.PasswordChangedAt,
		identity.FailedLoginAttempts, identity.LastFailedLoginAt,
		identity.LockUntil, identity.OTPHash, identity.OTPExpiresAt,
		identity.CreatedAt, identity.UpdatedAt)

	return err
}

// CompareAndSwapUpdate writes the security fields only while the stored
// row still matches the expected snapshot. IS NOT DISTINCT FROM makes the
// nullable guards treat NULL = NULL as a match. Returns false when a
// concurrent writer won; callers reload and retry.
func (r *PostgresRepository) CompareAndSwapUpdate(ctx context.Context, updated, expected *domain.Identity) (bool, error) {
	query := `
		UPDATE identities
		SET password_hash = $2,
		    is_active = $3,
		    session_version = $4,
		    password_changed_at = $5,
		    failed_login_attempts = $6,
		    last_failed_login_at = $7,
		    lock_until = $8,
		    otp_hash = $9,
		    otp_expires_at = $10,
		    updated_at = now()
		WHERE id = $1
		  AND password_hash = $11
		  AND session_version = $12
		  AND failed_login_attempts = $13
		  AND last_failed_login_at IS NOT DISTINCT FROM $14
		  AND lock_until IS NOT DISTINCT FROM $15
		  AND otp_hash IS NOT DISTINCT FROM $16
		  AND otp_expires_at IS NOT DISTINCT FROM $17
	`
	tag, err := r.db.Exec(ctx, query,
		updated.ID,
		updated.PasswordHash, updated.IsActive, updated.SessionVersion,
		updated.PasswordChangedAt, updated.FailedLoginAttempts,
		updated.LastFailedLoginAt, updated.LockUntil,
		updated.OTPHash, updated.OTPExpiresAt,
		expected.PasswordHash, expected.SessionVersion,
		expected.FailedLoginAttempts, expected.LastFailedLoginAt,
		expected.LockUntil, expected.OTPHash, expected.OTPExpiresAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update identity: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}
