package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/agrilink/agrilink-api/internal/model"
)

// ErrTokenNotFound is returned when no active refresh token matches the
// presented hash. Expired, revoked and never-issued tokens are deliberately
// indistinguishable to callers.
var ErrTokenNotFound = errors.New("refresh token not found")

// ErrDuplicateTokenHash is returned when an insert collides with the hash
// uniqueness constraint, i.e. an identical token was already persisted.
var ErrDuplicateTokenHash = errors.New("refresh token hash already exists")

// TokenRepo persists and validates refresh tokens. Only the SHA-256 hash of
// a token is ever stored.
type TokenRepo struct{ db *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{db: db} }

// Store inserts a refresh token record.
func (r *TokenRepo) Store(ctx context.Context, t *model.RefreshToken) error {
	const q = "INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at) VALUES (?,?,?,?)"
	_, err := r.db.ExecContext(ctx, q, t.ID, t.UserID, t.TokenHash, t.ExpiresAt)
	if err != nil && strings.Contains(err.Error(), "1062") {
		return ErrDuplicateTokenHash
	}
	return err
}

// Verify returns the record for a presented token hash if it is neither
// revoked nor expired. The expiry check lives here, not in the database TTL
// sweep, so correctness never depends on housekeeping.
func (r *TokenRepo) Verify(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	const q = `SELECT id, user_id, token_hash, expires_at, revoked_at, created_at
	           FROM refresh_tokens WHERE token_hash=? LIMIT 1`
	var t model.RefreshToken
	var revokedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, q, tokenHash).Scan(
		&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &revokedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	if revokedAt.Valid {
		return nil, ErrTokenNotFound
	}
	if time.Now().UTC().After(t.ExpiresAt) {
		return nil, ErrTokenNotFound
	}
	return &t, nil
}

// RevokeByID marks a token as revoked. Revoking an already-revoked record is
// a no-op, not an error, and leaves the original revocation timestamp.
func (r *TokenRepo) RevokeByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE id=? AND revoked_at IS NULL", id)
	return err
}

// RevokeAllForUser revokes every active token a user holds and returns how
// many were affected. Used when a new login supersedes prior sessions.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE user_id=? AND revoked_at IS NULL", userID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteExpired hard-deletes rows whose expiry passed more than the grace
// period ago. This is housekeeping only; Verify already rejects expired
// tokens.
func (r *TokenRepo) DeleteExpired(ctx context.Context, grace time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at < ?", time.Now().UTC().Add(-grace))
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
