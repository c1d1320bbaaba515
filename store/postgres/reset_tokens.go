package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ authcore.ResetTokenStore = (*ResetTokens)(nil)

// ResetTokens is the password_reset_tokens table, one row per e-mail.
type ResetTokens struct {
	pool *pgxpool.Pool
}

func (s *ResetTokens) Put(ctx context.Context, email, tokenHash string, expiresAt time.Time) error {
	q := `INSERT INTO password_reset_tokens (email, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (email) DO UPDATE
		SET token_hash = EXCLUDED.token_hash, expires_at = EXCLUDED.expires_at, created_at = now()`
	_, err := s.pool.Exec(ctx, q, authcore.NormalizeEmail(email), tokenHash, expiresAt)
	return err
}

func (s *ResetTokens) Lookup(ctx context.Context, email string) (string, time.Time, error) {
	var (
		hash      string
		expiresAt time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT token_hash, expires_at FROM password_reset_tokens WHERE email = $1`,
		authcore.NormalizeEmail(email),
	).Scan(&hash, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", time.Time{}, authcore.ErrResetTokenNotFound
		}
		return "", time.Time{}, err
	}
	return hash, expiresAt, nil
}

// Consume is a single conditional DELETE, so concurrent callers race on the
// row lock and at most one sees it.
func (s *ResetTokens) Consume(ctx context.Context, email, tokenHash string, now time.Time) (bool, error) {
	var consumed string
	err := s.pool.QueryRow(ctx,
		`DELETE FROM password_reset_tokens
		WHERE email = $1 AND token_hash = $2 AND expires_at > $3
		RETURNING email`,
		authcore.NormalizeEmail(email), tokenHash, now,
	).Scan(&consumed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
