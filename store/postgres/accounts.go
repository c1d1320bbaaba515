package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/authcore"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ authcore.AccountStore = (*Accounts)(nil)

const accountColumns = `id::text, name, email, password_hash, is_active, role_name,
	email_verified_at, two_factor_secret, two_factor_confirmed_at, remember_token_hash,
	last_login_at, last_login_ip, created_at, updated_at`

// Accounts is the users table.
type Accounts struct {
	pool *pgxpool.Pool
}

func scanAccount(row pgx.Row) (*authcore.Account, error) {
	a := &authcore.Account{}
	err := row.Scan(
		&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Active, &a.Role,
		&a.EmailVerifiedAt, &a.TwoFactorSecret, &a.TwoFactorConfirmedAt, &a.RememberTokenHash,
		&a.LastLoginAt, &a.LastLoginIP, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Accounts) findOne(ctx context.Context, where string, arg any) (*authcore.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM users WHERE ` + where
	a, err := scanAccount(s.pool.QueryRow(ctx, q, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authcore.ErrAccountNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *Accounts) FindByID(ctx context.Context, id string) (*authcore.Account, error) {
	if !isUUID(id) {
		return nil, authcore.ErrAccountNotFound
	}
	return s.findOne(ctx, `id = $1`, id)
}

func (s *Accounts) FindByEmail(ctx context.Context, email string) (*authcore.Account, error) {
	return s.findOne(ctx, `lower(email) = $1`, authcore.NormalizeEmail(email))
}

func (s *Accounts) Create(ctx context.Context, a *authcore.Account) error {
	q := `INSERT INTO users (id, name, email, password_hash, is_active, role_name,
		email_verified_at, two_factor_secret, two_factor_confirmed_at, remember_token_hash,
		last_login_at, last_login_ip, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := s.pool.Exec(ctx, q,
		a.ID, a.Name, authcore.NormalizeEmail(a.Email), a.PasswordHash, a.Active, a.Role,
		a.EmailVerifiedAt, a.TwoFactorSecret, a.TwoFactorConfirmedAt, a.RememberTokenHash,
		a.LastLoginAt, a.LastLoginIP, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return authcore.ErrEmailTaken
		}
		return err
	}
	return nil
}

func (s *Accounts) Update(ctx context.Context, a *authcore.Account) error {
	if !isUUID(a.ID) {
		return authcore.ErrAccountNotFound
	}
	q := `UPDATE users SET name = $2, email = $3, password_hash = $4, is_active = $5, role_name = $6,
		email_verified_at = $7, two_factor_secret = $8, two_factor_confirmed_at = $9,
		remember_token_hash = $10, last_login_at = $11, last_login_ip = $12, updated_at = $13
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q,
		a.ID, a.Name, authcore.NormalizeEmail(a.Email), a.PasswordHash, a.Active, a.Role,
		a.EmailVerifiedAt, a.TwoFactorSecret, a.TwoFactorConfirmedAt,
		a.RememberTokenHash, a.LastLoginAt, a.LastLoginIP, a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return authcore.ErrEmailTaken
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrAccountNotFound
	}
	return nil
}

func (s *Accounts) Delete(ctx context.Context, id string) error {
	if !isUUID(id) {
		return authcore.ErrAccountNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrAccountNotFound
	}
	return nil
}

// List returns rows oldest first.
func (s *Accounts) List(ctx context.Context, f authcore.AccountFilter) ([]authcore.Account, int, error) {
	where, args := listFilter(f)

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	q := `SELECT ` + accountColumns + ` FROM users` + where + ` ORDER BY created_at, id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []authcore.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// listFilter renders the WHERE clause of List with positional arguments.
func listFilter(f authcore.AccountFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if len(f.Roles) > 0 {
		args = append(args, f.Roles)
		conds = append(conds, fmt.Sprintf("role_name = ANY($%d)", len(args)))
	}
	if f.ExcludeID != "" && isUUID(f.ExcludeID) {
		args = append(args, f.ExcludeID)
		conds = append(conds, fmt.Sprintf("id <> $%d", len(args)))
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		args = append(args, "%"+escapeLike(strings.ToLower(search))+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(lower(name) LIKE $%d OR lower(email) LIKE $%d)", n, n))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
