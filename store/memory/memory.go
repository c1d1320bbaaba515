// Package memory provides in-process implementations of
// [authcore.AccountStore] and [authcore.ResetTokenStore] for tests and local
// runs. Data is lost when the process exits.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/authcore"
)

var (
	_ authcore.AccountStore    = (*Accounts)(nil)
	_ authcore.ResetTokenStore = (*ResetTokens)(nil)
)

// Accounts is a mutex-guarded account table. Reads return copies, so callers
// can never mutate stored rows in place.
type Accounts struct {
	mu    sync.RWMutex
	rows  map[string]authcore.Account
	order []string
}

// NewAccounts returns an empty account table.
func NewAccounts() *Accounts {
	return &Accounts{rows: make(map[string]authcore.Account)}
}

func (s *Accounts) FindByID(_ context.Context, id string) (*authcore.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.rows[id]
	if !ok {
		return nil, authcore.ErrAccountNotFound
	}
	return &a, nil
}

func (s *Accounts) FindByEmail(_ context.Context, email string) (*authcore.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = authcore.NormalizeEmail(email)
	for _, id := range s.order {
		if a := s.rows[id]; a.Email == email {
			return &a, nil
		}
	}
	return nil, authcore.ErrAccountNotFound
}

func (s *Accounts) Create(_ context.Context, account *authcore.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emailTakenLocked(account.Email, "") {
		return authcore.ErrEmailTaken
	}
	if _, exists := s.rows[account.ID]; exists {
		return authcore.ErrEmailTaken
	}
	s.rows[account.ID] = *account
	s.order = append(s.order, account.ID)
	return nil
}

func (s *Accounts) Update(_ context.Context, account *authcore.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[account.ID]; !ok {
		return authcore.ErrAccountNotFound
	}
	if s.emailTakenLocked(account.Email, account.ID) {
		return authcore.ErrEmailTaken
	}
	s.rows[account.ID] = *account
	return nil
}

func (s *Accounts) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[id]; !ok {
		return authcore.ErrAccountNotFound
	}
	delete(s.rows, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return nil
}

// List returns rows in insertion order.
func (s *Accounts) List(_ context.Context, f authcore.AccountFilter) ([]authcore.Account, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(f.Search))
	var matched []authcore.Account
	for _, id := range s.order {
		a := s.rows[id]
		if len(f.Roles) > 0 && !slices.Contains(f.Roles, a.Role) {
			continue
		}
		if f.ExcludeID != "" && a.ID == f.ExcludeID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(a.Name), search) && !strings.Contains(a.Email, search) {
			continue
		}
		matched = append(matched, a)
	}

	total := len(matched)
	start := min(max(f.Offset, 0), total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}
	return slices.Clone(matched[start:end]), total, nil
}

// Len returns the number of stored accounts.
func (s *Accounts) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

func (s *Accounts) emailTakenLocked(email, exceptID string) bool {
	for id, a := range s.rows {
		if id != exceptID && a.Email == email {
			return true
		}
	}
	return false
}

type resetRow struct {
	hash      string
	expiresAt time.Time
}

// ResetTokens keeps one hashed reset token per e-mail.
type ResetTokens struct {
	mu   sync.Mutex
	rows map[string]resetRow
}

// NewResetTokens returns an empty token table.
func NewResetTokens() *ResetTokens {
	return &ResetTokens{rows: make(map[string]resetRow)}
}

func (s *ResetTokens) Put(_ context.Context, email, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[authcore.NormalizeEmail(email)] = resetRow{hash: tokenHash, expiresAt: expiresAt}
	return nil
}

func (s *ResetTokens) Lookup(_ context.Context, email string) (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[authcore.NormalizeEmail(email)]
	if !ok {
		return "", time.Time{}, authcore.ErrResetTokenNotFound
	}
	return row.hash, row.expiresAt, nil
}

// Consume deletes the row under the lock only when hash and expiry match.
func (s *ResetTokens) Consume(_ context.Context, email, tokenHash string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = authcore.NormalizeEmail(email)
	row, ok := s.rows[email]
	if !ok || row.hash != tokenHash || !now.Before(row.expiresAt) {
		return false, nil
	}
	delete(s.rows, email)
	return true, nil
}
