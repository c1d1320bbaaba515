package authcore

import (
	"context"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/permission"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// UserQuery selects one page of ListUsers. Page is 1-based.
type UserQuery struct {
	Page    int
	PerPage int
	Search  string
}

// NewUser carries an administrative account creation.
type NewUser struct {
	Name          string
	Email         string
	Password      string
	Role          string
	Active        bool
	EmailVerified bool
}

// UserChanges carries an administrative update. Nil fields are left alone.
type UserChanges struct {
	Name     *string
	Email    *string
	Password *string
	Role     *string
	Active   *bool
}

// ListUsers returns one page of accounts visible to p. It requires the
// OpUsersList operation and then applies p's data scope to the query.
func (e *Engine) ListUsers(ctx context.Context, p *Principal, q UserQuery) (*Page, error) {
	if err := e.Authorize(ctx, p, OpUsersList); err != nil {
		return nil, err
	}

	page := max(q.Page, 1)
	size := q.PerPage
	if size <= 0 {
		size = defaultPageSize
	}
	size = min(size, maxPageSize)

	scope := e.Scope(p)
	filter := AccountFilter{
		Roles:  scope.VisibleRoles,
		Search: strings.TrimSpace(q.Search),
		Offset: (page - 1) * size,
		Limit:  size,
	}
	if scope.HideSelf {
		filter.ExcludeID = p.Account.ID
	}

	rows, total, err := e.accounts.List(ctx, filter)
	if err != nil {
		return nil, storeErr(err)
	}
	items := make([]Identity, 0, len(rows))
	for i := range rows {
		items = append(items, *e.identity(&rows[i]))
	}
	return &Page{Items: items, Total: total, Page: page, Size: size}, nil
}

// GetUser returns one account. Callers may always read their own row.
// Anyone else needs OpUsersShow, and the row must fall inside their scope.
func (e *Engine) GetUser(ctx context.Context, p *Principal, id string) (*Identity, error) {
	if p == nil || p.Account == nil {
		return nil, ErrUnauthenticated
	}
	if id == p.Account.ID {
		return e.identity(p.Account), nil
	}
	if err := e.Authorize(ctx, p, OpUsersShow); err != nil {
		return nil, err
	}
	target, err := e.findAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.checkVisible(ctx, p, target); err != nil {
		return nil, err
	}
	return e.identity(target), nil
}

// CreateUser creates an account on behalf of an administrator.
func (e *Engine) CreateUser(ctx context.Context, p *Principal, in NewUser) (*Identity, error) {
	if err := e.Authorize(ctx, p, OpUsersCreate); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	email, err := validEmail(in.Email)
	if err != nil || name == "" {
		return nil, ErrValidation
	}
	role := in.Role
	if role == "" {
		role = e.config.Account.DefaultRole
	}
	if err := e.checkAssignable(p, role); err != nil {
		return nil, err
	}
	if len(in.Password) < e.config.Password.MinLength {
		return nil, ErrPasswordPolicy
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	now := e.now().UTC()
	acct := &Account{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Active:       in.Active,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.EmailVerified {
		acct.EmailVerifiedAt = &now
	}
	if err := rotateRememberToken(acct); err != nil {
		return nil, err
	}
	if err := e.accounts.Create(ctx, acct); err != nil {
		return nil, storeErr(err)
	}
	if !in.EmailVerified {
		if err := e.sendVerification(ctx, acct); err != nil {
			e.logger.Warn().Err(err).Str("account_id", acct.ID).Msg("verification link not sent")
		}
	}

	e.emitAudit(ctx, AuditAccountCreated, true, p.Account.ID, p.sessionID(), nil, func() map[string]string {
		return map[string]string{"target": acct.ID, "role": role}
	})
	return e.identity(acct), nil
}

// UpdateUser edits another account. Only the super-role may modify a
// super-role account or grant the super-role. Deactivating an account or
// replacing its password destroys its sessions.
func (e *Engine) UpdateUser(ctx context.Context, p *Principal, id string, ch UserChanges) (*Identity, error) {
	if err := e.Authorize(ctx, p, OpUsersUpdate); err != nil {
		return nil, err
	}
	target, err := e.findAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.isSuper(target.Role) && !e.isSuper(p.RoleName()) {
		return nil, e.deny(ctx, p, OpUsersUpdate, target.ID)
	}
	if err := e.checkVisible(ctx, p, target); err != nil {
		return nil, err
	}

	revoke := false
	if ch.Name != nil {
		name := strings.TrimSpace(*ch.Name)
		if name == "" {
			return nil, ErrValidation
		}
		target.Name = name
	}
	if ch.Email != nil {
		email, err := validEmail(*ch.Email)
		if err != nil {
			return nil, err
		}
		if email != target.Email {
			target.Email = email
			target.EmailVerifiedAt = nil
		}
	}
	if ch.Role != nil && *ch.Role != target.Role {
		if err := e.checkAssignable(p, *ch.Role); err != nil {
			return nil, err
		}
		target.Role = *ch.Role
	}
	if ch.Password != nil {
		if len(*ch.Password) < e.config.Password.MinLength {
			return nil, ErrPasswordPolicy
		}
		hash, err := e.hasher.Hash(*ch.Password)
		if err != nil {
			return nil, err
		}
		target.PasswordHash = hash
		if err := rotateRememberToken(target); err != nil {
			return nil, err
		}
		revoke = true
	}
	if ch.Active != nil {
		if target.Active && !*ch.Active {
			revoke = true
		}
		target.Active = *ch.Active
	}

	target.UpdatedAt = e.now().UTC()
	if err := e.accounts.Update(ctx, target); err != nil {
		return nil, storeErr(err)
	}
	if revoke {
		e.revokeAll(ctx, target.ID)
	}

	e.emitAudit(ctx, AuditAccountUpdated, true, p.Account.ID, p.sessionID(), nil, func() map[string]string {
		return map[string]string{"target": target.ID}
	})
	return e.identity(target), nil
}

// DeleteUser removes an account and destroys its sessions. Callers can never
// delete themselves.
func (e *Engine) DeleteUser(ctx context.Context, p *Principal, id string) error {
	if err := e.Authorize(ctx, p, OpUsersDelete); err != nil {
		return err
	}
	if id == p.Account.ID {
		return e.deny(ctx, p, OpUsersDelete, id)
	}
	target, err := e.findAccount(ctx, id)
	if err != nil {
		return err
	}
	if e.isSuper(target.Role) && !e.isSuper(p.RoleName()) {
		return e.deny(ctx, p, OpUsersDelete, target.ID)
	}
	if err := e.checkVisible(ctx, p, target); err != nil {
		return err
	}

	if err := e.accounts.Delete(ctx, target.ID); err != nil {
		return storeErr(err)
	}
	e.revokeAll(ctx, target.ID)

	e.emitAudit(ctx, AuditAccountDeleted, true, p.Account.ID, p.sessionID(), nil, func() map[string]string {
		return map[string]string{"target": target.ID}
	})
	return nil
}

/*
====================================
SCOPE CHECKS
====================================
*/

func (e *Engine) checkVisible(ctx context.Context, p *Principal, target *Account) error {
	if e.Scope(p).Permits(p.Account.ID, target.ID, target.Role) {
		return nil
	}
	return e.deny(ctx, p, "scope", target.ID)
}

// checkAssignable rejects unknown roles, grants of the super-role by anyone
// else, and roles outside the caller's scope.
func (e *Engine) checkAssignable(p *Principal, role string) error {
	if _, ok := e.roles.Role(role); !ok {
		return ErrValidation
	}
	if e.isSuper(role) && !e.isSuper(p.RoleName()) {
		return ErrForbidden
	}
	scope := e.Scope(p)
	if !(permission.Scope{VisibleRoles: scope.VisibleRoles}).Permits("", "", role) {
		return ErrForbidden
	}
	return nil
}

func (e *Engine) deny(ctx context.Context, p *Principal, op, target string) error {
	e.metricInc(MetricAuthorizationDenied)
	e.emitAudit(ctx, AuditAuthorizationDenied, false, p.Account.ID, p.sessionID(), ErrForbidden, func() map[string]string {
		return map[string]string{"operations": op, "target": target}
	})
	return ErrForbidden
}

func (e *Engine) revokeAll(ctx context.Context, accountID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := e.sessions.DeleteAllForAccount(ctx, accountID, ""); err != nil {
		e.logger.Warn().Err(err).Str("account_id", accountID).Msg("session revocation failed")
	}
}
