package postgres

import (
	"context"
	"fmt"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/permission"
)

// LoadCatalog reads permissions and roles from the database. The operation
// table and list scopes come from base, so a role added in SQL still needs a
// rule before it can reach a protected operation.
func (s *Store) LoadCatalog(ctx context.Context, base authcore.Catalog) (authcore.Catalog, error) {
	perms, err := s.loadPermissions(ctx)
	if err != nil {
		return authcore.Catalog{}, err
	}
	roles, err := s.loadRoles(ctx)
	if err != nil {
		return authcore.Catalog{}, err
	}
	return authcore.Catalog{
		Permissions: perms,
		Roles:       roles,
		Operations:  base.Operations,
		Scopes:      base.Scopes,
	}, nil
}

func (s *Store) loadPermissions(ctx context.Context) ([]permission.Definition, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, description FROM permissions ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("load permissions: %w", err)
	}
	defer rows.Close()

	var out []permission.Definition
	for rows.Next() {
		var d permission.Definition
		if err := rows.Scan(&d.Name, &d.Description); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) loadRoles(ctx context.Context) ([]authcore.RoleSpec, error) {
	q := `SELECT r.name, r.label, coalesce(array_agg(pr.permission_key ORDER BY pr.permission_key)
			FILTER (WHERE pr.permission_key IS NOT NULL), '{}')
		FROM roles r
		LEFT JOIN permission_role pr ON pr.role_name = r.name
		GROUP BY r.name, r.label
		ORDER BY r.name`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	defer rows.Close()

	var out []authcore.RoleSpec
	for rows.Next() {
		var r authcore.RoleSpec
		if err := rows.Scan(&r.Name, &r.Label, &r.Permissions); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
