package authcore

import "github.com/MrEthical07/authcore/permission"

// Permission keys known to the Engine's own operations.
const (
	PermUsersView   = "users.view"
	PermUsersDetail = "users.detail"
	PermUsersCreate = "users.create"
	PermUsersUpdate = "users.update"
	PermUsersDelete = "users.delete"
	PermRolesManage = "roles.manage"
)

// Operation names of the default table. The HTTP layer and the client guard
// both refer to these.
const (
	OpUsersList   = "users.list"
	OpUsersShow   = "users.show"
	OpUsersCreate = "users.create"
	OpUsersUpdate = "users.update"
	OpUsersDelete = "users.delete"
	OpAdminArea   = "admin.area"
)

// RoleSpec declares a role and the permission keys it owns.
type RoleSpec struct {
	Name        string   `json:"name" yaml:"name"`
	Label       string   `json:"label" yaml:"label"`
	Permissions []string `json:"permissions" yaml:"permissions"`
}

// Catalog is the complete authorization model handed to the Builder:
// permission definitions, roles, the operation table and list scopes.
//
// Operations.SuperRole is overwritten by Config.Authorization.SuperRole.
type Catalog struct {
	Permissions []permission.Definition
	Roles       []RoleSpec
	Operations  *permission.Table
	Scopes      permission.Scopes
}

// DefaultCatalog returns the seeded roles and permissions shipped with the
// schema migrations.
func DefaultCatalog() Catalog {
	table := permission.NewTable("admin").
		Define(OpUsersList, permission.Rule{Permissions: []string{PermUsersView}}).
		Define(OpUsersShow, permission.Rule{Permissions: []string{PermUsersDetail}}).
		Define(OpUsersCreate, permission.Rule{Permissions: []string{PermUsersCreate}}).
		Define(OpUsersUpdate, permission.Rule{Permissions: []string{PermUsersUpdate}}).
		Define(OpUsersDelete, permission.Rule{Permissions: []string{PermUsersDelete}}).
		Define(OpAdminArea, permission.Rule{Roles: []string{"admin", "moderator"}})

	return Catalog{
		Permissions: []permission.Definition{
			{Name: PermUsersView, Description: "List users"},
			{Name: PermUsersDetail, Description: "View a user's detail"},
			{Name: PermUsersCreate, Description: "Create users"},
			{Name: PermUsersUpdate, Description: "Edit users"},
			{Name: PermUsersDelete, Description: "Delete users"},
			{Name: PermRolesManage, Description: "Manage roles and permissions"},
		},
		Roles: []RoleSpec{
			{Name: "admin", Label: "Administrador", Permissions: []string{
				PermUsersView, PermUsersDetail, PermUsersCreate, PermUsersUpdate, PermUsersDelete, PermRolesManage,
			}},
			{Name: "moderator", Label: "Moderador", Permissions: []string{PermUsersView, PermUsersDetail}},
			{Name: "user", Label: "Usuario"},
			{Name: "guest", Label: "Invitado"},
		},
		Operations: table,
		Scopes: permission.Scopes{
			"moderator": {VisibleRoles: []string{"user", "guest"}, HideSelf: true},
		},
	}
}
