// Package permission provides the authorization model: a permission registry, immutable
// permission sets, the role catalogue, the declarative operation table and its evaluator,
// and row-level data scopes.
//
// # Rules
//
// A [Rule] lists required permissions (all must be held) and allowed roles (any one
// suffices). A [Table] maps operation names to rules and names one super-role that
// passes every rule. The same table is served to clients as JSON so both layers share
// one definition.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import authcore or session.
//   - Attach permissions to accounts directly. Permissions always resolve through a role.
package permission
