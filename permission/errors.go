package permission

import "errors"

var (
	// ErrFrozen is returned when registering after Freeze.
	ErrFrozen = errors.New("permission: frozen")
	// ErrEmptyName is returned for an empty permission or role name.
	ErrEmptyName = errors.New("permission: name cannot be empty")
	// ErrDuplicate is returned when a name is registered twice.
	ErrDuplicate = errors.New("permission: already registered")
	// ErrUnknown is returned when a role references an unregistered permission.
	ErrUnknown = errors.New("permission: not registered")
	// ErrLimitExceeded is returned when more than MaxPermissions are registered.
	ErrLimitExceeded = errors.New("permission: limit exceeded")
)
