package authz

import "errors"

var (
	// ErrInvalidPermission is returned when a permission string is not resource:action:scope
	ErrInvalidPermission = errors.New("invalid permission")

	// ErrInvalidScope is returned when the scope segment is outside the closed set
	ErrInvalidScope = errors.New("invalid permission scope")

	// ErrUnknownRole is returned when a role name has no built-in definition
	ErrUnknownRole = errors.New("unknown role")
)
