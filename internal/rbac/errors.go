package rbac

import "errors"

var (
	ErrNotFound         = errors.New("rbac: not found")
	ErrUnknownRole      = errors.New("rbac: unknown role")
	ErrUnknownAction    = errors.New("rbac: unknown action")
	ErrInvalidHierarchy = errors.New("rbac: invalid role hierarchy")
	ErrInvalidInput     = errors.New("rbac: invalid input")
)
