// Package store keeps tenant-scoped ERP documents on a persistence engine.
package store

import (
	"errors"
	"fmt"
)

// VersionConflictError is returned when an update names a version that is
// no longer current.
type VersionConflictError struct {
	Type            string
	ID              string
	ExpectedVersion uint64
	CurrentVersion  uint64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict for %s '%s': expected version %d, but current is %d",
		e.Type, e.ID, e.ExpectedVersion, e.CurrentVersion)
}

// IsVersionConflict checks if an error is a version conflict error
func IsVersionConflict(err error) bool {
	var target *VersionConflictError
	return errors.As(err, &target)
}

// NotFoundError represents an entity not found error
type NotFoundError struct {
	Type string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Type, e.Key)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// DuplicateError is returned when a unique field is already taken within
// the tenant.
type DuplicateError struct {
	Type  string
	Field string
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s with %s '%s' already exists", e.Type, e.Field, e.Value)
}

// IsDuplicate checks if an error is a duplicate error
func IsDuplicate(err error) bool {
	var target *DuplicateError
	return errors.As(err, &target)
}
