// Package repository implements persistence over MySQL. Sentinel
// errors declared here let the service layer distinguish failure
// scenarios without depending on database/sql details.
package repository

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a lookup matches no live row. Soft
// deleted and inactive rows count as absent for every query in this
// package.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when creating a user whose email is
// already taken. The service layer surfaces it as a registration
// conflict.
var ErrEmailExists = errors.New("email already exists")

// ErrKeyExists is returned when creating a role whose key collides
// with an existing one. Role keys are unique across all projects.
var ErrKeyExists = errors.New("role key already exists")

// isDuplicate reports whether err is a MySQL duplicate-entry error
// (code 1062) on a unique index.
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}
