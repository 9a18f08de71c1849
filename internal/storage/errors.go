// Package storage defines the error contract shared by store implementations.
package storage

import "errors"

var (
	ErrNotFound   = errors.New("record not found")
	ErrConstraint = errors.New("constraint violation")
)
