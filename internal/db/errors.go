package db

import "errors"

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrIntegrity indicates a write referenced a parent row that does not
	// exist (e.g. a metrics snapshot for an unknown post or account).
	ErrIntegrity = errors.New("integrity constraint violation")
)
