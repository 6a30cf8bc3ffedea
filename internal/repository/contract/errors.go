package contract

import "errors"

var (
	// ErrDuplicate is returned by Create when a uniqueness constraint rejects the row.
	ErrDuplicate = errors.New("duplicate record")
	// ErrNotFound is returned by updates that matched no row.
	ErrNotFound = errors.New("record not found")
)
