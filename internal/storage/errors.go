package storage

import "errors"

var (
	// ErrDuplicateKey means the record was stored before. Outcomes and
	// snapshots are append-only, so callers treat it as already done.
	ErrDuplicateKey = errors.New("storage: record already exists")

	// ErrInvalidInput means a record failed validation before any write.
	ErrInvalidInput = errors.New("storage: invalid record")
)
