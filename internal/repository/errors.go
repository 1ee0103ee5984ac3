// Package repository persists identities and the refresh-token ledger in
// MySQL. Sentinel values defined here let the usecase layer distinguish
// failure scenarios without depending on database/sql error values.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row. Repositories
// translate sql.ErrNoRows into this sentinel so callers never handle
// driver errors directly.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned by identity creation when the normalized
// email already has a row. It maps to the registration conflict surface.
var ErrEmailExists = errors.New("email already exists")
