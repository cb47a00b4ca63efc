// Package store owns the per-pharmacy embedded database: connection
// lifecycle, schema creation and the domain-level read/write operations.
// Sentinel errors below let the HTTP layer distinguish domain failures
// (duplicate row, bad credentials) from connection or SQL failures, which
// arrive as ordinary wrapped errors.
package store

import "errors"

// ErrDuplicate is returned when an insert matches an existing
// (name, expiry_date, batch_no) triple in the same pharmacy table.
var ErrDuplicate = errors.New("duplicate record")

// ErrConflict is returned when a users insert violates the unique
// email or phone number constraint.
var ErrConflict = errors.New("account already exists")

// ErrInvalidCredentials is returned on login when no account matches.
// It is deliberately generic: callers must not reveal which field failed.
var ErrInvalidCredentials = errors.New("invalid email/phone number or password")

// ErrNotFound is returned when an update or delete targets a row id
// that does not exist in the active table.
var ErrNotFound = errors.New("record not found")

// ErrInsufficientStock is returned when a stock decrement asks for more
// units than the row holds.
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrBadTenant is returned when a pharmacy identifier fails validation
// before any query is built from it.
var ErrBadTenant = errors.New("invalid pharmacy identifier")

// ErrBadKind is returned when an inventory kind is neither "medicines"
// nor "general_items".
var ErrBadKind = errors.New("invalid inventory kind")
