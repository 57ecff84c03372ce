// Package sentinel names infrastructure outcomes that stores and clients
// return, optionally wrapped. Services map them onto domain-errors codes;
// input validation never uses them.
package sentinel

import "errors"

var (
	// ErrNotFound: the row or remote object does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict: a concurrent writer won a uniqueness claim, such as the
	// one open needs-adjudication ticket per import batch.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState: the entity exists but its status forbids the change.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnavailable: the database, Redis or the biometric engine could not be reached.
	ErrUnavailable = errors.New("unavailable")
	// ErrLocked: another worker holds the program run lock.
	ErrLocked = errors.New("locked")
)
