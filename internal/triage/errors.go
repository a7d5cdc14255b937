package triage

import "errors"

// ErrNotFound is returned when an update or lookup targets an unknown alert id.
var ErrNotFound = errors.New("alert not found")

// PersistenceError wraps a store failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// wrapStoreErr leaves ErrNotFound untouched so callers can still match it.
func wrapStoreErr(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
