package main

import (
	"errors"
	"fmt"
)

// exitError carries the process exit code a failure should produce, per
// spec §6: 0 success, 1 user error (bad query, bad path), 2 internal error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// userErrorf wraps a caller-facing mistake (bad query syntax, missing file,
// unknown flag value) as exit code 1.
func userErrorf(format string, args ...interface{}) error {
	return &exitError{code: 1, err: fmt.Errorf(format, args...)}
}

// internalError wraps a failure in ummon's own machinery (store, graph,
// LLM transport) as exit code 2.
func internalError(err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: 2, err: err}
}

// exitCodeFor maps an error to a process exit code, defaulting unrecognized
// errors to 2 rather than silently succeeding.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 2
}
