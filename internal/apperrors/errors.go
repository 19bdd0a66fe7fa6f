// Package apperrors defines the sentinel errors shared across services.
//
// Services wrap these with fmt.Errorf("...: %w", err) to add context;
// callers classify with errors.Is.
package apperrors

import "errors"

// ErrNotFound indicates that a referenced movement, receivable or
// reconciliation record does not exist.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation before any
// persistence call was made.
var ErrValidation = errors.New("validation error")

// ErrInvalidTransition indicates an approve/reject on a record that is
// already approved or rejected.
var ErrInvalidTransition = errors.New("invalid state transition")

// ErrImportInProgress indicates that another reconciliation import batch
// is currently running.
var ErrImportInProgress = errors.New("import already in progress")
