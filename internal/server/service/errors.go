package service

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Sentinel errors for the service layer.
var (
	ErrUnauthorized       = errors.New("authentication required")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotFound           = errors.New("not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
)

// ValidationError reports a bad request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

// UpstreamError wraps a failure of the object store or credential store.
// ID correlates the client-facing response with the server log entry.
type UpstreamError struct {
	Op  string
	ID  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s failed (error id %s): %v", e.Op, e.ID, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// upstream logs err under a fresh error ID and wraps it.
func upstream(op string, err error, attrs ...any) *UpstreamError {
	id := uuid.NewString()
	slog.Error("upstream operation failed",
		append([]any{"op", op, "error_id", id, "error", err}, attrs...)...)
	return &UpstreamError{Op: op, ID: id, Err: err}
}
