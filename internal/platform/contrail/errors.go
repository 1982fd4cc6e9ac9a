package contrail

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel errors returned (wrapped) by every API implementation.
var (
	ErrNotFound    = errors.New("object not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("controller unavailable")
)

// APIError describes a failed controller call.
type APIError struct {
	Op     string
	Kind   Kind
	UUID   string
	Status int
	Err    error
}

func (e *APIError) Error() string {
	target := string(e.Kind)
	if e.UUID != "" {
		target = fmt.Sprintf("%s %s", e.Kind, e.UUID)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: %v (status %d)", e.Op, target, e.Err, e.Status)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, target, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsNotFound checks if an error indicates the object does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if an error indicates a conflicting change.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsUnavailable checks if the controller could not be reached or refused service.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsTransient reports whether a later pass may succeed where this one failed.
// Conflicts, unavailability, deadlines and network timeouts are transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsConflict(err) || IsUnavailable(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
