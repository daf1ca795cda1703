package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

var (
	// ErrRetentionExceeded is returned when a window predates every configured log store.
	ErrRetentionExceeded = errors.New("window older than retention ceiling")
	// ErrNoEvidence is returned when every evidence branch came back empty.
	ErrNoEvidence = errors.New("no evidence found")
	// ErrAmbiguous marks lookups that matched zero or several candidates.
	ErrAmbiguous = errors.New("ambiguous match")
	// ErrNotConfigured marks capabilities with no backing client.
	ErrNotConfigured = errors.New("capability not configured")
)

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// TransientError marks a backend failure worth retrying.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err so IsTransient reports true. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is a retryable backend failure.
// Context cancellation and deadline expiry are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// KindOf maps an error onto the surfaced error kind.
func KindOf(err error) models.ErrorKind {
	var marker models.Marker
	switch {
	case err == nil:
		return ""
	case errors.As(err, &marker):
		return marker.Kind
	case errors.Is(err, ErrRetentionExceeded):
		return models.KindRetentionExceeded
	case errors.Is(err, ErrNoEvidence):
		return models.KindNoEvidenceFound
	case errors.Is(err, ErrAmbiguous):
		return models.KindResolutionAmbiguous
	case errors.Is(err, context.DeadlineExceeded):
		return models.KindDeadlineExceeded
	default:
		return models.KindSourceUnavailable
	}
}

// MarkerFor builds a marker for err using KindOf.
func MarkerFor(stage, scope string, err error) models.Marker {
	return models.Marker{Kind: KindOf(err), Stage: stage, Scope: scope, Message: err.Error()}
}
