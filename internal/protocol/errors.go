package protocol

import (
	"errors"
	"fmt"
)

const (
	// Validation.
	ErrBadRequest = "E_BAD_REQUEST"

	// Authorization.
	ErrNoPermission = "E_NO_PERMISSION"

	// Domain conflicts.
	ErrConflict = "E_CONFLICT"
	ErrLimit    = "E_LIMIT"
	ErrCooldown = "E_COOLDOWN"
	ErrNotFound = "E_NOT_FOUND"
	ErrNoFunds  = "E_NO_FUNDS"

	// Persistence / runtime.
	ErrTimeout  = "E_TIMEOUT"
	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:   {},
	ErrNoPermission: {},
	ErrConflict:     {},
	ErrLimit:        {},
	ErrCooldown:     {},
	ErrNotFound:     {},
	ErrNoFunds:      {},
	ErrTimeout:      {},
	ErrInternal:     {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// Error is a coded domain error. Key names the message template shown to the
// requesting player.
type Error struct {
	Code string
	Key  string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Key) }

func New(code, key string) *Error { return &Error{Code: code, Key: key} }

// CodeOf returns the code of the first *Error in err's chain, ErrInternal for
// any other non-nil error and "" for nil.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ErrInternal
}

// KeyOf returns the message key of err, falling back to "internal_error".
func KeyOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) && pe.Key != "" {
		return pe.Key
	}
	return "internal_error"
}

var (
	ErrTimedOut = New(ErrTimeout, "persistence_timeout")
)
