package domain

import (
	"errors"
	"fmt"
)

var ErrInvalidIdentity = errors.New("invalid identity")

const (
	minIdentityLen = 3
	maxIdentityLen = 90
)

// ValidationError reports a malformed identity.
type ValidationError struct {
	Identity string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid identity %q: %s", e.Identity, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidIdentity }

// ValidateIdentity accepts normalized identities: 3 to 90 characters of
// lowercase letters, digits, '-' and '_'.
func ValidateIdentity(id string) error {
	if len(id) < minIdentityLen {
		return &ValidationError{Identity: id, Reason: "too short"}
	}
	if len(id) > maxIdentityLen {
		return &ValidationError{Identity: id, Reason: "too long"}
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		case r >= 'A' && r <= 'Z':
			return &ValidationError{Identity: id, Reason: "not normalized"}
		default:
			return &ValidationError{Identity: id, Reason: fmt.Sprintf("invalid character %q", r)}
		}
	}
	return nil
}
