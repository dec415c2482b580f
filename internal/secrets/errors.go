package secrets

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSecretNotFound matches every *NotFoundError with errors.Is, so callers
// can tell a missing secret apart from a backend that could not be reached.
var ErrSecretNotFound = errors.New("secret not found")

// UnsupportedSchemeError is returned for a reference whose scheme has no
// registered resolver, e.g. "vault://" in a validator definition.
type UnsupportedSchemeError struct {
	Scheme string
	// Supported lists the registered schemes, sorted.
	Supported []string
}

func (e *UnsupportedSchemeError) Error() string {
	if len(e.Supported) == 0 {
		return fmt.Sprintf("unsupported secret scheme %q", e.Scheme)
	}
	return fmt.Sprintf("unsupported secret scheme %q (supported: %s)", e.Scheme, strings.Join(e.Supported, ", "))
}

// InvalidReferenceError reports a reference that does not follow its
// scheme's syntax.
type InvalidReferenceError struct {
	Reference string
	Reason    string
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("invalid secret reference %q: %s", e.Reference, e.Reason)
}

// NotFoundError means the backend answered but holds no such secret.
type NotFoundError struct {
	Reference string
	Backend   string
}

func (e *NotFoundError) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("no secret at %s in %s", e.Reference, e.Backend)
	}
	return fmt.Sprintf("no secret at %s", e.Reference)
}

// Is reports whether target is ErrSecretNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrSecretNotFound }

// BackendError means the backend could not be asked: CLI missing, not
// signed in, access denied, keychain locked. Fix is a hint shown to the
// operator running the validator.
type BackendError struct {
	Backend   string
	Reference string
	Reason    string
	Fix       string
	Cause     error
}

func (e *BackendError) Error() string {
	reason := e.Reason
	if reason == "" && e.Cause != nil {
		reason = e.Cause.Error()
	}
	msg := fmt.Sprintf("%s: %s", e.Backend, reason)
	if e.Fix != "" {
		msg += "\n\n  " + e.Fix
	}
	return msg
}

func (e *BackendError) Unwrap() error { return e.Cause }
