package secrets

import (
	"context"
	"errors"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringResolver reads secrets from the OS keychain:
// keyring://service/account.
type KeyringResolver struct{}

// Scheme returns "keyring".
func (r *KeyringResolver) Scheme() string {
	return "keyring"
}

// Resolve looks up the password stored for service and account.
func (r *KeyringResolver) Resolve(ctx context.Context, reference string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	service, account, ok := strings.Cut(strings.TrimPrefix(reference, "keyring://"), "/")
	if !ok || service == "" || account == "" {
		return "", &InvalidReferenceError{Reference: reference, Reason: "expected keyring://service/account"}
	}

	v, err := keyring.Get(service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", &NotFoundError{Reference: reference, Backend: "keyring"}
	}
	if err != nil {
		return "", &BackendError{
			Backend:   "keyring",
			Reference: reference,
			Reason:    err.Error(),
			Fix:       "On Linux, make sure a Secret Service provider (gnome-keyring, kwallet) is running.",
			Cause:     err,
		}
	}
	return v, nil
}

func init() {
	Register(&KeyringResolver{})
}
