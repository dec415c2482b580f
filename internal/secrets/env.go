package secrets

import (
	"context"
	"os"
	"strings"
)

// EnvResolver reads secrets from the process environment: env://NAME.
type EnvResolver struct{}

// Scheme returns "env".
func (r *EnvResolver) Scheme() string {
	return "env"
}

// Resolve returns the value of the named environment variable. An unset
// variable is a NotFoundError; a variable set to "" resolves to "".
func (r *EnvResolver) Resolve(_ context.Context, reference string) (string, error) {
	name := strings.TrimPrefix(reference, "env://")
	if name == "" || strings.ContainsAny(name, "/=") {
		return "", &InvalidReferenceError{Reference: reference, Reason: "expected env://NAME"}
	}
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", &NotFoundError{Reference: reference, Backend: "environment"}
	}
	return v, nil
}

func init() {
	Register(&EnvResolver{})
}
