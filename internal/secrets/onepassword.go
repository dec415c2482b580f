package secrets

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// OnePasswordResolver resolves op://Vault/Item/field references with the op CLI.
type OnePasswordResolver struct{}

// Scheme returns "op".
func (r *OnePasswordResolver) Scheme() string {
	return "op"
}

// Resolve runs `op read <reference>`.
func (r *OnePasswordResolver) Resolve(ctx context.Context, reference string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := exec.LookPath("op"); err != nil {
		return "", &BackendError{
			Backend: "1Password",
			Reason:  "op CLI not found in PATH",
			Fix:     "Install from https://1password.com/downloads/command-line/\nThen run: op signin",
			Cause:   err,
		}
	}

	cmd := exec.CommandContext(ctx, "op", "read", "--no-newline", reference)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", classifyOpError(stderr.String(), reference)
	}
	return strings.TrimRight(stdout.String(), "\r\n"), nil
}

// classifyOpError maps op CLI stderr to a NotFoundError or BackendError.
func classifyOpError(msg, reference string) error {
	switch {
	case strings.Contains(msg, "not currently signed in"), strings.Contains(msg, "not signed in"):
		return &BackendError{
			Backend:   "1Password",
			Reference: reference,
			Reason:    "not signed in",
			Fix:       "Run: eval $(op signin)\n\nOr for services, set OP_SERVICE_ACCOUNT_TOKEN.",
		}
	case strings.Contains(msg, "isn't an item"), strings.Contains(msg, "could not be found"):
		return &NotFoundError{Reference: reference, Backend: "1Password"}
	case strings.Contains(msg, "isn't a vault"):
		vault := strings.SplitN(strings.TrimPrefix(reference, "op://"), "/", 2)[0]
		return &BackendError{
			Backend:   "1Password",
			Reference: reference,
			Reason:    "vault not found or not accessible",
			Fix:       "Vault \"" + vault + "\" not found.\n\nList available vaults with: op vault list",
		}
	}
	return &BackendError{
		Backend:   "1Password",
		Reference: reference,
		Reason:    strings.TrimSpace(msg),
	}
}

func init() {
	Register(&OnePasswordResolver{})
}
