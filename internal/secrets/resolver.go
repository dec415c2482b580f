// Package secrets resolves secret references used by validator definitions.
//
// A reference is a URI whose scheme selects the backend, for example
// env://SVC_API_KEY, op://Vault/Item/field, awssm://us-east-1/svc/api#key or
// keyring://restpcv/svc-api-key. Resolved values are bound to placeholders
// once, when a validator is created.
package secrets

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Resolver resolves a secret reference to its plaintext value.
type Resolver interface {
	// Scheme returns the URI scheme this resolver handles (e.g., "op", "env").
	Scheme() string

	// Resolve fetches the secret value for the full reference URI.
	Resolve(ctx context.Context, reference string) (string, error)
}

// maxConcurrentResolves bounds parallel backend lookups in ResolveAll.
const maxConcurrentResolves = 4

var (
	resolvers = make(map[string]Resolver)
	mu        sync.RWMutex
)

// Register adds a resolver to the registry, replacing any resolver for the
// same scheme.
func Register(r Resolver) {
	mu.Lock()
	defer mu.Unlock()
	resolvers[r.Scheme()] = r
}

// Schemes returns the registered schemes in sorted order.
func Schemes() []string {
	mu.RLock()
	defer mu.RUnlock()
	return slices.Sorted(maps.Keys(resolvers))
}

// Resolve dispatches to the appropriate resolver based on URI scheme.
func Resolve(ctx context.Context, reference string) (string, error) {
	scheme := parseScheme(reference)
	if scheme == "" {
		return "", &InvalidReferenceError{Reference: reference, Reason: "missing scheme"}
	}

	mu.RLock()
	r, ok := resolvers[scheme]
	mu.RUnlock()

	if !ok {
		return "", &UnsupportedSchemeError{Scheme: scheme, Supported: Schemes()}
	}

	return r.Resolve(ctx, reference)
}

// ResolveAll resolves every reference in refs, keyed by binding name.
// The first failure cancels the remaining lookups.
func ResolveAll(ctx context.Context, refs map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(refs))
	var outMu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentResolves)
	for name, ref := range refs {
		g.Go(func() error {
			v, err := Resolve(ctx, ref)
			if err != nil {
				return fmt.Errorf("resolving secret %q: %w", name, err)
			}
			outMu.Lock()
			out[name] = v
			outMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// parseScheme extracts the scheme from a URI (e.g., "op" from "op://vault/item").
func parseScheme(ref string) string {
	idx := strings.Index(ref, "://")
	if idx < 1 {
		return ""
	}
	return ref[:idx]
}
