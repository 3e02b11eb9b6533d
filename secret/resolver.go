package secret

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"sync"
	"unicode"
)

// RefPrefix marks a secret reference.
const RefPrefix = "secretref:"

// Ref names one secret held by a provider.
type Ref struct {
	Provider string
	Name     string
}

// String returns the reference in secretref:<provider>:<name> form.
func (r Ref) String() string {
	return RefPrefix + r.Provider + ":" + r.Name
}

// ParseRef parses a value that is exactly one reference. Names may not
// contain whitespace.
func ParseRef(value string) (Ref, bool) {
	rest, ok := strings.CutPrefix(value, RefPrefix)
	if !ok {
		return Ref{}, false
	}
	provider, name, ok := strings.Cut(rest, ":")
	if !ok || provider == "" || name == "" || strings.ContainsFunc(name, unicode.IsSpace) {
		return Ref{}, false
	}
	return Ref{Provider: provider, Name: name}, true
}

var inlineRefPattern = regexp.MustCompile(`secretref:([^:\s]+):(\S+)`)

// FindRefs returns every reference embedded in value, in order.
func FindRefs(value string) []Ref {
	var refs []Ref
	for _, m := range inlineRefPattern.FindAllStringSubmatch(value, -1) {
		refs = append(refs, Ref{Provider: m[1], Name: m[2]})
	}
	return refs
}

// Resolver expands ${VAR} and resolves secret references through its
// providers. Each reference is fetched once and memoized, so an API key
// shared by several upstreams is read a single time.
//
// Contract:
// - Concurrency: safe for concurrent use after registration.
// - Errors: wrap ErrMissingEnv, ErrProviderNotFound, ErrInvalidRef,
// ErrEmptySecret or the provider's error.
type Resolver struct {
	strict    bool
	providers map[string]Provider

	mu       sync.Mutex
	resolved map[Ref]string
}

// NewResolver creates a resolver. A strict resolver rejects empty values.
func NewResolver(strict bool, providers ...Provider) *Resolver {
	r := &Resolver{
		strict:    strict,
		providers: make(map[string]Provider, len(providers)),
		resolved:  make(map[Ref]string),
	}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a provider under its Name.
func (r *Resolver) Register(p Provider) {
	if r == nil || p == nil {
		return
	}
	r.providers[p.Name()] = p
}

// Providers returns the registered provider names, sorted.
func (r *Resolver) Providers() []string {
	if r == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(r.providers))
}

// ResolveValue expands environment variables, then replaces every secret
// reference in value. A nil Resolver only expands environment variables.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	expanded, err := ExpandEnvStrict(value)
	if err != nil || r == nil {
		return expanded, err
	}
	if ref, ok := ParseRef(expanded); ok {
		return r.lookup(ctx, ref)
	}

	var firstErr error
	out := inlineRefPattern.ReplaceAllStringFunc(expanded, func(m string) string {
		if firstErr != nil {
			return m
		}
		ref, _ := ParseRef(m)
		v, err := r.lookup(ctx, ref)
		if err != nil {
			firstErr = err
			return m
		}
		return v
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// ResolveSlice resolves each element of values.
func (r *Resolver) ResolveSlice(ctx context.Context, values []string) ([]string, error) {
	out := make([]string, len(values))
	for i, v := range values {
		resolved, err := r.ResolveValue(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = resolved
	}
	return out, nil
}

// ResolveMap resolves each value of input. A nil map stays nil.
func (r *Resolver) ResolveMap(ctx context.Context, input map[string]string) (map[string]string, error) {
	if input == nil {
		return nil, nil
	}
	out := make(map[string]string, len(input))
	for _, k := range slices.Sorted(maps.Keys(input)) {
		resolved, err := r.ResolveValue(ctx, input[k])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = resolved
	}
	return out, nil
}

func (r *Resolver) lookup(ctx context.Context, ref Ref) (string, error) {
	if strings.TrimSpace(ref.Provider) == "" || strings.TrimSpace(ref.Name) == "" {
		return "", fmt.Errorf("%w: provider and name are required", ErrInvalidRef)
	}

	r.mu.Lock()
	v, ok := r.resolved[ref]
	r.mu.Unlock()
	if ok {
		return v, nil
	}

	p, ok := r.providers[ref.Provider]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrProviderNotFound, ref.Provider)
	}
	v, err := p.Resolve(ctx, ref.Name)
	if err != nil {
		return "", fmt.Errorf("%s: %w", ref, err)
	}
	if r.strict && v == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptySecret, ref)
	}

	r.mu.Lock()
	r.resolved[ref] = v
	r.mu.Unlock()
	return v, nil
}

// Close closes every provider and forgets memoized values.
func (r *Resolver) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	clear(r.resolved)
	r.mu.Unlock()

	var errs []error
	for _, name := range r.Providers() {
		if err := r.providers[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
