package config

import (
	"context"
	"fmt"

	"github.com/jonwraymond/agriroute/secret"
)

// SecretResolver builds a strict resolver from the declared providers.
// With none declared, the env and file providers are registered with their
// defaults.
func (c *Config) SecretResolver(reg *secret.Registry) (*secret.Resolver, error) {
	if reg == nil {
		reg = secret.NewDefaultRegistry()
	}
	decls := c.Secrets
	if len(decls) == 0 {
		decls = []SecretConfig{{Kind: "env"}, {Kind: "file"}}
	}

	resolver := secret.NewResolver(true)
	for _, d := range decls {
		p, err := reg.Create(d.Kind, d.Options)
		if err != nil {
			_ = resolver.Close()
			return nil, fmt.Errorf("secrets: %w", err)
		}
		resolver.Register(p)
	}
	return resolver, nil
}

// Resolve replaces secret references in place: the redis password and
// every upstream endpoint and header.
func (c *Config) Resolve(ctx context.Context, r *secret.Resolver) error {
	var err error
	if c.Store.Redis.Password, err = r.ResolveValue(ctx, c.Store.Redis.Password); err != nil {
		return fmt.Errorf("store.redis.password: %w", err)
	}
	for i := range c.Upstreams {
		up := &c.Upstreams[i]
		if up.Endpoint, err = r.ResolveValue(ctx, up.Endpoint); err != nil {
			return fmt.Errorf("upstream %q endpoint: %w", up.Category, err)
		}
		if up.Headers, err = r.ResolveMap(ctx, up.Headers); err != nil {
			return fmt.Errorf("upstream %q headers: %w", up.Category, err)
		}
	}
	return nil
}
