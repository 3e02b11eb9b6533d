// Package config loads the agriroute YAML configuration.
//
// Load applies Default first, so a file only states what it changes.
// Durations are Go duration strings ("90s", "6h"). Upstream endpoints,
// headers and the redis password may hold ${VAR} or secretref:<provider>:<ref>
// values; Resolve replaces them through the secret package after loading.
//
// The configuration is read once at startup. Categories, rate budgets and
// classifier signals built from it are immutable afterwards.
package config
