// Package cache is the two-tier result cache for upstream tool calls.
//
// Each tool family owns a Category with its own fallback capacity and TTL
// policy. A Manager looks entries up in an ordered list of tiers, a shared
// durable Store (Redis or SQLite) followed by the category's bounded
// in-process MemoryStore, and computes on a total miss:
//
//	m, err := cache.NewManager(categories, durable, cache.WithLogger(logger))
//	forecast, hit, err := cache.GetOrCompute(ctx, m, "weather", args, fetchForecast)
//
// Cache faults never fail a call. A durable error demotes the lookup to the
// fallback tier, an undecodable entry is deleted and treated as a miss, and
// write failures are logged and discarded.
package cache
