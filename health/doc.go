// Package health reports whether the routing layer can serve queries.
//
// A Checker reports one component as Healthy, Degraded or Unhealthy. The
// checkers in this package cover the moving parts of the routing layer:
//
//   - StoreChecker pings the durable cache tier. A failed ping is Degraded,
//     not Unhealthy, because the in-process fallback tier keeps serving.
//   - FallbackChecker reports occupancy and evictions of every category's
//     fallback tier.
//   - LimiterChecker reports upstream operations whose sliding window is at
//     full budget.
//   - BreakerChecker reports upstream providers whose circuit is open.
//
// An Aggregator runs registered checkers in parallel under one deadline.
//
// # HTTP Endpoints
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg)
//
// registers /healthz (liveness), /readyz (readiness) and /health (details).
package health
