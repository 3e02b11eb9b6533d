// Package server exposes the orchestrator over HTTP.
//
// Routes:
//
//	POST /v1/query                          classify and dispatch, returns the envelope
//	POST /v1/classify                       classification only
//	GET  /v1/cache/{category}/stats         cache statistics
//	POST /v1/cache/{category}/invalidate    drop one entry from every tier
//	GET  /v1/limits                         rate-limit window statistics
//	GET  /healthz, /readyz, /health         health checks
//	GET  /metrics                           prometheus exposition
//
// A query whose body parses always gets 200 with a complete envelope, even
// when every category failed. Inbound traffic is bounded by a token bucket
// and excess requests get 429.
package server
