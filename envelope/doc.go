// Package envelope defines the caller-facing result of a routed query.
//
// Every tool invocation ends in exactly one outcome: a value, or one of the
// error types in the taxonomy (validation_error, data_missing,
// upstream_error, timeout, unknown_error). A Builder collects outcomes as
// invocations complete and produces one Envelope. Building never fails; a
// total outage yields success=false with one itemized error per category.
package envelope
