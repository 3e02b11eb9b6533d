// Package upstream provides HTTP tool adapters.
//
// An HTTPAdapter calls one JSON provider endpoint and maps its answers onto
// the envelope error taxonomy: 400 and 422 are validation errors, 404, 204
// and empty bodies are missing data, and 429, 5xx and transport failures are
// upstream errors. Rate limiting, retries and caching are applied around the
// adapter by the orchestrator, never inside it.
package upstream
