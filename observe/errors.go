package observe

import (
	"errors"
	"strings"

	"github.com/jonwraymond/agriroute/observe/exporters"
)

var (
	// ErrMissingServiceName is returned when Config.ServiceName is empty.
	ErrMissingServiceName = errors.New("observe: service name is required")

	// ErrInvalidSamplePct is returned when Tracing.SamplePct is outside [0, 1].
	ErrInvalidSamplePct = errors.New("observe: sample percentage out of range")

	// ErrInvalidTracingExporter is returned for an unknown tracing exporter.
	ErrInvalidTracingExporter = errors.New("observe: unknown tracing exporter")

	// ErrInvalidMetricsExporter is returned for an unknown metrics exporter.
	ErrInvalidMetricsExporter = errors.New("observe: unknown metrics exporter")

	// ErrInvalidLogLevel is returned for an unknown log level.
	ErrInvalidLogLevel = errors.New("observe: unknown log level")

	// ErrInvalidLogFormat is returned for a log format other than json or console.
	ErrInvalidLogFormat = errors.New("observe: unknown log format")

	// ErrEndpointNotConfigured aliases the exporter error so callers need
	// not import the exporters package.
	ErrEndpointNotConfigured = exporters.ErrEndpointNotConfigured
)

// Accepted names for the exporter and level settings. The empty string
// selects the default.
var (
	ValidTracingExporters = []string{"", "none", "otlp", "stdout"}
	ValidMetricsExporters = []string{"", "none", "otlp", "prometheus", "stdout"}
	ValidLogLevels        = []string{"", "debug", "info", "warn", "error"}
)

// RedactedFields lists fragments of field keys whose values are replaced
// with [REDACTED]. Matching is case-insensitive and by substring, so
// "redis_password" and "X-Api-Key" are covered.
var RedactedFields = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"api-key",
	"apikey",
	"credential",
	"authorization",
}

func isRedactedField(key string) bool {
	k := strings.ToLower(key)
	for _, f := range RedactedFields {
		if strings.Contains(k, f) {
			return true
		}
	}
	return false
}
