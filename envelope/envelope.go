package envelope

import "encoding/json"

// Envelope is the aggregate outcome of one routed query.
//
// Success is true when at least one invocation succeeded. Results always
// itemizes every dispatched category.
type Envelope struct {
	RequestID      string         `json:"request_id,omitempty"`
	Success        bool           `json:"success"`
	Results        []Result       `json:"results"`
	Classification Classification `json:"classification"`
	DurationMs     int64          `json:"duration_ms"`
}

// Result is the outcome for one category.
type Result struct {
	Category  string          `json:"category"`
	Success   bool            `json:"success"`
	Value     json.RawMessage `json:"value,omitempty"`
	ErrorType ErrorType       `json:"error_type,omitempty"`
	Message   string          `json:"message,omitempty"`
	Cached    bool            `json:"cached,omitempty"`
	LatencyMs int64           `json:"latency_ms"`
}

// Classification is the part of the query classification echoed to callers.
// Categories are the classifier's own; Fallback is set when none matched and
// the configured fallback categories were dispatched instead.
type Classification struct {
	Tier       string   `json:"tier"`
	Categories []string `json:"categories"`
	Verbosity  string   `json:"verbosity,omitempty"`
	Fallback   bool     `json:"fallback,omitempty"`
}

// Result returns the outcome recorded for category.
func (e *Envelope) Result(category string) (Result, bool) {
	for _, r := range e.Results {
		if r.Category == category {
			return r, true
		}
	}
	return Result{}, false
}

// Errors returns the failed results.
func (e *Envelope) Errors() []Result {
	var out []Result
	for _, r := range e.Results {
		if !r.Success {
			out = append(out, r)
		}
	}
	return out
}

// Values returns the successful values keyed by category.
func (e *Envelope) Values() map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(e.Results))
	for _, r := range e.Results {
		if r.Success {
			out[r.Category] = r.Value
		}
	}
	return out
}
