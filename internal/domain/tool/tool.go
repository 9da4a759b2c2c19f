// Package tool defines capability invocation requests and results.
package tool

import "encoding/json"

// Outcome classifies how a single capability invocation ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeTimeout Outcome = "timeout"
	OutcomeFailure Outcome = "failure"
)

// CallRequest names one external capability to invoke. Requests are
// ephemeral; they exist only while a stage executes.
type CallRequest struct {
	Tool string            `json:"tool"`
	Args map[string]string `json:"args,omitempty"`
}

// CallResult is the recorded outcome of one capability invocation.
// Appended to the owning turn and never mutated afterwards.
type CallResult struct {
	Tool       string          `json:"tool"`
	Args       map[string]string `json:"args,omitempty"`
	Outcome    Outcome         `json:"outcome"`
	Value      json.RawMessage `json:"value,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	DurationMS int64           `json:"duration_ms"`
	Retried    bool            `json:"retried,omitempty"`
}

// OK reports whether the call reached a success outcome.
func (r CallResult) OK() bool {
	return r.Outcome == OutcomeSuccess
}
