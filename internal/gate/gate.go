// Package gate implements the confidence gate: the deterministic,
// side-effect-free decision point between conversation stages.
package gate

import "github.com/parleyhq/parley/internal/domain/session"

// Thresholds maps stages to minimum acceptable confidence. The whole value
// is swapped atomically on operator updates; a single turn always observes
// one consistent snapshot.
type Thresholds struct {
	// Stages holds the primary confidence floor per stage. A stage with no
	// entry always proceeds.
	Stages map[session.Stage]float64 `json:"stages" yaml:"stages"`

	// Corroboration holds the secondary-signal floor for critical stages.
	Corroboration map[session.Stage]float64 `json:"corroboration" yaml:"corroboration"`

	// Critical lists stages that require the corroborating signal in
	// addition to the primary confidence.
	Critical []session.Stage `json:"critical" yaml:"critical"`

	// RequireCorroboration controls whether a critical stage with an absent
	// corroborating signal fails the gate. The source policy is ambiguous,
	// so it is configuration rather than hard-coded.
	RequireCorroboration bool `json:"require_corroboration" yaml:"require_corroboration"`
}

// IsCritical reports whether the stage carries the secondary-signal floor.
func (t *Thresholds) IsCritical(stage session.Stage) bool {
	for _, s := range t.Critical {
		if s == stage {
			return true
		}
	}
	return false
}

// Decide maps (stage, confidence, corroboration) to proceed or escalate.
//
// Rules:
//   - no configured threshold for the stage: proceed
//   - confidence below the stage threshold: escalate
//   - critical stage: the corroborating signal must independently clear its
//     own floor; a nil signal escalates iff RequireCorroboration is set
func Decide(t *Thresholds, stage session.Stage, confidence float64, corroboration *float64) session.GateDecision {
	min, ok := t.Stages[stage]
	if !ok {
		return session.DecisionProceed
	}
	if confidence < min {
		return session.DecisionEscalate
	}

	if !t.IsCritical(stage) {
		return session.DecisionProceed
	}

	if corroboration == nil {
		if t.RequireCorroboration {
			return session.DecisionEscalate
		}
		return session.DecisionProceed
	}

	floor, ok := t.Corroboration[stage]
	if !ok {
		floor = min
	}
	if *corroboration < floor {
		return session.DecisionEscalate
	}
	return session.DecisionProceed
}

// Clone returns a deep copy, used when building a swapped-in replacement.
func (t *Thresholds) Clone() *Thresholds {
	c := &Thresholds{
		Stages:               make(map[session.Stage]float64, len(t.Stages)),
		Corroboration:        make(map[session.Stage]float64, len(t.Corroboration)),
		Critical:             append([]session.Stage(nil), t.Critical...),
		RequireCorroboration: t.RequireCorroboration,
	}
	for k, v := range t.Stages {
		c.Stages[k] = v
	}
	for k, v := range t.Corroboration {
		c.Corroboration[k] = v
	}
	return c
}
