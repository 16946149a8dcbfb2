package provisioning

import (
	"errors"
	"time"

	"github.com/imamik/azhpc/internal/resource"
)

// ErrPendingResult is returned when a result is appended before it is finalized.
var ErrPendingResult = errors.New("history only records finalized results")

// StepRecord is the outcome of one pipeline step.
type StepRecord struct {
	Step       string              `json:"step"`
	State      resource.State      `json:"state"`
	Warning    string              `json:"warning,omitempty"`
	Error      *resource.Signature `json:"error,omitempty"`
	Attempts   int                 `json:"attempts,omitempty"`
	StartedAt  time.Time           `json:"startedAt"`
	FinishedAt time.Time           `json:"finishedAt"`
}

// History is the append-only record of a run. It is owned by a single
// writer (the pipeline) and is the only state carried between steps.
type History struct {
	results []resource.ProvisioningResult
	steps   []StepRecord
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Append records a finalized result.
func (h *History) Append(r resource.ProvisioningResult) error {
	if !r.State.IsTerminal() {
		return ErrPendingResult
	}
	h.results = append(h.results, r)
	return nil
}

// AppendStep records a step outcome.
func (h *History) AppendStep(s StepRecord) {
	h.steps = append(h.steps, s)
}

// Results returns every recorded result in order.
func (h *History) Results() []resource.ProvisioningResult {
	if h == nil {
		return nil
	}
	return append([]resource.ProvisioningResult(nil), h.results...)
}

// Steps returns every step outcome in order.
func (h *History) Steps() []StepRecord {
	if h == nil {
		return nil
	}
	return append([]StepRecord(nil), h.steps...)
}

// ForStep returns the results recorded by a step.
func (h *History) ForStep(step string) []resource.ProvisioningResult {
	if h == nil {
		return nil
	}
	var out []resource.ProvisioningResult
	for _, r := range h.results {
		if r.Step == step {
			out = append(out, r)
		}
	}
	return out
}

// Step returns the latest outcome of a step.
func (h *History) Step(step string) (StepRecord, bool) {
	if h == nil {
		return StepRecord{}, false
	}
	for i := len(h.steps) - 1; i >= 0; i-- {
		if h.steps[i].Step == step {
			return h.steps[i], true
		}
	}
	return StepRecord{}, false
}

// LastFailure returns the latest failed result of a step.
func (h *History) LastFailure(step string) (resource.ProvisioningResult, bool) {
	if h == nil {
		return resource.ProvisioningResult{}, false
	}
	for i := len(h.results) - 1; i >= 0; i-- {
		r := h.results[i]
		if r.Step == step && r.State == resource.StateFailed {
			return r, true
		}
	}
	return resource.ProvisioningResult{}, false
}

// Find returns the latest result for a descriptor key.
func (h *History) Find(key string) (resource.ProvisioningResult, bool) {
	if h == nil {
		return resource.ProvisioningResult{}, false
	}
	for i := len(h.results) - 1; i >= 0; i-- {
		if h.results[i].Key == key {
			return h.results[i], true
		}
	}
	return resource.ProvisioningResult{}, false
}

// Created returns the keys of resources created during the run.
func (h *History) Created() []string {
	if h == nil {
		return nil
	}
	var out []string
	for _, r := range h.results {
		if r.Created {
			out = append(out, r.Key)
		}
	}
	return out
}
