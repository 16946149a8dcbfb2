package resource

import (
	"errors"
	"time"
)

// State is the provisioning state of a single result.
type State string

const (
	StatePending   State = "Pending"
	StateSucceeded State = "Succeeded"
	StateFailed    State = "Failed"
	StateSkipped   State = "Skipped"
)

// IsTerminal returns true once the result can no longer change.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateSkipped
}

// ErrAlreadyFinalized is returned when a result is finalized twice.
var ErrAlreadyFinalized = errors.New("provisioning result already finalized")

// ProvisioningResult records the outcome of one descriptor within a step.
type ProvisioningResult struct {
	Step       string     `json:"step"`
	Descriptor Descriptor `json:"-"`
	Key        string     `json:"key"`
	ResourceID string     `json:"resourceId,omitempty"`
	State      State      `json:"state"`
	Error      *Signature `json:"error,omitempty"`
	Attempts   int        `json:"attempts"`
	Created    bool       `json:"created"`
	Warning    string     `json:"warning,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt time.Time  `json:"finishedAt,omitempty"`
}

// NewPendingResult starts a result for the descriptor.
func NewPendingResult(step string, d Descriptor, now time.Time) ProvisioningResult {
	return ProvisioningResult{
		Step:       step,
		Descriptor: d,
		Key:        d.Key(),
		State:      StatePending,
		StartedAt:  now,
	}
}

// Succeed finalizes the result as Succeeded.
func (r *ProvisioningResult) Succeed(id string, created bool, attempts int, now time.Time) error {
	if r.State.IsTerminal() {
		return ErrAlreadyFinalized
	}
	r.State = StateSucceeded
	r.ResourceID = id
	r.Created = created
	r.Attempts = attempts
	r.FinishedAt = now
	return nil
}

// Fail finalizes the result as Failed with a structured signature.
func (r *ProvisioningResult) Fail(err error, attempts int, now time.Time) error {
	if r.State.IsTerminal() {
		return ErrAlreadyFinalized
	}
	r.State = StateFailed
	r.Error = SignatureOf(err)
	r.Attempts = attempts
	r.FinishedAt = now
	return nil
}

// Skip finalizes the result as Skipped with a warning.
func (r *ProvisioningResult) Skip(warning string, now time.Time) error {
	if r.State.IsTerminal() {
		return ErrAlreadyFinalized
	}
	r.State = StateSkipped
	r.Warning = warning
	r.FinishedAt = now
	return nil
}

// Duration returns how long the result took.
func (r ProvisioningResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
