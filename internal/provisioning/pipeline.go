package provisioning

import (
	"errors"
	"fmt"
	"time"

	"github.com/imamik/azhpc/internal/resource"
	"github.com/imamik/azhpc/internal/util/retry"
)

// State is a pipeline state. Each step moves the pipeline into its state.
type State string

const (
	StateNotStarted         State = "NotStarted"
	StateResourceGroupReady State = "ResourceGroupReady"
	StateIdentityReady      State = "IdentityReady"
	StateNetworkReady       State = "NetworkReady"
	StateStorageReady       State = "StorageReady"
	StateRoleAssigned       State = "RoleAssigned"
	StateCertificateStaged  State = "CertificateStaged"
	StateClusterDeployed    State = "ClusterDeployed"
	StateDone               State = "Done"
	StateFailed             State = "Failed"
)

// Outcome is what a step reports back to the pipeline.
type Outcome struct {
	State   resource.State
	Warning string
	Err     error
}

// Succeeded returns a successful outcome.
func Succeeded() Outcome {
	return Outcome{State: resource.StateSucceeded}
}

// Skipped returns a skipped outcome with a warning.
func Skipped(warning string) Outcome {
	return Outcome{State: resource.StateSkipped, Warning: warning}
}

// Failed returns a failed outcome.
func Failed(err error) Outcome {
	return Outcome{State: resource.StateFailed, Err: err}
}

// FromError returns Succeeded for a nil error and Failed otherwise.
func FromError(err error) Outcome {
	if err != nil {
		return Failed(err)
	}
	return Succeeded()
}

// Step is one pipeline stage.
type Step struct {
	// State is entered when the step succeeds or is skipped.
	State       State
	Description string

	// DependsOn lists the states this step needs. A step whose dependency
	// was skipped is skipped as well.
	DependsOn []State

	// Optional steps degrade failures to Skipped. Quota errors still abort.
	Optional bool

	Run func(rc *RunContext) Outcome
}

// Name returns the step name used in results.
func (s Step) Name() string {
	return string(s.State)
}

// StepError reports the step that stopped a run.
type StepError struct {
	Step      State
	Signature resource.Signature
	Attempts  int
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed after %d attempt(s): %s", e.Step, e.Attempts, e.Signature)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Report is the outcome of a pipeline run.
type Report struct {
	RunID string `json:"runId"`

	// Terminal is Done or Failed.
	Terminal State `json:"terminal"`
	// Reached is the last state the pipeline moved into.
	Reached    State `json:"reached"`
	FailedStep State `json:"failedStep,omitempty"`
	// Aborted is set when the run stopped without evaluating later steps.
	Aborted bool `json:"aborted,omitempty"`

	Steps   []StepRecord                  `json:"steps"`
	Results []resource.ProvisioningResult `json:"results"`
}

// StepState returns the recorded state of a step, or "" when it never ran.
func (r *Report) StepState(s State) resource.State {
	for i := len(r.Steps) - 1; i >= 0; i-- {
		if r.Steps[i].Step == string(s) {
			return r.Steps[i].State
		}
	}
	return ""
}

// Succeeded reports whether the run reached Done.
func (r *Report) Succeeded() bool {
	return r.Terminal == StateDone
}

// Pipeline runs steps strictly in order.
type Pipeline struct {
	Steps []Step
}

// NewPipeline creates a pipeline from steps.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{Steps: steps}
}

// Validate checks every step has a unique state and depends only on
// earlier steps.
func (p *Pipeline) Validate() error {
	seen := make(map[State]bool, len(p.Steps))
	for _, s := range p.Steps {
		if s.State == "" || s.Run == nil {
			return fmt.Errorf("step %q is incomplete", s.State)
		}
		if seen[s.State] {
			return fmt.Errorf("duplicate step %s", s.State)
		}
		for _, dep := range s.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("step %s depends on %s, which does not run before it", s.State, dep)
			}
		}
		seen[s.State] = true
	}
	return nil
}

// Run executes the steps. It returns the report and, when a step failed,
// a *StepError. Failures stop the run: later steps are recorded as Skipped,
// unless the failure was a quota error, which aborts without evaluating them.
func (p *Pipeline) Run(rc *RunContext) (*Report, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	rc.Observer.Printf("Starting provisioning with %d steps...", len(p.Steps))
	return p.run(rc, p.Steps, StateNotStarted)
}

// Resume runs the steps that follow after on rc. The history of rc must
// already hold a successful record for after, either from an earlier run
// or from Complete.
func (p *Pipeline) Resume(rc *RunContext, after State) (*Report, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if rec, ok := rc.History.Step(string(after)); !ok || rec.State != resource.StateSucceeded {
		return nil, fmt.Errorf("cannot resume after %s: step has not succeeded", after)
	}
	i, err := p.index(after)
	if err != nil {
		return nil, err
	}
	rest := p.Steps[i+1:]
	rc.Observer.Printf("Resuming provisioning after %s with %d steps...", after, len(rest))
	return p.run(rc, rest, after)
}

// Complete records a step as succeeded without running it. It is used when
// the work of a failed step was done out of band.
func (p *Pipeline) Complete(rc *RunContext, state State, started time.Time) error {
	i, err := p.index(state)
	if err != nil {
		return err
	}
	p.record(rc, p.Steps[i], Succeeded(), started)
	return nil
}

func (p *Pipeline) index(state State) (int, error) {
	for i, s := range p.Steps {
		if s.State == state {
			return i, nil
		}
	}
	return -1, fmt.Errorf("step %s is not part of the pipeline", state)
}

func (p *Pipeline) run(rc *RunContext, steps []Step, reached State) (*Report, error) {
	report := &Report{RunID: rc.RunID, Reached: reached}
	start := rc.Now()

	var stepErr *StepError
	for i, step := range steps {
		if stepErr != nil {
			p.record(rc, step, Skipped(fmt.Sprintf("not run: %s failed", stepErr.Step)), rc.Now())
			continue
		}

		if err := rc.Err(); err != nil {
			report.Aborted = true
			stepErr = &StepError{Step: step.State, Signature: *resource.SignatureOf(err), Err: err}
			p.record(rc, step, Failed(err), rc.Now())
			for _, rest := range steps[i+1:] {
				p.record(rc, rest, Skipped("not run: cancelled"), rc.Now())
			}
			break
		}

		if dep, ok := skippedDependency(rc.History, step); ok {
			p.record(rc, step, Skipped(fmt.Sprintf("dependency %s skipped", dep)), rc.Now())
			report.Reached = step.State
			continue
		}

		rc.step = step.Name()
		stepStart := rc.Now()
		LogStepStart(rc.Observer, step.Name())

		outcome := step.Run(rc)
		if outcome.State == "" {
			outcome = FromError(outcome.Err)
		}
		if outcome.State == resource.StateFailed && outcome.Err == nil {
			outcome.Err = fmt.Errorf("step %s failed", step.State)
		}
		if outcome.State == resource.StateFailed && step.Optional && !isQuota(outcome.Err) {
			outcome = Skipped(fmt.Sprintf("optional step failed: %s", resource.SignatureOf(outcome.Err)))
		}

		rec := p.record(rc, step, outcome, stepStart)
		rc.step = ""

		if outcome.State == resource.StateFailed {
			stepErr = &StepError{
				Step:      step.State,
				Signature: *rec.Error,
				Attempts:  rec.Attempts,
				Err:       outcome.Err,
			}
			if isQuota(outcome.Err) {
				report.Aborted = true
				break
			}
			continue
		}
		report.Reached = step.State
	}

	report.Steps = rc.History.Steps()
	report.Results = rc.History.Results()
	if stepErr != nil {
		report.Terminal = StateFailed
		report.FailedStep = stepErr.Step
		rc.Observer.Printf("Provisioning failed at %s after %v", stepErr.Step, rc.Now().Sub(start))
		return report, stepErr
	}

	report.Terminal = StateDone
	report.Reached = StateDone
	rc.Observer.Printf("Provisioning completed in %v", rc.Now().Sub(start))
	return report, nil
}

// record finalizes a step outcome into the history and emits its event.
func (p *Pipeline) record(rc *RunContext, step Step, outcome Outcome, started time.Time) StepRecord {
	now := rc.Now()
	rec := StepRecord{
		Step:       step.Name(),
		State:      outcome.State,
		Warning:    outcome.Warning,
		StartedAt:  started,
		FinishedAt: now,
	}
	switch outcome.State {
	case resource.StateFailed:
		rec.Error = resource.SignatureOf(outcome.Err)
		rec.Attempts = attemptsOf(rc.History, step.Name(), outcome.Err)
		LogStepFailed(rc.Observer, step.Name(), outcome.Err)
	case resource.StateSkipped:
		LogStepSkipped(rc.Observer, step.Name(), outcome.Warning)
	default:
		LogStepComplete(rc.Observer, step.Name(), now.Sub(started))
	}
	rc.History.AppendStep(rec)
	rc.Metrics.RecordStep(step.Name(), outcome.State, now.Sub(started).Seconds())
	return rec
}

// skippedDependency returns the first dependency of step that was skipped.
func skippedDependency(h *History, step Step) (State, bool) {
	for _, dep := range step.DependsOn {
		if rec, ok := h.Step(string(dep)); ok && rec.State == resource.StateSkipped {
			return dep, true
		}
	}
	return "", false
}

// attemptsOf prefers the attempt count of the step's last failed result.
func attemptsOf(h *History, step string, err error) int {
	if r, ok := h.LastFailure(step); ok && r.Attempts > 0 {
		return r.Attempts
	}
	var ex *retry.ExhaustedError
	if errors.As(err, &ex) {
		return ex.Attempts
	}
	return 1
}

func isQuota(err error) bool {
	return resource.CodeOf(err).Category() == resource.CategoryQuotaExceeded
}
