package provisioning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/azhpc/internal/platform/azure"
	"github.com/imamik/azhpc/internal/resource"
	testutil "github.com/imamik/azhpc/internal/testing"
)

func newRunContext(t *testing.T, ctx context.Context, cloud azure.CloudClient) (*RunContext, *RecordingObserver) {
	t.Helper()
	observer := NewRecordingObserver()
	sleeper := &testutil.RecordingSleeper{}
	cfg := testutil.NewConfigBuilder().WithFastRetry(3).Build()
	rc := NewRunContext(ctx, cfg, cloud,
		WithObserver(observer),
		WithExecutor(sleeper.Executor()),
		WithMetrics(NewMetrics()),
		WithClock(testutil.Clock(testutil.FixedNow)),
		WithRunID("run-1"),
	)
	return rc, observer
}

func stepFunc(state State, outcome Outcome, deps ...State) Step {
	return Step{State: state, DependsOn: deps, Run: func(*RunContext) Outcome { return outcome }}
}

func TestPipeline_Validate(t *testing.T) {
	t.Parallel()
	ok := func(*RunContext) Outcome { return Succeeded() }
	tests := []struct {
		name    string
		steps   []Step
		wantErr string
	}{
		{name: "ordered", steps: []Step{{State: StateResourceGroupReady, Run: ok}, {State: StateIdentityReady, DependsOn: []State{StateResourceGroupReady}, Run: ok}}},
		{name: "duplicate", steps: []Step{{State: StateResourceGroupReady, Run: ok}, {State: StateResourceGroupReady, Run: ok}}, wantErr: "duplicate step"},
		{name: "forward dependency", steps: []Step{{State: StateIdentityReady, DependsOn: []State{StateResourceGroupReady}, Run: ok}, {State: StateResourceGroupReady, Run: ok}}, wantErr: "does not run before it"},
		{name: "no run func", steps: []Step{{State: StateResourceGroupReady}}, wantErr: "incomplete"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := NewPipeline(tt.steps...).Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPipeline_RunSuccess(t *testing.T) {
	t.Parallel()
	rc, observer := newRunContext(t, testutil.TestContext(t), testutil.NewCloudFixture().Healthy())
	var order []State
	track := func(s State) Step {
		return Step{State: s, Run: func(rc *RunContext) Outcome {
			assert.Equal(t, string(s), rc.Step())
			order = append(order, s)
			return Succeeded()
		}}
	}

	report, err := NewPipeline(track(StateResourceGroupReady), track(StateIdentityReady), track(StateNetworkReady)).Run(rc)

	require.NoError(t, err)
	assert.Equal(t, []State{StateResourceGroupReady, StateIdentityReady, StateNetworkReady}, order)
	assert.True(t, report.Succeeded())
	assert.Equal(t, StateDone, report.Reached)
	assert.Equal(t, "run-1", report.RunID)
	assert.Len(t, report.Steps, 3)
	assert.Equal(t, resource.StateSucceeded, report.StepState(StateNetworkReady))
	assert.Equal(t, "", rc.Step())

	types := observer.Types()
	assert.Contains(t, types, EventStepStarted)
	assert.Contains(t, types, EventStepCompleted)
}

func TestPipeline_SkipPropagation(t *testing.T) {
	t.Parallel()
	rc, _ := newRunContext(t, testutil.TestContext(t), testutil.NewCloudFixture().Healthy())
	certRan := false

	report, err := NewPipeline(
		stepFunc(StateResourceGroupReady, Succeeded()),
		stepFunc(StateRoleAssigned, Skipped("identity has no principal ID")),
		Step{
			State:     StateCertificateStaged,
			DependsOn: []State{StateRoleAssigned},
			Run: func(*RunContext) Outcome {
				certRan = true
				return Failed(errors.New("must not run"))
			},
		},
		stepFunc(StateClusterDeployed, Succeeded(), StateCertificateStaged),
	).Run(rc)

	require.NoError(t, err)
	assert.False(t, certRan)
	assert.True(t, report.Succeeded())
	assert.Equal(t, resource.StateSkipped, report.StepState(StateRoleAssigned))
	assert.Equal(t, resource.StateSkipped, report.StepState(StateCertificateStaged))
	assert.Equal(t, resource.StateSkipped, report.StepState(StateClusterDeployed))

	rec, ok := rc.History.Step(string(StateCertificateStaged))
	require.True(t, ok)
	assert.Equal(t, "dependency RoleAssigned skipped", rec.Warning)
}

func TestPipeline_OptionalStepDegrades(t *testing.T) {
	t.Parallel()
	rc, observer := newRunContext(t, testutil.TestContext(t), testutil.NewCloudFixture().Healthy())
	optional := stepFunc(StateRoleAssigned, Failed(resource.NewError(resource.CodePrincipalNotFound, "AssignRole", "principal not found")))
	optional.Optional = true

	report, err := NewPipeline(optional, stepFunc(StateClusterDeployed, Succeeded())).Run(rc)

	require.NoError(t, err)
	assert.Equal(t, resource.StateSkipped, report.StepState(StateRoleAssigned))
	assert.Equal(t, resource.StateSucceeded, report.StepState(StateClusterDeployed))
	rec, _ := rc.History.Step(string(StateRoleAssigned))
	assert.Contains(t, rec.Warning, "PrincipalNotFound")
	assert.Contains(t, observer.Types(), EventStepSkipped)
}

func TestPipeline_FailureStopsRun(t *testing.T) {
	t.Parallel()
	rc, _ := newRunContext(t, testutil.TestContext(t), testutil.NewCloudFixture().Healthy())
	denied := resource.NewError(resource.CodePolicyDeniedSharedKey, "RunRemoteCommand", "Key based authentication is not permitted")
	clusterRan := false

	report, err := NewPipeline(
		stepFunc(StateStorageReady, Succeeded()),
		stepFunc(StateCertificateStaged, Failed(denied)),
		Step{State: StateClusterDeployed, Run: func(*RunContext) Outcome {
			clusterRan = true
			return Succeeded()
		}},
	).Run(rc)

	require.Error(t, err)
	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StateCertificateStaged, stepErr.Step)
	assert.Equal(t, resource.CodePolicyDeniedSharedKey, stepErr.Signature.Code)
	assert.Equal(t, 1, stepErr.Attempts)
	assert.ErrorIs(t, err, denied)

	assert.False(t, clusterRan)
	assert.Equal(t, StateFailed, report.Terminal)
	assert.Equal(t, StateStorageReady, report.Reached)
	assert.Equal(t, StateCertificateStaged, report.FailedStep)
	assert.False(t, report.Aborted)
	assert.Equal(t, resource.StateSkipped, report.StepState(StateClusterDeployed))
}

func TestPipeline_ResumeRunsOnlyLaterSteps(t *testing.T) {
	t.Parallel()
	rc, _ := newRunContext(t, testutil.TestContext(t), testutil.NewCloudFixture().Healthy())
	denied := resource.NewError(resource.CodePolicyDeniedSharedKey, "RunRemoteCommand", "Key based authentication is not permitted")
	runs := map[State]int{}
	count := func(s State, outcome Outcome, deps ...State) Step {
		return Step{State: s, DependsOn: deps, Run: func(*RunContext) Outcome {
			runs[s]++
			return outcome
		}}
	}
	p := NewPipeline(
		count(StateStorageReady, Succeeded()),
		count(StateCertificateStaged, Failed(denied), StateStorageReady),
		count(StateClusterDeployed, Succeeded(), StateCertificateStaged),
	)

	_, err := p.Run(rc)
	require.Error(t, err)

	_, err = p.Resume(rc, StateCertificateStaged)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has not succeeded")

	require.NoError(t, p.Complete(rc, StateCertificateStaged, rc.Now()))
	report, err := p.Resume(rc, StateCertificateStaged)

	require.NoError(t, err)
	assert.True(t, report.Succeeded())
	assert.Equal(t, map[State]int{StateStorageReady: 1, StateCertificateStaged: 1, StateClusterDeployed: 1}, runs)
	assert.Equal(t, resource.StateSucceeded, report.StepState(StateCertificateStaged))
	assert.Equal(t, resource.StateSucceeded, report.StepState(StateClusterDeployed))
	assert.Len(t, report.Steps, 5)
}

func TestPipeline_ResumeUnknownStep(t *testing.T) {
	t.Parallel()
	rc, _ := newRunContext(t, testutil.TestContext(t), testutil.NewCloudFixture().Healthy())
	p := NewPipeline(stepFunc(StateResourceGroupReady, Succeeded()))

	assert.Error(t, p.Complete(rc, StateClusterDeployed, rc.Now()))
	_, err := p.Run(rc)
	require.NoError(t, err)
	_, err = p.Resume(rc, StateClusterDeployed)
	require.Error(t, err)
}

func TestPipeline_QuotaAborts(t *testing.T) {
	t.Parallel()
	rc, _ := newRunContext(t, testutil.TestContext(t), testutil.NewCloudFixture().Healthy())
	quota := resource.NewError(resource.CodeQuotaExceeded, "CreateResource", "exceeding approved quota")
	optional := stepFunc(StateClusterDeployed, Failed(quota))
	optional.Optional = true

	report, err := NewPipeline(
		stepFunc(StateStorageReady, Succeeded()),
		optional,
		stepFunc(StateRoleAssigned, Succeeded()),
	).Run(rc)

	require.Error(t, err)
	assert.True(t, report.Aborted)
	assert.Equal(t, resource.StateFailed, report.StepState(StateClusterDeployed))
	assert.Equal(t, resource.State(""), report.StepState(StateRoleAssigned))
	assert.Len(t, report.Steps, 2)
}

func TestPipeline_AttemptsFromHistory(t *testing.T) {
	t.Parallel()
	fake := testutil.NewCloudFixture().Healthy()
	fake.FailNext(azure.OpCreate, resource.KindResourceGroup, resource.NewError(resource.CodeTransient, azure.OpCreate, "unavailable"), 0)
	rc, _ := newRunContext(t, testutil.TestContext(t), fake)

	report, err := NewPipeline(Step{State: StateResourceGroupReady, Run: func(rc *RunContext) Outcome {
		_, err := rc.Ensure(groupDescriptor())
		return FromError(err)
	}}).Run(rc)

	require.Error(t, err)
	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, 3, stepErr.Attempts)
	assert.Contains(t, err.Error(), "after 3 attempt(s)")
	require.Len(t, report.Results, 1)
	assert.Equal(t, string(StateResourceGroupReady), report.Results[0].Step)
	assert.Equal(t, 3, report.Results[0].Attempts)
}

func TestPipeline_Cancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(testutil.TestContext(t))
	rc, _ := newRunContext(t, ctx, testutil.NewCloudFixture().Healthy())
	cancel()

	report, err := NewPipeline(
		stepFunc(StateResourceGroupReady, Succeeded()),
		stepFunc(StateIdentityReady, Succeeded()),
	).Run(rc)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, report.Aborted)
	assert.Equal(t, resource.StateFailed, report.StepState(StateResourceGroupReady))
	assert.Equal(t, resource.StateSkipped, report.StepState(StateIdentityReady))
}

func TestRunContext_EnsureRecordsOutputs(t *testing.T) {
	t.Parallel()
	rc, _ := newRunContext(t, testutil.TestContext(t), testutil.NewCloudFixture().Healthy())

	assert.Equal(t, "hpc-demo-rg", rc.Outputs.ResourceGroup.Name)
	res, err := rc.Ensure(resource.Descriptor{Kind: resource.KindResourceGroup, Name: rc.Outputs.ResourceGroup.Name, Location: "region-a"})
	require.NoError(t, err)

	assert.Equal(t, res.ID, rc.Outputs.IDs["ResourceGroup/hpc-demo-rg"])
	require.Len(t, rc.History.Results(), 1)

	rc.Skip(vnetDescriptor(), "not needed")
	results := rc.History.Results()
	require.Len(t, results, 2)
	assert.Equal(t, resource.StateSkipped, results[1].State)
	assert.Equal(t, "not needed", results[1].Warning)
}
