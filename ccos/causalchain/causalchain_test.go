package causalchain

import (
	"testing"

	"github.com/mandubian/ccos-sub004/rtfs/value"
	"github.com/stretchr/testify/require"
)

func TestForPlanAppendsPlanStart(t *testing.T) {
	t.Parallel()

	c := New()
	r := c.ForPlan("intent-1", "plan-1")

	actions := c.Actions()
	require.Len(t, actions, 1)
	require.Equal(t, ActionPlanStart, actions[0].Type)
	require.Equal(t, "intent-1", actions[0].IntentID)
	require.Equal(t, "plan-1", actions[0].PlanID)
	require.Empty(t, actions[0].ParentActionID)
	require.NotNil(t, r)
}

func TestStepAndCapabilityCallNesting(t *testing.T) {
	t.Parallel()

	c := New()
	r := c.ForPlan("intent-1", "plan-1")

	r.StepStart("fetch-weather")
	r.CapabilityCall("weather.get", value.Nil(), value.String("sunny"), true)
	r.StepEnd("fetch-weather", nil)
	r.PlanEnd(true)

	actions := c.Actions()
	require.Len(t, actions, 4)

	planStart := actions[0]
	step := actions[1]
	call := actions[2]
	planEnd := actions[3]

	require.Equal(t, ActionStep, step.Type)
	require.Equal(t, planStart.ID, step.ParentActionID)

	require.Equal(t, ActionCapabilityCall, call.Type)
	require.Equal(t, step.ID, call.ParentActionID)
	require.Equal(t, "weather.get", call.FunctionName)
	require.True(t, call.Success)

	require.Equal(t, ActionPlanEnd, planEnd.Type)
	require.Equal(t, planStart.ID, planEnd.ParentActionID)
	require.True(t, planEnd.Success)
}

func TestStepEndWithErrorAppendsErrorAction(t *testing.T) {
	t.Parallel()

	c := New()
	r := c.ForPlan("intent-1", "plan-1")

	r.StepStart("risky")
	stepID := c.Actions()[1].ID
	verr := value.New(value.KindCapability, "boom")
	r.StepEnd("risky", verr)

	actions := c.Actions()
	require.Len(t, actions, 3)
	errAction := actions[2]
	require.Equal(t, ActionError, errAction.Type)
	require.Equal(t, stepID, errAction.ParentActionID)
	require.True(t, errAction.Result.IsError())
	require.Equal(t, verr, errAction.Result.AsError())
}

func TestOrchestratorBoundaryErrorParentsToPlanStart(t *testing.T) {
	t.Parallel()

	c := New()
	r := c.ForPlan("intent-1", "plan-1")
	planStartID := c.Actions()[0].ID

	r.Error(value.New(value.KindSecurityViolation, "capability not allowed"))

	actions := c.Actions()
	require.Len(t, actions, 2)
	require.Equal(t, ActionError, actions[1].Type)
	require.Equal(t, planStartID, actions[1].ParentActionID)
}

func TestConcurrentCapabilityCallsEachGetUniqueIDs(t *testing.T) {
	t.Parallel()

	c := New()
	r := c.ForPlan("intent-1", "plan-1")

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			r.CapabilityCall("cap", value.Nil(), value.Nil(), true)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	seen := map[string]bool{}
	for _, a := range c.Actions() {
		require.False(t, seen[a.ID], "duplicate action id %q", a.ID)
		seen[a.ID] = true
	}
	require.Len(t, seen, 11)
}
