package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionmesh/sessionmesh/agents"
	"github.com/sessionmesh/sessionmesh/core"
)

// stubAgent is a configurable test double implementing core.Agent.
type stubAgent struct {
	id           string
	capabilities []string
	invoke       func(capability string, sess *core.Session, params map[string]any) core.InvokeResult
}

func (a *stubAgent) Info() core.AgentInfo {
	return core.AgentInfo{
		AgentID:      a.id,
		Name:         a.id,
		Version:      "0.0.1",
		Capabilities: a.capabilities,
	}
}

func (a *stubAgent) Invoke(capability string, sess *core.Session, params map[string]any) core.InvokeResult {
	if a.invoke != nil {
		return a.invoke(capability, sess, params)
	}
	return core.OK(map[string]any{}, a.id, capability)
}

func TestRegister_DuplicateCapabilityAtomic(t *testing.T) {
	d := New()
	require.NoError(t, d.Register(&stubAgent{id: "a1", capabilities: []string{"x"}}))

	err := d.Register(&stubAgent{id: "a2", capabilities: []string{"y", "x"}})
	require.Error(t, err)
	assert.Equal(t, core.CodeDuplicateCapability, core.CodeOf(err))

	// Atomicity: the non-conflicting capability must not have registered.
	assert.False(t, d.HasCapability("y"))
	assert.Equal(t, []string{"x"}, d.Capabilities())
}

func TestRegister_UnregisterThenReregister(t *testing.T) {
	d := New()
	require.NoError(t, d.Register(&stubAgent{id: "a1", capabilities: []string{"x"}}))

	d.Unregister("a1")
	assert.Empty(t, d.Capabilities())

	require.NoError(t, d.Register(&stubAgent{id: "a2", capabilities: []string{"x"}}))
	assert.True(t, d.HasCapability("x"))

	// Unknown agent id is a no-op.
	d.Unregister("ghost")
}

func TestCapabilities_Sorted(t *testing.T) {
	d := New()
	require.NoError(t, d.Register(&stubAgent{id: "a1", capabilities: []string{"zeta", "alpha"}}))
	assert.Equal(t, []string{"alpha", "zeta"}, d.Capabilities())

	infos := d.Agents()
	require.Len(t, infos, 1)
	assert.Equal(t, "a1", infos[0].AgentID)
}

func TestDispatchSingle_UnknownCapability(t *testing.T) {
	d := New()
	sess := core.NewSession()

	result := d.DispatchSingle("nope", sess, nil)
	require.False(t, result.Success)
	assert.Equal(t, core.CodeUnknownCapability, result.Err.Code)
	assert.Equal(t, DispatcherAgentID, result.AgentID)

	markers := sess.Trajectory(core.TrajectoryFilter{EntryType: core.EntryCapabilityDispatched})
	require.Len(t, markers, 1)
	assert.Equal(t, "nope", markers[0].Content["capability"])
	assert.Equal(t, "unknown", markers[0].Content["status"])
	assert.Equal(t, DispatcherAgentID, markers[0].AgentID)
}

func TestDispatchSingle_BasicReverse(t *testing.T) {
	d := New()
	sess := core.NewSession()
	_, err := sess.Set("text", "hello")
	require.NoError(t, err)
	require.NoError(t, d.Register(agents.NewReverseAgent()))

	result := d.DispatchSingle("reverse", sess, map[string]any{"key": "text"})
	require.True(t, result.Success)
	assert.Equal(t, "olleh", result.Result["reversed"])

	v, _ := sess.Get("text")
	assert.Equal(t, "olleh", v)
	assert.EqualValues(t, 2, sess.StateVersion())

	// Trajectory shape: the agent's entries fall strictly between the
	// started and completed markers.
	var types []core.EntryType
	for _, e := range sess.Trajectory(core.TrajectoryFilter{}) {
		types = append(types, e.EntryType)
	}
	assert.Equal(t, []core.EntryType{
		core.EntrySessionCreated,
		core.EntryStateSet,
		core.EntryCapabilityDispatched, // started
		core.EntryAgentInvoked,
		core.EntryStateSet,
		core.EntryAgentCompleted,
		core.EntryCapabilityDispatched, // completed
	}, types)

	markers := sess.Trajectory(core.TrajectoryFilter{EntryType: core.EntryCapabilityDispatched})
	require.Len(t, markers, 2)
	assert.Equal(t, "started", markers[0].Content["status"])
	assert.Equal(t, "completed", markers[1].Content["status"])
	assert.Equal(t, "reverse_agent_v1", markers[0].Content["agent_id"])
}

func TestDispatchSingle_FailedStatusMarker(t *testing.T) {
	d := New()
	sess := core.NewSession()
	failing := &stubAgent{
		id:           "f1",
		capabilities: []string{"boom"},
		invoke: func(capability string, _ *core.Session, _ map[string]any) core.InvokeResult {
			return core.Fail(core.CodeAgentError, "it broke", "f1", capability)
		},
	}
	require.NoError(t, d.Register(failing))

	result := d.DispatchSingle("boom", sess, nil)
	require.False(t, result.Success)

	markers := sess.Trajectory(core.TrajectoryFilter{EntryType: core.EntryCapabilityDispatched})
	require.Len(t, markers, 2)
	assert.Equal(t, "failed", markers[1].Content["status"])
}

func TestDispatchSingle_PanicContained(t *testing.T) {
	d := New()
	sess := core.NewSession()
	panicky := &stubAgent{
		id:           "p1",
		capabilities: []string{"explode"},
		invoke: func(string, *core.Session, map[string]any) core.InvokeResult {
			panic("kaboom")
		},
	}
	require.NoError(t, d.Register(panicky))

	result := d.DispatchSingle("explode", sess, nil)
	require.False(t, result.Success)
	assert.Equal(t, core.CodeAgentError, result.Err.Code)
	assert.Contains(t, result.Err.Message, "kaboom")

	markers := sess.Trajectory(core.TrajectoryFilter{EntryType: core.EntryCapabilityDispatched})
	require.Len(t, markers, 2)
	assert.Equal(t, "failed", markers[1].Content["status"])
}

func TestDispatchSequence_FailFast(t *testing.T) {
	d := New()
	sess := core.NewSession()
	_, err := sess.Set("text", "hi")
	require.NoError(t, err)
	require.NoError(t, d.Register(agents.NewReverseAgent()))

	result := d.DispatchSequence([]core.CapabilityCall{
		{Capability: "reverse", Params: map[string]any{"key": "text"}},
		{Capability: "uppercase", Params: map[string]any{"key": "text"}},
	}, sess)

	require.False(t, result.Success)
	assert.Equal(t, 1, result.FailedAt)
	require.Len(t, result.Results, 2)
	assert.True(t, result.Results[0].Success)
	assert.Equal(t, core.CodeUnknownCapability, result.Results[1].Err.Code)
	assert.Equal(t, core.CodeUnknownCapability, result.Err.Code)

	// The first call completed before the failure stopped the sequence.
	v, _ := sess.Get("text")
	assert.Equal(t, "ih", v)
}

func TestDispatchSequence_Empty(t *testing.T) {
	d := New()
	sess := core.NewSession()

	result := d.DispatchSequence(nil, sess)
	assert.True(t, result.Success)
	assert.Equal(t, -1, result.FailedAt)
	assert.Empty(t, result.Results)
	assert.Nil(t, result.Err)
}

func TestDispatchSequence_AllSucceed(t *testing.T) {
	d := New()
	sess := core.NewSession()
	_, err := sess.Set("text", "hi")
	require.NoError(t, err)
	require.NoError(t, d.Register(agents.NewReverseAgent()))
	require.NoError(t, d.Register(agents.NewUppercaseAgent()))

	result := d.DispatchSequence([]core.CapabilityCall{
		{Capability: "reverse", Params: map[string]any{"key": "text"}},
		{Capability: "uppercase", Params: map[string]any{"key": "text"}},
	}, sess)

	require.True(t, result.Success)
	assert.Equal(t, -1, result.FailedAt)
	require.Len(t, result.Results, 2)

	v, _ := sess.Get("text")
	assert.Equal(t, "IH", v)
}

func TestResumeSequence_SkipsCompletedSteps(t *testing.T) {
	d := New()
	sess := core.NewSession()
	_, err := sess.Set("text", "hi")
	require.NoError(t, err)
	require.NoError(t, d.Register(agents.NewReverseAgent()))

	calls := []core.CapabilityCall{
		{Capability: "reverse", Params: map[string]any{"key": "text"}},
		{Capability: "uppercase", Params: map[string]any{"key": "text"}},
	}

	first := d.DispatchSequence(calls, sess)
	require.False(t, first.Success)
	require.Equal(t, 1, first.FailedAt)

	// The missing agent arrives; resuming skips the completed reverse step.
	require.NoError(t, d.Register(agents.NewUppercaseAgent()))
	resumed := d.ResumeSequence(calls, sess)
	require.True(t, resumed.Success)
	require.Len(t, resumed.Results, 2)
	assert.Equal(t, true, resumed.Results[0].Result["resumed"])

	v, _ := sess.Get("text")
	assert.Equal(t, "IH", v, "reverse must not have run twice")
}
