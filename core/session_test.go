package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession_EmitsSessionCreated(t *testing.T) {
	s := NewSession()

	require.NotEmpty(t, s.ID())
	assert.Equal(t, DefaultMaxArtifactSize, s.MaxArtifactSize())
	assert.EqualValues(t, 0, s.StateVersion())

	trajectory := s.Trajectory(TrajectoryFilter{})
	require.Len(t, trajectory, 1)
	assert.Equal(t, EntrySessionCreated, trajectory[0].EntryType)
	assert.Equal(t, SystemAgentID, trajectory[0].AgentID)
	assert.EqualValues(t, 1, trajectory[0].SeqNum)
}

func TestNewSession_PresetID(t *testing.T) {
	s := NewSession(func(o *SessionOptions) {
		o.SessionID = "fixed-id"
		o.MaxArtifactSize = 16
	})
	assert.Equal(t, "fixed-id", s.ID())
	assert.EqualValues(t, 16, s.MaxArtifactSize())
}

func TestSession_SetGetRoundTrip(t *testing.T) {
	s := NewSession()

	version, err := s.Set("text", "hello")
	require.NoError(t, err)
	assert.EqualValues(t, 1, version)

	v, ok := s.Get("text")
	require.True(t, ok)
	assert.Equal(t, "hello", v)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestSession_SetRecordsTrajectory(t *testing.T) {
	s := NewSession()

	_, err := s.Set("k", "v1")
	require.NoError(t, err)
	_, err = s.Set("k", "v2")
	require.NoError(t, err)

	entries := s.Trajectory(TrajectoryFilter{EntryType: EntryStateSet})
	require.Len(t, entries, 2)

	first := entries[0].Content
	assert.Equal(t, "k", first["key"])
	assert.Nil(t, first["old_value"])
	assert.Equal(t, "v1", first["new_value"])
	assert.EqualValues(t, 1, first["state_version"])

	second := entries[1].Content
	assert.Equal(t, "v1", second["old_value"])
	assert.Equal(t, "v2", second["new_value"])
	assert.EqualValues(t, 2, second["state_version"])
}

func TestSession_SetValidation(t *testing.T) {
	s := NewSession()

	_, err := s.Set("", "v")
	require.Error(t, err)
	assert.Equal(t, CodeInvalidKey, CodeOf(err))

	_, err = s.Set("k", make(chan int))
	require.Error(t, err)
	assert.Equal(t, CodeInvalidValue, CodeOf(err))

	// Rejected mutations leave no trace.
	assert.EqualValues(t, 0, s.StateVersion())
	assert.Len(t, s.Trajectory(TrajectoryFilter{EntryType: EntryStateSet}), 0)
}

func TestSession_DeleteSemantics(t *testing.T) {
	s := NewSession()

	// Absent key: no-op, no entry, no version bump.
	assert.False(t, s.Delete("ghost"))
	assert.EqualValues(t, 0, s.StateVersion())
	assert.Len(t, s.Trajectory(TrajectoryFilter{EntryType: EntryStateDeleted}), 0)

	_, err := s.Set("k", []any{1, 2})
	require.NoError(t, err)
	require.True(t, s.Delete("k"))

	_, ok := s.Get("k")
	assert.False(t, ok)
	assert.EqualValues(t, 2, s.StateVersion())

	deleted := s.Trajectory(TrajectoryFilter{EntryType: EntryStateDeleted})
	require.Len(t, deleted, 1)
	assert.Equal(t, "k", deleted[0].Content["key"])
	assert.True(t, EqualValues([]any{1, 2}, deleted[0].Content["old_value"]))
	assert.EqualValues(t, 2, deleted[0].Content["state_version"])
}

func TestSession_GetIsolation(t *testing.T) {
	s := NewSession()
	_, err := s.Set("x", []any{1, 2, 3})
	require.NoError(t, err)

	v, _ := s.Get("x")
	list := v.([]any)
	list[0] = "mutated"

	again, _ := s.Get("x")
	assert.True(t, EqualValues([]any{1, 2, 3}, again),
		"mutating a returned value must not change the session")
}

func TestSession_SetIsolatesCallerValue(t *testing.T) {
	s := NewSession()
	value := map[string]any{"inner": []any{1}}
	_, err := s.Set("x", value)
	require.NoError(t, err)

	value["inner"] = []any{99}

	stored, _ := s.Get("x")
	assert.True(t, EqualValues(map[string]any{"inner": []any{1}}, stored),
		"mutating the caller's value after Set must not change the session")
}

func TestSession_KeysAndHas(t *testing.T) {
	s := NewSession()
	_, _ = s.Set("a", 1)
	_, _ = s.Set("b", 2)

	assert.True(t, s.Has("a"))
	assert.False(t, s.Has("z"))
	assert.ElementsMatch(t, []string{"a", "b"}, s.Keys())
}

func TestSession_AppendAssignsDenseSeq(t *testing.T) {
	s := NewSession()

	e1, err := s.Append("agent-x", EntryCustom, map[string]any{"note": "one"})
	require.NoError(t, err)
	e2, err := s.Append("agent-x", EntryCustom, map[string]any{"note": "two"})
	require.NoError(t, err)

	assert.EqualValues(t, 2, e1.SeqNum)
	assert.EqualValues(t, 3, e2.SeqNum)
	assert.False(t, e2.Timestamp.Before(e1.Timestamp))
}

func TestSession_AppendValidation(t *testing.T) {
	s := NewSession()

	_, err := s.Append("", EntryCustom, nil)
	require.Error(t, err)
	assert.Equal(t, CodeInvalidKey, CodeOf(err))

	_, err = s.Append("a", EntryType("bogus"), nil)
	require.Error(t, err)
	assert.Equal(t, CodeInvalidValue, CodeOf(err))

	_, err = s.Append("a", EntryCustom, map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	assert.Equal(t, CodeInvalidValue, CodeOf(err))

	assert.Equal(t, 1, s.TrajectoryLen())
}

func TestSession_TrajectoryFilters(t *testing.T) {
	s := NewSession()
	for i := 0; i < 5; i++ {
		_, err := s.Set("k", i)
		require.NoError(t, err)
	}
	// Trajectory: session_created + 5 state_set = 6 entries.

	since := s.Trajectory(TrajectoryFilter{SinceSeq: 4})
	require.Len(t, since, 2)
	assert.EqualValues(t, 5, since[0].SeqNum)
	assert.EqualValues(t, 6, since[1].SeqNum)

	limited := s.Trajectory(TrajectoryFilter{Limit: 2})
	require.Len(t, limited, 2)
	assert.EqualValues(t, 5, limited[0].SeqNum, "limit keeps the newest entries in ascending order")

	typed := s.Trajectory(TrajectoryFilter{EntryType: EntrySessionCreated})
	require.Len(t, typed, 1)

	combined := s.Trajectory(TrajectoryFilter{EntryType: EntryStateSet, Limit: 3, SinceSeq: 2})
	require.Len(t, combined, 3)
	assert.EqualValues(t, 4, combined[0].SeqNum)
}

func TestSession_EntryLookup(t *testing.T) {
	s := NewSession()
	_, err := s.Set("k", "v")
	require.NoError(t, err)

	e, ok := s.Entry(2)
	require.True(t, ok)
	assert.Equal(t, EntryStateSet, e.EntryType)

	_, ok = s.Entry(99)
	assert.False(t, ok)
	_, ok = s.Entry(0)
	assert.False(t, ok)
}

func TestSession_TrajectoryEntriesImmutable(t *testing.T) {
	s := NewSession()
	_, err := s.Set("k", "v")
	require.NoError(t, err)

	entries := s.Trajectory(TrajectoryFilter{})
	entries[1].Content["key"] = "tampered"

	again, ok := s.Entry(2)
	require.True(t, ok)
	assert.Equal(t, "k", again.Content["key"], "handed-out entries must be copies")
}

func TestSession_MonotonicTimestampsAndDenseSeq(t *testing.T) {
	s := NewSession()
	for i := 0; i < 100; i++ {
		_, err := s.Set("k", i)
		require.NoError(t, err)
	}

	entries := s.Trajectory(TrajectoryFilter{})
	require.Len(t, entries, 101)
	for i, e := range entries {
		require.EqualValues(t, i+1, e.SeqNum)
		if i > 0 {
			require.False(t, e.Timestamp.Before(entries[i-1].Timestamp),
				"timestamps must be non-decreasing at entry %d", i)
		}
	}
}

func TestSession_StateVersionMatchesMutationCount(t *testing.T) {
	s := NewSession()
	_, _ = s.Set("a", 1)
	_, _ = s.Set("b", 2)
	s.Delete("a")
	s.Delete("a") // no-op

	sets := s.Trajectory(TrajectoryFilter{EntryType: EntryStateSet})
	dels := s.Trajectory(TrajectoryFilter{EntryType: EntryStateDeleted})
	assert.EqualValues(t, len(sets)+len(dels), s.StateVersion())
}

func TestRestore_RejectsSparseTrajectory(t *testing.T) {
	_, err := Restore(RestoredSession{
		SessionID: "s",
		Trajectory: []TrajectoryEntry{
			{SeqNum: 1, AgentID: "system", EntryType: EntrySessionCreated, Content: map[string]any{}},
			{SeqNum: 3, AgentID: "system", EntryType: EntryCustom, Content: map[string]any{}},
		},
	})
	require.Error(t, err)
	assert.Equal(t, CodePersistenceError, CodeOf(err))
}

func TestRestore_ContinuesSequence(t *testing.T) {
	s := NewSession()
	_, err := s.Set("k", json.Number("7"))
	require.NoError(t, err)

	restored, err := Restore(RestoredSession{
		SessionID:       s.ID(),
		MaxArtifactSize: s.MaxArtifactSize(),
		StateVersion:    s.StateVersion(),
		State:           s.State(),
		Trajectory:      s.Trajectory(TrajectoryFilter{}),
		Artifacts:       s.Artifacts(),
	})
	require.NoError(t, err)

	e, err2 := restored.Append("a", EntryCustom, nil)
	require.NoError(t, err2)
	assert.EqualValues(t, 3, e.SeqNum, "append after restore continues the dense numbering")
}
