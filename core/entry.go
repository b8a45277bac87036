package core

import "time"

// EntryType classifies trajectory entries. The enumeration is closed; the
// session rejects unknown types on append.
type EntryType string

const (
	// EntrySessionCreated is the first entry of every trajectory.
	EntrySessionCreated EntryType = "session_created"
	// EntryStateSet records an accepted state write.
	EntryStateSet EntryType = "state_set"
	// EntryStateDeleted records an accepted state removal.
	EntryStateDeleted EntryType = "state_deleted"
	// EntryArtifactWritten records an artifact store or overwrite.
	EntryArtifactWritten EntryType = "artifact_written"
	// EntryArtifactDeleted records an artifact removal.
	EntryArtifactDeleted EntryType = "artifact_deleted"
	// EntryAgentInvoked is appended by agents when they begin work.
	EntryAgentInvoked EntryType = "agent_invoked"
	// EntryAgentCompleted is appended by agents on success.
	EntryAgentCompleted EntryType = "agent_completed"
	// EntryAgentFailed is appended by agents on failure.
	EntryAgentFailed EntryType = "agent_failed"
	// EntryCapabilityDispatched brackets dispatcher activity around an invocation.
	EntryCapabilityDispatched EntryType = "capability_dispatched"
	// EntryPlanGenerated records a planner-produced call sequence.
	EntryPlanGenerated EntryType = "plan_generated"
	// EntryCustom carries caller-defined payloads.
	EntryCustom EntryType = "custom"
)

// Valid reports whether t is a member of the closed enumeration.
func (t EntryType) Valid() bool {
	switch t {
	case EntrySessionCreated, EntryStateSet, EntryStateDeleted,
		EntryArtifactWritten, EntryArtifactDeleted,
		EntryAgentInvoked, EntryAgentCompleted, EntryAgentFailed,
		EntryCapabilityDispatched, EntryPlanGenerated, EntryCustom:
		return true
	}
	return false
}

// TrajectoryEntry is an immutable record of one action or event within a
// session. Entries are assigned a dense, strictly increasing sequence number
// (starting at 1) and a UTC timestamp at append time. After emission an entry
// must be treated as read-only; the session hands out deep copies so callers
// cannot mutate history.
type TrajectoryEntry struct {
	SeqNum    int64          `json:"seq_num"`
	Timestamp time.Time      `json:"timestamp"`
	AgentID   string         `json:"agent_id"`
	EntryType EntryType      `json:"entry_type"`
	Content   map[string]any `json:"content"`
}

// Clone returns a deep copy of the entry, safe for independent mutation of
// its content payload.
func (e TrajectoryEntry) Clone() TrajectoryEntry {
	cp := e
	cp.Content = CopyMap(e.Content)
	return cp
}
