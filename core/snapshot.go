package core

import (
	"sort"
	"time"
)

// Snapshot is a deeply-copied, disconnected view of a session suitable for
// safe observation by agents. Mutating a snapshot never changes the source
// session and later session mutations never show through to a previously
// taken snapshot. Artifact bytes are deliberately excluded; only names are
// listed.
type Snapshot struct {
	SessionID     string            `json:"session_id"`
	State         map[string]any    `json:"state"`
	StateVersion  int64             `json:"state_version"`
	Trajectory    []TrajectoryEntry `json:"trajectory"`
	Artifacts     []string          `json:"artifacts"`
	SnapshotTime  time.Time         `json:"snapshot_time"`
	TrajectoryLen int               `json:"trajectory_total_length"`
}

// SnapshotForAgent builds a read-only view for the given agent. depth bounds
// the number of most recent trajectory entries included; zero or negative
// means all. The agentID is accepted for the caller's attribution only: it is
// not stored anywhere and does not alter the view.
func (s *Session) SnapshotForAgent(agentID string, depth int) Snapshot {
	_ = agentID

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.trajectory
	if depth > 0 && len(entries) > depth {
		entries = entries[len(entries)-depth:]
	}
	trajectory := make([]TrajectoryEntry, len(entries))
	for i, e := range entries {
		trajectory[i] = e.Clone()
	}

	names := make([]string, 0, len(s.artifacts))
	for name := range s.artifacts {
		names = append(names, name)
	}
	sort.Strings(names)

	return Snapshot{
		SessionID:     s.id,
		State:         CopyMap(s.state),
		StateVersion:  s.stateVersion,
		Trajectory:    trajectory,
		Artifacts:     names,
		SnapshotTime:  time.Now().UTC(),
		TrajectoryLen: len(s.trajectory),
	}
}
