package core

// RestoredSession carries the parts a storage backend reassembles a session
// from. All values become owned by the session; backends must not retain
// references after calling Restore.
type RestoredSession struct {
	SessionID       string
	MaxArtifactSize int64
	StateVersion    int64
	State           map[string]any
	Trajectory      []TrajectoryEntry
	Artifacts       map[string][]byte
}

// Restore reassembles a session from persisted parts without emitting any
// trajectory entries, so that a load reproduces exactly the trajectory that
// was saved. The trajectory must be densely numbered from 1; violations are
// reported as PERSISTENCE_ERROR since they indicate a corrupt store.
func Restore(parts RestoredSession) (*Session, error) {
	if parts.SessionID == "" {
		return nil, NewError(CodePersistenceError, "restored session is missing a session id")
	}
	for i, e := range parts.Trajectory {
		if e.SeqNum != int64(i)+1 {
			return nil, Errorf(CodePersistenceError,
				"trajectory is not densely numbered: entry %d has seq_num %d", i, e.SeqNum)
		}
	}
	if len(parts.Trajectory) > 0 && parts.Trajectory[0].EntryType != EntrySessionCreated {
		return nil, Errorf(CodePersistenceError,
			"trajectory does not begin with session_created: got %s", parts.Trajectory[0].EntryType)
	}

	maxSize := parts.MaxArtifactSize
	if maxSize <= 0 {
		maxSize = DefaultMaxArtifactSize
	}

	s := &Session{
		id:              parts.SessionID,
		maxArtifactSize: maxSize,
		state:           parts.State,
		stateVersion:    parts.StateVersion,
		trajectory:      parts.Trajectory,
		nextSeq:         int64(len(parts.Trajectory)) + 1,
		artifacts:       parts.Artifacts,
	}
	if s.state == nil {
		s.state = make(map[string]any)
	}
	if s.artifacts == nil {
		s.artifacts = make(map[string][]byte)
	}
	if n := len(s.trajectory); n > 0 {
		s.lastStamp = s.trajectory[n-1].Timestamp
	}
	return s, nil
}
