package core

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxArtifactSize is the per-artifact size ceiling applied when no
// override is configured (100 MiB).
const DefaultMaxArtifactSize int64 = 100 * 1024 * 1024

// SchemaVersion is the persistence wire-format version embedded at creation
// and checked on load.
const SchemaVersion = 1

// SystemAgentID attributes session-internal trajectory entries.
const SystemAgentID = "system"

// Session is the unit of execution and persistence: a versioned key/value
// state, an append-only trajectory and a name-keyed artifact store behind one
// coordinating object.
//
// Contract:
//   - Every accepted mutation appends exactly one trajectory entry whose
//     sequence numbers are dense and strictly increasing from 1.
//   - State values are deep-copied on the way in and on the way out; mutating
//     a value obtained from Get never changes the session.
//   - Trajectory entries are immutable once appended and handed out as copies.
//   - Timestamps along the trajectory are non-decreasing.
//
// The execution model is single-threaded and cooperative. Methods are guarded
// by an internal mutex so observation from another goroutine is safe, but the
// substrate offers no cross-call transactionality; callers interleaving
// mutations from multiple goroutines get no ordering guarantees beyond the
// trajectory's own total order.
type Session struct {
	mu sync.RWMutex

	id              string
	maxArtifactSize int64

	state        map[string]any
	stateVersion int64

	trajectory []TrajectoryEntry
	nextSeq    int64
	lastStamp  time.Time

	artifacts map[string][]byte
}

// SessionOptions configures session construction.
type SessionOptions struct {
	// SessionID presets the identifier; a random UUID is generated when empty.
	SessionID string
	// MaxArtifactSize overrides the per-artifact byte ceiling when positive.
	MaxArtifactSize int64
}

// NewSession creates a session and records the session_created entry.
func NewSession(optFns ...func(o *SessionOptions)) *Session {
	opts := SessionOptions{MaxArtifactSize: DefaultMaxArtifactSize}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	if opts.MaxArtifactSize <= 0 {
		opts.MaxArtifactSize = DefaultMaxArtifactSize
	}

	s := &Session{
		id:              opts.SessionID,
		maxArtifactSize: opts.MaxArtifactSize,
		state:           make(map[string]any),
		trajectory:      make([]TrajectoryEntry, 0, 16),
		nextSeq:         1,
		artifacts:       make(map[string][]byte),
	}

	// The append cannot fail: the payload is built from scalars.
	s.appendLocked(SystemAgentID, EntrySessionCreated, map[string]any{
		"session_id":        s.id,
		"max_artifact_size": s.maxArtifactSize,
		"schema_version":    SchemaVersion,
	})

	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// MaxArtifactSize returns the configured per-artifact byte ceiling.
func (s *Session) MaxArtifactSize() int64 { return s.maxArtifactSize }

// =========================================================================
// State
// =========================================================================

// Set stores a deep copy of value under key, increments the state version and
// records a state_set entry. Returns the post-mutation version. Fails with
// INVALID_KEY for an empty key and INVALID_VALUE for a value that cannot be
// represented as JSON; on failure the session is unchanged.
func (s *Session) Set(key string, value any) (int64, error) {
	if key == "" {
		return 0, NewError(CodeInvalidKey, "key must be a non-empty string")
	}
	normalized, err := NormalizeValue(value)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	oldValue, existed := s.state[key]
	var oldCopy any
	if existed {
		oldCopy = CopyValue(oldValue)
	}

	s.state[key] = normalized
	s.stateVersion++

	s.appendLocked(SystemAgentID, EntryStateSet, map[string]any{
		"key":           key,
		"old_value":     oldCopy,
		"new_value":     CopyValue(normalized),
		"state_version": s.stateVersion,
	})

	return s.stateVersion, nil
}

// Get returns a deep copy of the value stored under key. The second return
// reports presence; pure read, no trajectory effect.
func (s *Session) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.state[key]
	if !ok {
		return nil, false
	}
	return CopyValue(v), true
}

// Has reports whether key is present in the state.
func (s *Session) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.state[key]
	return ok
}

// Delete removes key from the state and records a state_deleted entry,
// reporting whether the key existed. Deleting an absent key is a no-op with
// no trajectory effect.
func (s *Session) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldValue, ok := s.state[key]
	if !ok {
		return false
	}

	delete(s.state, key)
	s.stateVersion++

	s.appendLocked(SystemAgentID, EntryStateDeleted, map[string]any{
		"key":           key,
		"old_value":     CopyValue(oldValue),
		"state_version": s.stateVersion,
	})

	return true
}

// Keys returns a snapshot of the current state keys in unspecified order.
func (s *Session) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.state))
	for k := range s.state {
		keys = append(keys, k)
	}
	return keys
}

// StateVersion returns the current state version: the count of accepted
// state mutations, 0 for a fresh session.
func (s *Session) StateVersion() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateVersion
}

// State returns a deep copy of the full state map.
func (s *Session) State() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CopyMap(s.state)
}

// =========================================================================
// Trajectory
// =========================================================================

// Append records an entry attributed to agentID and returns it with its
// assigned sequence number and timestamp. Fails with INVALID_KEY for an empty
// agent id, INVALID_VALUE for an unknown entry type or a content payload that
// cannot be represented as JSON.
func (s *Session) Append(agentID string, entryType EntryType, content map[string]any) (TrajectoryEntry, error) {
	if agentID == "" {
		return TrajectoryEntry{}, NewError(CodeInvalidKey, "agent_id cannot be empty")
	}
	if !entryType.Valid() {
		return TrajectoryEntry{}, Errorf(CodeInvalidValue, "unknown entry type %q", entryType)
	}
	normalized, err := NormalizeMap(content)
	if err != nil {
		return TrajectoryEntry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.appendLocked(agentID, entryType, normalized)
	return entry.Clone(), nil
}

// appendLocked assigns the next sequence number and a non-decreasing UTC
// timestamp. Content must be owned by the session: Append passes a normalized
// copy, while the session's own entries are built from fresh maps of Go
// scalars (ints, int64s, bools, strings) and copied values. Caller holds the
// write lock (or is the constructor).
func (s *Session) appendLocked(agentID string, entryType EntryType, content map[string]any) TrajectoryEntry {
	now := time.Now().UTC()
	if now.Before(s.lastStamp) {
		now = s.lastStamp
	}
	s.lastStamp = now

	entry := TrajectoryEntry{
		SeqNum:    s.nextSeq,
		Timestamp: now,
		AgentID:   agentID,
		EntryType: entryType,
		Content:   content,
	}
	s.trajectory = append(s.trajectory, entry)
	s.nextSeq++
	return entry
}

// TrajectoryFilter narrows the slice returned by Trajectory. Zero values
// impose no constraint.
type TrajectoryFilter struct {
	// Limit keeps only the newest N entries after the other filters apply.
	Limit int
	// SinceSeq keeps entries with SeqNum strictly greater than this value.
	SinceSeq int64
	// EntryType keeps entries of this type only.
	EntryType EntryType
}

// Trajectory returns deep copies of the entries matching the filter, in
// ascending sequence order.
func (s *Session) Trajectory(filter TrajectoryFilter) []TrajectoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]TrajectoryEntry, 0, len(s.trajectory))
	for _, e := range s.trajectory {
		if e.SeqNum <= filter.SinceSeq {
			continue
		}
		if filter.EntryType != "" && e.EntryType != filter.EntryType {
			continue
		}
		matched = append(matched, e)
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[len(matched)-filter.Limit:]
	}

	out := make([]TrajectoryEntry, len(matched))
	for i, e := range matched {
		out[i] = e.Clone()
	}
	return out
}

// Entry returns a copy of the entry with the given sequence number. The
// second return reports presence.
func (s *Session) Entry(seqNum int64) (TrajectoryEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Dense numbering from 1 makes the lookup positional.
	idx := seqNum - 1
	if idx < 0 || idx >= int64(len(s.trajectory)) {
		return TrajectoryEntry{}, false
	}
	return s.trajectory[idx].Clone(), true
}

// TrajectoryLen returns the number of trajectory entries.
func (s *Session) TrajectoryLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trajectory)
}

// =========================================================================
// Artifacts
// =========================================================================

// WriteArtifact stores a copy of data under name, overwriting any existing
// artifact, and records an artifact_written entry. Fails with INVALID_NAME
// for an empty name and ARTIFACT_TOO_LARGE when data exceeds the configured
// ceiling; on failure the store is unchanged and nothing is recorded.
func (s *Session) WriteArtifact(name string, data []byte) error {
	if name == "" {
		return NewError(CodeInvalidName, "artifact name must be a non-empty string")
	}
	if int64(len(data)) > s.maxArtifactSize {
		return Errorf(CodeArtifactTooLarge,
			"artifact size (%d bytes) exceeds maximum (%d bytes)", len(data), s.maxArtifactSize).
			WithDetails(map[string]any{"name": name, "size": len(data), "max": s.maxArtifactSize})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, overwrote := s.artifacts[name]
	cp := make([]byte, len(data))
	copy(cp, data)
	s.artifacts[name] = cp

	s.appendLocked(SystemAgentID, EntryArtifactWritten, map[string]any{
		"name":      name,
		"size":      int64(len(data)),
		"overwrote": overwrote,
	})

	return nil
}

// ReadArtifact returns a copy of the stored bytes or ARTIFACT_NOT_FOUND.
// Pure read, no trajectory effect.
func (s *Session) ReadArtifact(name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.artifacts[name]
	if !ok {
		return nil, Errorf(CodeArtifactNotFound, "artifact not found: %s", name)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// ListArtifacts returns the stored artifact names, sorted.
func (s *Session) ListArtifacts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.artifacts))
	for name := range s.artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ArtifactSize returns the stored size of the named artifact in bytes, or
// ARTIFACT_NOT_FOUND.
func (s *Session) ArtifactSize(name string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.artifacts[name]
	if !ok {
		return 0, Errorf(CodeArtifactNotFound, "artifact not found: %s", name)
	}
	return int64(len(data)), nil
}

// DeleteArtifact removes the named artifact and records an artifact_deleted
// entry. Unlike state deletion, deleting a missing artifact is an error
// (ARTIFACT_NOT_FOUND).
func (s *Session) DeleteArtifact(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.artifacts[name]
	if !ok {
		return Errorf(CodeArtifactNotFound, "artifact not found: %s", name)
	}
	delete(s.artifacts, name)

	s.appendLocked(SystemAgentID, EntryArtifactDeleted, map[string]any{
		"name": name,
		"size": int64(len(data)),
	})

	return nil
}

// Artifacts returns a copy of all artifact blobs keyed by name. Intended for
// storage backends.
func (s *Session) Artifacts() map[string][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte, len(s.artifacts))
	for name, data := range s.artifacts {
		cp := make([]byte, len(data))
		copy(cp, data)
		out[name] = cp
	}
	return out
}
