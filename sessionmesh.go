// Package sessionmesh provides a high-level façade over the session substrate:
// a Session (versioned state + append-only trajectory + artifacts), a
// Dispatcher routing capability calls to registered agents, and persistence
// to single-file SQLite databases. Most applications interact with this
// package by:
//  1. Creating a SessionMesh via New() (optionally presetting session id,
//     artifact limits, logger and agents)
//  2. Registering one or more agents
//  3. Mutating state directly or running capability call sequences
//  4. Saving the session and reopening it later with Open()
//
// The façade delegates to core.Session and dispatch.Dispatcher while keeping
// setup ergonomics concise; use those packages directly for finer control.
package sessionmesh

import (
	"github.com/sessionmesh/sessionmesh/core"
	"github.com/sessionmesh/sessionmesh/dispatch"
	"github.com/sessionmesh/sessionmesh/logging"
	"github.com/sessionmesh/sessionmesh/store"
)

// Options configures a SessionMesh instance.
type Options struct {
	// SessionID presets the session identifier; generated when empty.
	SessionID string
	// MaxArtifactSize overrides the per-artifact byte ceiling when positive.
	MaxArtifactSize int64
	// Logger receives dispatcher diagnostics. Defaults to NoOp.
	Logger logging.Logger
	// Agents are registered during construction.
	Agents []core.Agent
}

// SessionMesh bundles one session with one dispatcher.
type SessionMesh struct {
	session    *core.Session
	dispatcher *dispatch.Dispatcher
}

// New creates a fresh session and dispatcher. Registration failures of the
// optional initial agents are returned, with the mesh left usable.
func New(optFns ...func(o *Options)) (*SessionMesh, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	sess := core.NewSession(func(o *core.SessionOptions) {
		o.SessionID = opts.SessionID
		o.MaxArtifactSize = opts.MaxArtifactSize
	})
	return newMesh(sess, opts)
}

// Open loads a previously saved session from path and pairs it with a fresh
// dispatcher.
func Open(path string, optFns ...func(o *Options)) (*SessionMesh, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	sess, err := store.Load(path)
	if err != nil {
		return nil, err
	}
	return newMesh(sess, opts)
}

func newMesh(sess *core.Session, opts Options) (*SessionMesh, error) {
	d := dispatch.New(func(o *dispatch.Options) { o.Logger = opts.Logger })
	m := &SessionMesh{session: sess, dispatcher: d}
	for _, agent := range opts.Agents {
		if err := d.Register(agent); err != nil {
			return m, err
		}
	}
	return m, nil
}

// Session returns the underlying session.
func (m *SessionMesh) Session() *core.Session { return m.session }

// Dispatcher returns the underlying dispatcher.
func (m *SessionMesh) Dispatcher() *dispatch.Dispatcher { return m.dispatcher }

// Register adds agents to the dispatcher, stopping at the first failure.
func (m *SessionMesh) Register(agents ...core.Agent) error {
	for _, agent := range agents {
		if err := m.dispatcher.Register(agent); err != nil {
			return err
		}
	}
	return nil
}

// Run executes calls sequentially against the session, fail-fast.
func (m *SessionMesh) Run(calls []core.CapabilityCall) core.SequenceResult {
	return m.dispatcher.DispatchSequence(calls, m.session)
}

// Save persists the session to a single-file SQLite database at path.
func (m *SessionMesh) Save(path string) error {
	return store.Save(m.session, path)
}
