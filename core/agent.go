package core

// Agent is the contract implemented by every callable unit in the substrate.
//
// Info must be pure, idempotent and cheap; the dispatcher calls it at
// registration time and may call it again at any point. Invoke may mutate the
// session (read/write state, append trajectory entries, read/write artifacts)
// and must encode every failure in the returned InvokeResult rather than
// panicking. Unknown capabilities must produce a result with code
// UNKNOWN_CAPABILITY.
//
// By convention agents append an agent_invoked entry when they begin and an
// agent_completed or agent_failed entry when they finish, attributed to their
// own agent id. The substrate does not enforce this, but the single-threaded
// execution model guarantees that whatever entries an agent appends fall
// strictly between the dispatcher's started and completed/failed markers.
type Agent interface {
	Info() AgentInfo
	Invoke(capability string, sess *Session, params map[string]any) InvokeResult
}
