// Package core contains the domain contracts of the session substrate: the
// Session container (versioned state, append-only trajectory, artifact store),
// the value types exchanged between sessions, agents and the dispatcher
// (TrajectoryEntry, InvokeResult, CapabilityCall, AgentInfo), the structured
// error model, and the Agent interface.
//
// The canonical contracts live here to avoid dependency cycles and keep domain
// types central. Implementation packages (dispatch, store, agents, planner)
// depend on core rather than on each other.
package core
