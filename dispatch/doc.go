// Package dispatch routes capability calls to registered agents.
//
// The Dispatcher maps each capability name to exactly one agent and executes
// calls strictly sequentially. Sequences are fail-fast: the first failed call
// stops execution and is surfaced with its index. Dispatcher activity is
// recorded in the session trajectory as capability_dispatched entries that
// bracket the invoked agent's own entries.
package dispatch
