package agents

import (
	"fmt"

	"github.com/sessionmesh/sessionmesh/core"
)

// ReverseAgent reverses a string value stored in session state.
//
// Capability "reverse" takes a single parameter "key" naming the state key
// whose string value is reversed in place. The result carries the original
// and the reversed text.
type ReverseAgent struct{}

// NewReverseAgent creates a ReverseAgent.
func NewReverseAgent() *ReverseAgent { return &ReverseAgent{} }

// Info describes the agent and its single capability.
func (a *ReverseAgent) Info() core.AgentInfo {
	return core.AgentInfo{
		AgentID:      "reverse_agent_v1",
		Name:         "Reverse Agent",
		Version:      "1.0.0",
		Capabilities: []string{"reverse"},
		Description:  "Reverses text stored in session state",
	}
}

// Invoke executes the reverse capability against the session.
func (a *ReverseAgent) Invoke(capability string, sess *core.Session, params map[string]any) core.InvokeResult {
	info := a.Info()
	if capability != "reverse" {
		return core.Fail(core.CodeUnknownCapability,
			fmt.Sprintf("unknown capability %q", capability), info.AgentID, capability)
	}

	key, value, res := stringParam(info.AgentID, capability, sess, params)
	if res != nil {
		return *res
	}

	reversed := reverseString(value)

	// Intent is recorded before the state mutation so the trajectory reflects
	// the invocation even if the write fails.
	_, _ = sess.Append(info.AgentID, core.EntryAgentInvoked, map[string]any{
		"capability":  capability,
		"params":      params,
		"input_value": value,
	})

	if _, err := sess.Set(key, reversed); err != nil {
		_, _ = sess.Append(info.AgentID, core.EntryAgentFailed, map[string]any{
			"capability": capability,
			"error":      err.Error(),
		})
		return core.Fail(core.CodeAgentError, err.Error(), info.AgentID, capability)
	}

	_, _ = sess.Append(info.AgentID, core.EntryAgentCompleted, map[string]any{
		"capability": capability,
		"original":   value,
		"reversed":   reversed,
	})

	return core.OK(map[string]any{
		"original": value,
		"reversed": reversed,
	}, info.AgentID, capability)
}

// reverseString reverses rune-wise so multi-byte text survives.
func reverseString(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}
