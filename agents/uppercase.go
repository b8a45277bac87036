package agents

import (
	"fmt"
	"strings"

	"github.com/sessionmesh/sessionmesh/core"
)

// UppercaseAgent uppercases a string value stored in session state.
//
// Capability "uppercase" takes a single parameter "key" naming the state key
// whose string value is uppercased in place.
type UppercaseAgent struct{}

// NewUppercaseAgent creates an UppercaseAgent.
func NewUppercaseAgent() *UppercaseAgent { return &UppercaseAgent{} }

// Info describes the agent and its single capability.
func (a *UppercaseAgent) Info() core.AgentInfo {
	return core.AgentInfo{
		AgentID:      "uppercase_agent_v1",
		Name:         "Uppercase Agent",
		Version:      "1.0.0",
		Capabilities: []string{"uppercase"},
		Description:  "Uppercases text stored in session state",
	}
}

// Invoke executes the uppercase capability against the session.
func (a *UppercaseAgent) Invoke(capability string, sess *core.Session, params map[string]any) core.InvokeResult {
	info := a.Info()
	if capability != "uppercase" {
		return core.Fail(core.CodeUnknownCapability,
			fmt.Sprintf("unknown capability %q", capability), info.AgentID, capability)
	}

	key, value, res := stringParam(info.AgentID, capability, sess, params)
	if res != nil {
		return *res
	}

	uppercased := strings.ToUpper(value)

	_, _ = sess.Append(info.AgentID, core.EntryAgentInvoked, map[string]any{
		"capability":  capability,
		"params":      params,
		"input_value": value,
	})

	if _, err := sess.Set(key, uppercased); err != nil {
		_, _ = sess.Append(info.AgentID, core.EntryAgentFailed, map[string]any{
			"capability": capability,
			"error":      err.Error(),
		})
		return core.Fail(core.CodeAgentError, err.Error(), info.AgentID, capability)
	}

	_, _ = sess.Append(info.AgentID, core.EntryAgentCompleted, map[string]any{
		"capability": capability,
		"original":   value,
		"uppercased": uppercased,
	})

	return core.OK(map[string]any{
		"original":   value,
		"uppercased": uppercased,
	}, info.AgentID, capability)
}
