package agents

import (
	"fmt"

	"github.com/sessionmesh/sessionmesh/core"
)

// stringParam resolves the conventional "key" parameter shared by the
// built-in text agents: the key must be present and a string, and the session
// must hold a string value under it. On failure the third return carries the
// InvokeResult to hand back.
func stringParam(agentID, capability string, sess *core.Session, params map[string]any) (key, value string, fail *core.InvokeResult) {
	raw, ok := params["key"]
	if !ok {
		res := core.FailWithDetails(core.CodeInvalidKey,
			"missing required parameter: key", agentID, capability,
			map[string]any{"required": []string{"key"}})
		return "", "", &res
	}
	key, ok = raw.(string)
	if !ok {
		res := core.Fail(core.CodeInvalidKey,
			fmt.Sprintf("parameter 'key' must be a string, got %T", raw), agentID, capability)
		return "", "", &res
	}

	stored, ok := sess.Get(key)
	if !ok {
		res := core.Fail(core.CodeInvalidKey,
			fmt.Sprintf("no value found at key %q", key), agentID, capability)
		return "", "", &res
	}
	value, ok = stored.(string)
	if !ok {
		res := core.Fail(core.CodeInvalidValue,
			fmt.Sprintf("value at %q must be a string, got %T", key, stored), agentID, capability)
		return "", "", &res
	}
	return key, value, nil
}
