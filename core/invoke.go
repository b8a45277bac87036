package core

// CapabilityCall is a request to invoke a named capability with parameters.
// It is the unit of work the planner produces and the dispatcher consumes.
type CapabilityCall struct {
	Capability string         `json:"capability"`
	Params     map[string]any `json:"params,omitempty"`
}

// InvokeResult is the outcome of invoking an agent capability. Exactly one of
// Result (success) or Err (failure) is populated.
type InvokeResult struct {
	Success    bool           `json:"success"`
	Result     map[string]any `json:"result,omitempty"`
	Err        *Error         `json:"error,omitempty"`
	AgentID    string         `json:"agent_id"`
	Capability string         `json:"capability"`
}

// OK creates a successful InvokeResult.
func OK(result map[string]any, agentID, capability string) InvokeResult {
	return InvokeResult{
		Success:    true,
		Result:     result,
		AgentID:    agentID,
		Capability: capability,
	}
}

// Fail creates a failed InvokeResult with the given code and message.
func Fail(code ErrorCode, message, agentID, capability string) InvokeResult {
	return InvokeResult{
		Success:    false,
		Err:        NewError(code, message),
		AgentID:    agentID,
		Capability: capability,
	}
}

// FailWithDetails creates a failed InvokeResult carrying extra error details.
func FailWithDetails(code ErrorCode, message, agentID, capability string, details map[string]any) InvokeResult {
	return InvokeResult{
		Success:    false,
		Err:        NewError(code, message).WithDetails(details),
		AgentID:    agentID,
		Capability: capability,
	}
}

// SequenceResult aggregates the results of a sequential dispatch. FailedAt is
// the index of the first failed call, or -1 when every call succeeded. On
// failure Results still includes the failing call's result so callers can
// inspect it.
type SequenceResult struct {
	Success  bool           `json:"success"`
	FailedAt int            `json:"failed_at"`
	Err      *Error         `json:"error,omitempty"`
	Results  []InvokeResult `json:"results"`
}

// AgentInfo describes an agent's identity and the capabilities it serves.
type AgentInfo struct {
	AgentID      string   `json:"agent_id"`
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
	Description  string   `json:"description,omitempty"`
}

// Validate checks the structural requirements of the info: non-empty id and
// name, at least one capability.
func (i AgentInfo) Validate() error {
	if i.AgentID == "" {
		return NewError(CodeInvalidValue, "agent_id cannot be empty")
	}
	if i.Name == "" {
		return NewError(CodeInvalidValue, "name cannot be empty")
	}
	if len(i.Capabilities) == 0 {
		return NewError(CodeInvalidValue, "capabilities cannot be empty")
	}
	return nil
}
