package dispatch

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/sessionmesh/sessionmesh/core"
	"github.com/sessionmesh/sessionmesh/logging"
)

// DispatcherAgentID attributes dispatcher-authored trajectory entries.
const DispatcherAgentID = "dispatcher"

// Dispatcher maps capability names to agents and executes capability calls
// against a session. At most one agent serves a capability; conflicting
// registrations are rejected and an explicit Unregister is required before a
// capability can change hands.
//
// Execution is strictly sequential. The dispatcher never panics and never
// raises agent failures as errors: every outcome is an InvokeResult, with
// uncontained agent panics converted to AGENT_ERROR as a safety net.
type Dispatcher struct {
	mu           sync.RWMutex
	byCapability map[string]core.Agent
	infos        map[string]core.AgentInfo
	logger       logging.Logger
}

// Options configures a Dispatcher.
type Options struct {
	// Logger receives registration and dispatch diagnostics. Defaults to NoOp.
	Logger logging.Logger
}

// New creates an empty dispatcher.
func New(optFns ...func(o *Options)) *Dispatcher {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Dispatcher{
		byCapability: make(map[string]core.Agent),
		infos:        make(map[string]core.AgentInfo),
		logger:       opts.Logger,
	}
}

// Register adds every capability of the agent to the registry. Registration
// is atomic: on a DUPLICATE_CAPABILITY conflict none of the agent's
// capabilities are registered.
func (d *Dispatcher) Register(agent core.Agent) error {
	info := agent.Info()
	if err := info.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, capability := range info.Capabilities {
		if existing, ok := d.byCapability[capability]; ok {
			return core.Errorf(core.CodeDuplicateCapability,
				"capability %q is already registered to agent %q", capability, existing.Info().AgentID)
		}
	}
	for _, capability := range info.Capabilities {
		d.byCapability[capability] = agent
	}
	d.infos[info.AgentID] = info

	d.logger.Debug("agent registered", "agent_id", info.AgentID, "capabilities", info.Capabilities)
	return nil
}

// Unregister removes the agent and all of its capabilities. Unknown agent ids
// are a no-op.
func (d *Dispatcher) Unregister(agentID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	info, ok := d.infos[agentID]
	if !ok {
		return
	}
	for _, capability := range info.Capabilities {
		delete(d.byCapability, capability)
	}
	delete(d.infos, agentID)

	d.logger.Debug("agent unregistered", "agent_id", agentID)
}

// Capabilities returns the sorted list of registered capability names.
func (d *Dispatcher) Capabilities() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.byCapability))
	for capability := range d.byCapability {
		out = append(out, capability)
	}
	sort.Strings(out)
	return out
}

// HasCapability reports whether an agent is registered for the capability.
func (d *Dispatcher) HasCapability(capability string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.byCapability[capability]
	return ok
}

// Agents returns the info of every registered agent, sorted by agent id.
func (d *Dispatcher) Agents() []core.AgentInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]core.AgentInfo, 0, len(d.infos))
	for _, info := range d.infos {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}

// DispatchSingle resolves and invokes the agent serving capability, recording
// capability_dispatched entries around the invocation. An unknown capability
// yields a single entry with status "unknown" and an UNKNOWN_CAPABILITY
// result. The agent's result is returned verbatim.
func (d *Dispatcher) DispatchSingle(capability string, sess *core.Session, params map[string]any) core.InvokeResult {
	return d.dispatchCall(core.CapabilityCall{Capability: capability, Params: params}, sess, -1)
}

// DispatchSequence executes calls in order against the session. Fail-fast: on
// the first result with Success=false execution stops; the returned
// SequenceResult carries the failing index, its error and every result so far
// including the failed one. An empty call list succeeds with empty results.
func (d *Dispatcher) DispatchSequence(calls []core.CapabilityCall, sess *core.Session) core.SequenceResult {
	results := make([]core.InvokeResult, 0, len(calls))
	for i, call := range calls {
		result := d.dispatchCall(call, sess, i)
		results = append(results, result)
		if !result.Success {
			d.logger.Debug("sequence failed", "failed_at", i, "capability", call.Capability)
			return core.SequenceResult{Success: false, FailedAt: i, Err: result.Err, Results: results}
		}
	}
	return core.SequenceResult{Success: true, FailedAt: -1, Results: results}
}

// ResumeSequence re-executes calls, skipping those that already completed
// successfully in a previous run of the same sequence against this session.
// Completion is detected from capability_dispatched entries with status
// "completed" whose step index and capability both match; matched steps yield
// a synthetic {"resumed": true} result. Execution remains fail-fast.
func (d *Dispatcher) ResumeSequence(calls []core.CapabilityCall, sess *core.Session) core.SequenceResult {
	type step struct {
		index      int64
		capability string
	}
	completed := make(map[step]bool)
	for _, e := range sess.Trajectory(core.TrajectoryFilter{EntryType: core.EntryCapabilityDispatched}) {
		if e.Content["status"] != "completed" {
			continue
		}
		idx, ok := stepIndex(e.Content)
		if !ok {
			continue
		}
		if capability, ok := e.Content["capability"].(string); ok {
			completed[step{idx, capability}] = true
		}
	}

	results := make([]core.InvokeResult, 0, len(calls))
	for i, call := range calls {
		if completed[step{int64(i), call.Capability}] {
			results = append(results, core.OK(
				map[string]any{"resumed": true, "step_index": i},
				DispatcherAgentID, call.Capability,
			))
			continue
		}
		result := d.dispatchCall(call, sess, i)
		results = append(results, result)
		if !result.Success {
			return core.SequenceResult{Success: false, FailedAt: i, Err: result.Err, Results: results}
		}
	}
	return core.SequenceResult{Success: true, FailedAt: -1, Results: results}
}

// dispatchCall performs one routed invocation. A step >= 0 tags the
// bracketing entries with the position within a sequence.
func (d *Dispatcher) dispatchCall(call core.CapabilityCall, sess *core.Session, step int) core.InvokeResult {
	d.mu.RLock()
	agent, ok := d.byCapability[call.Capability]
	d.mu.RUnlock()

	if !ok {
		d.appendMarker(sess, map[string]any{
			"capability": call.Capability,
			"status":     "unknown",
		}, step)
		return core.FailWithDetails(core.CodeUnknownCapability,
			fmt.Sprintf("no agent registered for capability %q", call.Capability),
			DispatcherAgentID, call.Capability,
			map[string]any{"available_capabilities": d.Capabilities()},
		)
	}

	agentID := agent.Info().AgentID
	d.appendMarker(sess, map[string]any{
		"capability": call.Capability,
		"agent_id":   agentID,
		"status":     "started",
	}, step)

	result := d.safeInvoke(agent, agentID, call, sess)

	status := "completed"
	if !result.Success {
		status = "failed"
	}
	d.appendMarker(sess, map[string]any{
		"capability": call.Capability,
		"agent_id":   agentID,
		"status":     status,
	}, step)

	return result
}

// safeInvoke contains agent panics, converting them to AGENT_ERROR results.
// This is a safety net, not a substitute for well-behaved agents.
func (d *Dispatcher) safeInvoke(agent core.Agent, agentID string, call core.CapabilityCall, sess *core.Session) (result core.InvokeResult) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("agent panicked", "agent_id", agentID, "capability", call.Capability, "panic", r)
			result = core.Fail(core.CodeAgentError,
				fmt.Sprintf("agent panicked: %v", r), agentID, call.Capability)
		}
	}()
	return agent.Invoke(call.Capability, sess, call.Params)
}

func (d *Dispatcher) appendMarker(sess *core.Session, content map[string]any, step int) {
	if step >= 0 {
		content["step_index"] = step
	}
	if _, err := sess.Append(DispatcherAgentID, core.EntryCapabilityDispatched, content); err != nil {
		// Marker payloads are built from scalars; a failure here indicates a
		// programming error rather than bad input.
		d.logger.Error("failed to append dispatch marker", "error", err)
	}
}

// stepIndex extracts a numeric step_index from canonicalized entry content.
func stepIndex(content map[string]any) (int64, bool) {
	switch v := content["step_index"].(type) {
	case json.Number:
		i, err := v.Int64()
		return i, err == nil
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
