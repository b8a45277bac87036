// Package planner turns natural language requests into ordered capability
// call sequences using an LLM provider. The planner only plans; executing the
// calls is the dispatcher's job.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sessionmesh/sessionmesh/core"
	"github.com/sessionmesh/sessionmesh/llm"
	"github.com/sessionmesh/sessionmesh/logging"
)

// PlannerAgentID attributes plan_generated trajectory entries.
const PlannerAgentID = "planner"

const systemPromptTemplate = `You are a planning assistant that converts user requests into a sequence of capability calls.

Available capabilities:
%s

Your task:
1. Understand what the user wants to do
2. Break it down into a sequence of capability calls
3. Return ONLY a JSON array of capability calls

Each capability call must have this format:
{"capability": "capability_name", "params": {"key": "text"}}

The "key" parameter specifies which state key to operate on. Use "text" as the default key.

Rules:
- Return ONLY valid JSON, no other text
- The JSON must be an array of capability call objects
- Execute capabilities in the order they should be performed
- If the request doesn't match any capabilities, return an empty array []

Example user input: "reverse the text and make it uppercase"
Example output: [{"capability": "reverse", "params": {"key": "text"}}, {"capability": "uppercase", "params": {"key": "text"}}]

Remember: Return ONLY the JSON array, nothing else.`

// PlanResult is the outcome of a planning request. On success Calls holds the
// ordered sequence; on failure Err carries LLM_ERROR or PLAN_PARSE_ERROR.
// RawResponse preserves the unparsed LLM output for debugging either way.
type PlanResult struct {
	Success     bool
	Calls       []core.CapabilityCall
	Err         *core.Error
	RawResponse string
}

// Options configure a Planner.
type Options struct {
	// Capabilities the planner may use. Usually dispatcher.Capabilities().
	Capabilities []string
	// Logger receives planning diagnostics. Defaults to NoOp.
	Logger logging.Logger
}

// Planner converts prompts into capability call sequences via an LLM.
type Planner struct {
	provider     llm.Provider
	capabilities []string
	logger       logging.Logger
}

// New creates a Planner backed by the given provider.
func New(provider llm.Provider, optFns ...func(o *Options)) *Planner {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Planner{
		provider:     provider,
		capabilities: append([]string(nil), opts.Capabilities...),
		logger:       opts.Logger,
	}
}

// SetCapabilities replaces the capability list the planner may plan with.
func (p *Planner) SetCapabilities(capabilities []string) {
	p.capabilities = append([]string(nil), capabilities...)
}

// Capabilities returns a copy of the current capability list.
func (p *Planner) Capabilities() []string {
	return append([]string(nil), p.capabilities...)
}

// Plan generates a capability call sequence for prompt. When sess is non-nil
// a plan_generated entry is appended with the prompt, the calls and the model
// that produced them.
func (p *Planner) Plan(ctx context.Context, prompt string, sess *core.Session) PlanResult {
	if len(p.capabilities) == 0 {
		return failResult(core.NewError(core.CodePlanParseError,
			"no capabilities available; register agents with the dispatcher first"), "")
	}

	var caps strings.Builder
	for _, c := range p.capabilities {
		fmt.Fprintf(&caps, "- %s\n", c)
	}
	system := fmt.Sprintf(systemPromptTemplate, strings.TrimRight(caps.String(), "\n"))

	resp, err := p.provider.Complete(ctx, prompt, system)
	if err != nil {
		p.logger.Warn("planning failed", "error", err)
		var se *core.Error
		if errors.As(err, &se) {
			return failResult(se, "")
		}
		return failResult(core.Errorf(core.CodeLLMError, "completion failed: %v", err), "")
	}

	raw := strings.TrimSpace(resp.Text)
	calls, perr := parseCalls(raw)
	if perr != nil {
		return failResult(perr, raw)
	}
	for _, call := range calls {
		if !contains(p.capabilities, call.Capability) {
			return failResult(core.Errorf(core.CodePlanParseError,
				"plan uses unknown capability %q", call.Capability).
				WithDetails(map[string]any{"available": p.capabilities}), raw)
		}
	}

	if sess != nil {
		encoded := make([]any, len(calls))
		for i, call := range calls {
			encoded[i] = map[string]any{"capability": call.Capability, "params": call.Params}
		}
		_, _ = sess.Append(PlannerAgentID, core.EntryPlanGenerated, map[string]any{
			"prompt": prompt,
			"calls":  encoded,
			"model":  resp.Model,
		})
	}

	p.logger.Debug("plan generated", "calls", len(calls), "model", resp.Model)
	return PlanResult{Success: true, Calls: calls, RawResponse: raw}
}

// parseCalls extracts the first JSON array from text. Models sometimes wrap
// the array in prose; anything between the first '[' and the last ']' is
// treated as the candidate payload.
func parseCalls(text string) ([]core.CapabilityCall, *core.Error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		// A refusal like "none of the capabilities apply" means an empty plan.
		lower := strings.ToLower(text)
		for _, marker := range []string{"empty", "none", "no "} {
			if strings.Contains(lower, marker) {
				return nil, nil
			}
		}
		return nil, core.Errorf(core.CodePlanParseError,
			"no JSON array found in response: %s", truncate(text, 200))
	}

	var items []map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &items); err != nil {
		return nil, core.Errorf(core.CodePlanParseError, "invalid JSON in response: %v", err)
	}

	calls := make([]core.CapabilityCall, 0, len(items))
	for i, item := range items {
		capability, ok := item["capability"].(string)
		if !ok || capability == "" {
			return nil, core.Errorf(core.CodePlanParseError, "item %d is missing 'capability'", i)
		}
		params, _ := item["params"].(map[string]any)
		calls = append(calls, core.CapabilityCall{Capability: capability, Params: params})
	}
	return calls, nil
}

func failResult(err *core.Error, raw string) PlanResult {
	return PlanResult{Success: false, Err: err, RawResponse: raw}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
