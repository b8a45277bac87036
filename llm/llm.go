package llm

import "context"

// Response is the result of a completion request.
type Response struct {
	// Text is the generated completion.
	Text string
	// Model identifies the model that produced the response.
	Model string
	// Usage carries token accounting when the backend reports it.
	Usage *Usage
}

// Usage is optional token accounting attached to a Response.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Provider is the minimal LLM backend contract. Implementations own their
// configuration (endpoints, keys, timeouts), block for the duration of the
// call and report failures as LLM_ERROR values. No streaming: the planner
// needs whole responses to parse structured output from.
type Provider interface {
	// Complete generates a completion for prompt. system may be empty.
	Complete(ctx context.Context, prompt, system string) (*Response, error)
	// ModelName identifies the configured model (e.g. "llama3.1:8b").
	ModelName() string
}
