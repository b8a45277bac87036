// Package ollama implements llm.Provider against a local Ollama server.
//
// The provider uses the /api/generate endpoint for raw completions rather
// than /api/chat: the planner needs unadorned structured output. The target
// model must already be pulled (e.g. `ollama pull llama3.1:8b`).
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sessionmesh/sessionmesh/core"
	"github.com/sessionmesh/sessionmesh/llm"
)

const (
	// DefaultBaseURL targets a local Ollama installation.
	DefaultBaseURL = "http://localhost:11434"
	// DefaultModel balances quality and speed for planning.
	DefaultModel = "llama3.1:8b"
	// DefaultTimeout bounds a single completion request.
	DefaultTimeout = 120 * time.Second
)

// Options configure the provider.
type Options struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	// HTTPClient overrides the default client; its Timeout wins when set.
	HTTPClient *http.Client
}

// Provider talks to an Ollama server over HTTP.
type Provider struct {
	baseURL string
	model   string
	client  *http.Client
}

// New creates a Provider with the given option overrides.
func New(optFns ...func(o *Options)) *Provider {
	opts := Options{BaseURL: DefaultBaseURL, Model: DefaultModel, Timeout: DefaultTimeout}
	for _, fn := range optFns {
		fn(&opts)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Provider{
		baseURL: trimSlash(opts.BaseURL),
		model:   opts.Model,
		client:  client,
	}
}

// ModelName returns the configured model.
func (p *Provider) ModelName() string { return p.model }

// BaseURL returns the configured server URL.
func (p *Provider) BaseURL() string { return p.baseURL }

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	PromptEvalCount int64  `json:"prompt_eval_count"`
	EvalCount       int64  `json:"eval_count"`
}

// Complete generates a full (non-streaming) completion.
func (p *Provider) Complete(ctx context.Context, prompt, system string) (*llm.Response, error) {
	body, err := json.Marshal(generateRequest{
		Model:  p.model,
		Prompt: prompt,
		System: system,
		Stream: false,
	})
	if err != nil {
		return nil, core.Errorf(core.CodeLLMError, "encode request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, core.Errorf(core.CodeLLMError, "build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, core.Errorf(core.CodeLLMError,
			"cannot reach Ollama server at %s (is Ollama running?): %v", p.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, core.Errorf(core.CodeLLMError,
			"model %q not found, try: ollama pull %s", p.model, p.model)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, core.Errorf(core.CodeLLMError, "Ollama request failed with status %d", resp.StatusCode)
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, core.Errorf(core.CodeLLMError, "decode response: %v", err)
	}

	model := decoded.Model
	if model == "" {
		model = p.model
	}
	out := &llm.Response{Text: decoded.Response, Model: model}
	if decoded.PromptEvalCount > 0 || decoded.EvalCount > 0 {
		out.Usage = &llm.Usage{InputTokens: decoded.PromptEvalCount, OutputTokens: decoded.EvalCount}
	}
	return out, nil
}

// IsAvailable reports whether the server answers on /api/tags.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ListModels returns the model names the server has pulled.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, core.Errorf(core.CodeLLMError, "build request: %v", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, core.Errorf(core.CodeLLMError, "list models: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, core.Errorf(core.CodeLLMError, "list models failed with status %d", resp.StatusCode)
	}

	var decoded struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, core.Errorf(core.CodeLLMError, "decode model list: %v", err)
	}
	names := make([]string, 0, len(decoded.Models))
	for _, m := range decoded.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

var _ llm.Provider = (*Provider)(nil)
