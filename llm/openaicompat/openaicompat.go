// Package openaicompat implements llm.Provider over the OpenAI Chat
// Completions API. Pointing BaseURL at any OpenAI-compatible server (vLLM,
// Together, Groq, a Modal endpoint, OpenAI itself) makes the same provider
// work against all of them.
package openaicompat

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/sessionmesh/sessionmesh/core"
	"github.com/sessionmesh/sessionmesh/llm"
)

// Options configure the provider.
type Options struct {
	// BaseURL overrides the API endpoint for non-OpenAI servers.
	BaseURL string
	// APIKey authenticates the endpoint; many self-hosted servers ignore it.
	APIKey string
	// Model is the model identifier understood by the endpoint.
	Model string
	// MaxTokens bounds the completion when positive.
	MaxTokens int64
}

// Provider wraps the official OpenAI client behind the llm.Provider contract.
type Provider struct {
	client *openai.Client
	opts   Options
}

// New creates a Provider with the given option overrides.
func New(optFns ...func(o *Options)) *Provider {
	opts := Options{Model: openai.ChatModelGPT4oMini}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := openai.NewClient(clientOpts...)
	return &Provider{client: &client, opts: opts}
}

// ModelName returns the configured model.
func (p *Provider) ModelName() string { return p.opts.Model }

// Complete generates a completion via the chat completions endpoint.
func (p *Provider) Complete(ctx context.Context, prompt, system string) (*llm.Response, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:    p.opts.Model,
		Messages: messages,
	}
	if p.opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(p.opts.MaxTokens)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, core.Errorf(core.CodeLLMError, "chat completion failed: %v", err)
	}
	if len(resp.Choices) == 0 {
		return nil, core.NewError(core.CodeLLMError, "no choices returned")
	}

	out := &llm.Response{Text: resp.Choices[0].Message.Content, Model: resp.Model}
	if out.Model == "" {
		out.Model = p.opts.Model
	}
	if resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
		out.Usage = &llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
	}
	return out, nil
}

var _ llm.Provider = (*Provider)(nil)
