// Package anthropic implements llm.Provider over the Anthropic Messages API.
package anthropic

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sessionmesh/sessionmesh/core"
	"github.com/sessionmesh/sessionmesh/llm"
)

// Options configure the provider.
type Options struct {
	// Model is the Claude model identifier.
	Model anthropic.Model
	// MaxTokens bounds the completion.
	MaxTokens int64
	// APIKey overrides the ANTHROPIC_API_KEY environment variable.
	APIKey string
}

// Provider wraps the official Anthropic client behind the llm.Provider contract.
type Provider struct {
	client *anthropic.Client
	opts   Options
}

// New creates a Provider with the given option overrides.
func New(optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:     anthropic.ModelClaude3_5Sonnet20241022,
		MaxTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Provider{client: &client, opts: opts}
}

// ModelName returns the configured model.
func (p *Provider) ModelName() string { return string(p.opts.Model) }

// Complete generates a completion via the Messages API.
func (p *Provider) Complete(ctx context.Context, prompt, system string) (*llm.Response, error) {
	params := anthropic.MessageNewParams{
		Model:     p.opts.Model,
		MaxTokens: p.opts.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, core.Errorf(core.CodeLLMError, "anthropic api error: %v", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}

	out := &llm.Response{Text: sb.String(), Model: string(resp.Model)}
	if resp.Usage.InputTokens > 0 || resp.Usage.OutputTokens > 0 {
		out.Usage = &llm.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		}
	}
	return out, nil
}

var _ llm.Provider = (*Provider)(nil)
