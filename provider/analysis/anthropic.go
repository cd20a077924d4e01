package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicOptions configure the Anthropic backend.
type AnthropicOptions struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	// APIKey overrides ANTHROPIC_API_KEY when set.
	APIKey string
}

// AnthropicBackend completes prompts via the Anthropic Messages API.
type AnthropicBackend struct {
	client *anthropic.Client
	opts   AnthropicOptions
}

var _ Backend = (*AnthropicBackend)(nil)

// NewAnthropicBackend creates the backend using the official client.
func NewAnthropicBackend(optFns ...func(o *AnthropicOptions)) *AnthropicBackend {
	opts := AnthropicOptions{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &AnthropicBackend{client: &client, opts: opts}
}

// Name identifies the backend for diagnostics.
func (b *AnthropicBackend) Name() string { return "anthropic:" + string(b.opts.Model) }

// Complete runs one non-streaming message and concatenates the text blocks.
func (b *AnthropicBackend) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       b.opts.Model,
		MaxTokens:   b.opts.MaxTokens,
		Temperature: anthropic.Float(b.opts.Temperature),
		System: []anthropic.TextBlockParam{
			{Text: systemDirective},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text content returned")
	}

	return sb.String(), nil
}
