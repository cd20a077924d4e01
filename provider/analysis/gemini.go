package analysis

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiOptions configure the Gemini backend.
type GeminiOptions struct {
	Model string
}

// GeminiBackend completes prompts via the Gemini API. The official client
// reads GEMINI_API_KEY from the environment.
type GeminiBackend struct {
	client *genai.Client
	opts   GeminiOptions
}

var _ Backend = (*GeminiBackend)(nil)

// NewGeminiBackend creates the backend. Client construction performs setup
// work that can fail, hence the error return.
func NewGeminiBackend(ctx context.Context, optFns ...func(o *GeminiOptions)) (*GeminiBackend, error) {
	opts := GeminiOptions{Model: "gemini-2.0-flash"}
	for _, fn := range optFns {
		fn(&opts)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	return &GeminiBackend{client: client, opts: opts}, nil
}

// Name identifies the backend for diagnostics.
func (b *GeminiBackend) Name() string { return "gemini:" + b.opts.Model }

// Complete runs one generation with a JSON response MIME type. The system
// directive is prepended to the prompt since the API has no separate system
// role on this path.
func (b *GeminiBackend) Complete(ctx context.Context, prompt string) (string, error) {
	full := systemDirective + "\n\n" + prompt

	resp, err := b.client.Models.GenerateContent(ctx, b.opts.Model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: full}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return "", fmt.Errorf("gemini api error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no candidates returned")
	}

	return resp.Candidates[0].Content.Parts[0].Text, nil
}
