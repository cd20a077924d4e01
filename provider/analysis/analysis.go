// Package analysis implements an LLM-backed gateway.Provider that turns
// research context into structured proposal material (company overviews,
// use-case ideas, feasibility notes). Three interchangeable backends wrap
// the OpenAI, Anthropic and Gemini SDKs; the provider owns prompt
// construction and response parsing so backends stay thin.
//
// Backends return the raw completion text; the provider requires a JSON
// array payload and classifies anything else as malformed_response, so a
// drifting model cannot leak prose into downstream agents.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/proposalmesh/core"
	"github.com/hupe1980/proposalmesh/gateway"
	"github.com/hupe1980/proposalmesh/internal/util"
)

// ProviderID is the gateway registration ID.
const ProviderID = "analysis"

// Focus values selected via ToolQuery.Filters["focus"].
const (
	FocusOverview    = "overview"
	FocusUseCases    = "use_cases"
	FocusFeasibility = "feasibility"
)

// systemDirective is the shared system-role instruction for all backends.
const systemDirective = "You are a precise business and AI strategy analyst. " +
	"Respond only with the JSON requested, never with prose or code fences."

// promptTemplate renders the user prompt for one analysis call.
const promptTemplate = `{{.directive}}

Subject: {{.subject}}

Respond with a JSON array only. Each element must be an object with "title" and "snippet" string fields{{if .extra}} plus {{.extra}}{{end}}. Return at most {{.limit}} elements.`

// Backend generates one completion for a prompt. Implementations wrap a
// concrete LLM SDK and must be safe for concurrent use.
type Backend interface {
	// Name identifies the backend for diagnostics, e.g. "openai:gpt-4-turbo-preview".
	Name() string

	// Complete returns the completion text for the prompt.
	Complete(ctx context.Context, prompt string) (string, error)
}

// Options configure the analysis provider.
type Options struct {
	// MaxResults bounds result count when the query does not set a limit.
	MaxResults int
}

// Provider adapts a Backend to the gateway.Provider contract.
type Provider struct {
	backend Backend
	opts    Options
}

var _ gateway.Provider = (*Provider)(nil)

// New creates an analysis provider over the given backend.
func New(backend Backend, optFns ...func(o *Options)) *Provider {
	opts := Options{MaxResults: 5}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Provider{backend: backend, opts: opts}
}

// ID returns the gateway registration ID.
func (p *Provider) ID() string { return ProviderID }

// Description summarizes the provider for diagnostics and tooling.
func (p *Provider) Description() string {
	return fmt.Sprintf("Generate structured analysis material via %s.", p.backend.Name())
}

// QuerySchema describes the accepted query parameters.
func (p *Provider) QuerySchema() map[string]any {
	return util.BuildQuerySchema(core.ToolQuery{})
}

// Search renders the prompt for the query's focus, runs the backend and
// parses the JSON array it returns. An undecodable completion is a
// malformed_response failure, never a partial result.
func (p *Provider) Search(ctx context.Context, q core.ToolQuery) ([]core.ToolResult, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = p.opts.MaxResults
	}

	directive, extra := focusDirective(q.Filters["focus"])
	prompt, err := util.RenderTemplate(promptTemplate, map[string]any{
		"directive": directive,
		"subject":   q.Text,
		"extra":     extra,
		"limit":     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("analysis: render prompt: %w", err)
	}

	completion, err := p.backend.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return parseCompletion(completion, limit)
}

// focusDirective maps a focus filter onto the prompt directive and the
// extra fields the model must emit.
func focusDirective(focus string) (directive, extra string) {
	switch focus {
	case FocusUseCases:
		return "Propose concrete AI/ML use cases for the subject below. " +
				"For each use case describe the opportunity and its expected benefit.",
			`"impact" (expected benefit), "complexity" (one of "low", "medium", "high") and "priority" (integer, 1 is highest) fields`
	case FocusFeasibility:
		return "Assess the implementation feasibility of AI/ML initiatives for the subject below. " +
			"Cover data readiness, integration effort and organizational risk.", ""
	default:
		return "Summarize the subject below for a consulting engagement: " +
			"industry position, core offerings, target markets and technology posture.", ""
	}
}

// parseCompletion decodes a JSON-array completion into results. Elements
// without a title are dropped; extra fields travel in Metadata.
func parseCompletion(completion string, limit int) ([]core.ToolResult, error) {
	payload := stripFences(completion)
	if !gjson.Valid(payload) {
		return nil, gateway.MalformedResponse(ProviderID, errors.New("completion is not valid JSON"))
	}

	items := gjson.Parse(payload)
	if !items.IsArray() {
		return nil, gateway.MalformedResponse(ProviderID, errors.New("completion is not a JSON array"))
	}

	results := make([]core.ToolResult, 0, limit)
	items.ForEach(func(_, item gjson.Result) bool {
		if len(results) >= limit {
			return false
		}
		title := item.Get("title").String()
		if title == "" {
			return true
		}

		snippet := item.Get("snippet").String()
		if snippet == "" {
			snippet = item.Get("description").String()
		}

		r := core.ToolResult{
			Title:   title,
			Snippet: snippet,
			Source:  "analysis",
		}

		meta := map[string]any{}
		if v := item.Get("impact"); v.Exists() {
			meta["impact"] = v.String()
		}
		if v := item.Get("complexity"); v.Exists() {
			meta["complexity"] = v.String()
		}
		if v := item.Get("priority"); v.Exists() {
			meta["priority"] = v.Int()
		}
		if len(meta) > 0 {
			r.Metadata = meta
		}

		results = append(results, r)
		return true
	})

	if len(results) == 0 {
		return nil, gateway.MalformedResponse(ProviderID, errors.New("completion held no usable elements"))
	}
	return results, nil
}

// stripFences tolerates models that wrap JSON in markdown code fences
// despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
