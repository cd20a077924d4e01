// Package gateway routes agent tool calls to registered search providers with
// schema-validated queries, per-call timeouts, per-provider concurrency
// limits and a normalized failure taxonomy. Raw transport and HTTP errors
// never surface to agents; every completed call yields a core.ToolOutcome
// describing either results or a classified failure, so agents need exactly
// one handling path regardless of the backend.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/proposalmesh/core"
	"github.com/hupe1980/proposalmesh/internal/util"
	"github.com/hupe1980/proposalmesh/logging"
)

// ErrUnknownProvider is returned by Invoke when no provider is registered
// under the requested ID. It is a contract violation, not an operational
// failure: callers address providers they wired themselves.
var ErrUnknownProvider = errors.New("gateway: unknown provider")

// Provider is a single external search capability (web search, market data,
// dataset catalogs, code hosting) the gateway can invoke on behalf of agents.
//
// Implementations should:
//   - Return *core.ToolFailureError for conditions they can classify
//     themselves (HTTP status mapping, payload decode failures)
//   - Return plain errors for unexpected transport problems; the gateway
//     classifies those
//   - Be safe for concurrent use
type Provider interface {
	// ID returns the unique provider identifier (snake_case recommended).
	ID() string

	// Description returns a short summary of what the provider searches.
	Description() string

	// QuerySchema returns a JSON-Schema-like map describing the accepted
	// query parameters, validated before dispatch.
	QuerySchema() map[string]any

	// Search executes the query and returns normalized results.
	Search(ctx context.Context, q core.ToolQuery) ([]core.ToolResult, error)
}

// Options configure a Gateway.
type Options struct {
	// CallTimeout bounds a single provider call. Zero disables the bound.
	CallTimeout time.Duration
	// ProviderConcurrency caps in-flight calls per provider. Calls beyond
	// the cap fail fast as rate_limited. Zero or negative means unlimited.
	ProviderConcurrency int
	// Logger receives per-call diagnostics.
	Logger logging.Logger
}

// Gateway is the single chokepoint between agents and external providers.
// Register providers during setup; Invoke is safe for concurrent use.
type Gateway struct {
	opts      Options
	mu        sync.RWMutex
	providers map[string]Provider
	limiters  map[string]*Limiter
}

// New creates a Gateway.
func New(optFns ...func(o *Options)) *Gateway {
	opts := Options{
		CallTimeout:         30 * time.Second,
		ProviderConcurrency: 4,
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Gateway{
		opts:      opts,
		providers: make(map[string]Provider),
		limiters:  make(map[string]*Limiter),
	}
}

// Register adds a provider. Registering an empty or duplicate ID is an error.
func (g *Gateway) Register(p Provider) error {
	id := p.ID()
	if id == "" {
		return fmt.Errorf("gateway: provider has empty ID")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.providers[id]; exists {
		return fmt.Errorf("gateway: provider %q already registered", id)
	}
	g.providers[id] = p
	g.limiters[id] = NewLimiter(g.opts.ProviderConcurrency)

	return nil
}

// MustRegister is Register that panics on error, for setup code.
func (g *Gateway) MustRegister(p Provider) {
	if err := g.Register(p); err != nil {
		panic(err)
	}
}

// Provider looks up a registered provider by ID.
func (g *Gateway) Provider(id string) (Provider, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.providers[id]
	return p, ok
}

// ProviderIDs returns the registered provider IDs in sorted order.
func (g *Gateway) ProviderIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]string, 0, len(g.providers))
	for id := range g.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Invoke routes one query to providerID and returns a normalized outcome.
//
// The error return reports contract violations only: an unknown provider or
// a query failing the provider's schema. Operational failures (rate limits,
// auth, timeouts, transport, malformed payloads) are carried inside the
// outcome so retry policy can be applied uniformly by the caller.
func (g *Gateway) Invoke(ctx context.Context, providerID string, q core.ToolQuery) (core.ToolOutcome, error) {
	g.mu.RLock()
	p, ok := g.providers[providerID]
	lim := g.limiters[providerID]
	g.mu.RUnlock()

	if !ok {
		return core.ToolOutcome{}, fmt.Errorf("%w: %q", ErrUnknownProvider, providerID)
	}

	params, err := util.StructToParams(q)
	if err != nil {
		return core.ToolOutcome{}, fmt.Errorf("gateway: encode query: %w", err)
	}
	if err := util.ValidateQueryParams(params, p.QuerySchema()); err != nil {
		return core.ToolOutcome{}, fmt.Errorf("gateway: invalid query for provider %s: %w", providerID, err)
	}

	if !lim.TryAcquire() {
		g.opts.Logger.Warn("gateway.call.throttled", "provider", providerID)
		return core.Failed(providerID, core.FailureRateLimited, "provider concurrency limit reached"), nil
	}
	defer lim.Release()

	callCtx := ctx
	if g.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.opts.CallTimeout)
		defer cancel()
	}

	start := time.Now()
	results, err := p.Search(callCtx, q)
	elapsed := time.Since(start)

	if err != nil {
		kind, detail := classifyError(err)
		g.opts.Logger.Warn("gateway.call.failed",
			"provider", providerID,
			"kind", string(kind),
			"detail", detail,
			"duration_ms", elapsed.Milliseconds())

		out := core.Failed(providerID, kind, detail)
		out.Duration = elapsed
		return out, nil
	}

	g.opts.Logger.Debug("gateway.call.ok",
		"provider", providerID,
		"results", len(results),
		"duration_ms", elapsed.Milliseconds())

	out := core.Success(providerID, results)
	out.Duration = elapsed
	return out, nil
}
