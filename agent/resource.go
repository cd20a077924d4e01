package agent

import (
	"strings"

	"github.com/hupe1980/proposalmesh/core"
)

// ResourceAssetOptions configure the ResourceAsset agent.
type ResourceAssetOptions struct {
	// DatasetProviders are the gateway IDs of the dataset registries, each
	// queried once per run.
	DatasetProviders []string
	// CodeHostProvider is the gateway ID of the repository search backend.
	CodeHostProvider string
	// SearchLimit is the per-call result cap.
	SearchLimit int
	// MaxTerms caps how many profile terms refine the registry queries.
	MaxTerms int
}

// ResourceAsset locates datasets and reference implementations. Its only
// dependency is the ResearchProfile, and an optional one: when present its
// terms refine the registry queries, otherwise the raw industry keyword is
// used.
type ResourceAsset struct {
	opts ResourceAssetOptions
}

var _ core.Agent = (*ResourceAsset)(nil)

// NewResourceAsset creates the ResourceAsset agent.
func NewResourceAsset(optFns ...func(o *ResourceAssetOptions)) *ResourceAsset {
	opts := ResourceAssetOptions{
		DatasetProviders: []string{"kaggle_datasets", "huggingface_datasets"},
		CodeHostProvider: "code_search",
		SearchLimit:      5,
		MaxTerms:         3,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &ResourceAsset{opts: opts}
}

// Kind implements core.Agent.
func (a *ResourceAsset) Kind() core.AgentKind { return core.AgentResourceAsset }

// Run queries every dataset registry plus the code host concurrently and
// folds successes into a ResourceBundle. SearchTerms records the effective
// query vocabulary so consumers can tell a refined run from a raw one.
func (a *ResourceAsset) Run(tc *core.TaskContext) (core.Artifact, error) {
	terms := a.searchTerms(tc)
	searchText := strings.Join(terms, " ")

	calls := make([]providerCall, 0, len(a.opts.DatasetProviders)+1)
	for _, id := range a.opts.DatasetProviders {
		calls = append(calls, providerCall{id, core.ToolQuery{
			Text:  searchText,
			Limit: a.opts.SearchLimit,
		}})
	}
	calls = append(calls, providerCall{a.opts.CodeHostProvider, core.ToolQuery{
		Text:  searchText + " machine learning",
		Limit: a.opts.SearchLimit,
	}})

	outcomes, err := fanOut(tc, calls)
	if err != nil {
		return nil, err
	}

	ok, failed := splitOutcomes(outcomes)
	if len(ok) == 0 {
		return nil, exhausted(a.Kind(), failed)
	}

	bundle := &core.ResourceBundle{SearchTerms: terms}
	for i, out := range outcomes {
		if !out.OK() {
			continue
		}
		isCodeHost := i == len(outcomes)-1
		for _, r := range out.Results {
			res := core.Resource{
				Title:       r.Title,
				URL:         r.URL,
				Source:      r.Source,
				Description: r.Snippet,
			}
			if isCodeHost {
				bundle.Repos = append(bundle.Repos, res)
			} else {
				bundle.Datasets = append(bundle.Datasets, res)
			}
		}
	}

	if len(failed) > 0 {
		bundle.Degraded = true
		bundle.DegradedNote = failureSummary(failed)
	}

	return bundle, nil
}

// searchTerms prefers the research profile's refined terms and falls back
// to the raw industry keyword when the profile is absent or empty.
func (a *ResourceAsset) searchTerms(tc *core.TaskContext) []string {
	if profile, ok := tc.ResearchProfile(); ok && len(profile.Terms) > 0 {
		terms := profile.Terms
		if len(terms) > a.opts.MaxTerms {
			terms = terms[:a.opts.MaxTerms]
		}
		out := make([]string, len(terms))
		copy(out, terms)
		return out
	}
	return []string{strings.ToLower(tc.Request.Industry)}
}
