package core

import (
	"encoding/json"
	"fmt"
)

// ArtifactKind identifies the type of an Artifact.
type ArtifactKind string

// Artifact kinds produced by the four agents.
const (
	ArtifactResearchProfile  ArtifactKind = "research_profile"
	ArtifactMarketTrends     ArtifactKind = "market_trends_report"
	ArtifactResourceBundle   ArtifactKind = "resource_bundle"
	ArtifactProposalDocument ArtifactKind = "proposal_document"
)

// Valid reports whether k names a known artifact kind.
func (k ArtifactKind) Valid() bool {
	switch k {
	case ArtifactResearchProfile, ArtifactMarketTrends, ArtifactResourceBundle, ArtifactProposalDocument:
		return true
	}
	return false
}

// Artifact is the immutable typed output of one successful agent execution.
// Once produced and recorded on a run it must never be mutated; downstream
// agents receive it read-only by contract.
type Artifact interface {
	Kind() ArtifactKind
}

// Link is a titled URL reference carried inside artifacts.
type Link struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source string `json:"source,omitempty"`
}

// ResearchProfile is the Research agent's artifact: a company/industry
// profile. Terms feed downstream query refinement (ResourceAsset). A profile
// assembled from a subset of its provider calls is flagged Degraded.
type ResearchProfile struct {
	Company      string   `json:"company"`
	Industry     string   `json:"industry"`
	Overview     string   `json:"overview"`
	Offerings    []string `json:"offerings,omitempty"`
	Terms        []string `json:"terms,omitempty"`
	Sources      []Link   `json:"sources,omitempty"`
	Degraded     bool     `json:"degraded,omitempty"`
	DegradedNote string   `json:"degraded_note,omitempty"`
}

// Kind implements Artifact.
func (*ResearchProfile) Kind() ArtifactKind { return ArtifactResearchProfile }

// MarketTrend is one observed industry trend.
type MarketTrend struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Source  string `json:"source,omitempty"`
}

// UseCase is one proposed application of the researched capabilities,
// annotated with expected impact, implementation complexity and priority
// (lower value schedules earlier).
type UseCase struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Impact      string `json:"impact,omitempty"`
	Complexity  string `json:"complexity,omitempty"`
	Priority    int    `json:"priority,omitempty"`
}

// MarketTrendsReport is the MarketStandards agent's artifact.
type MarketTrendsReport struct {
	Industry     string        `json:"industry"`
	Trends       []MarketTrend `json:"trends,omitempty"`
	UseCases     []UseCase     `json:"use_cases,omitempty"`
	Degraded     bool          `json:"degraded,omitempty"`
	DegradedNote string        `json:"degraded_note,omitempty"`
}

// Kind implements Artifact.
func (*MarketTrendsReport) Kind() ArtifactKind { return ArtifactMarketTrends }

// Resource is one linked dataset or repository.
type Resource struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Source      string `json:"source,omitempty"`
	Description string `json:"description,omitempty"`
}

// ResourceBundle is the ResourceAsset agent's artifact. SearchTerms records
// the terms actually submitted to the registries, which differ depending on
// whether a ResearchProfile was available for refinement.
type ResourceBundle struct {
	Datasets     []Resource `json:"datasets,omitempty"`
	Repos        []Resource `json:"repos,omitempty"`
	SearchTerms  []string   `json:"search_terms,omitempty"`
	Degraded     bool       `json:"degraded,omitempty"`
	DegradedNote string     `json:"degraded_note,omitempty"`
}

// Kind implements Artifact.
func (*ResourceBundle) Kind() ArtifactKind { return ArtifactResourceBundle }

// ProposalSection is one ordered section of the final document. Sections for
// missing upstream data are still present with Available=false and an
// explicit placeholder body, preserving document shape for consumers.
type ProposalSection struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Available bool   `json:"available"`
}

// ProposalDocument is the terminal artifact of a run. Complete is true only
// when every section was assembled from real upstream data.
type ProposalDocument struct {
	Company         string            `json:"company"`
	Industry        string            `json:"industry"`
	Sections        []ProposalSection `json:"sections"`
	Complete        bool              `json:"complete"`
	MissingSections []string          `json:"missing_sections,omitempty"`
}

// Kind implements Artifact.
func (*ProposalDocument) Kind() ArtifactKind { return ArtifactProposalDocument }

// MarshalArtifact serializes any artifact to JSON. The kind is carried
// out-of-band (map key or envelope) so payloads stay flat.
func MarshalArtifact(a Artifact) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("artifact: cannot marshal nil artifact")
	}
	return json.Marshal(a)
}

// UnmarshalArtifact deserializes an artifact payload of a known kind.
func UnmarshalArtifact(kind ArtifactKind, data []byte) (Artifact, error) {
	var a Artifact
	switch kind {
	case ArtifactResearchProfile:
		a = &ResearchProfile{}
	case ArtifactMarketTrends:
		a = &MarketTrendsReport{}
	case ArtifactResourceBundle:
		a = &ResourceBundle{}
	case ArtifactProposalDocument:
		a = &ProposalDocument{}
	default:
		return nil, fmt.Errorf("artifact: unknown kind %q", kind)
	}
	if err := json.Unmarshal(data, a); err != nil {
		return nil, fmt.Errorf("artifact: decode %s: %w", kind, err)
	}
	return a, nil
}
