package testutil

import (
	"github.com/hupe1980/proposalmesh/core"
)

// DocumentBuilder provides a fluent helper for constructing proposal
// documents in tests.
// Example:
//
//	doc := NewDocumentBuilder().Section("Company Summary", "Acme moves freight.").Missing("Data Resources").Build()
//
// Complete is derived on Build from the sections marked missing.
type DocumentBuilder struct {
	company  string
	industry string
	sections []core.ProposalSection
	missing  []string
}

// NewDocumentBuilder creates a builder with fixture company defaults.
func NewDocumentBuilder() *DocumentBuilder {
	return &DocumentBuilder{company: "Acme Logistics", industry: "supply-chain"}
}

// Company overrides the company the document is addressed to (chainable).
func (b *DocumentBuilder) Company(name string) *DocumentBuilder { b.company = name; return b }

// Industry overrides the industry the document covers (chainable).
func (b *DocumentBuilder) Industry(name string) *DocumentBuilder { b.industry = name; return b }

// Section appends an available section with the given title and body (chainable).
func (b *DocumentBuilder) Section(title, body string) *DocumentBuilder {
	b.sections = append(b.sections, core.ProposalSection{Title: title, Body: body, Available: true})
	return b
}

// Missing appends an unavailable placeholder section and records its title as
// missing (chainable).
func (b *DocumentBuilder) Missing(title string) *DocumentBuilder {
	b.sections = append(b.sections, core.ProposalSection{Title: title, Available: false})
	b.missing = append(b.missing, title)
	return b
}

// Build constructs the *core.ProposalDocument value. Complete is true when no
// section was marked missing.
func (b *DocumentBuilder) Build() *core.ProposalDocument {
	doc := &core.ProposalDocument{
		Company:  b.company,
		Industry: b.industry,
		Complete: len(b.missing) == 0,
	}
	if len(b.sections) > 0 {
		doc.Sections = append([]core.ProposalSection{}, b.sections...)
	}
	if len(b.missing) > 0 {
		doc.MissingSections = append([]string{}, b.missing...)
	}
	return doc
}
