package assembler

import (
	"fmt"
	"strings"

	"github.com/hupe1980/proposalmesh/core"
)

// Markdown renders the document deterministically. Unavailable sections
// render with their placeholder body so the document shape is stable for
// downstream consumers regardless of how degraded the run was.
func Markdown(doc *core.ProposalDocument) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# AI/ML Implementation Proposal: %s\n\n", doc.Company)
	fmt.Fprintf(&b, "_Industry: %s_\n\n", doc.Industry)

	if !doc.Complete {
		fmt.Fprintf(&b, "> Partial document: missing %s.\n\n", strings.Join(doc.MissingSections, ", "))
	}

	for _, s := range doc.Sections {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", s.Title, s.Body)
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}
