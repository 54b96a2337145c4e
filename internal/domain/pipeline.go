package domain

import (
	"fmt"
	"strings"
)

// DecompositionResult is the planner's verdict for one utterance.
type DecompositionResult struct {
	NeedsResearch bool     `json:"needs_research"`
	SubQueries    []string `json:"sub_queries"`
}

// NoResearch is the degraded plan used whenever planning fails.
func NoResearch() DecompositionResult {
	return DecompositionResult{NeedsResearch: false, SubQueries: []string{}}
}

// ResearchFinding is the outcome of one sub-query. Failed lookups carry an
// error-marker summary instead of an error value.
type ResearchFinding struct {
	Query   string
	Summary string
	Failed  bool
}

// ResearchBundle maps sub-queries to findings, preserving the order in which
// the sub-queries were issued.
type ResearchBundle struct {
	findings []ResearchFinding
	index    map[string]int
}

// NewResearchBundle builds a bundle from findings. Later findings for a
// repeated query replace earlier ones.
func NewResearchBundle(findings ...ResearchFinding) ResearchBundle {
	b := ResearchBundle{index: make(map[string]int, len(findings))}
	for _, f := range findings {
		b.Put(f)
	}
	return b
}

// Put stores a finding keyed by its query.
func (b *ResearchBundle) Put(f ResearchFinding) {
	if b.index == nil {
		b.index = make(map[string]int)
	}
	if i, ok := b.index[f.Query]; ok {
		b.findings[i] = f
		return
	}
	b.index[f.Query] = len(b.findings)
	b.findings = append(b.findings, f)
}

// Get returns the finding recorded for query.
func (b ResearchBundle) Get(query string) (ResearchFinding, bool) {
	i, ok := b.index[query]
	if !ok {
		return ResearchFinding{}, false
	}
	return b.findings[i], true
}

// Len returns the number of distinct sub-queries in the bundle.
func (b ResearchBundle) Len() int {
	return len(b.findings)
}

// Findings returns the findings in issue order.
func (b ResearchBundle) Findings() []ResearchFinding {
	out := make([]ResearchFinding, len(b.findings))
	copy(out, b.findings)
	return out
}

// Failures counts findings that carry an error marker.
func (b ResearchBundle) Failures() int {
	n := 0
	for _, f := range b.findings {
		if f.Failed {
			n++
		}
	}
	return n
}

// Format renders the bundle as prompt text, one "Research on" block per entry.
func (b ResearchBundle) Format() string {
	if len(b.findings) == 0 {
		return ""
	}
	parts := make([]string, 0, len(b.findings))
	for _, f := range b.findings {
		parts = append(parts, fmt.Sprintf("Research on %s:\n%s", f.Query, f.Summary))
	}
	return strings.Join(parts, "\n")
}

// RetrievalContext is the formatted local-knowledge block handed to synthesis.
type RetrievalContext string

// Empty reports whether nothing was retrieved.
func (c RetrievalContext) Empty() bool {
	return strings.TrimSpace(string(c)) == ""
}

// String returns the raw block.
func (c RetrievalContext) String() string {
	return string(c)
}
