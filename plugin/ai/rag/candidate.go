// Package rag fuses ranked retrieval lists and re-ranks the fused
// candidates with a language model.
package rag

import (
	"sort"

	"github.com/dp9910/app4me-sub001/store"
)

// Retrieval method names.
const (
	MethodSemantic = "semantic"
	MethodKeyword  = "keyword"
)

// Candidate is an app under consideration during one search request.
type Candidate struct {
	AppID string

	// App is resolved from the store after fusion.
	App *store.App

	// Semantic retrieval.
	SemanticScore float64 // similarity plus intent boost
	Similarity    float64

	// Keyword retrieval.
	KeywordScore    float64
	MatchedKeywords []string

	// Fusion.
	Methods        []string
	RRFScore       float64
	RetrievalScore float64 // RRFScore normalized to (0, 1]

	// Re-ranking.
	RelevanceScore    float64 // 0-10
	Confidence        float64 // 0-1
	PersonalizedPitch string
	MatchExplanation  string
	FinalScore        float64
	Reranked          bool
	Rank              int
}

// Clone returns a copy of c that shares no slices with it.
func (c *Candidate) Clone() *Candidate {
	out := *c
	out.MatchedKeywords = append([]string(nil), c.MatchedKeywords...)
	out.Methods = append([]string(nil), c.Methods...)
	return &out
}

// HasMethod reports whether method contributed to the candidate.
func (c *Candidate) HasMethod(method string) bool {
	for _, m := range c.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// Name returns the app title, or the app id when the app is unresolved.
func (c *Candidate) Name() string {
	if c.App != nil && c.App.Title != "" {
		return c.App.Title
	}
	return c.AppID
}

// sortByScore sorts candidates by score descending, then app id ascending.
func sortByScore(candidates []*Candidate, score func(*Candidate) float64) {
	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := score(candidates[i]), score(candidates[j])
		if si != sj {
			return si > sj
		}
		return candidates[i].AppID < candidates[j].AppID
	})
}

// mergeKeywords returns the sorted union of two keyword sets.
func mergeKeywords(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	set := make(map[string]struct{}, len(a)+len(b))
	for _, k := range a {
		set[k] = struct{}{}
	}
	for _, k := range b {
		set[k] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
