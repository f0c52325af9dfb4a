package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dp9910/app4me-sub001/plugin/ai"
	"github.com/dp9910/app4me-sub001/plugin/ai/llmjson"
	"github.com/dp9910/app4me-sub001/plugin/ai/timeout"
)

// UserContext personalizes re-ranking.
type UserContext struct {
	LifestyleTags        []string `json:"lifestyle_tags"`
	PreferredUseCases    []string `json:"preferred_use_cases"`
	ComplexityPreference string   `json:"complexity_preference"`
	UsageContext         string   `json:"usage_context"`
}

// RerankConfig holds the blend weights of re-ranking.
type RerankConfig struct {
	RetrievalWeight     float64 // weight of the normalized retrieval score
	RelevanceWeight     float64 // weight of relevance/10
	ConfidenceThreshold float64 // confidence above which the bonus applies
	ConfidenceBonus     float64
	MaxCandidates       int // candidates sent to the model
	DescriptionLimit    int // description runes in the prompt
}

// DefaultRerankConfig returns the default re-ranking configuration.
func DefaultRerankConfig() RerankConfig {
	return RerankConfig{
		RetrievalWeight:     0.3,
		RelevanceWeight:     0.7,
		ConfidenceThreshold: 0.8,
		ConfidenceBonus:     0.1,
		MaxCandidates:       20,
		DescriptionLimit:    200,
	}
}

// Reranker re-scores fused candidates with one batched model call.
type Reranker struct {
	llm         ai.LLMService
	config      RerankConfig
	callTimeout time.Duration
	logger      *slog.Logger
}

// NewReranker creates a reranker. Zero config fields take their defaults.
func NewReranker(llm ai.LLMService, config RerankConfig, logger *slog.Logger) *Reranker {
	defaults := DefaultRerankConfig()
	if config.RetrievalWeight == 0 && config.RelevanceWeight == 0 {
		config.RetrievalWeight = defaults.RetrievalWeight
		config.RelevanceWeight = defaults.RelevanceWeight
	}
	if config.ConfidenceThreshold == 0 {
		config.ConfidenceThreshold = defaults.ConfidenceThreshold
	}
	if config.MaxCandidates <= 0 {
		config.MaxCandidates = defaults.MaxCandidates
	}
	if config.DescriptionLimit <= 0 {
		config.DescriptionLimit = defaults.DescriptionLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reranker{
		llm:         llm,
		config:      config,
		callTimeout: timeout.RerankTimeout,
		logger:      logger.With("component", "reranker"),
	}
}

// Config returns the reranker's configuration.
func (r *Reranker) Config() RerankConfig {
	return r.config
}

// rerankEntry is one element of the expected model response.
type rerankEntry struct {
	AppID             string        `json:"app_id"`
	RelevanceScore    llmjson.Float `json:"relevance_score"`
	PersonalizedPitch string        `json:"personalized_pitch"`
	MatchExplanation  string        `json:"match_explanation"`
	Confidence        llmjson.Float `json:"confidence"`
}

const rerankShapeHint = "a JSON array"

// Rerank blends model relevance into the candidates' retrieval scores and
// returns the top topK sorted by final score. The bool reports whether the
// model output was applied. On any failure the input candidates are
// returned unchanged, sorted by RRF score.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []*Candidate, userCtx *UserContext, topK int) ([]*Candidate, bool) {
	if len(candidates) == 0 {
		return candidates, false
	}
	if r.llm == nil {
		return r.skip(candidates), false
	}

	block := candidates
	if len(block) > r.config.MaxCandidates {
		block = block[:r.config.MaxCandidates]
	}

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	raw, err := ai.Complete(callCtx, r.llm, r.buildPrompt(query, block, userCtx), rerankShapeHint)
	if err != nil {
		r.logger.WarnContext(ctx, "rerank model call failed, keeping retrieval order", "error", err)
		return r.skip(candidates), false
	}

	var entries []rerankEntry
	if err := llmjson.DecodeArray(raw, &entries); err != nil {
		r.logger.WarnContext(ctx, "rerank response unparseable, keeping retrieval order",
			"error", err,
			"response", timeout.Truncate(raw),
		)
		return r.skip(candidates), false
	}

	reranked, applied := r.apply(block, entries)
	if applied == 0 {
		r.logger.WarnContext(ctx, "rerank response matched no candidate, keeping retrieval order",
			"entries", len(entries),
		)
		return r.skip(candidates), false
	}

	for _, c := range candidates[len(block):] {
		out := c.Clone()
		out.FinalScore = out.RetrievalScore
		reranked = append(reranked, out)
	}

	if topK > 0 && len(reranked) > topK {
		reranked = reranked[:topK]
	}
	for i, c := range reranked {
		c.Rank = i + 1
	}

	r.logger.DebugContext(ctx, "rerank applied",
		"candidates", len(candidates),
		"sent", len(block),
		"matched", applied,
	)
	return reranked, true
}

// apply blends entries into copies of block and sorts them by final score.
// It returns the number of candidates that received an entry.
func (r *Reranker) apply(block []*Candidate, entries []rerankEntry) ([]*Candidate, int) {
	out := make([]*Candidate, len(block))
	byID := make(map[string]*Candidate, len(block))
	for i, c := range block {
		clone := c.Clone()
		clone.FinalScore = clone.RetrievalScore
		clone.Reranked = false
		out[i] = clone
		byID[clone.AppID] = clone
	}

	applied := 0
	for _, e := range entries {
		c, ok := byID[strings.TrimSpace(e.AppID)]
		if !ok || c.Reranked {
			continue
		}
		c.RelevanceScore = clamp(float64(e.RelevanceScore), 0, 10)
		c.Confidence = clamp(float64(e.Confidence), 0, 1)
		c.PersonalizedPitch = strings.TrimSpace(e.PersonalizedPitch)
		c.MatchExplanation = strings.TrimSpace(e.MatchExplanation)
		c.FinalScore = r.blend(c.RetrievalScore, c.RelevanceScore, c.Confidence)
		c.Reranked = true
		applied++
	}

	sortByScore(out, func(c *Candidate) float64 { return c.FinalScore })
	return out, applied
}

// blend computes the final score of a re-ranked candidate.
func (r *Reranker) blend(retrieval, relevance, confidence float64) float64 {
	score := r.config.RetrievalWeight*retrieval + r.config.RelevanceWeight*(relevance/10)
	if confidence > r.config.ConfidenceThreshold {
		score += r.config.ConfidenceBonus
	}
	return score
}

// skip returns candidates sorted by RRF score without touching them.
func (r *Reranker) skip(candidates []*Candidate) []*Candidate {
	out := append([]*Candidate(nil), candidates...)
	sortByScore(out, func(c *Candidate) float64 { return c.RRFScore })
	return out
}

func (r *Reranker) buildPrompt(query string, block []*Candidate, userCtx *UserContext) string {
	var b strings.Builder

	b.WriteString("Re-rank these app candidates for the user's search.\n\n")
	fmt.Fprintf(&b, "User query: %q\n", query)

	if userCtx != nil {
		b.WriteString("\nUser context:\n")
		fmt.Fprintf(&b, "- Lifestyle: %s\n", orNone(strings.Join(userCtx.LifestyleTags, ", ")))
		fmt.Fprintf(&b, "- Preferred use cases: %s\n", orNone(strings.Join(userCtx.PreferredUseCases, ", ")))
		fmt.Fprintf(&b, "- Complexity preference: %s\n", orNone(userCtx.ComplexityPreference))
		fmt.Fprintf(&b, "- Usage context: %s\n", orNone(userCtx.UsageContext))
	}

	b.WriteString("\nCandidates:\n")
	for i, c := range block {
		category, rating, description := "", "n/a", ""
		if c.App != nil {
			category = c.App.Category
			if c.App.Rating != nil {
				rating = fmt.Sprintf("%.1f", *c.App.Rating)
			}
			description = truncateRunes(c.App.Description, r.config.DescriptionLimit)
		}
		fmt.Fprintf(&b, "%d. app_id: %s\n   name: %s\n   category: %s\n   rating: %s\n   description: %s\n   retrieval_score: %.3f\n",
			i+1, c.AppID, c.Name(), orNone(category), rating, description, c.RetrievalScore)
	}

	b.WriteString(`
For every candidate return an object with:
- app_id: the candidate's app_id
- relevance_score: 0 to 10, how well the app fits this user's need
- personalized_pitch: one sentence addressed to the user
- match_explanation: one short sentence on why it matches
- confidence: 0 to 1`)

	return b.String()
}

func truncateRunes(s string, limit int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit]) + "..."
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "none"
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
