package intent

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

// AnalysisPrompt is the instruction template for intent analysis.
const AnalysisPrompt = `Analyze this app search query and describe what the user is looking for.

Query: %q

Return a JSON object with these fields:
- main_topic: the single most important subject, one or two words
- user_need: one sentence describing what the user wants to achieve
- intent_type: one of learn, solve, discover, manage, entertainment
- key_concepts: up to 5 short concepts related to the need
- search_focus: keywords an app description would contain, most important first
- semantic_query: a rewritten query suited for semantic search`

const shapeHint = "a single JSON object"

// Analyzer interprets queries with a language model and falls back to a
// deterministic intent on any failure.
type Analyzer struct {
	llm         ai.LLMService
	callTimeout time.Duration
	logger      *slog.Logger
}

// NewAnalyzer creates an analyzer. A nil LLM service makes every analysis
// use the fallback.
func NewAnalyzer(llm ai.LLMService, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		llm:         llm,
		callTimeout: timeout.IntentTimeout,
		logger:      logger.With("component", "intent"),
	}
}

// llmIntent is the expected JSON structure from the model.
type llmIntent struct {
	MainTopic     string   `json:"main_topic"`
	UserNeed      string   `json:"user_need"`
	IntentType    string   `json:"intent_type"`
	KeyConcepts   []string `json:"key_concepts"`
	SearchFocus   []string `json:"search_focus"`
	SemanticQuery string   `json:"semantic_query"`
}

// Analyze returns the intent of query. It never returns nil.
func (a *Analyzer) Analyze(ctx context.Context, query string) *QueryIntent {
	fallback := Fallback(query)
	if a.llm == nil || strings.TrimSpace(query) == "" {
		return fallback
	}

	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	raw, err := ai.Complete(callCtx, a.llm, fmt.Sprintf(AnalysisPrompt, strings.TrimSpace(query)), shapeHint)
	if err != nil {
		a.logger.WarnContext(ctx, "intent model call failed, using fallback", "error", err)
		return fallback
	}

	var parsed llmIntent
	if err := llmjson.DecodeObject(raw, &parsed); err != nil {
		a.logger.WarnContext(ctx, "intent response unparseable, using fallback",
			"error", err,
			"response", timeout.Truncate(raw),
		)
		return fallback
	}

	return complete(&parsed, fallback)
}

// complete fills the fields the model left empty or invalid from the
// fallback intent.
func complete(parsed *llmIntent, fallback *QueryIntent) *QueryIntent {
	result := &QueryIntent{
		MainTopic:     strings.TrimSpace(parsed.MainTopic),
		UserNeed:      strings.TrimSpace(parsed.UserNeed),
		KeyConcepts:   cleanTerms(parsed.KeyConcepts),
		SearchFocus:   cleanTerms(parsed.SearchFocus),
		SemanticQuery: strings.TrimSpace(parsed.SemanticQuery),
		Source:        SourceLLM,
	}
	result.IntentType, _ = ParseIntentType(parsed.IntentType)

	if result.MainTopic == "" {
		result.MainTopic = fallback.MainTopic
	}
	if result.UserNeed == "" {
		result.UserNeed = fallback.UserNeed
	}
	if len(result.KeyConcepts) == 0 {
		result.KeyConcepts = fallback.KeyConcepts
	}
	if len(result.SearchFocus) == 0 {
		result.SearchFocus = fallback.SearchFocus
	}
	if result.SemanticQuery == "" {
		result.SemanticQuery = fallback.SemanticQuery
	}
	return result
}

func cleanTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		if term = strings.TrimSpace(term); term != "" {
			out = append(out, term)
		}
	}
	return out
}
