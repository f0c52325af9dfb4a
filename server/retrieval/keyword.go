package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dp9910/app4me-sub001/plugin/ai/intent"
	"github.com/dp9910/app4me-sub001/plugin/ai/keyword"
	"github.com/dp9910/app4me-sub001/plugin/ai/rag"
	"github.com/dp9910/app4me-sub001/store"
)

// KeywordRetriever ranks apps by TF-IDF keyword overlap with the intent.
type KeywordRetriever struct {
	store  Store
	scorer *keyword.Scorer
	query  keyword.QueryOptions
	logger *slog.Logger
}

// NewKeywordRetriever creates a keyword retriever.
func NewKeywordRetriever(st Store, weights keyword.Weights, query keyword.QueryOptions, logger *slog.Logger) *KeywordRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeywordRetriever{
		store:  st,
		scorer: keyword.NewScorer(weights),
		query:  query,
		logger: logger.With("component", "keyword_retriever"),
	}
}

// Retrieve returns the topK apps with the best keyword scores.
func (r *KeywordRetriever) Retrieve(ctx context.Context, in *intent.QueryIntent, topK int) ([]*rag.Candidate, error) {
	apps, err := LoadApps(ctx, r.store, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list apps: %w", err)
	}
	return r.RetrieveFrom(ctx, in, apps, topK)
}

// RetrieveFrom is Retrieve restricted to the given apps.
func (r *KeywordRetriever) RetrieveFrom(ctx context.Context, in *intent.QueryIntent, apps AppSet, topK int) ([]*rag.Candidate, error) {
	query := keyword.BuildQueryKeywords(in.MainTopic, in.SearchFocus, r.query)
	if len(query) == 0 {
		return nil, nil
	}

	features, err := r.store.ListAppFeatures(ctx, &store.FindAppFeatures{})
	if err != nil {
		return nil, fmt.Errorf("failed to list app features: %w", err)
	}

	candidates := make([]*rag.Candidate, 0, len(features))
	for _, f := range features {
		app, ok := apps[f.AppID]
		if !ok {
			continue
		}
		score := r.scorer.Score(query, f, app.Rating)
		if !r.scorer.Admit(score) {
			continue
		}
		candidates = append(candidates, &rag.Candidate{
			AppID:           f.AppID,
			App:             app,
			KeywordScore:    score.Value,
			MatchedKeywords: score.Matched,
			Methods:         []string{rag.MethodKeyword},
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].KeywordScore != candidates[j].KeywordScore {
			return candidates[i].KeywordScore > candidates[j].KeywordScore
		}
		return candidates[i].AppID < candidates[j].AppID
	})
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}

	r.logger.DebugContext(ctx, "keyword retrieval completed",
		"query_terms", len(query),
		"features", len(features),
		"admitted", len(candidates),
	)
	return candidates, nil
}
