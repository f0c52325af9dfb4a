package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dp9910/app4me-sub001/plugin/ai"
	"github.com/dp9910/app4me-sub001/plugin/ai/intent"
	"github.com/dp9910/app4me-sub001/plugin/ai/rag"
	"github.com/dp9910/app4me-sub001/plugin/ai/timeout"
	"github.com/dp9910/app4me-sub001/plugin/ai/vector"
	"github.com/dp9910/app4me-sub001/store"
)

// SemanticConfig tunes semantic retrieval.
type SemanticConfig struct {
	AdmissionThreshold float64 // relevance must exceed this
	TopicBoost         float64 // main topic found in title or description
	ConceptBoost       float64 // per key concept found
	MaxIntentBoost     float64
	Model              string // embedding model to compare against, any when empty
}

// DefaultSemanticConfig returns the default semantic retrieval configuration.
func DefaultSemanticConfig() SemanticConfig {
	return SemanticConfig{
		AdmissionThreshold: 0.4,
		TopicBoost:         0.3,
		ConceptBoost:       0.1,
		MaxIntentBoost:     0.6,
	}
}

// SemanticRetriever ranks apps by embedding similarity to the intent's
// semantic query plus a textual intent boost.
type SemanticRetriever struct {
	store    Store
	embedder ai.EmbeddingService
	config   SemanticConfig
	logger   *slog.Logger
}

// NewSemanticRetriever creates a semantic retriever.
func NewSemanticRetriever(st Store, embedder ai.EmbeddingService, config SemanticConfig, logger *slog.Logger) *SemanticRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &SemanticRetriever{
		store:    st,
		embedder: embedder,
		config:   config,
		logger:   logger.With("component", "semantic_retriever"),
	}
}

// Retrieve returns the topK apps most semantically relevant to the intent.
func (r *SemanticRetriever) Retrieve(ctx context.Context, in *intent.QueryIntent, topK int) ([]*rag.Candidate, error) {
	apps, err := LoadApps(ctx, r.store, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list apps: %w", err)
	}
	return r.RetrieveFrom(ctx, in, apps, topK)
}

// RetrieveFrom is Retrieve restricted to the given apps.
func (r *SemanticRetriever) RetrieveFrom(ctx context.Context, in *intent.QueryIntent, apps AppSet, topK int) ([]*rag.Candidate, error) {
	if r.embedder == nil {
		return nil, fmt.Errorf("embedding service not configured")
	}
	query := strings.TrimSpace(in.SemanticQuery)
	if query == "" {
		return nil, nil
	}

	embedCtx, cancel := context.WithTimeout(ctx, timeout.EmbeddingTimeout)
	queryVector, err := r.embedder.Embed(embedCtx, query)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if !vector.IsValid(queryVector, 0) {
		return nil, fmt.Errorf("embedding service returned an invalid query vector")
	}

	find := &store.FindAppEmbedding{}
	if r.config.Model != "" {
		find.Model = &r.config.Model
	}
	embeddings, err := r.store.ListAppEmbeddings(ctx, find)
	if err != nil {
		return nil, fmt.Errorf("failed to list embeddings: %w", err)
	}

	seen := make(map[string]bool, len(embeddings))
	candidates := make([]*rag.Candidate, 0, len(embeddings))
	for _, e := range embeddings {
		if seen[e.AppID] {
			continue
		}
		app, ok := apps[e.AppID]
		if !ok {
			continue
		}
		if !vector.IsValid(e.Embedding, len(queryVector)) {
			r.logger.DebugContext(ctx, "skipping malformed embedding",
				"app_id", e.AppID,
				"dimensions", len(e.Embedding),
				"expected", len(queryVector),
			)
			continue
		}
		seen[e.AppID] = true

		similarity := vector.CosineSimilarity(queryVector, e.Embedding)
		relevance := similarity + r.intentBoost(in, app)
		if relevance <= r.config.AdmissionThreshold {
			continue
		}
		candidates = append(candidates, &rag.Candidate{
			AppID:         e.AppID,
			App:           app,
			SemanticScore: relevance,
			Similarity:    similarity,
			Methods:       []string{rag.MethodSemantic},
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].SemanticScore != candidates[j].SemanticScore {
			return candidates[i].SemanticScore > candidates[j].SemanticScore
		}
		return candidates[i].AppID < candidates[j].AppID
	})
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}

	r.logger.DebugContext(ctx, "semantic retrieval completed",
		"embeddings", len(embeddings),
		"admitted", len(candidates),
	)
	return candidates, nil
}

// intentBoost rewards apps whose title or description mention the main
// topic or key concepts, case-insensitively.
func (r *SemanticRetriever) intentBoost(in *intent.QueryIntent, app *store.App) float64 {
	text := strings.ToLower(app.Title + " " + app.Description)

	var boost float64
	if topic := strings.ToLower(strings.TrimSpace(in.MainTopic)); topic != "" && strings.Contains(text, topic) {
		boost += r.config.TopicBoost
	}
	for _, concept := range in.KeyConcepts {
		concept = strings.ToLower(strings.TrimSpace(concept))
		if concept != "" && strings.Contains(text, concept) {
			boost += r.config.ConceptBoost
		}
	}
	if boost > r.config.MaxIntentBoost {
		boost = r.config.MaxIntentBoost
	}
	return boost
}
