package retrieval

import (
	"fmt"
	"log/slog"

	"github.com/dp9910/app4me-sub001/internal/profile"
	"github.com/dp9910/app4me-sub001/plugin/ai"
	"github.com/dp9910/app4me-sub001/plugin/ai/cache"
	"github.com/dp9910/app4me-sub001/plugin/ai/intent"
	"github.com/dp9910/app4me-sub001/plugin/ai/keyword"
	"github.com/dp9910/app4me-sub001/plugin/ai/rag"
)

// NewPipelineFromProfile wires a pipeline from the profile. Model clients
// are rate limited with retries, and query embeddings are cached. With AI
// disabled the pipeline runs on the fallback intent and keyword retrieval.
func NewPipelineFromProfile(st Store, prof *profile.Profile, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	aiConfig := ai.NewConfigFromProfile(prof)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	var embedder ai.EmbeddingService
	var llm ai.LLMService
	if aiConfig.Enabled {
		base, err := ai.NewEmbeddingService(&aiConfig.Embedding)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding service: %w", err)
		}
		embedder = cache.NewEmbeddingService(
			ai.NewRateLimitedEmbeddingService(base, aiConfig.RateLimit),
			cache.DefaultServiceConfig(),
		)

		chat, err := ai.NewLLMService(&aiConfig.LLM)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM service: %w", err)
		}
		llm = ai.NewRateLimitedLLMService(chat, aiConfig.RateLimit)
	}

	semanticConfig := DefaultSemanticConfig()
	if prof.Retrieval.SemanticThreshold > 0 {
		semanticConfig.AdmissionThreshold = prof.Retrieval.SemanticThreshold
	}
	semanticConfig.Model = aiConfig.Embedding.Model

	var reranker *rag.Reranker
	if llm != nil {
		rerankConfig := rag.DefaultRerankConfig()
		if prof.Retrieval.RerankMaxCandidates > 0 {
			rerankConfig.MaxCandidates = prof.Retrieval.RerankMaxCandidates
		}
		reranker = rag.NewReranker(llm, rerankConfig, logger)
	}

	options := Options{
		TopK:           prof.Retrieval.TopK,
		CandidatePool:  prof.Retrieval.CandidatePool,
		RRFConstant:    prof.Retrieval.RRFConstant,
		RerankEnabled:  prof.Retrieval.RerankEnabled,
		MaxQueryLength: prof.Retrieval.MaxQueryLength,
	}

	return NewPipeline(
		st,
		intent.NewAnalyzer(llm, logger),
		NewSemanticRetriever(st, embedder, semanticConfig, logger),
		NewKeywordRetriever(st, keywordWeights(prof.Retrieval), keyword.DefaultQueryOptions(), logger),
		reranker,
		options,
		logger,
	), nil
}

// keywordWeights overrides the default scorer weights with the positive
// profile values.
func keywordWeights(rp profile.RetrievalProfile) keyword.Weights {
	weights := keyword.DefaultWeights()
	override := func(dst *float64, v float64) {
		if v > 0 {
			*dst = v
		}
	}
	override(&weights.ScoreFloor, rp.KeywordScoreFloor)
	override(&weights.CategoryBoost, rp.KeywordCategoryBoost)
	override(&weights.PartialKeyword, rp.KeywordPartialKeyword)
	override(&weights.PartialCategory, rp.KeywordPartialCategory)
	override(&weights.QualityBoost, rp.KeywordQualityBoost)
	return weights
}
