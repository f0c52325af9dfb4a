// Package cache caches query embeddings so repeated searches skip the
// embedding call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dp9910/app4me-sub001/plugin/ai"
)

// ServiceConfig configures the cache service.
type ServiceConfig struct {
	Capacity   int           // Maximum number of entries (default: 1000)
	DefaultTTL time.Duration // Default TTL for entries (default: 30 minutes)
}

// DefaultServiceConfig returns default cache service configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Capacity:   1000,
		DefaultTTL: 30 * time.Minute,
	}
}

// EmbeddingService decorates an ai.EmbeddingService with an LRU cache keyed
// by the whitespace-trimmed text.
type EmbeddingService struct {
	inner ai.EmbeddingService
	lru   *expirable.LRU[string, []float32]
}

var _ ai.EmbeddingService = (*EmbeddingService)(nil)

// NewEmbeddingService wraps inner with a cache.
func NewEmbeddingService(inner ai.EmbeddingService, cfg ServiceConfig) *EmbeddingService {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1000
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 30 * time.Minute
	}
	return &EmbeddingService{
		inner: inner,
		lru:   expirable.NewLRU[string, []float32](cfg.Capacity, nil, cfg.DefaultTTL),
	}
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

// Embed returns the cached vector or computes and caches it. Callers own
// the returned slice; the cache keeps its own copy.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if vector, ok := s.lru.Get(key); ok {
		return slices.Clone(vector), nil
	}
	vector, err := s.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	s.lru.Add(key, slices.Clone(vector))
	return vector, nil
}

// EmbedBatch embeds only the texts that miss the cache, in one call.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if vector, ok := s.lru.Get(cacheKey(text)); ok {
			out[i] = slices.Clone(vector)
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := s.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, vector := range vectors {
		if j >= len(missingIdx) {
			break
		}
		out[missingIdx[j]] = vector
		s.lru.Add(cacheKey(missing[j]), slices.Clone(vector))
	}
	return out, nil
}

func (s *EmbeddingService) Dimensions() int {
	return s.inner.Dimensions()
}

// Len returns the number of cached vectors.
func (s *EmbeddingService) Len() int {
	return s.lru.Len()
}

// Purge drops every cached vector.
func (s *EmbeddingService) Purge() {
	s.lru.Purge()
}
