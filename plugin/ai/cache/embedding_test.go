package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	embedCalls int
	batchCalls int
	batchSizes []int
	fail       bool
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.embedCalls++
	if s.fail {
		return nil, errors.New("unavailable")
	}
	return []float32{float32(len(text))}, nil
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	s.batchCalls++
	s.batchSizes = append(s.batchSizes, len(texts))
	if s.fail {
		return nil, errors.New("unavailable")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text))}
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int { return 1 }

func TestEmbeddingServiceCachesQueries(t *testing.T) {
	ctx := context.Background()
	inner := &stubEmbedder{}
	svc := NewEmbeddingService(inner, DefaultServiceConfig())

	v1, err := svc.Embed(ctx, "plant care")
	require.NoError(t, err)
	v2, err := svc.Embed(ctx, "  plant care ")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, inner.embedCalls)
	assert.Equal(t, 1, svc.Len())
	assert.Equal(t, 1, svc.Dimensions())
}

func TestEmbeddingServiceBatchOnlyMisses(t *testing.T) {
	ctx := context.Background()
	inner := &stubEmbedder{}
	svc := NewEmbeddingService(inner, DefaultServiceConfig())

	_, err := svc.Embed(ctx, "fern")
	require.NoError(t, err)

	vectors, err := svc.EmbedBatch(ctx, []string{"fern", "succulent", "moss"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{4}, {9}, {4}}, vectors)
	assert.Equal(t, []int{2}, inner.batchSizes)

	_, err = svc.EmbedBatch(ctx, []string{"moss", "fern"})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.batchCalls)
}

func TestEmbeddingServiceDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	inner := &stubEmbedder{fail: true}
	svc := NewEmbeddingService(inner, DefaultServiceConfig())

	_, err := svc.Embed(ctx, "cactus")
	assert.Error(t, err)
	assert.Equal(t, 0, svc.Len())

	_, err = svc.EmbedBatch(ctx, []string{"cactus"})
	assert.Error(t, err)
}

func TestEmbeddingServiceTTL(t *testing.T) {
	ctx := context.Background()
	inner := &stubEmbedder{}
	svc := NewEmbeddingService(inner, ServiceConfig{Capacity: 10, DefaultTTL: 20 * time.Millisecond})

	_, err := svc.Embed(ctx, "orchid")
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)
	_, err = svc.Embed(ctx, "orchid")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.embedCalls)

	svc.Purge()
	assert.Equal(t, 0, svc.Len())
}

func TestEmbeddingServiceReturnsCopies(t *testing.T) {
	ctx := context.Background()
	svc := NewEmbeddingService(&stubEmbedder{}, DefaultServiceConfig())

	first, err := svc.Embed(ctx, "fern")
	require.NoError(t, err)
	first[0] = -1

	second, err := svc.Embed(ctx, "fern")
	require.NoError(t, err)
	assert.Equal(t, []float32{4}, second)
	second[0] = -2

	batch, err := svc.EmbedBatch(ctx, []string{"fern", "moss"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{4}, {4}}, batch)
	batch[1][0] = -3

	again, err := svc.Embed(ctx, "moss")
	require.NoError(t, err)
	assert.Equal(t, []float32{4}, again)
}
