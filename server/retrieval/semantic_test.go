package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dp9910/app4me-sub001/plugin/ai/intent"
	"github.com/dp9910/app4me-sub001/plugin/ai/rag"
	"github.com/dp9910/app4me-sub001/store"
)

func plantIntent() *intent.QueryIntent {
	return &intent.QueryIntent{
		MainTopic:     "plant",
		KeyConcepts:   []string{"water", "garden"},
		SearchFocus:   []string{"plant", "water"},
		SemanticQuery: queryPlantCare,
		IntentType:    intent.IntentSolve,
		Source:        intent.SourceLLM,
	}
}

func TestSemanticRetrieve(t *testing.T) {
	ctx := context.Background()
	ts := seedCatalog(ctx, t)
	r := NewSemanticRetriever(ts, plantEmbedder(), DefaultSemanticConfig(), nil)

	got, err := r.Retrieve(ctx, plantIntent(), 10)
	require.NoError(t, err)

	require.Equal(t, []string{"plant", "garden"}, candidateIDs(got))

	// plant: similarity 1, topic +0.3, "water" +0.1
	assert.InDelta(t, 1.4, got[0].SemanticScore, 1e-6)
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-6)
	// garden: similarity 0.8, "garden" +0.1
	assert.InDelta(t, 0.9, got[1].SemanticScore, 1e-6)
	assert.Equal(t, []string{rag.MethodSemantic}, got[1].Methods)
	assert.Equal(t, "Garden Planner", got[1].App.Title)
}

func TestSemanticRetrieveTopKAndThreshold(t *testing.T) {
	ctx := context.Background()
	ts := seedCatalog(ctx, t)

	r := NewSemanticRetriever(ts, plantEmbedder(), DefaultSemanticConfig(), nil)
	got, err := r.Retrieve(ctx, plantIntent(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"plant"}, candidateIDs(got))

	strict := DefaultSemanticConfig()
	strict.AdmissionThreshold = 0.95
	got, err = NewSemanticRetriever(ts, plantEmbedder(), strict, nil).Retrieve(ctx, plantIntent(), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"plant"}, candidateIDs(got))
}

func TestSemanticIntentBoostCap(t *testing.T) {
	r := NewSemanticRetriever(nil, nil, DefaultSemanticConfig(), nil)
	in := &intent.QueryIntent{
		MainTopic:   "PLANT",
		KeyConcepts: []string{"water", "care", "guides", "houseplants", "reminders"},
	}
	app := &store.App{Title: "Plant Parent", Description: "Water reminders and care guides for houseplants"}

	// Topic and five concepts add 0.8 before the cap.
	assert.InDelta(t, 0.6, r.intentBoost(in, app), 1e-12)
	assert.InDelta(t, 0.1, r.intentBoost(&intent.QueryIntent{KeyConcepts: []string{"Care", " "}}, app), 1e-12)
	assert.Zero(t, r.intentBoost(&intent.QueryIntent{}, app))
}

func TestSemanticRetrieveModelFilter(t *testing.T) {
	ctx := context.Background()
	ts := seedCatalog(ctx, t)

	cfg := DefaultSemanticConfig()
	cfg.Model = "other"
	got, err := NewSemanticRetriever(ts, plantEmbedder(), cfg, nil).Retrieve(ctx, plantIntent(), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSemanticRetrieveErrors(t *testing.T) {
	ctx := context.Background()
	ts := seedCatalog(ctx, t)

	_, err := NewSemanticRetriever(ts, &fakeEmbedder{err: errors.New("quota")}, DefaultSemanticConfig(), nil).
		Retrieve(ctx, plantIntent(), 10)
	assert.ErrorContains(t, err, "failed to embed query")

	_, err = NewSemanticRetriever(ts, nil, DefaultSemanticConfig(), nil).Retrieve(ctx, plantIntent(), 10)
	assert.Error(t, err)

	_, err = NewSemanticRetriever(&failingStore{Store: ts, failEmbeddings: true}, plantEmbedder(), DefaultSemanticConfig(), nil).
		Retrieve(ctx, plantIntent(), 10)
	assert.ErrorIs(t, err, errStoreDown)

	got, err := NewSemanticRetriever(ts, plantEmbedder(), DefaultSemanticConfig(), nil).
		Retrieve(ctx, &intent.QueryIntent{}, 10)
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func candidateIDs(candidates []*rag.Candidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.AppID
	}
	return out
}
