package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dp9910/app4me-sub001/plugin/ai"
	"github.com/dp9910/app4me-sub001/store"
	teststore "github.com/dp9910/app4me-sub001/store/test"
)

func rating(v float64) *float64 {
	return &v
}

// fakeEmbedder maps exact texts to vectors.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 1, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int {
	return 3
}

// scriptedLLM answers by matching a substring of the last message.
type scriptedLLM struct {
	mu      sync.Mutex
	replies map[string]string
	err     error
	calls   int
}

func (s *scriptedLLM) Chat(_ context.Context, messages []ai.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	prompt := messages[len(messages)-1].Content
	for marker, reply := range s.replies {
		if strings.Contains(prompt, marker) {
			return reply, nil
		}
	}
	return "", errors.New("no scripted reply")
}

// failingStore fails the configured list calls.
type failingStore struct {
	Store
	failApps, failFeatures, failEmbeddings bool
}

var errStoreDown = errors.New("store down")

func (f *failingStore) ListApps(ctx context.Context, find *store.FindApp) ([]*store.App, error) {
	if f.failApps {
		return nil, errStoreDown
	}
	return f.Store.ListApps(ctx, find)
}

func (f *failingStore) ListAppFeatures(ctx context.Context, find *store.FindAppFeatures) ([]*store.AppFeatures, error) {
	if f.failFeatures {
		return nil, errStoreDown
	}
	return f.Store.ListAppFeatures(ctx, find)
}

func (f *failingStore) ListAppEmbeddings(ctx context.Context, find *store.FindAppEmbedding) ([]*store.AppEmbedding, error) {
	if f.failEmbeddings {
		return nil, errStoreDown
	}
	return f.Store.ListAppEmbeddings(ctx, find)
}

const queryPlantCare = "plant care app"

// seedCatalog creates a small catalog:
//   - plant: semantic and keyword hit
//   - garden: semantic hit, weak keyword hit
//   - budget: keyword-only on "budget", unrelated to plants
//   - broken: malformed embedding, keyword hit
//   - orphan: embedding without an app record
func seedCatalog(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()
	ts := teststore.NewTestingStore(ctx, t)

	apps := []*store.App{
		{ID: "plant", Title: "Plant Parent", Category: "Lifestyle", Description: "Water reminders and care guides for houseplants", Rating: rating(4.8)},
		{ID: "garden", Title: "Garden Planner", Category: "Productivity", Description: "Plan your vegetable garden layout", Rating: rating(4.2)},
		{ID: "budget", Title: "Budget Buddy", Category: "Finance", Description: "Track expenses and savings", Rating: rating(4.5)},
		{ID: "broken", Title: "Leaf ID", Category: "Education", Description: "Identify plant species from a photo"},
	}
	for _, app := range apps {
		_, err := ts.UpsertApp(ctx, app)
		require.NoError(t, err)
	}

	features := []*store.AppFeatures{
		{AppID: "plant", KeywordWeights: map[string]float64{"plant": 0.6, "water": 0.4}, CategoryWeights: map[string]float64{"lifestyle": 0.2}},
		{AppID: "garden", KeywordWeights: map[string]float64{"garden": 0.7, "plants": 0.1}},
		{AppID: "budget", KeywordWeights: map[string]float64{"budget": 0.9}},
		{AppID: "broken", KeywordWeights: map[string]float64{"plant": 0.3, "species": 0.5}},
	}
	for _, f := range features {
		_, err := ts.UpsertAppFeatures(ctx, f)
		require.NoError(t, err)
	}

	embeddings := []*store.AppEmbedding{
		{AppID: "plant", Embedding: []float32{1, 0, 0}, Model: "test"},
		{AppID: "garden", Embedding: []float32{0.8, 0.6, 0}, Model: "test"},
		{AppID: "budget", Embedding: []float32{0, 0, 1}, Model: "test"},
		{AppID: "broken", Embedding: []float32{1, 0}, Model: "test"},
		{AppID: "orphan", Embedding: []float32{1, 0, 0}, Model: "test"},
	}
	for _, e := range embeddings {
		_, err := ts.UpsertAppEmbedding(ctx, e)
		require.NoError(t, err)
	}
	return ts
}

func plantEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: map[string][]float32{queryPlantCare: {1, 0, 0}}}
}
