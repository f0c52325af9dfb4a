package v1

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dp9910/app4me-sub001/internal/profile"
	"github.com/dp9910/app4me-sub001/plugin/ai/intent"
	"github.com/dp9910/app4me-sub001/plugin/ai/keyword"
	"github.com/dp9910/app4me-sub001/server/retrieval"
	"github.com/dp9910/app4me-sub001/store"
	teststore "github.com/dp9910/app4me-sub001/store/test"
)

// constantEmbedder embeds every text to the same unit vector.
type constantEmbedder struct{}

func (constantEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (e constantEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i], _ = e.Embed(ctx, texts[i])
	}
	return out, nil
}

func (constantEmbedder) Dimensions() int { return 3 }

func rating(v float64) *float64 {
	return &v
}

func newTestServer(t *testing.T, requestsPerMinute int) *echo.Echo {
	t.Helper()
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)

	for _, app := range []*store.App{
		{ID: "plant", Title: "Plant Parent", Category: "Lifestyle", Description: "Care guides for houseplants", Rating: rating(4.8)},
		{ID: "budget", Title: "Budget Buddy", Category: "Finance", Description: "Track expenses", Rating: rating(4.1)},
	} {
		_, err := ts.UpsertApp(ctx, app)
		require.NoError(t, err)
	}
	_, err := ts.UpsertAppFeatures(ctx, &store.AppFeatures{AppID: "plant", KeywordWeights: map[string]float64{"plant": 0.8, "care": 0.4}})
	require.NoError(t, err)
	_, err = ts.UpsertAppFeatures(ctx, &store.AppFeatures{AppID: "budget", KeywordWeights: map[string]float64{"budget": 0.9}})
	require.NoError(t, err)
	_, err = ts.UpsertAppEmbedding(ctx, &store.AppEmbedding{AppID: "plant", Embedding: []float32{1, 0, 0}, Model: "test"})
	require.NoError(t, err)
	_, err = ts.UpsertAppEmbedding(ctx, &store.AppEmbedding{AppID: "budget", Embedding: []float32{0, 0, 1}, Model: "test"})
	require.NoError(t, err)

	pipeline := retrieval.NewPipeline(
		ts,
		intent.NewAnalyzer(nil, nil),
		retrieval.NewSemanticRetriever(ts, constantEmbedder{}, retrieval.DefaultSemanticConfig(), nil),
		retrieval.NewKeywordRetriever(ts, keyword.DefaultWeights(), keyword.DefaultQueryOptions(), nil),
		nil,
		retrieval.DefaultOptions(),
		nil,
	)
	prof := &profile.Profile{Mode: "dev", Server: profile.ServerProfile{RequestsPerMinute: requestsPerMinute}}

	e := echo.New()
	NewAPIV1Service(prof, ts, pipeline).RegisterRoutes(e)
	return e
}

func doRequest(e *echo.Echo, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSearchApps(t *testing.T) {
	e := newTestServer(t, 100)

	rec := doRequest(e, http.MethodPost, "/api/v1/search", `{"query": "plant care", "top_k": 5}`,
		map[string]string{echo.HeaderXRequestID: "req-42"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "req-42", rec.Header().Get(echo.HeaderXRequestID))

	var resp SearchAppsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "req-42", resp.RequestID)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "plant", resp.Results[0].AppID)
	assert.Equal(t, 1, resp.Results[0].Rank)
	assert.Contains(t, resp.Results[0].Methods, "semantic")
	assert.Contains(t, resp.Results[0].Methods, "keyword")
	assert.Contains(t, resp.Degraded, retrieval.DegradedIntentFallback)
	require.NotNil(t, resp.Intent)
	assert.Equal(t, intent.SourceFallback, resp.Intent.Source)
}

func TestSearchAppsInvalidRequests(t *testing.T) {
	e := newTestServer(t, 100)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"query": `},
		{"invalid filter", `{"query": "plant", "filter": "app.rating >"}`},
		{"filter fails on evaluation", `{"query": "plant", "filter": "app.missing_key == 1"}`},
		{"query too long", `{"query": "` + strings.Repeat("x", 1001) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(e, http.MethodPost, "/api/v1/search", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "INVALID_ARGUMENT")
		})
	}
}

func TestSearchAppsEmptyQuery(t *testing.T) {
	e := newTestServer(t, 100)

	rec := doRequest(e, http.MethodPost, "/api/v1/search", `{"query": "   "}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SearchAppsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Results)
}

func TestSearchAppsRateLimited(t *testing.T) {
	e := newTestServer(t, 1)
	body := `{"query": "plant"}`

	assert.Equal(t, http.StatusOK, doRequest(e, http.MethodPost, "/api/v1/search", body, nil).Code)
	rec := doRequest(e, http.MethodPost, "/api/v1/search", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "RATE_LIMIT_EXCEEDED")
}

func TestExportSearch(t *testing.T) {
	e := newTestServer(t, 100)

	rec := doRequest(e, http.MethodPost, "/api/v1/search/export", `{"query": "plant care"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), "text/csv"))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "app_search.csv")

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, retrieval.ExportColumns, rows[0])
	assert.Equal(t, []string{"plant", "YES"}, []string{rows[1][0], rows[1][4]})
}

func TestGetApp(t *testing.T) {
	e := newTestServer(t, 100)

	rec := doRequest(e, http.MethodGet, "/api/v1/apps/plant", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var app AppResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &app))
	assert.Equal(t, "Plant Parent", app.Title)
	require.NotNil(t, app.Rating)
	assert.InDelta(t, 4.8, *app.Rating, 1e-9)

	missing := doRequest(e, http.MethodGet, "/api/v1/apps/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Contains(t, missing.Body.String(), "NOT_FOUND")
}

func TestGetMetricsOverview(t *testing.T) {
	e := newTestServer(t, 100)

	doRequest(e, http.MethodPost, "/api/v1/search", `{"query": "plant care"}`, nil)
	doRequest(e, http.MethodPost, "/api/v1/search", `{"query": "plant", "filter": "app.rating >"}`, nil)

	rec := doRequest(e, http.MethodGet, "/api/v1/system/metrics/overview", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var overview MetricsOverviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &overview))
	assert.Equal(t, int64(2), overview.TotalRequests)
	assert.Equal(t, int64(1), overview.ErrorCount)
	assert.InDelta(t, 50.0, overview.SuccessRate, 1e-9)
	assert.NotEmpty(t, overview.Stages)
	assert.Equal(t, int64(1), overview.Degraded[retrieval.DegradedIntentFallback])
}
