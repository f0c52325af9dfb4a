package v1

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dp9910/app4me-sub001/plugin/ai/intent"
	"github.com/dp9910/app4me-sub001/plugin/ai/rag"
	"github.com/dp9910/app4me-sub001/plugin/ai/timeout"
	aierrors "github.com/dp9910/app4me-sub001/server/internal/errors"
	"github.com/dp9910/app4me-sub001/server/internal/observability"
	"github.com/dp9910/app4me-sub001/server/retrieval"
	"github.com/dp9910/app4me-sub001/store"
)

// SearchAppsRequest is the body of POST /api/v1/search.
type SearchAppsRequest struct {
	Query         string           `json:"query"`
	TopK          int              `json:"top_k"`
	UserContext   *rag.UserContext `json:"user_context,omitempty"`
	DisableRerank bool             `json:"disable_rerank"`
	// Filter is a CEL expression over `app`, e.g. `app.rating >= 4.0`.
	Filter string `json:"filter"`
}

// SearchAppsResponse is the body returned by POST /api/v1/search.
type SearchAppsResponse struct {
	RequestID     string              `json:"request_id"`
	Intent        *intent.QueryIntent `json:"intent"`
	Results       []*SearchResult     `json:"results"`
	SemanticCount int                 `json:"semantic_count"`
	KeywordCount  int                 `json:"keyword_count"`
	Reranked      bool                `json:"reranked"`
	Degraded      []string            `json:"degraded"`
	DurationMs    int64               `json:"duration_ms"`
}

// SearchResult is one ranked app.
type SearchResult struct {
	Rank              int      `json:"rank"`
	AppID             string   `json:"app_id"`
	Title             string   `json:"title"`
	Category          string   `json:"category"`
	Description       string   `json:"description"`
	Rating            *float64 `json:"rating"`
	IconURL           string   `json:"icon_url,omitempty"`
	Methods           []string `json:"methods"`
	MatchedKeywords   []string `json:"matched_keywords"`
	SemanticScore     float64  `json:"semantic_score"`
	KeywordScore      float64  `json:"keyword_score"`
	RRFScore          float64  `json:"rrf_score"`
	RetrievalScore    float64  `json:"retrieval_score"`
	RelevanceScore    float64  `json:"relevance_score"`
	Confidence        float64  `json:"confidence"`
	FinalScore        float64  `json:"final_score"`
	PersonalizedPitch string   `json:"personalized_pitch,omitempty"`
	MatchExplanation  string   `json:"match_explanation,omitempty"`
	Reranked          bool     `json:"reranked"`
}

// AppResponse is the body returned by GET /api/v1/apps/:id.
type AppResponse struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Rating      *float64 `json:"rating"`
	IconURL     string   `json:"icon_url,omitempty"`
}

type errorResponse struct {
	Code      aierrors.ErrorCode `json:"code"`
	Message   string             `json:"message"`
	RequestID string             `json:"request_id,omitempty"`
}

// SearchApps runs a hybrid search.
// POST /api/v1/search
func (s *APIV1Service) SearchApps(c echo.Context) error {
	req := &SearchAppsRequest{}
	if err := c.Bind(req); err != nil {
		return s.writeError(c, "", aierrors.InvalidArgument("invalid request body"))
	}

	ctx, reqCtx, release, err := s.beginSearch(c, "search")
	if err != nil {
		return s.writeError(c, reqCtx.RequestID, err)
	}
	defer release()

	resp, err := s.Pipeline.Search(ctx, req.toRetrieval())
	if err != nil {
		return s.writeError(c, reqCtx.RequestID, err)
	}
	return c.JSON(http.StatusOK, convertSearchResponse(resp))
}

// ExportSearch runs a search and returns the CSV export of the matching apps.
// POST /api/v1/search/export
func (s *APIV1Service) ExportSearch(c echo.Context) error {
	req := &SearchAppsRequest{}
	if err := c.Bind(req); err != nil {
		return s.writeError(c, "", aierrors.InvalidArgument("invalid request body"))
	}

	ctx, reqCtx, release, err := s.beginSearch(c, "export")
	if err != nil {
		return s.writeError(c, reqCtx.RequestID, err)
	}
	defer release()

	var buf bytes.Buffer
	if _, err := s.Pipeline.Export(ctx, &buf, req.toRetrieval()); err != nil {
		return s.writeError(c, reqCtx.RequestID, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="app_search.csv"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// GetApp returns one app.
// GET /api/v1/apps/:id
func (s *APIV1Service) GetApp(c echo.Context) error {
	id := c.Param("id")
	app, err := s.Store.GetApp(c.Request().Context(), id)
	if err != nil {
		return s.writeError(c, "", aierrors.StoreUnavailable("failed to get app", err))
	}
	if app == nil {
		return s.writeError(c, "", aierrors.NotFound("app not found: "+id))
	}
	return c.JSON(http.StatusOK, convertApp(app))
}

// beginSearch bounds the request by the search timeout, attaches a request
// context carrying the client's X-Request-ID, and takes a search slot.
func (s *APIV1Service) beginSearch(c echo.Context, operation string) (context.Context, *observability.RequestContext, func(), error) {
	reqCtx := observability.NewRequestContextWithID(slog.Default(), c.Request().Header.Get(echo.HeaderXRequestID), operation)
	c.Response().Header().Set(echo.HeaderXRequestID, reqCtx.RequestID)

	ctx, cancel := context.WithTimeout(c.Request().Context(), timeout.SearchTimeout)
	ctx = observability.WithRequestContext(ctx, reqCtx)
	if err := s.searchSemaphore.Acquire(ctx, 1); err != nil {
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, reqCtx, nil, aierrors.Timeout("timed out waiting for a search slot", err)
		}
		return nil, reqCtx, nil, aierrors.ContextCanceled(err)
	}
	release := func() {
		s.searchSemaphore.Release(1)
		cancel()
	}
	return ctx, reqCtx, release, nil
}

func (s *APIV1Service) writeError(c echo.Context, requestID string, err error) error {
	var aiErr *aierrors.AIError
	if !errors.As(err, &aiErr) {
		aiErr = aierrors.Wrap(err, aierrors.ErrCodeInternal, "internal error")
	}
	status := aiErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		slog.Error("search API request failed", slog.String("request_id", requestID), slog.String("error", err.Error()))
	}
	return c.JSON(status, errorResponse{Code: aiErr.Code, Message: aiErr.Message, RequestID: requestID})
}

func (r *SearchAppsRequest) toRetrieval() *retrieval.SearchRequest {
	return &retrieval.SearchRequest{
		Query:         r.Query,
		TopK:          r.TopK,
		UserContext:   r.UserContext,
		DisableRerank: r.DisableRerank,
		AppFilter:     r.Filter,
	}
}

func convertSearchResponse(resp *retrieval.SearchResponse) *SearchAppsResponse {
	out := &SearchAppsResponse{
		RequestID:     resp.RequestID,
		Intent:        resp.Intent,
		Results:       make([]*SearchResult, 0, len(resp.Results)),
		SemanticCount: resp.SemanticCount,
		KeywordCount:  resp.KeywordCount,
		Reranked:      resp.Reranked,
		Degraded:      resp.Degraded,
		DurationMs:    resp.Duration.Milliseconds(),
	}
	if out.Degraded == nil {
		out.Degraded = []string{}
	}
	for _, r := range resp.Results {
		cand := r.Candidate
		out.Results = append(out.Results, &SearchResult{
			Rank:              r.Rank,
			AppID:             r.App.ID,
			Title:             r.App.Title,
			Category:          r.App.Category,
			Description:       r.App.Description,
			Rating:            r.App.Rating,
			IconURL:           r.App.IconURL,
			Methods:           cand.Methods,
			MatchedKeywords:   cand.MatchedKeywords,
			SemanticScore:     cand.SemanticScore,
			KeywordScore:      cand.KeywordScore,
			RRFScore:          cand.RRFScore,
			RetrievalScore:    cand.RetrievalScore,
			RelevanceScore:    cand.RelevanceScore,
			Confidence:        cand.Confidence,
			FinalScore:        cand.FinalScore,
			PersonalizedPitch: cand.PersonalizedPitch,
			MatchExplanation:  cand.MatchExplanation,
			Reranked:          cand.Reranked,
		})
	}
	return out
}

func convertApp(app *store.App) *AppResponse {
	return &AppResponse{
		ID:          app.ID,
		Title:       app.Title,
		Category:    app.Category,
		Description: app.Description,
		Rating:      app.Rating,
		IconURL:     app.IconURL,
	}
}
