package retrieval

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/dp9910/app4me-sub001/plugin/ai/intent"
	"github.com/dp9910/app4me-sub001/plugin/ai/rag"
	"github.com/dp9910/app4me-sub001/server/internal/errors"
	"github.com/dp9910/app4me-sub001/server/internal/observability"
	"github.com/dp9910/app4me-sub001/store"
)

// Degradation tags reported in SearchResponse.Degraded.
const (
	DegradedIntentFallback = "intent_fallback"
	DegradedSemanticFailed = "semantic_failed"
	DegradedKeywordFailed  = "keyword_failed"
	DegradedRerankSkipped  = "rerank_skipped"
)

// Options tunes the pipeline.
type Options struct {
	TopK           int  // results returned when the request does not say
	CandidatePool  int  // results requested from each retriever
	RRFConstant    int  // k of reciprocal rank fusion
	RerankEnabled  bool // re-rank unless the request disables it
	MaxQueryLength int  // in runes
}

// DefaultOptions returns the default pipeline options.
func DefaultOptions() Options {
	return Options{
		TopK:           10,
		CandidatePool:  50,
		RRFConstant:    rag.DefaultRRFConstant,
		RerankEnabled:  true,
		MaxQueryLength: 1000,
	}
}

// SearchRequest is one search.
type SearchRequest struct {
	Query         string
	TopK          int
	UserContext   *rag.UserContext
	DisableRerank bool
	// AppFilter is a CEL expression over `app` restricting the searched apps.
	AppFilter string
}

// Result is one ranked app.
type Result struct {
	Rank      int
	App       *store.App
	Candidate *rag.Candidate
}

// SearchResponse is the outcome of a search.
type SearchResponse struct {
	RequestID     string
	Intent        *intent.QueryIntent
	Results       []*Result
	SemanticCount int
	KeywordCount  int
	Reranked      bool
	Degraded      []string
	Duration      time.Duration
}

// Retriever produces a ranked candidate list from an intent.
type Retriever interface {
	RetrieveFrom(ctx context.Context, in *intent.QueryIntent, apps AppSet, topK int) ([]*rag.Candidate, error)
}

// Pipeline runs intent analysis, parallel retrieval, fusion and re-ranking.
type Pipeline struct {
	store    Store
	analyzer *intent.Analyzer
	semantic Retriever
	keyword  Retriever
	reranker *rag.Reranker
	options  Options
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewPipeline creates a pipeline. A nil reranker disables re-ranking.
func NewPipeline(st Store, analyzer *intent.Analyzer, semantic, keyword Retriever, reranker *rag.Reranker, options Options, logger *slog.Logger) *Pipeline {
	defaults := DefaultOptions()
	if options.TopK <= 0 {
		options.TopK = defaults.TopK
	}
	if options.CandidatePool <= 0 {
		options.CandidatePool = defaults.CandidatePool
	}
	if options.RRFConstant <= 0 {
		options.RRFConstant = defaults.RRFConstant
	}
	if options.MaxQueryLength <= 0 {
		options.MaxQueryLength = defaults.MaxQueryLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	if analyzer == nil {
		analyzer = intent.NewAnalyzer(nil, logger)
	}
	return &Pipeline{
		store:    st,
		analyzer: analyzer,
		semantic: semantic,
		keyword:  keyword,
		reranker: reranker,
		options:  options,
		metrics:  observability.NewMetrics(0),
		logger:   logger.With("component", "pipeline"),
	}
}

// Options returns the pipeline options.
func (p *Pipeline) Options() Options {
	return p.options
}

// Metrics returns the pipeline's metrics collector.
func (p *Pipeline) Metrics() *observability.Metrics {
	return p.metrics
}

// Search runs one search. Only an invalid request or cancellation of ctx
// produce an error; every other failure degrades the response.
func (p *Pipeline) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	ctx, reqCtx := observability.EnsureRequestContext(ctx, p.logger, "search")

	resp, err := p.search(ctx, reqCtx, req)
	p.metrics.RecordRequest(reqCtx.Duration())
	if err != nil {
		p.metrics.RecordFailure()
		reqCtx.Warn(ctx, "search failed",
			slog.String(observability.LogFieldErrorCode, string(errors.GetCodeFromError(err, errors.ErrCodeInternal))),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	for _, reason := range resp.Degraded {
		p.metrics.RecordDegraded(reason)
	}
	resp.Duration = reqCtx.Duration()

	reqCtx.Info(ctx, "search completed",
		slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()),
		slog.Int(observability.LogFieldCount, len(resp.Results)),
		slog.Int("semantic_count", resp.SemanticCount),
		slog.Int("keyword_count", resp.KeywordCount),
		slog.Bool("reranked", resp.Reranked),
		slog.Any("degraded", resp.Degraded),
	)
	return resp, nil
}

func (p *Pipeline) search(ctx context.Context, reqCtx *observability.RequestContext, req *SearchRequest) (*SearchResponse, error) {
	if req == nil {
		return nil, errors.InvalidArgument("search request is required")
	}
	query := strings.TrimSpace(req.Query)
	if n := utf8.RuneCountInString(query); n > p.options.MaxQueryLength {
		return nil, errors.InvalidArgument("query too long").
			WithContext("length", n).
			WithContext("max", p.options.MaxQueryLength)
	}
	if req.AppFilter != "" {
		if _, err := store.CompileAppFilter(req.AppFilter); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInvalidArgument, "invalid app filter")
		}
	}

	resp := &SearchResponse{RequestID: reqCtx.RequestID}
	if query == "" {
		return resp, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, canceled(err)
	}

	topK := req.TopK
	if topK <= 0 {
		topK = p.options.TopK
	}

	// The filter can still fail per app at evaluation time, which is a
	// caller error rather than a store outage.
	apps, loadErr := LoadApps(ctx, p.store, req.AppFilter)
	if stderrors.Is(loadErr, store.ErrInvalidFilter) {
		return nil, errors.Wrap(loadErr, errors.ErrCodeInvalidArgument, "invalid app filter")
	}

	// Intent.
	stageStart := time.Now()
	in := p.analyzer.Analyze(ctx, query)
	resp.Intent = in
	if in.IsFallback() {
		resp.Degraded = append(resp.Degraded, DegradedIntentFallback)
	}
	p.stageDone(ctx, reqCtx, "intent", stageStart, slog.String("source", string(in.Source)))

	// Retrieval.
	stageStart = time.Now()
	semantic, keyword, degraded := p.retrieve(ctx, reqCtx, in, apps, loadErr)
	if err := ctx.Err(); err != nil {
		return nil, canceled(err)
	}
	resp.Degraded = append(resp.Degraded, degraded...)
	resp.SemanticCount = len(semantic)
	resp.KeywordCount = len(keyword)
	p.stageDone(ctx, reqCtx, "retrieve", stageStart,
		slog.Int("semantic_count", len(semantic)),
		slog.Int("keyword_count", len(keyword)),
	)

	// Fusion. Every retrieved candidate carries its resolved app.
	fused := rag.Fuse(semantic, keyword, p.options.RRFConstant)
	candidates := fused[:0]
	for _, c := range fused {
		if c.App != nil {
			candidates = append(candidates, c)
		}
	}

	// Re-ranking.
	if p.options.RerankEnabled && !req.DisableRerank && len(candidates) > 0 {
		stageStart = time.Now()
		if p.reranker == nil {
			resp.Degraded = append(resp.Degraded, DegradedRerankSkipped)
		} else {
			reranked, applied := p.reranker.Rerank(ctx, query, candidates, req.UserContext, topK)
			if err := ctx.Err(); err != nil {
				return nil, canceled(err)
			}
			candidates = reranked
			resp.Reranked = applied
			if !applied {
				resp.Degraded = append(resp.Degraded, DegradedRerankSkipped)
			}
		}
		p.stageDone(ctx, reqCtx, "rerank", stageStart, slog.Bool("applied", resp.Reranked))
	}

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	resp.Results = make([]*Result, len(candidates))
	for i, c := range candidates {
		c.Rank = i + 1
		resp.Results[i] = &Result{Rank: c.Rank, App: c.App, Candidate: c}
	}
	return resp, nil
}

// retrieve runs both retrievers in parallel over the filtered app set. A
// failed side contributes an empty list and a degradation tag; a failed app
// load (err) fails both.
func (p *Pipeline) retrieve(ctx context.Context, reqCtx *observability.RequestContext, in *intent.QueryIntent, apps AppSet, err error) ([]*rag.Candidate, []*rag.Candidate, []string) {
	if err != nil {
		reqCtx.Warn(ctx, "failed to load apps, both retrievers skipped",
			slog.String(observability.LogFieldErrorCode, string(errors.ErrCodeStoreUnavailable)),
			slog.String("error", err.Error()),
		)
		return nil, nil, []string{DegradedSemanticFailed, DegradedKeywordFailed}
	}

	var semantic, keyword []*rag.Candidate
	var semanticErr, keywordErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		semantic, semanticErr = p.runRetriever(gctx, p.semantic, in, apps)
		return nil
	})
	g.Go(func() error {
		keyword, keywordErr = p.runRetriever(gctx, p.keyword, in, apps)
		return nil
	})
	_ = g.Wait()

	var degraded []string
	if semanticErr != nil {
		semantic = nil
		degraded = append(degraded, DegradedSemanticFailed)
		reqCtx.Warn(ctx, "semantic retrieval failed",
			slog.String(observability.LogFieldErrorCode, string(errors.ErrCodeEmbeddingFailed)),
			slog.String("error", semanticErr.Error()),
		)
	}
	if keywordErr != nil {
		keyword = nil
		degraded = append(degraded, DegradedKeywordFailed)
		reqCtx.Warn(ctx, "keyword retrieval failed",
			slog.String(observability.LogFieldErrorCode, string(errors.ErrCodeStoreUnavailable)),
			slog.String("error", keywordErr.Error()),
		)
	}
	return semantic, keyword, degraded
}

func (p *Pipeline) runRetriever(ctx context.Context, r Retriever, in *intent.QueryIntent, apps AppSet) ([]*rag.Candidate, error) {
	if r == nil {
		return nil, errors.Wrap(nil, errors.ErrCodeInternal, "retriever not configured")
	}
	return r.RetrieveFrom(ctx, in, apps, p.options.CandidatePool)
}

func (p *Pipeline) stageDone(ctx context.Context, reqCtx *observability.RequestContext, stage string, start time.Time, attrs ...slog.Attr) {
	elapsed := time.Since(start)
	p.metrics.RecordStage(stage, elapsed)
	reqCtx.Debug(ctx, "stage completed", append([]slog.Attr{
		slog.String(observability.LogFieldStage, stage),
		slog.Int64(observability.LogFieldDuration, elapsed.Milliseconds()),
	}, attrs...)...)
}

func canceled(err error) error {
	if err == context.DeadlineExceeded {
		return errors.Timeout("search deadline exceeded", err)
	}
	return errors.ContextCanceled(err)
}
