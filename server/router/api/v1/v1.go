// Package v1 serves the app search API over HTTP.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/semaphore"

	"github.com/dp9910/app4me-sub001/internal/profile"
	"github.com/dp9910/app4me-sub001/server/middleware"
	"github.com/dp9910/app4me-sub001/server/retrieval"
	"github.com/dp9910/app4me-sub001/store"
)

const defaultMaxConcurrentSearches = 8

type APIV1Service struct {
	Profile  *profile.Profile
	Store    *store.Store
	Pipeline *retrieval.Pipeline

	// searchSemaphore bounds concurrent pipeline runs.
	searchSemaphore *semaphore.Weighted
	rateLimiter     *middleware.RateLimiter
}

func NewAPIV1Service(profile *profile.Profile, store *store.Store, pipeline *retrieval.Pipeline) *APIV1Service {
	concurrency := profile.Server.MaxConcurrentSearches
	if concurrency <= 0 {
		concurrency = defaultMaxConcurrentSearches
	}
	return &APIV1Service{
		Profile:         profile,
		Store:           store,
		Pipeline:        pipeline,
		searchSemaphore: semaphore.NewWeighted(int64(concurrency)),
		rateLimiter:     middleware.NewRateLimiter(profile.Server.RequestsPerMinute),
	}
}

// RegisterRoutes registers the API routes on e. Search endpoints are rate
// limited per client.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})

	g := e.Group("/api/v1")
	limited := s.rateLimiter.Middleware()
	g.POST("/search", s.SearchApps, limited)
	g.POST("/search/export", s.ExportSearch, limited)
	g.GET("/apps/:id", s.GetApp)
	g.GET("/system/metrics/overview", s.GetMetricsOverview)
}
