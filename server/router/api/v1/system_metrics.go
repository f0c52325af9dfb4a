package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dp9910/app4me-sub001/server/internal/observability"
)

// MetricsOverviewResponse represents the overview response of search metrics
// since the server started.
type MetricsOverviewResponse struct {
	TotalRequests int64                                   `json:"total_requests"`
	SuccessRate   float64                                 `json:"success_rate"`
	P50LatencyMs  int64                                   `json:"p50_latency_ms"`
	P95LatencyMs  int64                                   `json:"p95_latency_ms"`
	ErrorCount    int64                                   `json:"error_count"`
	Stages        map[string]*observability.StageSnapshot `json:"stages"`
	Degraded      map[string]int64                        `json:"degraded"`
}

// GetMetricsOverview returns the search metrics overview
// GET /api/v1/system/metrics/overview
func (s *APIV1Service) GetMetricsOverview(c echo.Context) error {
	snapshot := s.Pipeline.Metrics().Snapshot()
	return c.JSON(http.StatusOK, MetricsOverviewResponse{
		TotalRequests: snapshot.RequestTotal,
		SuccessRate:   snapshot.SuccessRate(),
		P50LatencyMs:  snapshot.P50Duration.Milliseconds(),
		P95LatencyMs:  snapshot.P95Duration.Milliseconds(),
		ErrorCount:    snapshot.RequestFailed,
		Stages:        snapshot.Stages,
		Degraded:      snapshot.Degraded,
	})
}
