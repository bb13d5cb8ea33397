package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestMetricsExposure(t *testing.T) {
	LoaderRuns.Inc()
	EngineRuns.Inc()
	ObserveEngineDuration(time.Now().Add(-200 * time.Millisecond))
	IncLLMRetry("test-model")
	IncCommandRun("features")
	IncCommandError("features")
	EnrichBatches.Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rec.Code)
	}
	body := rec.Body.String()
	for _, m := range []string{
		"plumage_loader_runs_total",
		"plumage_engine_runs_total",
		"plumage_engine_duration_seconds",
		"plumage_llm_retries_total",
		"plumage_command_runs_total",
		"plumage_command_errors_total",
		"plumage_enrich_batches_total",
	} {
		if !strings.Contains(body, m) {
			t.Fatalf("expected metric %s in body", m)
		}
	}
}
