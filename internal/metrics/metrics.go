package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LoaderRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "plumage_loader_runs_total",
		Help: "Total archive load calls",
	})
	EngineRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "plumage_engine_runs_total",
		Help: "Total feature engineering runs",
	})
	EngineDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "plumage_engine_duration_seconds",
		Help:    "Feature engineering duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	LLMRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plumage_llm_requests_total",
		Help: "Total LLM classification requests",
	}, []string{"model"})
	LLMFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plumage_llm_failures_total",
		Help: "Total failed LLM classification requests",
	}, []string{"model"})
	LLMRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plumage_llm_retries_total",
		Help: "Total LLM request retry attempts",
	}, []string{"model"})
	EnrichBatches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "plumage_enrich_batches_total",
		Help: "Total account-lookup CLI batches run",
	})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plumage_command_runs_total",
		Help: "Total CLI command invocations",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plumage_command_errors_total",
		Help: "Total CLI command failures",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(LoaderRuns, EngineRuns, EngineDuration,
		LLMRequests, LLMFailures, LLMRetries, EnrichBatches, CommandRuns, CommandErrors)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, nil) }()
}

// ObserveEngineDuration records a feature engineering run duration.
func ObserveEngineDuration(start time.Time) {
	EngineDuration.Observe(time.Since(start).Seconds())
}

// IncLLMRetry increments the retry counter for a model.
func IncLLMRetry(model string) { LLMRetries.WithLabelValues(model).Inc() }

func IncCommandRun(cmd string)   { CommandRuns.WithLabelValues(cmd).Inc() }
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }
