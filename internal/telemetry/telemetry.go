package telemetry

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/logsift/config"
)

// Usage is a snapshot of accumulated oracle spend for a run.
type Usage struct {
	Calls            int64   `json:"calls"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	Cost             float64 `json:"cost"`
}

// TotalTokens returns prompt plus completion tokens.
func (u Usage) TotalTokens() int64 {
	return u.PromptTokens + u.CompletionTokens
}

// Telemetry tracks oracle usage and cost across a pipeline run and
// exposes the counters over prometheus when a metrics port is configured.
type Telemetry struct {
	config config.TelemetryConfig
	logger *log.Logger

	mu    sync.RWMutex
	usage Usage

	registry      *prometheus.Registry
	callsTotal    *prometheus.CounterVec
	tokensTotal   *prometheus.CounterVec
	costTotal     prometheus.Counter
	failuresTotal *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
}

// NewTelemetry creates a telemetry instance. When cfg.Enabled and a metrics
// port are set, a /metrics endpoint is served in the background.
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	t := &Telemetry{
		config:   cfg,
		logger:   log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		registry: prometheus.NewRegistry(),
	}

	t.callsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logsift_oracle_calls_total",
		Help: "Number of oracle calls issued, by model.",
	}, []string{"model"})
	t.tokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logsift_oracle_tokens_total",
		Help: "Tokens consumed by oracle calls, by model and direction.",
	}, []string{"model", "direction"})
	t.costTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logsift_oracle_cost_dollars_total",
		Help: "Estimated oracle spend in dollars.",
	})
	t.failuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "logsift_oracle_failures_total",
		Help: "Oracle calls that exhausted retries, by model.",
	}, []string{"model"})
	t.stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "logsift_stage_duration_seconds",
		Help:    "Wall-clock duration of pipeline stages.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	t.registry.MustRegister(t.callsTotal, t.tokensTotal, t.costTotal, t.failuresTotal, t.stageDuration)

	if cfg.Enabled && cfg.MetricsPort > 0 {
		go t.serveMetrics(cfg.MetricsPort)
	}

	return t
}

func (t *Telemetry) serveMetrics(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	t.logger.Printf("serving metrics on :%d", port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		t.logger.Printf("metrics server error: %v", err)
	}
}

// RecordCall accumulates usage from a single oracle call.
func (t *Telemetry) RecordCall(model string, promptTokens, completionTokens int64, cost float64) {
	t.mu.Lock()
	t.usage.Calls++
	t.usage.PromptTokens += promptTokens
	t.usage.CompletionTokens += completionTokens
	if t.config.CostTracking {
		t.usage.Cost += cost
	}
	t.mu.Unlock()

	t.callsTotal.WithLabelValues(model).Inc()
	t.tokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	t.tokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	if t.config.CostTracking {
		t.costTotal.Add(cost)
	}
}

// RecordFailure counts an oracle call that ran out of retries.
func (t *Telemetry) RecordFailure(model string) {
	t.failuresTotal.WithLabelValues(model).Inc()
}

// ObserveStage records the wall-clock duration of a named pipeline stage.
func (t *Telemetry) ObserveStage(stage string, d time.Duration) {
	t.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Snapshot returns the usage accumulated so far.
func (t *Telemetry) Snapshot() Usage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.usage
}

// Reset clears the accumulated usage so a new run starts from zero.
// Prometheus counters are monotonic and are left untouched.
func (t *Telemetry) Reset() {
	t.mu.Lock()
	t.usage = Usage{}
	t.mu.Unlock()
}
