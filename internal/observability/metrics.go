package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yungbote/minutes-backend/internal/platform/envutil"
	"github.com/yungbote/minutes-backend/internal/platform/logger"
)

var latencyBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120}

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	llmRequests *CounterVec
	llmLatency  *HistogramVec

	stageLatency        *HistogramVec
	stageRuns           *CounterVec
	extractionRetries   *CounterVec
	extractionFallbacks *CounterVec
	repairWarnings      *CounterVec
	lowConfidence       *CounterVec

	storeOps     *CounterVec
	storeLatency *HistogramVec

	redisUp   *Gauge
	redisPing *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

// Current returns the process metrics, or nil when metrics are disabled.
// Every method is safe on a nil receiver.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics()
		log.Info("metrics enabled")
	})
	return instance
}

func newMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("mm_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency:  NewHistogramVec("mm_api_request_duration_seconds", "API request latency in seconds.", []string{"method", "route", "status"}, latencyBuckets),
		apiInflight: NewGauge("mm_api_inflight_requests", "In-flight API requests."),

		llmRequests: NewCounterVec("mm_llm_requests_total", "LLM requests by provider/model/status.", []string{"provider", "model", "status"}),
		llmLatency:  NewHistogramVec("mm_llm_request_duration_seconds", "LLM request latency in seconds.", []string{"provider", "model"}, latencyBuckets),

		stageLatency:        NewHistogramVec("mm_pipeline_stage_duration_seconds", "Pipeline stage latency in seconds.", []string{"stage", "status"}, latencyBuckets),
		stageRuns:           NewCounterVec("mm_pipeline_stage_total", "Pipeline stage runs by stage/status.", []string{"stage", "status"}),
		extractionRetries:   NewCounterVec("mm_extraction_retries_total", "Extraction retries by reason.", []string{"reason"}),
		extractionFallbacks: NewCounterVec("mm_extraction_fallbacks_total", "Extractions that fell back to review minutes.", nil),
		repairWarnings:      NewCounterVec("mm_extraction_repair_warnings_total", "Field repairs applied to model output.", nil),
		lowConfidence:       NewCounterVec("mm_transcript_segments_total", "Scored transcript segments by bucket/source.", []string{"bucket", "source"}),

		storeOps:     NewCounterVec("mm_store_operations_total", "Meeting store operations by op/status.", []string{"op", "status"}),
		storeLatency: NewHistogramVec("mm_store_operation_duration_seconds", "Meeting store latency in seconds.", []string{"op"}, latencyBuckets),

		redisUp:   NewGauge("mm_redis_up", "Redis reachability (1 up, 0 down)."),
		redisPing: NewGauge("mm_redis_ping_seconds", "Redis ping latency in seconds."),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.llmRequests, m.llmLatency,
		m.stageLatency, m.stageRuns, m.extractionRetries, m.extractionFallbacks, m.repairWarnings, m.lowConfidence,
		m.storeOps, m.storeLatency,
		m.redisUp, m.redisPing,
	}
	for _, wr := range writers {
		if err := wr.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveLLMRequest(provider, model, status string, dur time.Duration) {
	if m == nil {
		return
	}
	model = strings.TrimSpace(model)
	m.llmRequests.Inc(provider, model, status)
	if dur > 0 {
		m.llmLatency.Observe(dur.Seconds(), provider, model)
	}
}

func (m *Metrics) ObservePipelineStage(stage, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.stageRuns.Inc(stage, status)
	m.stageLatency.Observe(dur.Seconds(), stage, status)
}

func (m *Metrics) ObserveExtractionRetry(reason string) {
	if m == nil {
		return
	}
	m.extractionRetries.Inc(reason)
}

func (m *Metrics) ObserveExtractionFallback() {
	if m == nil {
		return
	}
	m.extractionFallbacks.Inc()
}

func (m *Metrics) AddRepairWarnings(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.repairWarnings.Add(float64(n))
}

func (m *Metrics) ObserveSegment(bucket, source string) {
	if m == nil {
		return
	}
	m.lowConfidence.Inc(bucket, source)
}

func (m *Metrics) ObserveStoreOp(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.storeOps.Inc(op, status)
	m.storeLatency.Observe(dur.Seconds(), op)
}

// StartRedisCollector pings addr on the scrape interval until ctx ends.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil || strings.TrimSpace(addr) == "" {
		return
	}
	interval := envutil.Duration("METRICS_SCRAPE_INTERVAL_SECONDS", 10*time.Second)
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		defer rdb.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					log.Warn("metrics: redis ping failed", "error", err)
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
