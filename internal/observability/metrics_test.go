package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", "200", time.Millisecond)
	m.ObservePipelineStage("align", "ok", time.Millisecond)
	m.ObserveExtractionFallback()
	m.ApiInflightInc()
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("WritePrometheus on nil: %v", err)
	}
}

func TestWritePrometheusRendersSeries(t *testing.T) {
	m := newMetrics()
	m.ObservePipelineStage("extract", "ok", 250*time.Millisecond)
	m.ObserveExtractionRetry("unparseable")
	m.ObserveExtractionRetry("unparseable")
	m.ObserveExtractionFallback()

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`mm_extraction_retries_total{reason="unparseable"} 2`,
		`mm_extraction_fallbacks_total 1`,
		`mm_pipeline_stage_duration_seconds_bucket{stage="extract",status="ok",le="0.25"} 1`,
		`mm_pipeline_stage_duration_seconds_count{stage="extract",status="ok"} 1`,
		"# TYPE mm_api_inflight_requests gauge",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestLabelStringEscapes(t *testing.T) {
	got := labelString([]string{"a", "b"}, []string{`x"y`})
	if got != `{a="x\"y",b="unknown"}` {
		t.Fatalf("labelString=%s", got)
	}
	if withLe("", "1") != `{le="1"}` {
		t.Fatalf("withLe on empty labels")
	}
}
