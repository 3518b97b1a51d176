package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestPipelineCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewPipelineCollector(reg)
	if err != nil {
		t.Fatalf("NewPipelineCollector: %v", err)
	}

	collector.AddRunCounts(12, 2, 5, 3, 7, 40)
	collector.AddRunCounts(3, 0, 1, 0, 0, 2)
	collector.SetStationCounts(9, 1)

	if got := testutil.ToFloat64(collector.TracksFormed); got != 15 {
		t.Fatalf("tracks formed = %v, want 15", got)
	}
	if got := testutil.ToFloat64(collector.SlipsDetected); got != 6 {
		t.Fatalf("slips detected = %v, want 6", got)
	}
	if got := testutil.ToFloat64(collector.ObsDisabled); got != 42 {
		t.Fatalf("observations disabled = %v, want 42", got)
	}
	if got := testutil.ToFloat64(collector.StationsSelected); got != 9 {
		t.Fatalf("stations selected = %v, want 9", got)
	}
}

func TestPipelineCollectorStageDurations(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewPipelineCollector(reg)
	if err != nil {
		t.Fatalf("NewPipelineCollector: %v", err)
	}

	collector.ObserveStage("cycle_slip_detection", 120*time.Millisecond)
	collector.ObserveStage("cycle_slip_detection", 80*time.Millisecond)

	if count := histogramSampleCount(t, reg, "preprocessing_stage_duration_seconds", map[string]string{
		"stage": "cycle_slip_detection",
	}); count != 2 {
		t.Fatalf("stage duration sample_count = %d, want 2", count)
	}
}

func TestPipelineCollectorRegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPipelineCollector(reg)
	if err != nil {
		t.Fatalf("first registration: %v", err)
	}
	second, err := NewPipelineCollector(reg)
	if err != nil {
		t.Fatalf("second registration: %v", err)
	}

	// Both handles must drive the same underlying collectors.
	first.AddRunCounts(1, 0, 0, 0, 0, 0)
	second.AddRunCounts(1, 0, 0, 0, 0, 0)
	if got := testutil.ToFloat64(first.TracksFormed); got != 2 {
		t.Fatalf("shared counter = %v, want 2", got)
	}
}

func TestPipelineCollectorHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewPipelineCollector(reg)
	if err != nil {
		t.Fatalf("NewPipelineCollector: %v", err)
	}
	collector.AddRunCounts(4, 0, 0, 0, 0, 0)

	srv := httptest.NewServer(collector.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	buf := new(strings.Builder)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(buf.String(), "preprocessing_tracks_formed_total 4") {
		t.Fatalf("metrics output missing tracks counter:\n%s", buf.String())
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *PipelineCollector
	c.AddRunCounts(1, 1, 1, 1, 1, 1)
	c.SetStationCounts(1, 1)
	c.ObserveStage("noop", time.Second)
}

func histogramSampleCount(t *testing.T, g prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()
	families, err := g.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if !labelsMatch(m, labels) {
				continue
			}
			return m.GetHistogram().GetSampleCount()
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, labels map[string]string) bool {
	got := map[string]string{}
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range labels {
		if got[k] != v {
			return false
		}
	}
	return true
}
