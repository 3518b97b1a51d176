package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineCollector bundles Prometheus metrics for preprocessing runs and
// provides a ready-to-serve /metrics handler.
type PipelineCollector struct {
	gatherer prometheus.Gatherer

	StageDurations *prometheus.HistogramVec

	StationsSelected prometheus.Gauge
	StationsDisabled prometheus.Gauge

	TracksFormed   prometheus.Counter
	TracksRemoved  prometheus.Counter
	SlipsDetected  prometheus.Counter
	SlipsRepaired  prometheus.Counter
	EpochsDisabled prometheus.Counter
	ObsDisabled    prometheus.Counter
}

// NewPipelineCollector registers pipeline Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when nil.
func NewPipelineCollector(reg prometheus.Registerer) (*PipelineCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "preprocessing_stage_duration_seconds",
		Help:    "Wall-clock duration of preprocessing stages per station, labeled by stage.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"stage"})
	durations, err := registerHistogramVec(reg, durations, "preprocessing_stage_duration_seconds")
	if err != nil {
		return nil, err
	}

	selected, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "preprocessing_stations_selected",
		Help: "Number of logical stations that resolved to a usable data source.",
	}), "preprocessing_stations_selected")
	if err != nil {
		return nil, err
	}
	disabledStations, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "preprocessing_stations_disabled",
		Help: "Number of logical stations with no usable data source.",
	}), "preprocessing_stations_disabled")
	if err != nil {
		return nil, err
	}

	tracksFormed, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preprocessing_tracks_formed_total",
		Help: "Tracks formed by signal-lock segmentation.",
	}), "preprocessing_tracks_formed_total")
	if err != nil {
		return nil, err
	}
	tracksRemoved, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preprocessing_tracks_removed_total",
		Help: "Tracks removed by quality filters.",
	}), "preprocessing_tracks_removed_total")
	if err != nil {
		return nil, err
	}
	slipsDetected, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preprocessing_cycle_slips_detected_total",
		Help: "Cycle-slip split points found by the detector.",
	}), "preprocessing_cycle_slips_detected_total")
	if err != nil {
		return nil, err
	}
	slipsRepaired, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preprocessing_cycle_slips_repaired_total",
		Help: "Track boundaries re-merged by integer cycle repair.",
	}), "preprocessing_cycle_slips_repaired_total")
	if err != nil {
		return nil, err
	}
	epochsDisabled, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preprocessing_epochs_disabled_total",
		Help: "Receiver epochs disabled as unusable.",
	}), "preprocessing_epochs_disabled_total")
	if err != nil {
		return nil, err
	}
	obsDisabled, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "preprocessing_observations_disabled_total",
		Help: "Individual observations disabled by outlier and elevation filters.",
	}), "preprocessing_observations_disabled_total")
	if err != nil {
		return nil, err
	}

	return &PipelineCollector{
		gatherer:         gatherer,
		StageDurations:   durations,
		StationsSelected: selected,
		StationsDisabled: disabledStations,
		TracksFormed:     tracksFormed,
		TracksRemoved:    tracksRemoved,
		SlipsDetected:    slipsDetected,
		SlipsRepaired:    slipsRepaired,
		EpochsDisabled:   epochsDisabled,
		ObsDisabled:      obsDisabled,
	}, nil
}

// ObserveStage records the wall-clock duration of one pipeline stage.
func (c *PipelineCollector) ObserveStage(stage string, d time.Duration) {
	if c == nil || c.StageDurations == nil {
		return
	}
	c.StageDurations.WithLabelValues(stage).Observe(d.Seconds())
}

// SetStationCounts satisfies the pipeline's metrics recorder interface so the
// selector can drive gauges directly.
func (c *PipelineCollector) SetStationCounts(selected, disabled int) {
	if c == nil {
		return
	}
	if c.StationsSelected != nil {
		c.StationsSelected.Set(float64(selected))
	}
	if c.StationsDisabled != nil {
		c.StationsDisabled.Set(float64(disabled))
	}
}

// AddRunCounts accumulates the per-receiver counters of one station pass.
func (c *PipelineCollector) AddRunCounts(tracksFormed, tracksRemoved, slipsDetected, slipsRepaired, epochsDisabled, obsDisabled int) {
	if c == nil {
		return
	}
	addCounter(c.TracksFormed, tracksFormed)
	addCounter(c.TracksRemoved, tracksRemoved)
	addCounter(c.SlipsDetected, slipsDetected)
	addCounter(c.SlipsRepaired, slipsRepaired)
	addCounter(c.EpochsDisabled, epochsDisabled)
	addCounter(c.ObsDisabled, obsDisabled)
}

// Handler exposes a ready-to-use /metrics handler.
func (c *PipelineCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func addCounter(ctr prometheus.Counter, n int) {
	if ctr != nil && n > 0 {
		ctr.Add(float64(n))
	}
}

func registerCounter(reg prometheus.Registerer, ctr prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(ctr); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return ctr, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
