package core

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"time"

	"github.com/signalsfoundry/gnss-preprocessor/internal/gnssio"
	"github.com/signalsfoundry/gnss-preprocessor/kb"
)

// RunConfig is the parsed, validated configuration of one preprocessing run.
// Angles are radians, lengths metres.
type RunConfig struct {
	Start      time.Time
	Sampling   time.Duration
	EpochCount int

	StationListFile string
	MaxStationCount int
	WorkerCount     int

	StationInfoTemplate gnssio.Template
	ObservationTemplate gnssio.Template

	AntennaDefFile  string
	AccuracyDefFile string
	ReceiverDefFile string
	SatellitesFile  string

	BiasInTransmitterTemplate  gnssio.Template
	BiasInReceiverTemplate     gnssio.Template
	BiasOutTransmitterTemplate gnssio.Template
	BiasOutReceiverTemplate    gnssio.Template

	TrackBeforeTemplate gnssio.Template
	TrackAfterTemplate  gnssio.Template

	TypeMask TypeMask

	// SelectTransmitters and SelectReceivers restrict the run to matching
	// PRNs / station names. Empty means everything; a trailing '*' matches
	// a prefix ("G*" selects all GPS transmitters).
	SelectTransmitters []string
	SelectReceivers    []string

	ElevationCutoff         float64
	ElevationTrackMinimum   float64
	MinObsCountPerTrack     int
	MinEstimableEpochsRatio float64

	Robust              RobustConfig
	CodeMaxPositionDiff float64

	CycleSlip CycleSlipConfig

	NoPatternAction kb.NoPatternFoundAction
}

// internal JSON shape; kept unexported so the format can evolve freely.
// Optional numeric fields use pointers so that absent and zero are
// distinguishable where zero is meaningful (e.g. tecWindowSize).
type runConfigJSON struct {
	Start      time.Time `json:"start"`
	SamplingS  float64   `json:"sampling_s"`
	EpochCount int       `json:"epoch_count"`

	StationList     string `json:"inputfileStationList"`
	MaxStationCount int    `json:"maxStationCount,omitempty"`
	WorkerCount     int    `json:"workerCount,omitempty"`

	StationInfo  string `json:"inputfileStationInfo"`
	Observations string `json:"inputfileObservations"`

	AntennaDef  string `json:"inputfileAntennaDefinition"`
	AccuracyDef string `json:"inputfileAccuracyDefinition"`
	ReceiverDef string `json:"inputfileReceiverDefinition,omitempty"`
	Satellites  string `json:"inputfileSatellites"`

	BiasInTransmitter  string `json:"inputfileSignalBiasTransmitter,omitempty"`
	BiasInReceiver     string `json:"inputfileSignalBiasReceiver,omitempty"`
	BiasOutTransmitter string `json:"outputfileSignalBiasTransmitter,omitempty"`
	BiasOutReceiver    string `json:"outputfileSignalBiasReceiver,omitempty"`

	UseTypes    []string `json:"useType,omitempty"`
	IgnoreTypes []string `json:"ignoreType,omitempty"`

	SelectTransmitters []string `json:"selectTransmitters,omitempty"`
	SelectReceivers    []string `json:"selectReceivers,omitempty"`

	ElevationCutoffDeg       *float64 `json:"elevationCutOff,omitempty"`
	ElevationTrackMinimumDeg *float64 `json:"elevationTrackMinimum,omitempty"`
	MinObsCountPerTrack      *int     `json:"minObsCountPerTrack,omitempty"`
	MinEstimableEpochsRatio  *float64 `json:"minEstimableEpochsRatio,omitempty"`

	NoPatternFound string `json:"noAntennaPatternFound,omitempty"`

	Preprocessing struct {
		Huber               *float64 `json:"huber,omitempty"`
		HuberPower          *float64 `json:"huberPower,omitempty"`
		CodeMaxPositionDiff *float64 `json:"codeMaxPositionDiff,omitempty"`
		DenoisingLambda     *float64 `json:"denoisingLambda,omitempty"`
		TECWindowSize       *int     `json:"tecWindowSize,omitempty"`
		TECSigmaFactor      *float64 `json:"tecSigmaFactor,omitempty"`
		TrackBefore         string   `json:"outputfileTrackBefore,omitempty"`
		TrackAfter          string   `json:"outputfileTrackAfter,omitempty"`
	} `json:"preprocessing"`
}

// LoadRunConfig decodes and validates a run configuration. Missing mandatory
// fields are configuration errors and abort the run; optional fields receive
// the documented defaults.
func LoadRunConfig(r io.Reader) (*RunConfig, error) {
	var payload runConfigJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode run config: %w", err)
	}

	if payload.Start.IsZero() {
		return nil, fmt.Errorf("run config: start is mandatory")
	}
	if payload.SamplingS <= 0 {
		return nil, fmt.Errorf("run config: sampling_s must be positive")
	}
	if payload.EpochCount <= 0 {
		return nil, fmt.Errorf("run config: epoch_count must be positive")
	}
	for name, v := range map[string]string{
		"inputfileStationList":       payload.StationList,
		"inputfileStationInfo":       payload.StationInfo,
		"inputfileObservations":      payload.Observations,
		"inputfileAntennaDefinition": payload.AntennaDef,
		"inputfileAccuracyDefinition": payload.AccuracyDef,
		"inputfileSatellites":        payload.Satellites,
	} {
		if v == "" {
			return nil, fmt.Errorf("run config: %s is mandatory", name)
		}
	}

	cfg := &RunConfig{
		Start:      payload.Start,
		Sampling:   time.Duration(payload.SamplingS * float64(time.Second)),
		EpochCount: payload.EpochCount,

		StationListFile: payload.StationList,
		MaxStationCount: payload.MaxStationCount,
		WorkerCount:     payload.WorkerCount,

		StationInfoTemplate: gnssio.Template(payload.StationInfo),
		ObservationTemplate: gnssio.Template(payload.Observations),

		AntennaDefFile:  payload.AntennaDef,
		AccuracyDefFile: payload.AccuracyDef,
		ReceiverDefFile: payload.ReceiverDef,
		SatellitesFile:  payload.Satellites,

		BiasInTransmitterTemplate:  gnssio.Template(payload.BiasInTransmitter),
		BiasInReceiverTemplate:     gnssio.Template(payload.BiasInReceiver),
		BiasOutTransmitterTemplate: gnssio.Template(payload.BiasOutTransmitter),
		BiasOutReceiverTemplate:    gnssio.Template(payload.BiasOutReceiver),

		TrackBeforeTemplate: gnssio.Template(payload.Preprocessing.TrackBefore),
		TrackAfterTemplate:  gnssio.Template(payload.Preprocessing.TrackAfter),

		ElevationCutoff:         degrees(floatOr(payload.ElevationCutoffDeg, 5)),
		ElevationTrackMinimum:   degrees(floatOr(payload.ElevationTrackMinimumDeg, 15)),
		MinObsCountPerTrack:     intOr(payload.MinObsCountPerTrack, 60),
		MinEstimableEpochsRatio: floatOr(payload.MinEstimableEpochsRatio, 0.75),

		SelectTransmitters: payload.SelectTransmitters,
		SelectReceivers:    payload.SelectReceivers,

		Robust: RobustConfig{
			Huber:      floatOr(payload.Preprocessing.Huber, 2.5),
			HuberPower: floatOr(payload.Preprocessing.HuberPower, 1.5),
		},
		CodeMaxPositionDiff: floatOr(payload.Preprocessing.CodeMaxPositionDiff, 100),
	}

	cfg.CycleSlip = CycleSlipConfig{
		MinObsCount:     cfg.MinObsCountPerTrack,
		DenoisingLambda: floatOr(payload.Preprocessing.DenoisingLambda, 5),
		TECWindowSize:   intOr(payload.Preprocessing.TECWindowSize, 15),
		TECSigmaFactor:  floatOr(payload.Preprocessing.TECSigmaFactor, 3.5),
		RepairTolerance: DefaultCycleSlipConfig().RepairTolerance,
	}

	if cfg.MinEstimableEpochsRatio < 0 || cfg.MinEstimableEpochsRatio > 1 {
		return nil, fmt.Errorf("run config: minEstimableEpochsRatio must be in [0,1]")
	}
	if cfg.CycleSlip.TECWindowSize < 0 {
		return nil, fmt.Errorf("run config: tecWindowSize must be >= 0")
	}
	if cfg.WorkerCount < 0 {
		return nil, fmt.Errorf("run config: workerCount must be >= 0")
	}
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = runtime.NumCPU()
	}

	for _, s := range payload.UseTypes {
		t, err := ParseSignalType(s)
		if err != nil {
			return nil, fmt.Errorf("run config useType: %w", err)
		}
		cfg.TypeMask.Use = append(cfg.TypeMask.Use, t)
	}
	for _, s := range payload.IgnoreTypes {
		t, err := ParseSignalType(s)
		if err != nil {
			return nil, fmt.Errorf("run config ignoreType: %w", err)
		}
		cfg.TypeMask.Ignore = append(cfg.TypeMask.Ignore, t)
	}

	action, err := kb.ParseNoPatternFoundAction(payload.NoPatternFound)
	if err != nil {
		return nil, fmt.Errorf("run config: %w", err)
	}
	cfg.NoPatternAction = action

	return cfg, nil
}

// LoadRunConfigFile opens and decodes a run configuration file.
func LoadRunConfigFile(path string) (*RunConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open run config: %w", err)
	}
	defer f.Close()
	cfg, err := LoadRunConfig(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func floatOr(p *float64, def float64) float64 {
	if p != nil {
		return *p
	}
	return def
}

func intOr(p *int, def int) int {
	if p != nil {
		return *p
	}
	return def
}

func degrees(deg float64) float64 {
	return deg * math.Pi / 180
}
