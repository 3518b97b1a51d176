package core

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/gnss-preprocessor/kb"
)

const minimalConfig = `{
  "start": "2026-03-14T00:00:00Z",
  "sampling_s": 30,
  "epoch_count": 2880,
  "inputfileStationList": "stations.txt",
  "inputfileStationInfo": "meta/{station}.json",
  "inputfileObservations": "obs/{station}.json",
  "inputfileAntennaDefinition": "antennas.json",
  "inputfileAccuracyDefinition": "accuracies.json",
  "inputfileSatellites": "satellites.json",
  "preprocessing": {}
}`

func TestLoadRunConfigDefaults(t *testing.T) {
	cfg, err := LoadRunConfig(strings.NewReader(minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 2880, cfg.EpochCount)
	assert.InDelta(t, 5*math.Pi/180, cfg.ElevationCutoff, 1e-12)
	assert.InDelta(t, 15*math.Pi/180, cfg.ElevationTrackMinimum, 1e-12)
	assert.Equal(t, 60, cfg.MinObsCountPerTrack)
	assert.Equal(t, 0.75, cfg.MinEstimableEpochsRatio)
	assert.Equal(t, 2.5, cfg.Robust.Huber)
	assert.Equal(t, 1.5, cfg.Robust.HuberPower)
	assert.Equal(t, 100.0, cfg.CodeMaxPositionDiff)
	assert.Equal(t, 5.0, cfg.CycleSlip.DenoisingLambda)
	assert.Equal(t, 15, cfg.CycleSlip.TECWindowSize)
	assert.Equal(t, 3.5, cfg.CycleSlip.TECSigmaFactor)
	assert.Equal(t, kb.IgnoreObservation, cfg.NoPatternAction)
	assert.Greater(t, cfg.WorkerCount, 0)
}

func TestLoadRunConfigOverrides(t *testing.T) {
	payload := strings.Replace(minimalConfig, `"preprocessing": {}`, `
  "elevationCutOff": 10,
  "minObsCountPerTrack": 30,
  "maxStationCount": 50,
  "workerCount": 8,
  "useType": ["C1", "C2", "L1", "L2"],
  "ignoreType": ["L5"],
  "noAntennaPatternFound": "useNearestFrequency",
  "preprocessing": {
    "huber": 3,
    "denoisingLambda": 2,
    "tecWindowSize": 0
  }`, 1)

	cfg, err := LoadRunConfig(strings.NewReader(payload))
	require.NoError(t, err)

	assert.InDelta(t, 10*math.Pi/180, cfg.ElevationCutoff, 1e-12)
	assert.Equal(t, 30, cfg.MinObsCountPerTrack)
	assert.Equal(t, 30, cfg.CycleSlip.MinObsCount)
	assert.Equal(t, 50, cfg.MaxStationCount)
	assert.Equal(t, 8, cfg.WorkerCount)
	assert.Equal(t, 3.0, cfg.Robust.Huber)
	assert.Equal(t, 2.0, cfg.CycleSlip.DenoisingLambda)
	assert.Equal(t, 0, cfg.CycleSlip.TECWindowSize, "explicit zero must survive")
	assert.Equal(t, kb.UseNearestFrequency, cfg.NoPatternAction)

	assert.True(t, cfg.TypeMask.Admits(C1))
	assert.False(t, cfg.TypeMask.Admits(L5))
	assert.False(t, cfg.TypeMask.Admits(C5))
}

func TestLoadRunConfigMissingMandatory(t *testing.T) {
	payload := strings.Replace(minimalConfig, `"inputfileStationList": "stations.txt",`, "", 1)
	_, err := LoadRunConfig(strings.NewReader(payload))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inputfileStationList")
}

func TestLoadRunConfigRejectsUnknownFields(t *testing.T) {
	payload := strings.Replace(minimalConfig, `"sampling_s": 30,`, `"sampling_s": 30, "samplingSeconds": 30,`, 1)
	_, err := LoadRunConfig(strings.NewReader(payload))
	require.Error(t, err)
}

func TestLoadRunConfigBadSignalType(t *testing.T) {
	payload := strings.Replace(minimalConfig, `"preprocessing": {}`, `"useType": ["X9"], "preprocessing": {}`, 1)
	_, err := LoadRunConfig(strings.NewReader(payload))
	require.Error(t, err)
}
