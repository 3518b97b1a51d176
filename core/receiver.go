package core

import (
	"fmt"
	"time"

	"github.com/signalsfoundry/gnss-preprocessor/model"
	"github.com/signalsfoundry/gnss-preprocessor/timegrid"
)

// Receiver is the mutable per-station aggregate the preprocessing pipeline
// operates on. It owns all observations and tracks of one station and is
// processed by exactly one worker, so none of its state needs locking.
type Receiver struct {
	Name string
	Info *model.StationInfo

	// ApproxPos is the nominal antenna reference position, ECEF metres.
	ApproxPos Vec3
	Grid      *timegrid.Grid

	// ObservationSampling is the receiver's nominal recording interval,
	// estimated from the observation file.
	ObservationSampling time.Duration

	// Clock is the per-epoch receiver clock offset in metres, filled by the
	// robust clock estimator.
	Clock []float64

	// Offset is the per-epoch antenna phase-center offset in ECEF metres.
	Offset []Vec3

	Tracks []*Track
	Bias   SignalBias

	usable        []bool
	disabled      bool
	disableReason string

	// obs[idEpoch][idTrans]; nil where nothing was observed.
	obs [][]*Observation
}

// NewReceiver builds an empty receiver on the given epoch grid, sized for
// transmitterCount transmitters. All epochs start usable.
func NewReceiver(name string, info *model.StationInfo, grid *timegrid.Grid, transmitterCount int) (*Receiver, error) {
	if grid == nil {
		return nil, fmt.Errorf("receiver %s: nil epoch grid", name)
	}
	r := &Receiver{
		Name:                name,
		Info:                info,
		Grid:                grid,
		ObservationSampling: grid.Sampling,
		Clock:               make([]float64, grid.Count),
		Offset:              make([]Vec3, grid.Count),
		usable:              make([]bool, grid.Count),
		obs:                 make([][]*Observation, grid.Count),
	}
	if info != nil {
		r.ApproxPos = Vec3{X: info.ApproxPosition[0], Y: info.ApproxPosition[1], Z: info.ApproxPosition[2]}
	}
	for i := range r.usable {
		r.usable[i] = true
		r.obs[i] = make([]*Observation, transmitterCount)
	}
	return r, nil
}

// Position returns the receiver position at the given epoch. Stations are
// static in this pipeline, so the nominal position applies everywhere.
func (r *Receiver) Position(idEpoch int) Vec3 {
	return r.ApproxPos
}

// Usable reports whether the receiver as a whole is still active.
func (r *Receiver) Usable() bool { return r != nil && !r.disabled }

// UsableEpoch reports whether the given epoch is still active.
func (r *Receiver) UsableEpoch(idEpoch int) bool {
	return !r.disabled && idEpoch >= 0 && idEpoch < len(r.usable) && r.usable[idEpoch]
}

// DisableEpoch marks an epoch unusable, including all its observations.
// Disabling is monotonic: a disabled epoch is never re-enabled.
func (r *Receiver) DisableEpoch(idEpoch int) {
	if idEpoch < 0 || idEpoch >= len(r.usable) {
		return
	}
	r.usable[idEpoch] = false
	for _, o := range r.obs[idEpoch] {
		o.Disable()
	}
}

// Disable removes the receiver from processing for the rest of the run.
func (r *Receiver) Disable(reason string) {
	if r.disabled {
		return
	}
	r.disabled = true
	r.disableReason = reason
}

// DisableReason returns why the receiver was disabled, if it was.
func (r *Receiver) DisableReason() string { return r.disableReason }

// SetObservation attaches an observation for (epoch, transmitter).
func (r *Receiver) SetObservation(idEpoch, idTrans int, o *Observation) {
	if idEpoch < 0 || idEpoch >= len(r.obs) {
		return
	}
	if idTrans < 0 || idTrans >= len(r.obs[idEpoch]) {
		return
	}
	r.obs[idEpoch][idTrans] = o
}

// Observation returns the observation for (epoch, transmitter), or nil.
// Disabled epochs and disabled receivers yield nil so downstream stages
// never see data from a disabled entity.
func (r *Receiver) Observation(idEpoch, idTrans int) *Observation {
	if !r.UsableEpoch(idEpoch) {
		return nil
	}
	if idTrans < 0 || idTrans >= len(r.obs[idEpoch]) {
		return nil
	}
	o := r.obs[idEpoch][idTrans]
	if !o.Usable() {
		return nil
	}
	return o
}

// TransmitterCount returns the width of the observation table.
func (r *Receiver) TransmitterCount() int {
	if len(r.obs) == 0 {
		return 0
	}
	return len(r.obs[0])
}

// DisableEmptyEpochs disables every usable epoch that carries no usable
// observation. Called once after observations are read.
func (r *Receiver) DisableEmptyEpochs() {
	for idEpoch := range r.obs {
		if !r.UsableEpoch(idEpoch) {
			continue
		}
		found := false
		for _, o := range r.obs[idEpoch] {
			if o.Usable() {
				found = true
				break
			}
		}
		if !found {
			r.usable[idEpoch] = false
		}
	}
}

// CountUsableEpochs counts epochs that are usable and observed.
func (r *Receiver) CountUsableEpochs() int {
	if r.disabled {
		return 0
	}
	n := 0
	for idEpoch := range r.obs {
		if !r.usable[idEpoch] {
			continue
		}
		for _, o := range r.obs[idEpoch] {
			if o.Usable() {
				n++
				break
			}
		}
	}
	return n
}

// EpochRatioSufficient applies the minimum estimable-epochs gate: the usable
// observation time must cover at least ratio of the total run duration.
func (r *Receiver) EpochRatioSufficient(ratio float64) bool {
	covered := time.Duration(r.CountUsableEpochs()) * r.ObservationSampling
	required := time.Duration(ratio * float64(time.Duration(r.Grid.Count)*r.Grid.Sampling))
	return covered >= required
}
