package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/signalsfoundry/gnss-preprocessor/internal/gnssio"
	"github.com/signalsfoundry/gnss-preprocessor/internal/logging"
	"github.com/signalsfoundry/gnss-preprocessor/internal/observability"
	"github.com/signalsfoundry/gnss-preprocessor/internal/parallel"
	"github.com/signalsfoundry/gnss-preprocessor/kb"
	"github.com/signalsfoundry/gnss-preprocessor/timegrid"
)

// MetricsRecorder receives pipeline counters as they accrue. Implemented by
// the observability collector; a nil-safe noop stands in when metrics are not
// wired.
type MetricsRecorder interface {
	SetStationCounts(selected, disabled int)
	AddRunCounts(tracksFormed, tracksRemoved, slipsDetected, slipsRepaired, epochsDisabled, obsDisabled int)
	ObserveStage(stage string, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) SetStationCounts(int, int)                 {}
func (noopMetrics) AddRunCounts(int, int, int, int, int, int) {}
func (noopMetrics) ObserveStage(string, time.Duration)        {}

// Network is the loaded state of one preprocessing run: the epoch grid, the
// transmitter constellation, the hardware-definition registry, and the
// station list. Transmitters and registry are shared read-only across
// workers; receivers are built per worker shard.
type Network struct {
	Config       *RunConfig
	Grid         *timegrid.Grid
	Registry     *kb.Registry
	Stations     []gnssio.StationEntry
	Transmitters []*Transmitter
	Stats        *RunStats
	Metrics      MetricsRecorder

	log           logging.Logger
	prnIndex      map[string]int
	requiredTypes []SignalType
}

// LoadNetwork reads every network-wide input of the run: definition files,
// the station list, the transmitter constellation, and transmitter signal
// biases. Satellites whose orbit cannot be initialized are skipped with a
// warning rather than failing the run.
func LoadNetwork(ctx context.Context, cfg *RunConfig, log logging.Logger, metrics MetricsRecorder) (*Network, error) {
	if log == nil {
		log = logging.Noop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}

	grid, err := timegrid.New(cfg.Start, cfg.Sampling, cfg.EpochCount)
	if err != nil {
		return nil, err
	}

	registry := kb.NewRegistry()
	antennas, err := gnssio.ReadAntennaDefinitionFile(cfg.AntennaDefFile)
	if err != nil {
		return nil, err
	}
	for _, d := range antennas {
		if err := registry.AddAntenna(d); err != nil {
			return nil, err
		}
	}
	accuracies, err := gnssio.ReadAntennaDefinitionFile(cfg.AccuracyDefFile)
	if err != nil {
		return nil, err
	}
	for _, d := range accuracies {
		if err := registry.AddAccuracy(d); err != nil {
			return nil, err
		}
	}
	if cfg.ReceiverDefFile != "" {
		receivers, err := gnssio.ReadReceiverDefinitionFile(cfg.ReceiverDefFile)
		if err != nil {
			return nil, err
		}
		for _, d := range receivers {
			if err := registry.AddReceiver(d); err != nil {
				return nil, err
			}
		}
	}

	stations, err := gnssio.ReadStationListFile(cfg.StationListFile)
	if err != nil {
		return nil, err
	}
	if len(cfg.SelectReceivers) > 0 {
		var kept []gnssio.StationEntry
		for _, st := range stations {
			if matchesSelection(cfg.SelectReceivers, st.Name()) {
				kept = append(kept, st)
			}
		}
		if len(kept) == 0 {
			return nil, fmt.Errorf("selectReceivers matches no station in %s", cfg.StationListFile)
		}
		stations = kept
	}

	sats, err := gnssio.ReadSatellitesFile(cfg.SatellitesFile)
	if err != nil {
		return nil, err
	}

	n := &Network{
		Config:   cfg,
		Grid:     grid,
		Registry: registry,
		Stations: stations,
		Stats:    NewRunStats(),
		Metrics:  metrics,
		log:      log,
		prnIndex: make(map[string]int),
	}

	for _, def := range sats {
		if !matchesSelection(cfg.SelectTransmitters, def.PRN) {
			continue
		}
		tr, err := NewTransmitter(def, grid.Start)
		if err != nil {
			log.Warn(ctx, "skipping transmitter", logging.String("prn", def.PRN), logging.String("error", err.Error()))
			n.Stats.Add(RunCounts{TransmittersDown: 1})
			continue
		}
		n.prnIndex[tr.PRN] = len(n.Transmitters)
		n.Transmitters = append(n.Transmitters, tr)
	}
	if len(n.Transmitters) == 0 {
		return nil, fmt.Errorf("no usable transmitter in %s", cfg.SatellitesFile)
	}

	if cfg.BiasInTransmitterTemplate.IsSet() {
		for _, tr := range n.Transmitters {
			path, err := cfg.BiasInTransmitterTemplate.ExpandPRN(tr.PRN)
			if err != nil {
				return nil, err
			}
			if !gnssio.FileExists(path) {
				continue
			}
			// A corrupt bias file costs that transmitter, not the run.
			if err := loadTransmitterBias(tr, path); err != nil {
				log.Warn(ctx, "disabling transmitter with unreadable signal bias",
					logging.String("prn", tr.PRN),
					logging.String("error", err.Error()))
				tr.Disable("signal bias unreadable")
				n.Stats.Add(RunCounts{TransmittersDown: 1})
			}
		}
	}

	// The dual-frequency combinations need code and phase on both carriers;
	// an epoch missing any of them cannot anchor a track.
	for _, t := range []SignalType{C1, C2, L1, L2} {
		if cfg.TypeMask.Admits(t) {
			n.requiredTypes = append(n.requiredTypes, t)
		}
	}
	if len(n.requiredTypes) < 4 {
		return nil, fmt.Errorf("type mask rejects a dual-frequency observable; need C1 C2 L1 L2")
	}

	log.Info(ctx, "network loaded",
		logging.Int("stations", len(stations)),
		logging.Int("transmitters", len(n.Transmitters)),
		logging.Int("epochs", grid.Count))
	return n, nil
}

// Run selects and preprocesses the whole station network, sharded across the
// configured number of workers. It returns the merged selection with every
// surviving receiver and a snapshot of the run counters.
func (n *Network) Run(ctx context.Context) (*Selection, RunCounts, error) {
	ctx, span := observability.Tracer().Start(ctx, "preprocessing.run")
	defer span.End()

	workers := n.Config.WorkerCount
	if workers > len(n.Stations) {
		workers = len(n.Stations)
	}
	if workers < 1 {
		workers = 1
	}

	selections := make([]*Selection, workers)
	selectedTotals := make([]int, workers)
	err := parallel.Run(workers, func(c *parallel.Comm) error {
		sel, err := SelectAlternatives(ctx, c, n.Stations, n.buildReceiver, n.log)
		if err != nil {
			return err
		}
		sel.Truncate(n.Config.MaxStationCount)

		// Shard-local tally, reduced so every worker sees the network total.
		selected := 0
		for i := range sel.Chosen {
			if c.Mine(i) && sel.Chosen[i] > 0 {
				selected++
			}
		}
		selectedTotals[c.Rank()] = c.AllReduceSumInt(selected)

		for _, r := range sel.Receivers {
			if r == nil || !r.Usable() {
				continue
			}
			if err := n.writeReceiverBias(r); err != nil {
				n.log.Warn(ctx, "writing receiver bias failed",
					logging.String("station", r.Name),
					logging.String("error", err.Error()))
			}
		}

		selections[c.Rank()] = sel
		return nil
	})
	if err != nil {
		return nil, RunCounts{}, err
	}

	merged := selections[0]
	for _, sel := range selections[1:] {
		for i, r := range sel.Receivers {
			if r != nil {
				merged.Receivers[i] = r
			}
		}
	}

	if err := n.writeTransmitterBiases(); err != nil {
		n.log.Warn(ctx, "writing transmitter biases failed", logging.String("error", err.Error()))
	}

	counts := n.Stats.Snapshot()
	counts.StationsSelected = selectedTotals[0]
	counts.StationsDisabled = len(n.Stations) - counts.StationsSelected
	n.Metrics.SetStationCounts(counts.StationsSelected, counts.StationsDisabled)

	n.log.Info(ctx, "preprocessing finished",
		logging.Int("stations_selected", counts.StationsSelected),
		logging.Int("stations_disabled", counts.StationsDisabled),
		logging.Int("tracks", counts.TracksFormed),
		logging.Int("slips_detected", counts.SlipsDetected),
		logging.Int("slips_repaired", counts.SlipsRepaired))
	return merged, counts, nil
}

// buildReceiver loads, preprocesses, and gates one candidate data source.
// A nil receiver with nil error tells the selector to try the next
// alternative.
func (n *Network) buildReceiver(ctx context.Context, name string) (*Receiver, error) {
	r, err := n.LoadReceiver(ctx, name)
	if err != nil || r == nil {
		return nil, err
	}
	if err := n.Preprocess(ctx, r); err != nil {
		r.Disable(err.Error())
		return nil, err
	}
	if !r.EpochRatioSufficient(n.Config.MinEstimableEpochsRatio) {
		n.log.Info(ctx, "station below estimable-epochs ratio",
			logging.String("station", name),
			logging.Int("usable_epochs", r.CountUsableEpochs()))
		r.Disable("estimable epochs ratio")
		return nil, nil
	}
	return r, nil
}

// LoadReceiver reads one station's metadata and raw observations onto the run
// grid. It returns nil without error when the observation file does not
// exist, so the caller can fall through to the next alternative.
func (n *Network) LoadReceiver(ctx context.Context, name string) (*Receiver, error) {
	cfg := n.Config

	obsPath, err := cfg.ObservationTemplate.ExpandStation(name)
	if err != nil {
		return nil, err
	}
	if !gnssio.FileExists(obsPath) {
		return nil, nil
	}

	infoPath, err := cfg.StationInfoTemplate.ExpandStation(name)
	if err != nil {
		return nil, err
	}
	info, err := gnssio.ReadStationInfoFile(infoPath)
	if err != nil {
		return nil, err
	}
	n.Registry.ResolveStation(info)

	r, err := NewReceiver(name, info, n.Grid, len(n.Transmitters))
	if err != nil {
		return nil, err
	}

	file, err := gnssio.ReadObservationsFile(obsPath)
	if err != nil {
		return nil, err
	}
	if file.Sampling > 0 {
		r.ObservationSampling = file.Sampling
	}

	// Antenna setup per epoch: no antenna record means the epoch cannot be
	// modeled and is dropped.
	for idEpoch := 0; idEpoch < n.Grid.Count; idEpoch++ {
		t := n.Grid.Time(idEpoch)
		ant := info.FindAntenna(t)
		if ant == nil {
			r.DisableEpoch(idEpoch)
			continue
		}
		offset := ant.OffsetNEU
		if ant.Definition != nil {
			p, err := kb.Pattern(ant.Definition, BandL1.Frequency(), cfg.NoPatternAction)
			if err != nil {
				return nil, fmt.Errorf("station %s: %w", name, err)
			}
			if p != nil {
				offset[0] += p.OffsetNEU[0]
				offset[1] += p.OffsetNEU[1]
				offset[2] += p.OffsetNEU[2]
			}
		}
		r.Offset[idEpoch] = NEUToECEF(r.ApproxPos, offset)
	}

	for _, rec := range file.Records {
		idTrans, ok := n.prnIndex[rec.PRN]
		if !ok {
			continue
		}
		epochTime := file.Start.Add(time.Duration(rec.Index) * file.Sampling)
		idEpoch := n.Grid.Index(epochTime)
		if idEpoch < 0 || !r.UsableEpoch(idEpoch) {
			continue
		}

		var allowed []string
		if hw := info.FindReceiver(epochTime); hw != nil && hw.Definition != nil {
			allowed = hw.Definition.Types
		}
		ant := info.FindAntenna(epochTime)

		var types []SignalType
		var values, sigmas []float64
		for code, v := range rec.Values {
			t, err := ParseSignalType(code)
			if err != nil {
				continue
			}
			if !cfg.TypeMask.Admits(t) {
				continue
			}
			if allowed != nil && !containsString(allowed, code) {
				continue
			}
			sigma := rec.Sigmas[code]
			if sigma <= 0 && ant != nil && ant.Accuracy != nil {
				p, err := kb.Pattern(ant.Accuracy, t.Band.Frequency(), cfg.NoPatternAction)
				if err != nil {
					return nil, fmt.Errorf("station %s: %w", name, err)
				}
				if p == nil {
					continue
				}
				sigma = p.SigmaZenith + p.SigmaElevation
			}
			types = append(types, t)
			values = append(values, v)
			sigmas = append(sigmas, sigma)
		}
		if len(types) == 0 {
			continue
		}
		r.SetObservation(idEpoch, idTrans, NewObservation(types, values, sigmas))
	}

	if cfg.BiasInReceiverTemplate.IsSet() {
		path, err := cfg.BiasInReceiverTemplate.ExpandStation(name)
		if err != nil {
			return nil, err
		}
		if gnssio.FileExists(path) {
			biasRec, err := gnssio.ReadSignalBiasFile(path)
			if err != nil {
				return nil, err
			}
			if err := applyBiasRecord(&r.Bias, biasRec); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			r.Bias.WrapPhases()
		}
	}

	r.DisableEmptyEpochs()
	return r, nil
}

// Preprocess runs the full per-station pipeline: segmentation, robust clock
// estimation, gross-outlier screening, cycle-slip detection and repair, and
// the elevation and residual quality filters.
func (n *Network) Preprocess(ctx context.Context, r *Receiver) error {
	ctx, span := observability.Tracer().Start(ctx, "preprocessing.station")
	defer span.End()

	cfg := n.Config
	log := logging.WithStation(n.log, r.Name)
	var delta RunCounts

	stage := func(name string, fn func()) {
		start := time.Now()
		fn()
		n.Metrics.ObserveStage(name, time.Since(start))
	}

	stage("create_tracks", func() {
		r.CreateTracks(n.Transmitters, cfg.MinObsCountPerTrack, n.requiredTypes)
	})
	delta.TracksFormed = len(r.Tracks)
	if len(r.Tracks) == 0 {
		n.Stats.Add(delta)
		return fmt.Errorf("no track long enough")
	}

	usableBefore := countUsableEpochs(r)
	var clockErr error
	stage("estimate_clocks", func() {
		clockErr = EstimateInitialClocks(r, n.Transmitters, SaastamoinenReduction, cfg.Robust, cfg.CodeMaxPositionDiff, false)
	})
	if clockErr != nil {
		n.Stats.Add(delta)
		return clockErr
	}
	delta.EpochsDisabled += usableBefore - countUsableEpochs(r)

	var eqn *ObservationEquationList
	stage("build_equations", func() {
		eqn = BuildObservationEquations(r, n.Transmitters, SaastamoinenReduction, KindRange|KindPhase)
	})

	stage("elevation_cutoff", func() {
		delta.ObsDisabled += ApplyElevationCutoff(r, eqn, cfg.ElevationCutoff)
	})

	stage("gross_outliers", func() {
		delta.EpochsDisabled += DisableGrossCodeOutlierEpochs(r, eqn, cfg.Robust, cfg.CodeMaxPositionDiff, 0.5)
	})

	if cfg.TrackBeforeTemplate.IsSet() {
		n.dumpTracks(ctx, r, cfg.TrackBeforeTemplate, log)
	}

	stage("cycle_slip_detection", func() {
		delta.SlipsDetected = DetectCycleSlips(r, cfg.CycleSlip)
	})

	stage("low_elevation_tracks", func() {
		delta.TracksRemoved += RemoveLowElevationTracks(r, eqn, cfg.ElevationTrackMinimum)
	})

	stage("track_outliers", func() {
		delta.ObsDisabled += TrackOutlierDetection(r, eqn, cfg.Robust)
	})

	stage("cycle_slip_repair", func() {
		delta.SlipsRepaired = RepairCycleSlips(r, eqn, cfg.CycleSlip)
	})

	if cfg.TrackAfterTemplate.IsSet() {
		n.dumpTracks(ctx, r, cfg.TrackAfterTemplate, log)
	}

	n.Stats.Add(delta)
	n.Metrics.AddRunCounts(delta.TracksFormed, delta.TracksRemoved, delta.SlipsDetected,
		delta.SlipsRepaired, delta.EpochsDisabled, delta.ObsDisabled)

	log.Debug(ctx, "station preprocessed",
		logging.Int("tracks", len(r.Tracks)),
		logging.Int("slips_detected", delta.SlipsDetected),
		logging.Int("slips_repaired", delta.SlipsRepaired),
		logging.Int("obs_disabled", delta.ObsDisabled))
	return nil
}

// dumpTracks writes the diagnostic combination series of every track.
func (n *Network) dumpTracks(ctx context.Context, r *Receiver, tmpl gnssio.Template, log logging.Logger) {
	for _, track := range r.Tracks {
		start, end := track.TimeBounds(r)
		dump := &gnssio.TrackDump{
			Station:   r.Name,
			PRN:       track.PRN,
			TimeStart: start,
			TimeEnd:   end,
			Types:     TypesString(track.Types),
		}
		for idEpoch := track.StartEpoch; idEpoch <= track.EndEpoch; idEpoch++ {
			o := r.Observation(idEpoch, track.IdTrans)
			if o == nil {
				continue
			}
			tec, okT := tecCycles(o)
			mw, okM := melbourneWuebbenaCycles(o)
			if !okT || !okM {
				continue
			}
			dump.Epochs = append(dump.Epochs, idEpoch)
			dump.TEC = append(dump.TEC, tec)
			dump.WideLane = append(dump.WideLane, mw)
		}
		if len(dump.Epochs) == 0 {
			continue
		}
		if err := gnssio.WriteTrackDump(tmpl, dump); err != nil {
			log.Warn(ctx, "track dump failed",
				logging.String("track", track.String()),
				logging.String("error", err.Error()))
		}
	}
}

// tecCycles is the geometry-free phase combination in cycles.
func tecCycles(o *Observation) (float64, bool) {
	l1, ok1 := o.Value(L1)
	l2, ok2 := o.Value(L2)
	if !ok1 || !ok2 {
		return 0, false
	}
	return l1/BandL1.Wavelength() - l2/BandL2.Wavelength(), true
}

// melbourneWuebbenaCycles is the Melbourne-Wuebbena wide-lane combination in
// wide-lane cycles: wide-lane phase minus narrow-lane code.
func melbourneWuebbenaCycles(o *Observation) (float64, bool) {
	l1, ok1 := o.Value(L1)
	l2, ok2 := o.Value(L2)
	c1, ok3 := o.Value(C1)
	c2, ok4 := o.Value(C2)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return 0, false
	}
	f1 := BandL1.Frequency()
	f2 := BandL2.Frequency()
	wideLanePhase := (f1*l1 - f2*l2) / (f1 - f2)
	narrowLaneCode := (f1*c1 + f2*c2) / (f1 + f2)
	lambdaWL := CLight / (f1 - f2)
	return (wideLanePhase - narrowLaneCode) / lambdaWL, true
}

func (n *Network) writeReceiverBias(r *Receiver) error {
	tmpl := n.Config.BiasOutReceiverTemplate
	if !tmpl.IsSet() {
		return nil
	}
	path, err := tmpl.ExpandStation(r.Name)
	if err != nil {
		return err
	}
	r.Bias.WrapPhases()
	return gnssio.WriteSignalBiasFile(path, biasRecord(r.Name, &r.Bias))
}

func (n *Network) writeTransmitterBiases() error {
	tmpl := n.Config.BiasOutTransmitterTemplate
	if !tmpl.IsSet() {
		return nil
	}
	for _, tr := range n.Transmitters {
		path, err := tmpl.ExpandPRN(tr.PRN)
		if err != nil {
			return err
		}
		tr.Bias.WrapPhases()
		if err := gnssio.WriteSignalBiasFile(path, biasRecord(tr.PRN, &tr.Bias)); err != nil {
			return err
		}
	}
	return nil
}

func loadTransmitterBias(tr *Transmitter, path string) error {
	rec, err := gnssio.ReadSignalBiasFile(path)
	if err != nil {
		return err
	}
	if err := applyBiasRecord(&tr.Bias, rec); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	tr.Bias.WrapPhases()
	return nil
}

func applyBiasRecord(b *SignalBias, rec *gnssio.BiasRecord) error {
	for code, v := range rec.Biases {
		t, err := ParseSignalType(code)
		if err != nil {
			return err
		}
		b.Set(t, v)
	}
	return nil
}

func biasRecord(entity string, b *SignalBias) *gnssio.BiasRecord {
	rec := &gnssio.BiasRecord{Entity: entity, Biases: make(map[string]float64, len(b.Types))}
	for i, t := range b.Types {
		rec.Biases[t.String()] = b.Values[i]
	}
	return rec
}

func countUsableEpochs(r *Receiver) int {
	n := 0
	for idEpoch := 0; idEpoch < r.Grid.Count; idEpoch++ {
		if r.UsableEpoch(idEpoch) {
			n++
		}
	}
	return n
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// matchesSelection reports whether name passes the selection patterns. An
// empty pattern list selects everything; a trailing '*' matches a prefix.
func matchesSelection(patterns []string, name string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if strings.HasSuffix(p, "*") {
			if strings.HasPrefix(name, strings.TrimSuffix(p, "*")) {
				return true
			}
			continue
		}
		if p == name {
			return true
		}
	}
	return false
}
