package kb

import (
	"fmt"
	"sync"

	"github.com/signalsfoundry/gnss-preprocessor/model"
)

// NoPatternFoundAction selects what happens when an observation has no
// matching antenna pattern for its frequency.
type NoPatternFoundAction int

const (
	// IgnoreObservation drops the affected observation.
	IgnoreObservation NoPatternFoundAction = iota
	// UseNearestFrequency substitutes the pattern of the nearest frequency.
	UseNearestFrequency
	// RaiseError reports a recoverable error for the affected entity.
	RaiseError
)

// ParseNoPatternFoundAction parses the configuration spelling of the policy.
func ParseNoPatternFoundAction(s string) (NoPatternFoundAction, error) {
	switch s {
	case "", "ignoreObservation":
		return IgnoreObservation, nil
	case "useNearestFrequency":
		return UseNearestFrequency, nil
	case "raiseError":
		return RaiseError, nil
	default:
		return 0, fmt.Errorf("unknown noAntennaPatternFound policy %q", s)
	}
}

// Registry is an in-memory, thread-safe store for antenna, accuracy, and
// receiver definitions, keyed by name. Station initialization resolves every
// station's hardware history against it.
type Registry struct {
	mu sync.RWMutex

	antennas   map[string]*model.AntennaDefinition
	accuracies map[string]*model.AntennaDefinition
	receivers  map[string]*model.ReceiverDefinition
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		antennas:   make(map[string]*model.AntennaDefinition),
		accuracies: make(map[string]*model.AntennaDefinition),
		receivers:  make(map[string]*model.ReceiverDefinition),
	}
}

// AddAntenna registers an antenna definition. It returns an error if the
// name already exists.
func (r *Registry) AddAntenna(d *model.AntennaDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.antennas[d.Name]; exists {
		return fmt.Errorf("antenna definition %q already exists", d.Name)
	}
	r.antennas[d.Name] = d
	return nil
}

// AddAccuracy registers an accuracy definition (same shape as an antenna
// definition: per-band sigma terms).
func (r *Registry) AddAccuracy(d *model.AntennaDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accuracies[d.Name]; exists {
		return fmt.Errorf("accuracy definition %q already exists", d.Name)
	}
	r.accuracies[d.Name] = d
	return nil
}

// AddReceiver registers a receiver definition.
func (r *Registry) AddReceiver(d *model.ReceiverDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.receivers[d.Name]; exists {
		return fmt.Errorf("receiver definition %q already exists", d.Name)
	}
	r.receivers[d.Name] = d
	return nil
}

// Antenna returns the antenna definition with the given name, or nil.
func (r *Registry) Antenna(name string) *model.AntennaDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.antennas[name]
}

// Accuracy returns the accuracy definition with the given name, or nil.
func (r *Registry) Accuracy(name string) *model.AntennaDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.accuracies[name]
}

// Receiver returns the receiver definition with the given name, or nil.
func (r *Registry) Receiver(name string) *model.ReceiverDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.receivers[name]
}

// ResolveStation fills the definition references of a station's hardware
// history from the registry. Missing definitions leave the reference nil;
// callers decide per policy whether that disables epochs or observations.
func (r *Registry) ResolveStation(info *model.StationInfo) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range info.Antennas {
		rec := &info.Antennas[i]
		rec.Definition = r.antennas[rec.AntennaName]
		rec.Accuracy = r.accuracies[rec.AntennaName]
	}
	for i := range info.Receivers {
		rec := &info.Receivers[i]
		rec.Definition = r.receivers[rec.ReceiverName]
	}
}

// Pattern looks up the band pattern for frequency f in the definition,
// applying the configured no-pattern policy. A nil pattern with nil error
// means the observation should be ignored.
func Pattern(def *model.AntennaDefinition, f float64, action NoPatternFoundAction) (*model.BandPattern, error) {
	if def == nil {
		return nil, fmt.Errorf("no antenna definition")
	}
	if p, ok := def.Pattern(f); ok {
		return p, nil
	}
	switch action {
	case UseNearestFrequency:
		if p := def.NearestPattern(f); p != nil {
			return p, nil
		}
		return nil, fmt.Errorf("antenna definition %q has no patterns", def.Name)
	case RaiseError:
		return nil, fmt.Errorf("no antenna pattern for frequency %.0f Hz in %q", f, def.Name)
	default:
		return nil, nil
	}
}
