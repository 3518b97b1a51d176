package kb

import (
	"testing"
	"time"

	"github.com/signalsfoundry/gnss-preprocessor/model"
)

func testAntenna(name string) *model.AntennaDefinition {
	return &model.AntennaDefinition{
		Name: name,
		Patterns: []model.BandPattern{
			{FrequencyHz: 1575.42e6, SigmaZenith: 0.002},
			{FrequencyHz: 1227.60e6, SigmaZenith: 0.003},
		},
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.AddAntenna(testAntenna("A")); err != nil {
		t.Fatalf("AddAntenna: %v", err)
	}
	if err := r.AddAntenna(testAntenna("A")); err == nil {
		t.Fatal("expected duplicate antenna error")
	}
	if err := r.AddAccuracy(testAntenna("A")); err != nil {
		t.Fatalf("accuracy namespace must be independent: %v", err)
	}
}

func TestResolveStationFillsDefinitions(t *testing.T) {
	r := NewRegistry()
	if err := r.AddAntenna(testAntenna("TRM59800.00")); err != nil {
		t.Fatal(err)
	}
	if err := r.AddAccuracy(testAntenna("TRM59800.00")); err != nil {
		t.Fatal(err)
	}
	if err := r.AddReceiver(&model.ReceiverDefinition{Name: "SEPT POLARX5", Types: []string{"C1", "L1"}}); err != nil {
		t.Fatal(err)
	}

	info := &model.StationInfo{
		MarkerName: "ALGO",
		Antennas: []model.AntennaRecord{
			{AntennaName: "TRM59800.00", TimeStart: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
			{AntennaName: "UNKNOWN", TimeStart: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		},
		Receivers: []model.ReceiverRecord{
			{ReceiverName: "SEPT POLARX5", TimeStart: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
	r.ResolveStation(info)

	if info.Antennas[0].Definition == nil || info.Antennas[0].Accuracy == nil {
		t.Fatal("known antenna record left unresolved")
	}
	if info.Antennas[1].Definition != nil {
		t.Fatal("unknown antenna record resolved to a definition")
	}
	if info.Receivers[0].Definition == nil {
		t.Fatal("receiver record left unresolved")
	}
}

func TestPatternPolicies(t *testing.T) {
	def := testAntenna("A")
	const unknownFreq = 1176.45e6

	if p, err := Pattern(def, 1575.42e6, RaiseError); err != nil || p == nil {
		t.Fatalf("exact match failed: %v", err)
	}

	if p, err := Pattern(def, unknownFreq, IgnoreObservation); err != nil || p != nil {
		t.Fatalf("ignore policy: p=%v err=%v, want nil,nil", p, err)
	}

	p, err := Pattern(def, unknownFreq, UseNearestFrequency)
	if err != nil || p == nil {
		t.Fatalf("nearest policy: %v", err)
	}
	if p.FrequencyHz != 1227.60e6 {
		t.Fatalf("nearest frequency = %v, want 1227.60e6", p.FrequencyHz)
	}

	if _, err := Pattern(def, unknownFreq, RaiseError); err == nil {
		t.Fatal("raise policy must error on missing pattern")
	}

	if _, err := Pattern(nil, 1575.42e6, IgnoreObservation); err == nil {
		t.Fatal("nil definition must error")
	}
}

func TestParseNoPatternFoundAction(t *testing.T) {
	for in, want := range map[string]NoPatternFoundAction{
		"":                    IgnoreObservation,
		"ignoreObservation":   IgnoreObservation,
		"useNearestFrequency": UseNearestFrequency,
		"raiseError":          RaiseError,
	} {
		got, err := ParseNoPatternFoundAction(in)
		if err != nil || got != want {
			t.Fatalf("ParseNoPatternFoundAction(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseNoPatternFoundAction("explode"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}
