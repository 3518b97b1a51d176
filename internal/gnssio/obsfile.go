package gnssio

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// EpochRecord is one (epoch, transmitter) measurement set: observable code
// to value, with optional per-observable formal sigmas.
type EpochRecord struct {
	Index  int                `json:"epoch"`
	PRN    string             `json:"prn"`
	Values map[string]float64 `json:"obs"`
	Sigmas map[string]float64 `json:"sigma,omitempty"`
}

// ObservationFile is the decoded per-station raw observation file.
type ObservationFile struct {
	Station  string        `json:"station"`
	Start    time.Time     `json:"start"`
	Sampling time.Duration `json:"-"`
	Count    int           `json:"epoch_count"`
	Records  []EpochRecord `json:"records"`
}

type observationFileJSON struct {
	Station   string        `json:"station"`
	Start     time.Time     `json:"start"`
	SamplingS float64       `json:"sampling_s"`
	Count     int           `json:"epoch_count"`
	Records   []EpochRecord `json:"records"`
}

// ReadObservations decodes a raw observation file.
func ReadObservations(r io.Reader) (*ObservationFile, error) {
	var payload observationFileJSON
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode observations: %w", err)
	}
	if payload.SamplingS <= 0 {
		return nil, fmt.Errorf("observation file with non-positive sampling")
	}
	if payload.Count <= 0 {
		return nil, fmt.Errorf("observation file with non-positive epoch count")
	}
	for i, rec := range payload.Records {
		if rec.PRN == "" {
			return nil, fmt.Errorf("record %d without PRN", i)
		}
		if rec.Index < 0 || rec.Index >= payload.Count {
			return nil, fmt.Errorf("record %d epoch %d out of range [0,%d)", i, rec.Index, payload.Count)
		}
	}
	return &ObservationFile{
		Station:  payload.Station,
		Start:    payload.Start,
		Sampling: time.Duration(payload.SamplingS * float64(time.Second)),
		Count:    payload.Count,
		Records:  payload.Records,
	}, nil
}

// ReadObservationsFile opens and decodes a raw observation file.
func ReadObservationsFile(path string) (*ObservationFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open observations: %w", err)
	}
	defer f.Close()
	obs, err := ReadObservations(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return obs, nil
}

// FileExists reports whether a path exists. Used to skip station
// alternatives whose observation file is absent without treating that as an
// error.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
