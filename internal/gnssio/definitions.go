package gnssio

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/signalsfoundry/gnss-preprocessor/model"
)

// Internal JSON shapes; kept unexported so the formats can evolve without
// touching the model package.

type bandPatternJSON struct {
	FrequencyHz    float64    `json:"frequency_hz"`
	OffsetNEU      [3]float64 `json:"offset_neu_m"`
	SigmaZenith    float64    `json:"sigma_zenith_m"`
	SigmaElevation float64    `json:"sigma_elevation_m"`
}

type antennaDefJSON struct {
	Name     string            `json:"name"`
	Radome   string            `json:"radome,omitempty"`
	Patterns []bandPatternJSON `json:"patterns"`
}

type receiverDefJSON struct {
	Name  string   `json:"name"`
	Types []string `json:"types"`
}

// ReadAntennaDefinitions decodes a JSON array of antenna (or accuracy)
// definitions.
func ReadAntennaDefinitions(r io.Reader) ([]*model.AntennaDefinition, error) {
	var payload []antennaDefJSON
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode antenna definitions: %w", err)
	}
	out := make([]*model.AntennaDefinition, 0, len(payload))
	for _, d := range payload {
		if d.Name == "" {
			return nil, fmt.Errorf("antenna definition with empty name")
		}
		def := &model.AntennaDefinition{Name: d.Name, Radome: d.Radome}
		for _, p := range d.Patterns {
			def.Patterns = append(def.Patterns, model.BandPattern{
				FrequencyHz:    p.FrequencyHz,
				OffsetNEU:      p.OffsetNEU,
				SigmaZenith:    p.SigmaZenith,
				SigmaElevation: p.SigmaElevation,
			})
		}
		out = append(out, def)
	}
	return out, nil
}

// ReadAntennaDefinitionFile opens and decodes an antenna definition file.
func ReadAntennaDefinitionFile(path string) ([]*model.AntennaDefinition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open antenna definitions: %w", err)
	}
	defer f.Close()
	defs, err := ReadAntennaDefinitions(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// ReadReceiverDefinitions decodes a JSON array of receiver definitions.
func ReadReceiverDefinitions(r io.Reader) ([]*model.ReceiverDefinition, error) {
	var payload []receiverDefJSON
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode receiver definitions: %w", err)
	}
	out := make([]*model.ReceiverDefinition, 0, len(payload))
	for _, d := range payload {
		if d.Name == "" {
			return nil, fmt.Errorf("receiver definition with empty name")
		}
		out = append(out, &model.ReceiverDefinition{Name: d.Name, Types: d.Types})
	}
	return out, nil
}

// ReadReceiverDefinitionFile opens and decodes a receiver definition file.
func ReadReceiverDefinitionFile(path string) ([]*model.ReceiverDefinition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open receiver definitions: %w", err)
	}
	defer f.Close()
	defs, err := ReadReceiverDefinitions(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

type hardwareRecordJSON struct {
	Name      string     `json:"name"`
	Radome    string     `json:"radome,omitempty"`
	Serial    string     `json:"serial,omitempty"`
	TimeStart time.Time  `json:"time_start"`
	TimeEnd   *time.Time `json:"time_end,omitempty"` // open interval when absent
	OffsetNEU [3]float64 `json:"offset_neu_m,omitempty"`
}

type stationInfoJSON struct {
	MarkerName     string               `json:"marker_name"`
	MarkerNumber   string               `json:"marker_number,omitempty"`
	Comment        string               `json:"comment,omitempty"`
	ApproxPosition [3]float64           `json:"approx_position_ecef_m"`
	Antennas       []hardwareRecordJSON `json:"antennas"`
	Receivers      []hardwareRecordJSON `json:"receivers,omitempty"`
}

// ReadStationInfo decodes a station metadata file: marker identity,
// approximate position, and antenna/receiver hardware histories.
func ReadStationInfo(r io.Reader) (*model.StationInfo, error) {
	var payload stationInfoJSON
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode station info: %w", err)
	}
	if payload.MarkerName == "" {
		return nil, fmt.Errorf("station info without marker name")
	}
	info := &model.StationInfo{
		MarkerName:     payload.MarkerName,
		MarkerNumber:   payload.MarkerNumber,
		Comment:        payload.Comment,
		ApproxPosition: payload.ApproxPosition,
	}
	for _, a := range payload.Antennas {
		rec := model.AntennaRecord{
			AntennaName: a.Name,
			Radome:      a.Radome,
			Serial:      a.Serial,
			TimeStart:   a.TimeStart,
			OffsetNEU:   a.OffsetNEU,
		}
		if a.TimeEnd != nil {
			rec.TimeEnd = *a.TimeEnd
		}
		info.Antennas = append(info.Antennas, rec)
	}
	for _, rv := range payload.Receivers {
		rec := model.ReceiverRecord{
			ReceiverName: rv.Name,
			Serial:       rv.Serial,
			TimeStart:    rv.TimeStart,
		}
		if rv.TimeEnd != nil {
			rec.TimeEnd = *rv.TimeEnd
		}
		info.Receivers = append(info.Receivers, rec)
	}
	return info, nil
}

// ReadStationInfoFile opens and decodes a station metadata file.
func ReadStationInfoFile(path string) (*model.StationInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open station info: %w", err)
	}
	defer f.Close()
	info, err := ReadStationInfo(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return info, nil
}

type satelliteJSON struct {
	PRN         string  `json:"prn"`
	Name        string  `json:"name,omitempty"`
	TLE1        string  `json:"tle1"`
	TLE2        string  `json:"tle2"`
	ClockOffset float64 `json:"clock_offset_s,omitempty"`
	ClockDrift  float64 `json:"clock_drift_sps,omitempty"`
}

// ReadSatellites decodes the transmitter constellation file: PRN, TLE orbit,
// and linear clock model per satellite.
func ReadSatellites(r io.Reader) ([]*model.SatelliteDefinition, error) {
	var payload []satelliteJSON
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode satellites: %w", err)
	}
	out := make([]*model.SatelliteDefinition, 0, len(payload))
	for _, s := range payload {
		if s.PRN == "" {
			return nil, fmt.Errorf("satellite without PRN")
		}
		out = append(out, &model.SatelliteDefinition{
			PRN:         s.PRN,
			Name:        s.Name,
			Source:      model.EphemerisSourceTLE,
			TLE1:        s.TLE1,
			TLE2:        s.TLE2,
			ClockOffset: s.ClockOffset,
			ClockDrift:  s.ClockDrift,
		})
	}
	return out, nil
}

// ReadSatellitesFile opens and decodes a constellation file.
func ReadSatellitesFile(path string) ([]*model.SatelliteDefinition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open satellites: %w", err)
	}
	defer f.Close()
	sats, err := ReadSatellites(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sats, nil
}
