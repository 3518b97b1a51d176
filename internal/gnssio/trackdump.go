package gnssio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TrackDump is the diagnostic snapshot of one track, written before and
// after cycle-slip detection when configured. Combination values are in
// cycles.
type TrackDump struct {
	Station   string    `json:"station"`
	PRN       string    `json:"prn"`
	TimeStart time.Time `json:"time_start"`
	TimeEnd   time.Time `json:"time_end"`
	Types     string    `json:"types"`

	Epochs   []int     `json:"epochs"`
	TEC      []float64 `json:"tec_cycles"`
	WideLane []float64 `json:"widelane_cycles"`
}

// TrackDumpVars returns the template variables of a dump.
func (d *TrackDump) TrackDumpVars() map[string]string {
	const stamp = "20060102T150405"
	return map[string]string{
		"station":   d.Station,
		"prn":       d.PRN,
		"timeStart": d.TimeStart.UTC().Format(stamp),
		"timeEnd":   d.TimeEnd.UTC().Format(stamp),
		"types":     d.Types,
	}
}

// WriteTrackDump expands the template with the dump's variables and writes
// the dump there, creating parent directories as needed.
func WriteTrackDump(tmpl Template, dump *TrackDump) error {
	path, err := tmpl.Expand(dump.TrackDumpVars())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create track dump directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create track dump: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dump); err != nil {
		return fmt.Errorf("encode track dump %s: %w", path, err)
	}
	return nil
}
