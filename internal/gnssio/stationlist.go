package gnssio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// StationEntry is one row of the station list: a logical station with its
// candidate data sources in priority order.
type StationEntry struct {
	// Alternatives holds the station names to try, first entry first.
	Alternatives []string
}

// Name returns the primary (first) alternative, used as the logical station
// label in logs.
func (e StationEntry) Name() string {
	if len(e.Alternatives) == 0 {
		return ""
	}
	return e.Alternatives[0]
}

// ReadStationList parses the plain-text station table: one row per logical
// station, whitespace-separated columns naming the alternatives. Empty lines
// and '#' comments are skipped.
func ReadStationList(r io.Reader) ([]StationEntry, error) {
	var entries []StationEntry
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		entries = append(entries, StationEntry{Alternatives: fields})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("station list line %d: %w", line, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("station list is empty")
	}
	return entries, nil
}

// ReadStationListFile opens and parses a station list file.
func ReadStationListFile(path string) ([]StationEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open station list: %w", err)
	}
	defer f.Close()
	entries, err := ReadStationList(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}
