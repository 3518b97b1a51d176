package gnssio

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// BiasRecord is a persisted signal-bias set: observable code to bias in
// metres.
type BiasRecord struct {
	Entity string             `json:"entity"`
	Biases map[string]float64 `json:"biases"`
}

// ReadSignalBias decodes a signal-bias file.
func ReadSignalBias(r io.Reader) (*BiasRecord, error) {
	var payload BiasRecord
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode signal bias: %w", err)
	}
	if payload.Biases == nil {
		return nil, fmt.Errorf("signal bias file without biases")
	}
	return &payload, nil
}

// ReadSignalBiasFile opens and decodes a signal-bias file.
func ReadSignalBiasFile(path string) (*BiasRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open signal bias: %w", err)
	}
	defer f.Close()
	rec, err := ReadSignalBias(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}

// WriteSignalBias encodes a signal-bias record.
func WriteSignalBias(w io.Writer, rec *BiasRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("encode signal bias: %w", err)
	}
	return nil
}

// WriteSignalBiasFile writes a signal-bias record to path, creating parent
// directories as needed.
func WriteSignalBiasFile(path string, rec *BiasRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create bias directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create signal bias file: %w", err)
	}
	defer f.Close()
	if err := WriteSignalBias(f, rec); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
