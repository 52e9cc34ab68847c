package generator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dariak/consentshare/internal/records"
)

// WriteDataset serializes the dataset to the provided path as indented JSON.
func WriteDataset(dataset []records.IndividualRecord, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(dataset); err != nil {
		return fmt.Errorf("encode json for %s: %w", path, err)
	}
	return nil
}

// ReadDataset loads a dataset previously written by WriteDataset.
func ReadDataset(path string) ([]records.IndividualRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	var dataset []records.IndividualRecord
	if err := json.NewDecoder(file).Decode(&dataset); err != nil {
		return nil, fmt.Errorf("decode json from %s: %w", path, err)
	}
	return dataset, nil
}
