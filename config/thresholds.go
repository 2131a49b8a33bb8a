package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"lotradar/server/internal/valuation"
)

// LoadThresholds reads valuation thresholds from a yaml file. A missing
// file is not an error: the defaults apply and are written back so the
// deployment has a file to edit.
func LoadThresholds(path string) (valuation.Thresholds, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		defaults := valuation.DefaultThresholds()
		if writeErr := writeThresholds(path, defaults); writeErr != nil {
			return defaults, fmt.Errorf("write default thresholds: %w", writeErr)
		}
		return defaults, nil
	}
	if err != nil {
		return valuation.Thresholds{}, fmt.Errorf("read thresholds: %w", err)
	}

	var t valuation.Thresholds
	if err := yaml.Unmarshal(data, &t); err != nil {
		return valuation.Thresholds{}, fmt.Errorf("parse thresholds: %w", err)
	}
	return t, nil
}

func writeThresholds(path string, t valuation.Thresholds) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
