package matrix

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aristath/geld/internal/domain"
)

// fileFormat is the YAML layout of an override file:
//
//	general:
//	  - {months: 12, low: 85, moderate: 13.5, high: 1.5, di_within_low: 100, credit_within_low: 0}
//	retirement:
//	  - ...
type fileFormat map[string][]Row

// LoadFile reads a matrix override file and returns a validated table.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read matrix file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML matrix data.
func Parse(data []byte) (*Table, error) {
	var raw fileFormat
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &domain.ConfigurationError{Message: fmt.Sprintf("invalid matrix yaml: %v", err)}
	}

	rows := make(map[domain.GoalType][]Row, len(raw))
	for key, list := range raw {
		goalType, err := domain.ParseGoalType(key)
		if err != nil {
			return nil, &domain.ConfigurationError{Message: fmt.Sprintf("unknown goal type %q in matrix file", key)}
		}
		rows[goalType] = list
	}

	return NewTable(rows)
}

// Load returns the override table when path is set, otherwise the built-in one.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}
