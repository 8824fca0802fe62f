// Package config parses the YAML run configuration described in §6. It is
// deliberately thin — plain data in, plain data out — since the config
// parser itself is explicitly out of scope per §1; it exists only so the
// CLI driver has something real to load.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FunctionSpec describes one objective or constraint function entry in the
// YAML document.
type FunctionSpec struct {
	Name                 string  `yaml:"name"`
	ExecutablePath       string  `yaml:"executable_path"`
	DesignVectorFilename string  `yaml:"design_vector_filename"`
	OutputFilename       string  `yaml:"output_filename"`
	TrainingDataFilename string  `yaml:"training_data_filename"`
	ModelType            string  `yaml:"model_type"`
	Mode                 string  `yaml:"mode"`                // "primal" | "tangent" | "adjoint"
	Direction            string  `yaml:"direction,omitempty"` // constraints only: "<" | ">"
	Threshold            float64 `yaml:"threshold,omitempty"`

	LowFidelityExecutablePath       string `yaml:"low_fidelity_executable_path,omitempty"`
	LowFidelityDesignVectorFilename string `yaml:"low_fidelity_design_vector_filename,omitempty"`
	LowFidelityOutputFilename       string `yaml:"low_fidelity_output_filename,omitempty"`
	LowFidelityTrainingDataFilename string `yaml:"low_fidelity_training_data_filename,omitempty"`
}

// RunConfig is the full parsed YAML document, covering the keys enumerated
// in §6.
type RunConfig struct {
	Dimension              int            `yaml:"dimension"`
	LowerBounds            []float64      `yaml:"lower_bounds"`
	UpperBounds            []float64      `yaml:"upper_bounds"`
	NumberOfConstraints    int            `yaml:"number_of_constraints"`
	Objective              FunctionSpec   `yaml:"objective"`
	Constraints            []FunctionSpec `yaml:"constraints"`
	NumberOfPartitions     int            `yaml:"number_of_partitions"`
	MaxNumberOfIterations  int            `yaml:"max_number_of_iterations"`
	HowOftenTrainModels    int            `yaml:"how_often_train_models"`
	NumberOfInitialSamples int            `yaml:"number_of_initial_samples"`
	NumberOfEICandidates   int            `yaml:"number_of_ei_candidates"`
	TopKSeeds              int            `yaml:"top_k_seeds"`
	HistoryFilename        string         `yaml:"history_filename"`
	EnableZoomIn           bool           `yaml:"enable_zoom_in"`
	ZoomInFactor           float64        `yaml:"zoom_in_factor"`
}

// Load reads and parses a YAML run configuration from path.
func Load(path string) (*RunConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg RunConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the cross-field invariants a YAML schema cannot express:
// dimension consistency and well-ordered bounds. It reports, but does not
// fix, contradictory configuration per the ConfigError kind in §7.
func (c *RunConfig) Validate() error {
	if c.Dimension <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", c.Dimension)
	}
	if len(c.LowerBounds) != c.Dimension || len(c.UpperBounds) != c.Dimension {
		return fmt.Errorf("lower_bounds/upper_bounds must have length %d", c.Dimension)
	}
	for i := range c.LowerBounds {
		if c.LowerBounds[i] >= c.UpperBounds[i] {
			return fmt.Errorf("lower_bounds[%d] (%v) must be < upper_bounds[%d] (%v)", i, c.LowerBounds[i], i, c.UpperBounds[i])
		}
	}
	if len(c.Constraints) != c.NumberOfConstraints {
		return fmt.Errorf("number_of_constraints=%d does not match %d constraint entries", c.NumberOfConstraints, len(c.Constraints))
	}
	if c.Objective.ExecutablePath == "" {
		return fmt.Errorf("objective.executable_path is required")
	}
	if c.MaxNumberOfIterations <= 0 {
		return fmt.Errorf("max_number_of_iterations must be positive, got %d", c.MaxNumberOfIterations)
	}
	if c.HowOftenTrainModels <= 0 {
		return fmt.Errorf("how_often_train_models must be positive, got %d", c.HowOftenTrainModels)
	}
	return nil
}
