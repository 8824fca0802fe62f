package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validYAML = `
dimension: 2
lower_bounds: [0, 0]
upper_bounds: [1, 1]
number_of_constraints: 1
objective:
  name: f
  executable_path: ./sim
  design_vector_filename: x.txt
  output_filename: y.txt
  training_data_filename: f.csv
  model_type: ORDINARY_KRIGING
  mode: primal
constraints:
  - name: g1
    executable_path: ./g1
    design_vector_filename: xg.txt
    output_filename: yg.txt
    training_data_filename: g1.csv
    model_type: ORDINARY_KRIGING
    mode: primal
    direction: "<"
    threshold: 1.0
max_number_of_iterations: 50
how_often_train_models: 5
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rodeo.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Dimension != 2 {
		t.Errorf("Dimension = %d, want 2", cfg.Dimension)
	}
	if len(cfg.Constraints) != 1 {
		t.Fatalf("len(Constraints) = %d, want 1", len(cfg.Constraints))
	}
	if cfg.Constraints[0].Direction != "<" {
		t.Errorf("Constraints[0].Direction = %q, want \"<\"", cfg.Constraints[0].Direction)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for a missing config file")
	}
}

func TestValidateRejectsDimensionMismatch(t *testing.T) {
	cfg := &RunConfig{
		Dimension:             2,
		LowerBounds:           []float64{0},
		UpperBounds:           []float64{1},
		Objective:             FunctionSpec{ExecutablePath: "./sim"},
		MaxNumberOfIterations: 10,
		HowOftenTrainModels:   1,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for bounds/dimension mismatch")
	}
}

func TestValidateRejectsInvertedBounds(t *testing.T) {
	cfg := &RunConfig{
		Dimension:             1,
		LowerBounds:           []float64{1},
		UpperBounds:           []float64{0},
		Objective:             FunctionSpec{ExecutablePath: "./sim"},
		MaxNumberOfIterations: 10,
		HowOftenTrainModels:   1,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for lower_bounds >= upper_bounds")
	}
}

func TestValidateRejectsMissingObjectiveExecutable(t *testing.T) {
	cfg := &RunConfig{
		Dimension:             1,
		LowerBounds:           []float64{0},
		UpperBounds:           []float64{1},
		MaxNumberOfIterations: 10,
		HowOftenTrainModels:   1,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for missing objective.executable_path")
	}
}
