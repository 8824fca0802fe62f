package surrogate

import (
	"testing"

	"github.com/scicomp-tuk/rodeo/internal/bounds"
	"github.com/scicomp-tuk/rodeo/internal/data"
)

func TestNewTangentModelRequiresDirectionLayout(t *testing.T) {
	b := bounds.New([]float64{0}, []float64{1})
	table := newTableWithRows(data.Layout{Dim: 1}, [][]float64{{0.0, 1.0}})
	if _, err := NewTangentModel(table, b); err == nil {
		t.Fatalf("expected error constructing a tangent model over a plain table")
	}
}

func TestTangentModelTrainsAndPredicts(t *testing.T) {
	b := bounds.New([]float64{0}, []float64{1})
	layout := data.Layout{Dim: 1, HasDirection: true}
	// x | y | dy/dv | v : y=x along v=+1 has directional derivative 1 everywhere.
	table := newTableWithRows(layout, [][]float64{
		{0.0, 0.0, 1.0, 1.0},
		{0.5, 0.5, 1.0, 1.0},
		{1.0, 1.0, 1.0, 1.0},
	})

	m, err := NewTangentModel(table, b)
	if err != nil {
		t.Fatalf("NewTangentModel: %v", err)
	}
	if err := m.Train(); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if !m.Initialized() {
		t.Fatalf("expected initialized after Train")
	}
	mean, variance, err := m.PredictWithVariance([]float64{0.5})
	if err != nil {
		t.Fatalf("PredictWithVariance: %v", err)
	}
	if variance < 0 {
		t.Errorf("variance must be non-negative, got %v", variance)
	}
	if !almostEqual(mean, 0.5, 1e-3) {
		t.Errorf("PredictWithVariance(0.5) mean = %v, want close to the training value 0.5", mean)
	}
}

func TestTangentModelAddSampleDirectionDimensionMismatch(t *testing.T) {
	b := bounds.New([]float64{0}, []float64{1})
	layout := data.Layout{Dim: 1, HasDirection: true}
	table := newTableWithRows(layout, [][]float64{{0.0, 0.0, 1.0, 1.0}})
	m, err := NewTangentModel(table, b)
	if err != nil {
		t.Fatalf("NewTangentModel: %v", err)
	}
	if err := m.AddSample([]float64{0.5}, 0.5, 1.0, []float64{1.0, 2.0}); err == nil {
		t.Fatalf("expected error for mismatched direction dimension")
	}
}

func TestTangentModelSetHyperparametersDimensionMismatch(t *testing.T) {
	b := bounds.New([]float64{0}, []float64{1})
	layout := data.Layout{Dim: 1, HasDirection: true}
	table := newTableWithRows(layout, [][]float64{{0.0, 0.0, 1.0, 1.0}})
	m, err := NewTangentModel(table, b)
	if err != nil {
		t.Fatalf("NewTangentModel: %v", err)
	}
	if err := m.SetHyperparameters([]float64{1, 2}, []float64{2, 2}); err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
}
