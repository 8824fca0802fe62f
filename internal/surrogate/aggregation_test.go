package surrogate

import (
	"testing"

	"github.com/scicomp-tuk/rodeo/internal/bounds"
	"github.com/scicomp-tuk/rodeo/internal/data"
)

func TestNewAggregationModelRequiresGradientLayout(t *testing.T) {
	b := bounds.New([]float64{0}, []float64{1})
	table := newTableWithRows(data.Layout{Dim: 1}, [][]float64{{0.0, 1.0}})
	if _, err := NewAggregationModel(table, b); err == nil {
		t.Fatalf("expected error constructing an aggregation model over a plain table")
	}
}

func TestAggregationModelTrainsAndPredicts(t *testing.T) {
	b := bounds.New([]float64{0}, []float64{1})
	layout := data.Layout{Dim: 1, HasGradient: true}
	table := newTableWithRows(layout, [][]float64{
		{0.0, 0.0, 1.0},
		{0.5, 0.5, 1.0},
		{1.0, 1.0, 1.0},
	})

	m, err := NewAggregationModel(table, b)
	if err != nil {
		t.Fatalf("NewAggregationModel: %v", err)
	}
	if err := m.Train(); err != nil {
		t.Fatalf("Train: %v", err)
	}
	got, err := m.Predict([]float64{0.5})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if !almostEqual(got, 0.5, 1e-2) {
		t.Errorf("Predict(0.5) = %v, want close to 0.5", got)
	}

	grad := m.Gradient(1)
	if len(grad) != 1 || grad[0] != 1.0 {
		t.Errorf("Gradient(1) = %v, want [1.0]", grad)
	}
}

func TestAggregationModelAddSampleDimensionMismatch(t *testing.T) {
	b := bounds.New([]float64{0}, []float64{1})
	layout := data.Layout{Dim: 1, HasGradient: true}
	table := newTableWithRows(layout, [][]float64{{0.0, 0.0, 1.0}})
	m, err := NewAggregationModel(table, b)
	if err != nil {
		t.Fatalf("NewAggregationModel: %v", err)
	}
	if err := m.AddSample([]float64{0.5}, 0.5, []float64{1.0, 2.0}); err == nil {
		t.Fatalf("expected error for mismatched gradient dimension")
	}
}

func TestAggregationModelIngestKeepsKrigingInSync(t *testing.T) {
	b := bounds.New([]float64{0}, []float64{1})
	layout := data.Layout{Dim: 1, HasGradient: true}
	table := newTableWithRows(layout, [][]float64{
		{0.0, 0.0, 1.0},
		{1.0, 1.0, 1.0},
	})
	m, err := NewAggregationModel(table, b)
	if err != nil {
		t.Fatalf("NewAggregationModel: %v", err)
	}
	if err := m.Ingest([]float64{0.5, 0.5, 1.0}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if m.NumSamples() != 3 {
		t.Fatalf("NumSamples() = %d, want 3", m.NumSamples())
	}
	if err := m.Train(); err != nil {
		t.Fatalf("Train after Ingest: %v", err)
	}
}
