package surrogate

import (
	"testing"

	"github.com/scicomp-tuk/rodeo/internal/bounds"
	"github.com/scicomp-tuk/rodeo/internal/data"
)

func TestMultiLevelModelDimensionMismatchRejected(t *testing.T) {
	b := bounds.New([]float64{0}, []float64{1})
	high := newTableWithRows(data.Layout{Dim: 1}, [][]float64{{0.0, 1.0}})
	low := newTableWithRows(data.Layout{Dim: 2}, [][]float64{{0.0, 0.0, 1.0}})
	if _, err := NewMultiLevelModel(high, low, b); err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
}

func TestMultiLevelModelTrainsAndSumsMeans(t *testing.T) {
	b := bounds.New([]float64{0}, []float64{1})
	low := newTableWithRows(data.Layout{Dim: 1}, [][]float64{
		{0.0, 0.0},
		{0.5, 0.5},
		{1.0, 1.0},
	})
	high := newTableWithRows(data.Layout{Dim: 1}, [][]float64{
		{0.0, 0.1},
		{0.5, 0.7},
		{1.0, 1.3},
	})

	m, err := NewMultiLevelModel(high, low, b)
	if err != nil {
		t.Fatalf("NewMultiLevelModel: %v", err)
	}
	if err := m.Train(); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if !m.Initialized() {
		t.Fatalf("expected initialized after Train")
	}

	got, err := m.Predict([]float64{0.5})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if !almostEqual(got, 0.7, 5e-2) {
		t.Errorf("Predict(0.5) = %v, want close to 0.7", got)
	}
}

func TestMultiLevelModelIngestAddsHighFidelitySample(t *testing.T) {
	b := bounds.New([]float64{0}, []float64{1})
	low := newTableWithRows(data.Layout{Dim: 1}, [][]float64{{0.0, 0.0}, {1.0, 1.0}})
	high := newTableWithRows(data.Layout{Dim: 1}, [][]float64{{0.0, 0.1}, {1.0, 1.1}})

	m, err := NewMultiLevelModel(high, low, b)
	if err != nil {
		t.Fatalf("NewMultiLevelModel: %v", err)
	}
	if err := m.Ingest([]float64{0.5, 0.6}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if m.NumSamples() != 3 {
		t.Fatalf("NumSamples() = %d, want 3", m.NumSamples())
	}
}

func TestMultiLevelModelAddLowFidelitySample(t *testing.T) {
	b := bounds.New([]float64{0}, []float64{1})
	low := newTableWithRows(data.Layout{Dim: 1}, [][]float64{{0.0, 0.0}, {1.0, 1.0}})
	high := newTableWithRows(data.Layout{Dim: 1}, [][]float64{{0.0, 0.1}, {1.0, 1.1}})

	m, err := NewMultiLevelModel(high, low, b)
	if err != nil {
		t.Fatalf("NewMultiLevelModel: %v", err)
	}
	if err := m.AddLowFidelitySample([]float64{0.5}, 0.5); err != nil {
		t.Fatalf("AddLowFidelitySample: %v", err)
	}
	if m.lowFidelity.NumSamples() != 3 {
		t.Fatalf("low-fidelity NumSamples() = %d, want 3", m.lowFidelity.NumSamples())
	}
}
