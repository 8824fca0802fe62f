package data

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingFileYieldsEmptyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.csv")
	table, err := Load(path, Layout{Dim: 2})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if table.NumSamples() != 0 {
		t.Fatalf("expected empty table, got %d rows", table.NumSamples())
	}
}

func TestAppendRowThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	layout := Layout{Dim: 2}

	table, err := Load(path, layout)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rows := [][]float64{
		{0.0, 0.0, 1.0},
		{1.0, 1.0, 2.0},
	}
	for _, r := range rows {
		if err := table.AppendRow(r); err != nil {
			t.Fatalf("AppendRow: %v", err)
		}
	}

	reloaded, err := Load(path, layout)
	if err != nil {
		t.Fatalf("Load reloaded: %v", err)
	}
	if reloaded.NumSamples() != 2 {
		t.Fatalf("expected 2 rows, got %d", reloaded.NumSamples())
	}
	for i, want := range rows {
		got := reloaded.Row(i)
		for j := range want {
			if got[j] != want[j] {
				t.Errorf("row %d col %d = %v, want %v", i, j, got[j], want[j])
			}
		}
	}
}

func TestAppendRowInMemoryRejectsWrongColumnCount(t *testing.T) {
	table := NewEmptyTable(Layout{Dim: 2})
	if err := table.AppendRowInMemory([]float64{1, 2}); err == nil {
		t.Fatalf("expected error for wrong column count")
	}
}

func TestNearestNeighborDistance(t *testing.T) {
	table := NewEmptyTable(Layout{Dim: 2})
	if err := table.AppendRowInMemory([]float64{0, 0, 5}); err != nil {
		t.Fatalf("AppendRowInMemory: %v", err)
	}
	if err := table.AppendRowInMemory([]float64{2, 2, 7}); err != nil {
		t.Fatalf("AppendRowInMemory: %v", err)
	}
	d := table.NearestNeighborDistance([]float64{0.1, 0.1})
	if d != 0.1 {
		t.Errorf("NearestNeighborDistance = %v, want 0.1", d)
	}
}

func TestGradientsAndDirectionsColumnOffsets(t *testing.T) {
	layout := Layout{Dim: 2, HasGradient: true}
	table := NewEmptyTable(layout)
	// x1 x2 | y | dy/dx1 dy/dx2
	if err := table.AppendRowInMemory([]float64{1, 2, 3, 4, 5}); err != nil {
		t.Fatalf("AppendRowInMemory: %v", err)
	}
	g := table.Gradients()
	if g.At(0, 0) != 4 || g.At(0, 1) != 5 {
		t.Errorf("Gradients() = [%v %v], want [4 5]", g.At(0, 0), g.At(0, 1))
	}

	dirLayout := Layout{Dim: 2, HasDirection: true}
	dirTable := NewEmptyTable(dirLayout)
	// x1 x2 | y | dy/dv | v1 v2
	if err := dirTable.AppendRowInMemory([]float64{1, 2, 3, 4, 6, 7}); err != nil {
		t.Fatalf("AppendRowInMemory: %v", err)
	}
	if got := dirTable.DirectionalDerivative(); got[0] != 4 {
		t.Errorf("DirectionalDerivative() = %v, want [4]", got)
	}
	dirs := dirTable.Directions()
	if dirs.At(0, 0) != 6 || dirs.At(0, 1) != 7 {
		t.Errorf("Directions() = [%v %v], want [6 7]", dirs.At(0, 0), dirs.At(0, 1))
	}
}
