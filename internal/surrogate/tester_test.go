package surrogate

import (
	"testing"

	"github.com/scicomp-tuk/rodeo/internal/bounds"
	"github.com/scicomp-tuk/rodeo/internal/data"
)

func TestLeaveOneOutOnLinearData(t *testing.T) {
	b := bounds.New([]float64{0}, []float64{1})
	table := newTableWithRows(data.Layout{Dim: 1}, [][]float64{
		{0.0, 0.0},
		{0.25, 0.25},
		{0.5, 0.5},
		{0.75, 0.75},
		{1.0, 1.0},
	})

	report, err := LeaveOneOut(table, b, BuildLinearModel)
	if err != nil {
		t.Fatalf("LeaveOneOut: %v", err)
	}
	if report.Folds != 5 {
		t.Errorf("Folds = %d, want 5", report.Folds)
	}
	if report.MeanMSE > 1e-6 {
		t.Errorf("MeanMSE = %v, want close to 0 for an exactly linear function", report.MeanMSE)
	}
	if report.RootMeanSquaredError() < 0 {
		t.Errorf("RootMeanSquaredError must be non-negative")
	}
}

func TestLeaveOneOutRequiresAtLeastTwoSamples(t *testing.T) {
	b := bounds.New([]float64{0}, []float64{1})
	table := newTableWithRows(data.Layout{Dim: 1}, [][]float64{{0.5, 0.5}})
	if _, err := LeaveOneOut(table, b, BuildLinearModel); err == nil {
		t.Fatalf("expected error for a single-sample table")
	}
}

func TestKFoldPartitionsAllSamples(t *testing.T) {
	b := bounds.New([]float64{0}, []float64{1})
	table := newTableWithRows(data.Layout{Dim: 1}, [][]float64{
		{0.0, 0.0},
		{0.2, 0.2},
		{0.4, 0.4},
		{0.6, 0.6},
		{0.8, 0.8},
		{1.0, 1.0},
	})

	report, err := KFold(table, b, 3, BuildLinearModel)
	if err != nil {
		t.Fatalf("KFold: %v", err)
	}
	if report.Folds != 3 {
		t.Errorf("Folds = %d, want 3", report.Folds)
	}
	if len(report.FoldMSE) != 3 {
		t.Errorf("len(FoldMSE) = %d, want 3", len(report.FoldMSE))
	}
}

func TestKFoldRejectsInvalidK(t *testing.T) {
	b := bounds.New([]float64{0}, []float64{1})
	table := newTableWithRows(data.Layout{Dim: 1}, [][]float64{{0.0, 0.0}, {1.0, 1.0}})
	if _, err := KFold(table, b, 1, BuildLinearModel); err == nil {
		t.Fatalf("expected error for k < 2")
	}
	if _, err := KFold(table, b, 5, BuildLinearModel); err == nil {
		t.Fatalf("expected error for k > n")
	}
}
