package surrogate

import (
	"fmt"
	"math"

	"github.com/scicomp-tuk/rodeo/internal/bounds"
	"github.com/scicomp-tuk/rodeo/internal/data"
)

// CVReport summarizes a cross-validation pass: per-fold and aggregate mean
// squared error, used both by the CLI driver's -validate flag and by the
// package's own tests (§E).
type CVReport struct {
	Folds   int
	FoldMSE []float64
	MeanMSE float64
}

// modelFactory is the surrogate constructor shape this file drives: build a
// fresh model bound to a held-in/held-out split of a table and train it.
// Ordinary Kriging, Universal Kriging and LinearModel fit this shape
// through the small adapter functions below.
type modelFactory func(table *data.Table, b *bounds.Bounds) (Predictor, error)

// LeaveOneOut runs leave-one-out cross-validation: for each row, build a
// model on the other n-1 rows and evaluate squared prediction error on the
// held-out point. Requires n >= 2.
func LeaveOneOut(table *data.Table, b *bounds.Bounds, build modelFactory) (CVReport, error) {
	n := table.NumSamples()
	if n < 2 {
		return CVReport{}, fmt.Errorf("surrogate: leave-one-out requires at least 2 samples, got %d", n)
	}
	errs := make([]float64, n)
	for holdout := 0; holdout < n; holdout++ {
		trainTable := data.NewEmptyTable(table.Layout)
		for i := 0; i < n; i++ {
			if i == holdout {
				continue
			}
			if err := trainTable.AppendRowInMemory(table.Row(i)); err != nil {
				return CVReport{}, err
			}
		}
		model, err := build(trainTable, b)
		if err != nil {
			return CVReport{}, fmt.Errorf("surrogate: leave-one-out fold %d: build model: %w", holdout, err)
		}
		if err := model.Train(); err != nil {
			return CVReport{}, fmt.Errorf("surrogate: leave-one-out fold %d: train model: %w", holdout, err)
		}

		heldOut := table.Row(holdout)
		d := table.Layout.Dim
		xNat := heldOut[:d]
		yTrue := heldOut[d]
		xn, err := b.Normalize(xNat)
		if err != nil {
			return CVReport{}, fmt.Errorf("surrogate: leave-one-out fold %d: normalize: %w", holdout, err)
		}
		yPred, err := model.Predict(xn)
		if err != nil {
			return CVReport{}, fmt.Errorf("surrogate: leave-one-out fold %d: predict: %w", holdout, err)
		}
		diff := yPred - yTrue
		errs[holdout] = diff * diff
	}

	sum := 0.0
	for _, e := range errs {
		sum += e
	}
	return CVReport{Folds: n, FoldMSE: errs, MeanMSE: sum / float64(n)}, nil
}

// KFold partitions the table into k contiguous folds (the table's existing
// row order is treated as already shuffled, matching the teacher's
// reproducible-by-construction test fixtures rather than reshuffling here),
// holds each out in turn, and reports per-fold and mean MSE.
func KFold(table *data.Table, b *bounds.Bounds, k int, build modelFactory) (CVReport, error) {
	n := table.NumSamples()
	if k < 2 || k > n {
		return CVReport{}, fmt.Errorf("surrogate: k-fold requires 2 <= k <= n (n=%d), got k=%d", n, k)
	}

	foldMSE := make([]float64, k)
	baseSize := n / k
	remainder := n % k
	start := 0
	for fold := 0; fold < k; fold++ {
		size := baseSize
		if fold < remainder {
			size++
		}
		end := start + size

		trainTable := data.NewEmptyTable(table.Layout)
		testIdx := make([]int, 0, size)
		for i := 0; i < n; i++ {
			if i >= start && i < end {
				testIdx = append(testIdx, i)
				continue
			}
			if err := trainTable.AppendRowInMemory(table.Row(i)); err != nil {
				return CVReport{}, err
			}
		}

		model, err := build(trainTable, b)
		if err != nil {
			return CVReport{}, fmt.Errorf("surrogate: k-fold %d/%d: build model: %w", fold+1, k, err)
		}
		if err := model.Train(); err != nil {
			return CVReport{}, fmt.Errorf("surrogate: k-fold %d/%d: train model: %w", fold+1, k, err)
		}

		sumSq := 0.0
		d := table.Layout.Dim
		for _, idx := range testIdx {
			row := table.Row(idx)
			xn, err := b.Normalize(row[:d])
			if err != nil {
				return CVReport{}, fmt.Errorf("surrogate: k-fold %d/%d: normalize: %w", fold+1, k, err)
			}
			yPred, err := model.Predict(xn)
			if err != nil {
				return CVReport{}, fmt.Errorf("surrogate: k-fold %d/%d: predict: %w", fold+1, k, err)
			}
			diff := yPred - row[d]
			sumSq += diff * diff
		}
		foldMSE[fold] = sumSq / float64(len(testIdx))
		start = end
	}

	sum := 0.0
	for _, e := range foldMSE {
		sum += e
	}
	return CVReport{Folds: k, FoldMSE: foldMSE, MeanMSE: sum / float64(k)}, nil
}

// BuildOrdinaryKriging adapts NewKrigingModel to the modelFactory shape for
// use with LeaveOneOut/KFold.
func BuildOrdinaryKriging(table *data.Table, b *bounds.Bounds) (Predictor, error) {
	return NewKrigingModel(table, b, false)
}

// BuildUniversalKriging adapts NewKrigingModel(universal=true).
func BuildUniversalKriging(table *data.Table, b *bounds.Bounds) (Predictor, error) {
	return NewKrigingModel(table, b, true)
}

// BuildLinearModel adapts NewLinearModel.
func BuildLinearModel(table *data.Table, b *bounds.Bounds) (Predictor, error) {
	return NewLinearModel(table, b)
}

// RootMeanSquaredError is a small convenience the -validate flag's report
// prints alongside the raw MSE.
func (r CVReport) RootMeanSquaredError() float64 {
	return math.Sqrt(r.MeanMSE)
}
