package optimizer

import (
	"context"
	"testing"

	"github.com/scicomp-tuk/rodeo/internal/bounds"
	"github.com/scicomp-tuk/rodeo/internal/data"
	"github.com/scicomp-tuk/rodeo/internal/eval"
	"github.com/scicomp-tuk/rodeo/internal/surrogate"
)

func newTestObjective(t *testing.T, b *bounds.Bounds) *eval.ObjectiveFunction {
	t.Helper()
	table := data.NewEmptyTable(data.Layout{Dim: 1})
	model, err := surrogate.NewLinearModel(table, b)
	if err != nil {
		t.Fatalf("NewLinearModel: %v", err)
	}
	o := &eval.ObjectiveFunction{
		Name:   "f",
		Table:  table,
		Bounds: b,
		Evaluator: eval.EvaluatorFunc(func(ctx context.Context, x []float64) (eval.EvaluationResult, error) {
			return eval.EvaluationResult{Value: (x[0] - 3) * (x[0] - 3)}, nil
		}),
	}
	o.BindSurrogateModel(model)
	return o
}

func TestOptimizerRunCompletesFixedIterationBudget(t *testing.T) {
	b := bounds.New([]float64{0}, []float64{10})
	objective := newTestObjective(t, b)

	opt := New(b, objective, nil, Config{
		MaxNumberOfIterations:  3,
		HowOftenTrainModels:    1,
		NumberOfInitialSamples: 5,
		NumberOfEICandidates:   50,
		TopKSeeds:              3,
		Seed:                   1,
	}, nil)

	history, err := opt.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := 5 + 3
	if history.RowCount() != want {
		t.Fatalf("RowCount() = %d, want %d", history.RowCount(), want)
	}
	fStar, _ := history.Incumbent()
	if fStar < 0 {
		t.Errorf("Incumbent() = %v, want >= 0 for a squared-error objective", fStar)
	}
}

func TestOptimizerInitBootstrapsWhenTableEmpty(t *testing.T) {
	b := bounds.New([]float64{0}, []float64{1})
	objective := newTestObjective(t, b)

	opt := New(b, objective, nil, Config{
		MaxNumberOfIterations:  1,
		HowOftenTrainModels:    1,
		NumberOfInitialSamples: 4,
		Seed:                   2,
	}, nil)

	if err := opt.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if objective.Table.NumSamples() != 4 {
		t.Errorf("Table.NumSamples() = %d, want 4", objective.Table.NumSamples())
	}
	if opt.History.RowCount() != 4 {
		t.Errorf("History.RowCount() = %d, want 4", opt.History.RowCount())
	}
}

func TestOptimizerZoomInShrinksBounds(t *testing.T) {
	b := bounds.New([]float64{0}, []float64{10})
	objective := newTestObjective(t, b)

	opt := New(b, objective, nil, Config{
		MaxNumberOfIterations:  1,
		HowOftenTrainModels:    1,
		NumberOfInitialSamples: 5,
		EnableZoomIn:           true,
		ZoomInEveryIterations:  1,
		ZoomInFactor:           0.5,
		Seed:                   3,
	}, nil)

	if err := opt.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	opt.iteration = 1
	originalWidth := b.Ub[0] - b.Lb[0]
	if err := opt.MaybeZoomIn(); err != nil {
		t.Fatalf("MaybeZoomIn: %v", err)
	}
	if b.Ub[0]-b.Lb[0] >= originalWidth {
		t.Errorf("bounds width = %v, want narrower than original %v", b.Ub[0]-b.Lb[0], originalWidth)
	}
}
