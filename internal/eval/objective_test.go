package eval

import (
	"context"
	"testing"

	"github.com/scicomp-tuk/rodeo/internal/bounds"
	"github.com/scicomp-tuk/rodeo/internal/data"
	"github.com/scicomp-tuk/rodeo/internal/design"
	"github.com/scicomp-tuk/rodeo/internal/surrogate"
)

func newTestObjective(t *testing.T) *ObjectiveFunction {
	t.Helper()
	b := bounds.New([]float64{0}, []float64{10})
	table := data.NewEmptyTable(data.Layout{Dim: 1})
	model, err := surrogate.NewLinearModel(table, b)
	if err != nil {
		t.Fatalf("NewLinearModel: %v", err)
	}
	o := &ObjectiveFunction{
		Name:   "f",
		Mode:   design.Primal,
		Table:  table,
		Bounds: b,
		Evaluator: EvaluatorFunc(func(ctx context.Context, x []float64) (EvaluationResult, error) {
			return EvaluationResult{Value: 2 * x[0]}, nil
		}),
	}
	o.BindSurrogateModel(model)
	return o
}

func TestObjectiveFunctionBootstrapTrainsAndIngests(t *testing.T) {
	o := newTestObjective(t)
	xs := [][]float64{{0}, {5}, {10}}
	if err := o.Bootstrap(context.Background(), xs); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if o.Table.NumSamples() != 3 {
		t.Fatalf("Table.NumSamples() = %d, want 3", o.Table.NumSamples())
	}
	if err := o.Train(); err != nil {
		t.Fatalf("Train: %v", err)
	}
	got, err := o.Interpolate([]float64{0.5})
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}
	if !almostEqual(got, 10.0, 1e-6) {
		t.Errorf("Interpolate(0.5) = %v, want close to 10.0", got)
	}
}

func TestObjectiveFunctionAddDesignToDataRequiresBoundModel(t *testing.T) {
	o := &ObjectiveFunction{Table: data.NewEmptyTable(data.Layout{Dim: 1})}
	d := &design.Design{DesignParameters: []float64{1}, TrueValue: 2}
	if err := o.AddDesignToData(d); err == nil {
		t.Fatalf("expected error when no surrogate has been bound")
	}
}

func almostEqual(a, b, tol float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= tol
}
