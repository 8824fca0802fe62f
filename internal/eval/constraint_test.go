package eval

import (
	"context"
	"testing"

	"github.com/scicomp-tuk/rodeo/internal/bounds"
	"github.com/scicomp-tuk/rodeo/internal/data"
	"github.com/scicomp-tuk/rodeo/internal/design"
	"github.com/scicomp-tuk/rodeo/internal/surrogate"
)

func newTestConstraint(t *testing.T) *ConstraintFunction {
	t.Helper()
	b := bounds.New([]float64{0}, []float64{10})
	table := data.NewEmptyTable(data.Layout{Dim: 1})
	model, err := surrogate.NewLinearModel(table, b)
	if err != nil {
		t.Fatalf("NewLinearModel: %v", err)
	}
	c := &ConstraintFunction{
		Definition: design.ConstraintDefinition{
			Name:      "g1",
			ID:        0,
			Direction: design.LessThan,
			Threshold: 5.0,
		},
		Table:  table,
		Bounds: b,
		Evaluator: EvaluatorFunc(func(ctx context.Context, x []float64) (EvaluationResult, error) {
			return EvaluationResult{Value: x[0]}, nil
		}),
	}
	c.BindSurrogateModel(model)
	return c
}

func TestConstraintFunctionCheckFeasibility(t *testing.T) {
	c := newTestConstraint(t)
	if !c.CheckFeasibility(4.0) {
		t.Errorf("4.0 should be feasible under < 5.0")
	}
	if c.CheckFeasibility(6.0) {
		t.Errorf("6.0 should not be feasible under < 5.0")
	}
}

func TestConstraintFunctionBootstrapPopulatesTable(t *testing.T) {
	c := newTestConstraint(t)
	xs := [][]float64{{1}, {2}, {3}}
	if err := c.Bootstrap(context.Background(), xs); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if c.Table.NumSamples() != 3 {
		t.Fatalf("Table.NumSamples() = %d, want 3", c.Table.NumSamples())
	}
}

func TestConstraintFunctionEvaluateDesignSetsValueAtID(t *testing.T) {
	c := newTestConstraint(t)
	c.Definition.ID = 2
	d := &design.Design{
		DesignParameters:     []float64{7},
		ConstraintTrueValues: make([]float64, 3),
	}
	if err := c.EvaluateDesign(context.Background(), d); err != nil {
		t.Fatalf("EvaluateDesign: %v", err)
	}
	if d.ConstraintTrueValues[2] != 7 {
		t.Errorf("ConstraintTrueValues[2] = %v, want 7", d.ConstraintTrueValues[2])
	}
}
