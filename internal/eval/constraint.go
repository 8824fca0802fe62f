package eval

import (
	"context"
	"fmt"

	"github.com/scicomp-tuk/rodeo/internal/bounds"
	"github.com/scicomp-tuk/rodeo/internal/data"
	"github.com/scicomp-tuk/rodeo/internal/design"
	"github.com/scicomp-tuk/rodeo/internal/surrogate"
)

// ConstraintFunction owns one constraint's surrogate, training table,
// evaluator and feasibility definition, per §4.7.
type ConstraintFunction struct {
	Definition design.ConstraintDefinition
	Table      *data.Table
	Bounds     *bounds.Bounds
	Evaluator  Evaluator

	model surrogate.Predictor
}

func (c *ConstraintFunction) BindSurrogateModel(model surrogate.Predictor) {
	c.model = model
}

func (c *ConstraintFunction) InitializeSurrogate() error {
	if c.model == nil {
		return fmt.Errorf("eval: constraint %s: BindSurrogateModel was never called", c.Definition.Name)
	}
	return c.model.Train()
}

func (c *ConstraintFunction) Train() error {
	return c.InitializeSurrogate()
}

func (c *ConstraintFunction) Interpolate(xNormalized []float64) (float64, error) {
	return c.model.Predict(xNormalized)
}

func (c *ConstraintFunction) InterpolateWithVariance(xNormalized []float64) (float64, float64, error) {
	return c.model.PredictWithVariance(xNormalized)
}

func (c *ConstraintFunction) Model() surrogate.Predictor { return c.model }

// Bootstrap evaluates and ingests one design per element of xs, used by
// the optimizer's Init step (see ObjectiveFunction.Bootstrap).
func (c *ConstraintFunction) Bootstrap(ctx context.Context, xs [][]float64) error {
	for _, x := range xs {
		d := &design.Design{
			DesignParameters:     append([]float64(nil), x...),
			ConstraintTrueValues: make([]float64, c.Definition.ID+1),
		}
		if err := c.EvaluateDesign(ctx, d); err != nil {
			return err
		}
		if err := c.AddDesignToData(d); err != nil {
			return err
		}
	}
	return nil
}

// CheckFeasibility evaluates the constraint's configured inequality.
func (c *ConstraintFunction) CheckFeasibility(v float64) bool {
	return c.Definition.CheckFeasibility(v)
}

// EvaluateDesign runs the external evaluator and populates d's constraint
// fields at index c.Definition.ID.
func (c *ConstraintFunction) EvaluateDesign(ctx context.Context, d *design.Design) error {
	result, err := c.Evaluator.Evaluate(ctx, d.DesignParameters)
	if err != nil {
		return fmt.Errorf("eval: constraint %s: %w", c.Definition.Name, err)
	}
	id := c.Definition.ID
	d.ConstraintTrueValues[id] = result.Value
	switch c.Definition.Mode {
	case design.Tangent:
		if len(d.ConstraintTangent) <= id {
			grown := make([]float64, id+1)
			copy(grown, d.ConstraintTangent)
			d.ConstraintTangent = grown
		}
		d.ConstraintTangent[id] = result.TangentVal
	case design.Adjoint:
		if len(d.ConstraintGradients) <= id {
			grown := make([][]float64, id+1)
			copy(grown, d.ConstraintGradients)
			d.ConstraintGradients = grown
		}
		d.ConstraintGradients[id] = result.Gradient
	}
	return nil
}

// AddDesignToData forms a row matching the constraint's table layout and
// feeds it to the bound surrogate (see ObjectiveFunction.AddDesignToData).
func (c *ConstraintFunction) AddDesignToData(d *design.Design) error {
	row := append([]float64(nil), d.DesignParameters...)
	row = append(row, d.ConstraintTrueValues[c.Definition.ID])
	switch {
	case c.Table.Layout.HasGradient:
		if len(d.ConstraintGradients) > c.Definition.ID {
			row = append(row, d.ConstraintGradients[c.Definition.ID]...)
		}
	case c.Table.Layout.HasDirection:
		var derivative float64
		if len(d.ConstraintTangent) > c.Definition.ID {
			derivative = d.ConstraintTangent[c.Definition.ID]
		}
		row = append(row, derivative)
		row = append(row, d.TangentDirection...)
	}
	if c.model == nil {
		return fmt.Errorf("eval: constraint %s: BindSurrogateModel was never called", c.Definition.Name)
	}
	return c.model.Ingest(row)
}
