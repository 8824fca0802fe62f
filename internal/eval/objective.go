package eval

import (
	"context"
	"fmt"

	"github.com/scicomp-tuk/rodeo/internal/bounds"
	"github.com/scicomp-tuk/rodeo/internal/data"
	"github.com/scicomp-tuk/rodeo/internal/design"
	"github.com/scicomp-tuk/rodeo/internal/surrogate"
)

// ObjectiveFunction owns the objective's surrogate model, its training
// table and its evaluator, per §4.7.
type ObjectiveFunction struct {
	Name      string
	Mode      design.EvaluationMode
	Table     *data.Table
	Bounds    *bounds.Bounds
	Evaluator Evaluator

	model surrogate.Predictor
}

// BindSurrogateModel attaches the already-constructed surrogate this
// objective predicts from (built by the caller according to its configured
// model type, since construction differs per variant).
func (o *ObjectiveFunction) BindSurrogateModel(model surrogate.Predictor) {
	o.model = model
}

// InitializeSurrogate trains the bound model over whatever rows Table
// currently holds.
func (o *ObjectiveFunction) InitializeSurrogate() error {
	if o.model == nil {
		return fmt.Errorf("eval: objective %s: BindSurrogateModel was never called", o.Name)
	}
	return o.model.Train()
}

// Train retrains the bound surrogate, e.g. after new samples were ingested.
func (o *ObjectiveFunction) Train() error {
	return o.InitializeSurrogate()
}

// Interpolate predicts the objective mean at a normalized point.
func (o *ObjectiveFunction) Interpolate(xNormalized []float64) (float64, error) {
	return o.model.Predict(xNormalized)
}

// InterpolateWithVariance predicts mean and variance at a normalized point.
func (o *ObjectiveFunction) InterpolateWithVariance(xNormalized []float64) (float64, float64, error) {
	return o.model.PredictWithVariance(xNormalized)
}

// Model exposes the bound surrogate, e.g. for the acquisition layer.
func (o *ObjectiveFunction) Model() surrogate.Predictor { return o.model }

// Bootstrap evaluates and ingests one design per element of xs, used by
// the optimizer's Init step to populate an empty training table from a
// freshly generated DOE sample set.
func (o *ObjectiveFunction) Bootstrap(ctx context.Context, xs [][]float64) error {
	for _, x := range xs {
		d := &design.Design{DesignParameters: append([]float64(nil), x...)}
		if err := o.EvaluateDesign(ctx, d); err != nil {
			return err
		}
		if err := o.AddDesignToData(d); err != nil {
			return err
		}
	}
	return nil
}

// EvaluateDesign runs the external evaluator on d.DesignParameters and
// populates the objective-related fields of d.
func (o *ObjectiveFunction) EvaluateDesign(ctx context.Context, d *design.Design) error {
	result, err := o.Evaluator.Evaluate(ctx, d.DesignParameters)
	if err != nil {
		return fmt.Errorf("eval: objective %s: %w", o.Name, err)
	}
	d.TrueValue = result.Value
	switch o.Mode {
	case design.Tangent:
		d.TangentValue = result.TangentVal
	case design.Adjoint:
		d.Gradient = result.Gradient
	}
	return nil
}

// AddDesignToData forms a row matching the objective's table layout and
// feeds it to the bound surrogate, which appends it to Table and refreshes
// its own cached state in the same call.
func (o *ObjectiveFunction) AddDesignToData(d *design.Design) error {
	row := append([]float64(nil), d.DesignParameters...)
	row = append(row, d.TrueValue)
	switch {
	case o.Table.Layout.HasGradient:
		row = append(row, d.Gradient...)
	case o.Table.Layout.HasDirection:
		row = append(row, d.TangentValue)
		row = append(row, d.TangentDirection...)
	}
	if o.model == nil {
		return fmt.Errorf("eval: objective %s: BindSurrogateModel was never called", o.Name)
	}
	return o.model.Ingest(row)
}
