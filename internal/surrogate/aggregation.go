package surrogate

import (
	"fmt"

	"github.com/scicomp-tuk/rodeo/internal/bounds"
	"github.com/scicomp-tuk/rodeo/internal/data"
)

// AggregationModel pairs an ordinary Kriging surrogate with the raw gradient
// samples supplied alongside each training point, per §4.4. Prediction is
// the Kriging mean; the gradient block is retained so a caller wanting the
// blended adjoint information can read it back via Gradient, without the
// Kriging correlation kernel itself
// needing to know about derivatives.
type AggregationModel struct {
	base    baseModel
	kriging *KrigingModel
}

// NewAggregationModel requires a gradient-augmented table layout.
func NewAggregationModel(table *data.Table, b *bounds.Bounds) (*AggregationModel, error) {
	if !table.Layout.HasGradient {
		return nil, fmt.Errorf("surrogate: aggregation model requires a gradient-augmented training table")
	}
	base, err := newBaseModel(Aggregation, table, b)
	if err != nil {
		return nil, err
	}
	kriging, err := NewKrigingModel(table, b, false)
	if err != nil {
		return nil, err
	}
	return &AggregationModel{base: base, kriging: kriging}, nil
}

func (m *AggregationModel) Initialized() bool { return m.kriging.Initialized() }
func (m *AggregationModel) NumSamples() int   { return m.base.NumSamples() }
func (m *AggregationModel) Type() ModelType   { return Aggregation }

// Train fits the underlying Kriging surrogate on the table's x|y columns;
// the gradient block is not used by the correlation kernel itself (§4.4
// keeps the simplified formulation: Kriging mean as prediction, gradients
// carried for callers that want them directly).
func (m *AggregationModel) Train() error {
	return m.kriging.Train()
}

func (m *AggregationModel) Predict(xNormalized []float64) (float64, error) {
	return m.kriging.Predict(xNormalized)
}

func (m *AggregationModel) PredictWithVariance(xNormalized []float64) (float64, float64, error) {
	return m.kriging.PredictWithVariance(xNormalized)
}

// Gradient returns the recorded gradient at training row i, in natural
// scale, as supplied by the adjoint evaluator.
func (m *AggregationModel) Gradient(i int) []float64 {
	g := m.base.table.Gradients()
	row := make([]float64, m.base.dim)
	for j := 0; j < m.base.dim; j++ {
		row[j] = g.At(i, j)
	}
	return row
}

// AddSample appends one (x, y, gradient) row. len(gradient) must equal the
// model's dimension.
func (m *AggregationModel) AddSample(x []float64, y float64, gradient []float64) error {
	if len(gradient) != m.base.dim {
		return fmt.Errorf("surrogate: aggregation model: gradient dimension mismatch, got %d want %d", len(gradient), m.base.dim)
	}
	row := make([]float64, 0, m.base.dim*2+1)
	row = append(row, x...)
	row = append(row, y)
	row = append(row, gradient...)
	if err := m.base.addRawSample(x, row, duplicateTolerance); err != nil {
		return err
	}
	return m.kriging.base.renormalize()
}

// Ingest implements Predictor. row must already carry the gradient block.
func (m *AggregationModel) Ingest(row []float64) error {
	if err := m.base.addRawSample(row[:m.base.dim], row, duplicateTolerance); err != nil {
		return err
	}
	return m.kriging.base.renormalize()
}

// Renormalize implements Predictor.
func (m *AggregationModel) Renormalize() error {
	if err := m.base.renormalize(); err != nil {
		return err
	}
	return m.kriging.Renormalize()
}
