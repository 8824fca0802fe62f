package surrogate

import (
	"fmt"

	"github.com/scicomp-tuk/rodeo/internal/bounds"
	"github.com/scicomp-tuk/rodeo/internal/data"
)

// MultiLevelModel implements two-level cokriging (§4.6): a low-fidelity
// Kriging model M_LO fit directly on the low-fidelity table, and a
// correction Kriging model M_delta fit on the residual y_HI - M_LO(x_HI) at
// the (co-located) high-fidelity design points. Prediction sums both.
type MultiLevelModel struct {
	base baseModel

	lowFidelity *KrigingModel
	delta       *KrigingModel

	// deltaTable mirrors the high-fidelity table but holds residuals in its
	// y column instead of raw high-fidelity observations, so deltaModel can
	// reuse the ordinary Kriging machinery unmodified.
	deltaTable *data.Table
}

// NewMultiLevelModel builds the low-fidelity surrogate from lowTable and
// prepares (but does not yet fit) the correction surrogate over highTable's
// design points. Both tables must share the same dimension and bounds; the
// high-fidelity table's design points need not be a subset of the
// low-fidelity ones (§4.6).
func NewMultiLevelModel(highTable, lowTable *data.Table, b *bounds.Bounds) (*MultiLevelModel, error) {
	if highTable.Dim() != lowTable.Dim() {
		return nil, fmt.Errorf("surrogate: multi-level model: dimension mismatch between high-fi (%d) and low-fi (%d) tables", highTable.Dim(), lowTable.Dim())
	}
	base, err := newBaseModel(MultiLevel, highTable, b)
	if err != nil {
		return nil, err
	}

	lowModel, err := NewKrigingModel(lowTable, b, false)
	if err != nil {
		return nil, fmt.Errorf("surrogate: multi-level model: build low-fidelity surrogate: %w", err)
	}

	deltaTable := &data.Table{Path: highTable.Path + ".residual", Layout: highTable.Layout}
	deltaModel, err := NewKrigingModel(deltaTable, b, false)
	if err != nil {
		return nil, fmt.Errorf("surrogate: multi-level model: build residual surrogate: %w", err)
	}

	m := &MultiLevelModel{
		base:        base,
		lowFidelity: lowModel,
		delta:       deltaModel,
		deltaTable:  deltaTable,
	}
	if err := m.rebuildDeltaTable(highTable); err != nil {
		return nil, err
	}
	return m, nil
}

// rebuildDeltaTable recomputes every residual row y_HI - M_LO(x_HI) from
// scratch. Called whenever the low-fidelity model retrains, since the
// residual depends on M_LO's current fit.
func (m *MultiLevelModel) rebuildDeltaTable(highTable *data.Table) error {
	n := highTable.NumSamples()
	rows := make([][]float64, 0, n)
	for i := 0; i < n; i++ {
		row := highTable.Row(i)
		xNat := row[:m.base.dim]
		xn, err := m.base.bounds.Normalize(xNat)
		if err != nil {
			return fmt.Errorf("surrogate: multi-level model: normalize high-fi row %d: %w", i, err)
		}
		loMean := 0.0
		if m.lowFidelity.Initialized() {
			v, err := m.lowFidelity.Predict(xn)
			if err != nil {
				return fmt.Errorf("surrogate: multi-level model: predict low-fi at high-fi row %d: %w", i, err)
			}
			loMean = v
		}
		residualRow := append([]float64(nil), row...)
		residualRow[m.base.dim] = row[m.base.dim] - loMean
		rows = append(rows, residualRow)
	}
	replaced := data.NewEmptyTable(highTable.Layout)
	for _, row := range rows {
		if err := replaced.AppendRowInMemory(row); err != nil {
			return err
		}
	}
	m.deltaTable = replaced
	delta, err := NewKrigingModel(m.deltaTable, m.base.bounds, false)
	if err != nil {
		return err
	}
	m.delta = delta
	return nil
}

func (m *MultiLevelModel) Initialized() bool {
	return m.lowFidelity.Initialized() && m.delta.Initialized()
}
func (m *MultiLevelModel) NumSamples() int { return m.base.NumSamples() }
func (m *MultiLevelModel) Type() ModelType { return MultiLevel }

// Train fits the low-fidelity model first, rebuilds the residual table
// against the refreshed M_LO, then fits the correction model, matching the
// dependency order described in §4.6.
func (m *MultiLevelModel) Train() error {
	if err := m.lowFidelity.Train(); err != nil {
		return fmt.Errorf("surrogate: multi-level model: train low-fidelity surrogate: %w", err)
	}
	if err := m.rebuildDeltaTable(m.base.table); err != nil {
		return err
	}
	if err := m.delta.Train(); err != nil {
		return fmt.Errorf("surrogate: multi-level model: train residual surrogate: %w", err)
	}
	m.base.ifInitialized = true
	return nil
}

func (m *MultiLevelModel) Predict(xNormalized []float64) (float64, error) {
	mean, _, err := m.PredictWithVariance(xNormalized)
	return mean, err
}

// PredictWithVariance sums the two models' means; variances are summed
// under the standard independence assumption between the low-fidelity and
// correction processes.
func (m *MultiLevelModel) PredictWithVariance(xNormalized []float64) (float64, float64, error) {
	if !m.Initialized() {
		return 0, 0, ErrNotInitialized
	}
	loMean, loVar, err := m.lowFidelity.PredictWithVariance(xNormalized)
	if err != nil {
		return 0, 0, err
	}
	deltaMean, deltaVar, err := m.delta.PredictWithVariance(xNormalized)
	if err != nil {
		return 0, 0, err
	}
	return loMean + deltaMean, loVar + deltaVar, nil
}

// AddHighFidelitySample appends a high-fidelity (x, y) pair and refreshes
// the residual table against the current low-fidelity fit.
func (m *MultiLevelModel) AddHighFidelitySample(x []float64, y float64) error {
	row := append(append([]float64(nil), x...), y)
	if err := m.base.addRawSample(x, row, duplicateTolerance); err != nil {
		return err
	}
	return m.rebuildDeltaTable(m.base.table)
}

// AddLowFidelitySample appends a low-fidelity (x, y) pair.
func (m *MultiLevelModel) AddLowFidelitySample(x []float64, y float64) error {
	return m.lowFidelity.AddSample(x, y)
}

// Ingest implements Predictor by treating row as a high-fidelity sample,
// the common case for an objective/constraint adapter driving this model.
// Low-fidelity samples (which never come from the external evaluator the
// adapters drive) are added via AddLowFidelitySample directly.
func (m *MultiLevelModel) Ingest(row []float64) error {
	x := row[:m.base.dim]
	y := row[m.base.dim]
	return m.AddHighFidelitySample(x, y)
}

// Renormalize implements Predictor, refreshing both the high-fidelity base
// and the low-fidelity surrogate against the (shared) shrunk bounds, then
// rebuilding the residual table so it stays consistent with the refreshed
// low-fidelity predictions.
func (m *MultiLevelModel) Renormalize() error {
	if err := m.base.renormalize(); err != nil {
		return err
	}
	if err := m.lowFidelity.Renormalize(); err != nil {
		return err
	}
	return m.rebuildDeltaTable(m.base.table)
}
