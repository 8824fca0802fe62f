// Package surrogate implements the statistical surrogate model family used
// by the optimizer: a least-squares linear baseline, ordinary/universal
// Kriging, gradient-enhanced aggregation, tangent-enhanced Kriging (TGEK),
// and two-level cokriging. All models train on normalized inputs in
// [0,1]^d and predict in natural output scale.
package surrogate

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/scicomp-tuk/rodeo/internal/bounds"
	"github.com/scicomp-tuk/rodeo/internal/data"
)

// ModelType tags the concrete surrogate variant, replacing the deep
// inheritance hierarchy of the original design with one enum plus a small
// set of concrete structs that all satisfy Predictor.
type ModelType int

const (
	LinearRegression ModelType = iota
	OrdinaryKriging
	UniversalKriging
	Aggregation
	Tangent
	MultiLevel
)

func (m ModelType) String() string {
	switch m {
	case LinearRegression:
		return "LINEAR_REGRESSION"
	case OrdinaryKriging:
		return "ORDINARY_KRIGING"
	case UniversalKriging:
		return "UNIVERSAL_KRIGING"
	case Aggregation:
		return "AGGREGATION"
	case Tangent:
		return "TANGENT"
	case MultiLevel:
		return "MULTI_LEVEL"
	default:
		return "UNKNOWN"
	}
}

// Errors returned by this package. Numerical failures (ErrNotPositiveDefinite,
// ErrDegenerateVariance) are meant to be handled locally by callers (the
// evolutionary hyperparameter search penalizes and discards them); the
// others are programmer-visible precondition failures or fatal I/O.
var (
	ErrNotInitialized      = errors.New("surrogate: model used before initialization")
	ErrNotPositiveDefinite = errors.New("surrogate: correlation matrix is not positive definite")
	ErrDegenerateVariance  = errors.New("surrogate: process variance is not positive")
	ErrNoSamples           = errors.New("surrogate: no training samples available")
	ErrDuplicateSample     = errors.New("surrogate: sample too close to an existing training point")
)

// Predictor is the capability set every concrete surrogate exposes to the
// acquisition layer and to the optimizer. It replaces the original's deep
// class hierarchy: shared state lives in baseModel (embedded, not a base
// class), and each concrete model supplies its own Train/Predict.
type Predictor interface {
	Initialized() bool
	Train() error
	Predict(xNormalized []float64) (float64, error)
	PredictWithVariance(xNormalized []float64) (mean, variance float64, err error)
	NumSamples() int
	Type() ModelType

	// Ingest appends one fully-formed training row (already matching the
	// model's table layout, in natural scale) and refreshes whatever cached
	// state depends on the training set. It is how the optimizer's Ingest
	// step feeds a freshly evaluated Design into a bound surrogate without
	// needing to know which concrete model it is.
	Ingest(row []float64) error

	// Renormalize recomputes the model's normalized training-input cache
	// against its (possibly just-shrunk) bounds, without touching the
	// training table itself. This is the zoom-in step's hook: the
	// optimizer mutates a shared Bounds in place and then calls Renormalize
	// on every bound model so the next Train/Predict call sees the new box.
	Renormalize() error
}

// baseModel carries the fields common to every surrogate variant: input
// dimension, the training table, box constraints, and the two readiness
// flags the spec calls out (ifInitialized, ifNormalized).
type baseModel struct {
	modelType ModelType
	dim       int
	table     *data.Table
	bounds    *bounds.Bounds

	ifInitialized bool
	ifNormalized  bool

	// xNormalized mirrors table.X() mapped through bounds.Normalize, kept in
	// lockstep so prediction never has to re-normalize the whole table.
	xNormalized *mat.Dense
}

func newBaseModel(modelType ModelType, table *data.Table, b *bounds.Bounds) (baseModel, error) {
	if table.Dim() != b.Dim() {
		return baseModel{}, fmt.Errorf("surrogate: table dimension %d does not match bounds dimension %d", table.Dim(), b.Dim())
	}
	m := baseModel{
		modelType: modelType,
		dim:       table.Dim(),
		table:     table,
		bounds:    b,
	}
	if err := m.renormalize(); err != nil {
		return baseModel{}, err
	}
	return m, nil
}

func (m *baseModel) renormalize() error {
	n := m.table.NumSamples()
	raw := m.table.X()
	xn := mat.NewDense(n, m.dim, nil)
	for i := 0; i < n; i++ {
		row := make([]float64, m.dim)
		mat.Row(row, i, raw)
		normalized, err := m.bounds.Normalize(row)
		if err != nil {
			return fmt.Errorf("surrogate: normalize training row %d: %w", i, err)
		}
		xn.SetRow(i, normalized)
	}
	m.xNormalized = xn
	m.ifNormalized = true
	return nil
}

func (m *baseModel) Initialized() bool { return m.ifInitialized }
func (m *baseModel) NumSamples() int   { return m.table.NumSamples() }
func (m *baseModel) Type() ModelType   { return m.modelType }
func (m *baseModel) Dim() int          { return m.dim }

// addRawSample appends a fully-formed row (already matching the table's
// layout) to the underlying training table and refreshes the normalized
// mirror. It rejects near-duplicate design points per §4.3: the
// nearest-neighbor distance (infinity norm, in natural scale) to any
// existing row must be at least tau.
func (m *baseModel) addRawSample(x []float64, row []float64, tau float64) error {
	if m.table.NumSamples() > 0 {
		if d := m.table.NearestNeighborDistance(x); d >= 0 && d < tau {
			return ErrDuplicateSample
		}
	}
	if err := m.table.AppendRow(row); err != nil {
		return err
	}
	return m.renormalize()
}
