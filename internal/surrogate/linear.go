package surrogate

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/scicomp-tuk/rodeo/internal/bounds"
	"github.com/scicomp-tuk/rodeo/internal/data"
)

// LinearModel fits y ≈ w0 + w'x by ordinary least squares on normalized
// inputs. It is used both standalone (ModelType LinearRegression) and as
// the optional trend of UniversalKriging, where the Kriging model is fit on
// the residual y - LinearModel.Predict(x).
//
// The normal-equations solve tries (X'X)^-1 X'y first, and falls back to an
// SVD-based minimum-norm solution when X'X is singular or too close to it.
type LinearModel struct {
	base baseModel

	w0 float64
	w  []float64
}

// NewLinearModel constructs a LinearModel bound to table and b. Call Train
// before Predict.
func NewLinearModel(table *data.Table, b *bounds.Bounds) (*LinearModel, error) {
	base, err := newBaseModel(LinearRegression, table, b)
	if err != nil {
		return nil, err
	}
	return &LinearModel{base: base}, nil
}

func (m *LinearModel) Initialized() bool { return m.base.Initialized() }
func (m *LinearModel) NumSamples() int   { return m.base.NumSamples() }
func (m *LinearModel) Type() ModelType   { return m.base.Type() }

// Train solves the normal equations for w0, w over the current training
// table.
func (m *LinearModel) Train() error {
	n := m.base.NumSamples()
	if n == 0 {
		return ErrNoSamples
	}
	d := m.base.dim
	y := m.base.table.Y()

	// Design matrix with an intercept column: [1 | Xn]
	X := mat.NewDense(n, d+1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, 1.0)
		for j := 0; j < d; j++ {
			X.Set(i, j+1, m.base.xNormalized.At(i, j))
		}
	}
	Y := mat.NewVecDense(n, y)

	var beta mat.VecDense
	var xtx mat.Dense
	xtx.Mul(X.T(), X)

	var xtxInv mat.Dense
	xtxErr := xtxInv.Inverse(&xtx)
	if xtxErr == nil {
		var xty mat.VecDense
		xty.MulVec(X.T(), Y)
		beta.MulVec(&xtxInv, &xty)
	} else {
		// Fallback: X'X is singular or badly conditioned. Use an SVD-based
		// least-squares solve for the minimum-norm beta.
		var svd mat.SVD
		ok := svd.Factorize(X, mat.SVDFullU|mat.SVDFullV)
		if !ok {
			return fmt.Errorf("surrogate: linear model: normal equations singular and SVD factorization failed: %w", xtxErr)
		}
		rank := svd.Rank(1e-12)
		if rank == 0 {
			beta = *mat.NewVecDense(d+1, nil)
		} else {
			svd.SolveVecTo(&beta, Y, rank)
		}
	}

	m.w0 = beta.AtVec(0)
	w := make([]float64, d)
	for j := 0; j < d; j++ {
		w[j] = beta.AtVec(j + 1)
	}
	m.w = w
	m.base.ifInitialized = true
	return nil
}

// Predict evaluates the fitted linear trend at a normalized point.
func (m *LinearModel) Predict(xNormalized []float64) (float64, error) {
	if !m.base.ifInitialized {
		return 0, ErrNotInitialized
	}
	if len(xNormalized) != m.base.dim {
		return 0, fmt.Errorf("surrogate: linear model: dimension mismatch, got %d want %d", len(xNormalized), m.base.dim)
	}
	out := m.w0
	for j, v := range xNormalized {
		out += m.w[j] * v
	}
	return out, nil
}

// PredictWithVariance exists to satisfy Predictor; the linear baseline
// carries no epistemic variance estimate, so variance is always 0.
func (m *LinearModel) PredictWithVariance(xNormalized []float64) (float64, float64, error) {
	mean, err := m.Predict(xNormalized)
	return mean, 0, err
}

// AddSample appends one (x, y) pair in natural scale to the training table.
func (m *LinearModel) AddSample(x []float64, y float64) error {
	row := append(append([]float64(nil), x...), y)
	return m.base.addRawSample(x, row, 1e-8)
}

// Ingest implements Predictor.
func (m *LinearModel) Ingest(row []float64) error {
	return m.base.addRawSample(row[:m.base.dim], row, 1e-8)
}

// Renormalize implements Predictor.
func (m *LinearModel) Renormalize() error {
	return m.base.renormalize()
}
