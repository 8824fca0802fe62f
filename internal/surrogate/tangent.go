package surrogate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/scicomp-tuk/rodeo/internal/bounds"
	"github.com/scicomp-tuk/rodeo/internal/data"
)

// TangentModel implements tangent-enhanced Kriging (TGEK, §4.5): each
// training row carries the function value y, a unit direction v, and the
// directional derivative dy/dv along v at that point (the table layout is
// x | y | dy/dv | v). The correlation matrix is block-augmented with one
// extra row/column per sample for the directional derivative, obtained by
// differentiating the exponential-power kernel along v, and the augmented
// observation vector is [y_1..y_n | dy/dv_1..dy/dv_n] so the model predicts
// the function itself rather than its derivative.
type TangentModel struct {
	base baseModel

	theta []float64
	gamma []float64

	chol        mat.Cholesky
	beta0       float64
	sigma2      float64
	alpha       []float64 // R_aug^-1 (y_aug - beta0*1), length 2n
	rInv1       []float64 // R_aug^-1 * 1, length 2n
	oneTRInvOne float64
}

// NewTangentModel requires a direction-augmented table layout.
func NewTangentModel(table *data.Table, b *bounds.Bounds) (*TangentModel, error) {
	if !table.Layout.HasDirection {
		return nil, fmt.Errorf("surrogate: tangent model requires a direction-augmented training table")
	}
	base, err := newBaseModel(Tangent, table, b)
	if err != nil {
		return nil, err
	}
	d := base.dim
	theta := make([]float64, d)
	gamma := make([]float64, d)
	for i := range theta {
		theta[i] = 1.0
		gamma[i] = 2.0
	}
	return &TangentModel{base: base, theta: theta, gamma: gamma}, nil
}

func (m *TangentModel) Initialized() bool { return m.base.Initialized() }
func (m *TangentModel) NumSamples() int   { return m.base.NumSamples() }
func (m *TangentModel) Type() ModelType   { return Tangent }

func (m *TangentModel) correlation(xi, xj []float64) float64 {
	sum := 0.0
	for k := range xi {
		diff := math.Abs(xi[k] - xj[k])
		sum += m.theta[k] * math.Pow(diff, m.gamma[k])
	}
	return math.Exp(-sum)
}

// correlationGradient returns dK(xi,xj)/dxi, the gradient of the kernel
// with respect to its first argument. Valid for gamma==2 (the default and
// the only exponent this implementation differentiates analytically); for
// gamma!=2 that component falls back to a central finite difference
// (correlationGradientFD).
func (m *TangentModel) correlationGradient(xi, xj []float64, k0 float64) []float64 {
	g := make([]float64, len(xi))
	for k := range xi {
		if m.gamma[k] == 2 {
			diff := xi[k] - xj[k]
			g[k] = -2 * m.theta[k] * diff * k0
		} else {
			g[k] = m.correlationGradientFD(xi, xj, k)
		}
	}
	return g
}

func (m *TangentModel) correlationGradientFD(xi, xj []float64, dim int) float64 {
	const h = 1e-6
	xp := append([]float64(nil), xi...)
	xm := append([]float64(nil), xi...)
	xp[dim] += h
	xm[dim] -= h
	return (m.correlation(xp, xj) - m.correlation(xm, xj)) / (2 * h)
}

// updateAuxiliary builds the (2n)x(2n) augmented correlation system:
// block [0:n,0:n] = K(X,X) (primal-primal), [0:n,n:2n] and its transpose
// hold primal-directional cross terms K(X_i, X_j) differentiated along
// v_j, and [n:2n,n:2n] holds directional-directional terms differentiated
// along both v_i and v_j. The augmented observation vector is
// [y_1..y_n | dy/dv_1..dy/dv_n].
func (m *TangentModel) updateAuxiliary() error {
	n := m.base.NumSamples()
	if n == 0 {
		return ErrNoSamples
	}
	d := m.base.dim
	y := m.base.table.Y()                     // function values
	dy := m.base.table.DirectionalDerivative() // directional derivatives
	dirs := m.base.table.Directions()

	X := m.base.xNormalized
	N := 2 * n
	R := mat.NewSymDense(N, nil)

	rowI := make([]float64, d)
	rowJ := make([]float64, d)
	vi := make([]float64, d)
	vj := make([]float64, d)

	for i := 0; i < n; i++ {
		mat.Row(rowI, i, X)
		for j := i; j < n; j++ {
			mat.Row(rowJ, j, X)
			v := m.correlation(rowI, rowJ)
			if i == j {
				v += jitter
			}
			R.SetSym(i, j, v)
		}
	}

	for i := 0; i < n; i++ {
		mat.Row(rowI, i, X)
		for j := 0; j < n; j++ {
			mat.Row(rowJ, j, X)
			mat.Row(vj, j, dirs)
			k0 := m.correlation(rowJ, rowI)
			grad := m.correlationGradient(rowJ, rowI, k0) // d/dx_j K(x_j, x_i)
			cross := dot(grad, vj)
			R.SetSym(i, n+j, cross)
		}
	}

	for i := 0; i < n; i++ {
		mat.Row(rowI, i, X)
		mat.Row(vi, i, dirs)
		for j := i; j < n; j++ {
			mat.Row(rowJ, j, X)
			mat.Row(vj, j, dirs)
			hv := m.directionalSecondDerivative(rowI, rowJ, vi, vj)
			if i == j {
				hv += jitter
			}
			R.SetSym(n+i, n+j, hv)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(R); !ok {
		return ErrNotPositiveDefinite
	}

	yAug := make([]float64, N)
	copy(yAug[:n], y)
	copy(yAug[n:], dy)

	onesAug := make([]float64, N)
	for i := range onesAug {
		onesAug[i] = 1.0
	}
	onesVec := mat.NewVecDense(N, onesAug)
	yVec := mat.NewVecDense(N, yAug)

	var a, bvec mat.VecDense
	if err := chol.SolveVecTo(&a, yVec); err != nil {
		return fmt.Errorf("surrogate: tangent: solve R*a=y: %w", err)
	}
	if err := chol.SolveVecTo(&bvec, onesVec); err != nil {
		return fmt.Errorf("surrogate: tangent: solve R*b=1: %w", err)
	}

	oneTA := mat.Dot(onesVec, &a)
	oneTB := mat.Dot(onesVec, &bvec)
	if oneTB == 0 {
		return ErrDegenerateVariance
	}
	beta0 := oneTA / oneTB

	yMinBeta := make([]float64, N)
	for i := range yAug {
		yMinBeta[i] = yAug[i] - beta0
	}
	yMinBetaVec := mat.NewVecDense(N, yMinBeta)

	var w mat.VecDense
	if err := chol.SolveVecTo(&w, yMinBetaVec); err != nil {
		return fmt.Errorf("surrogate: tangent: solve R*w=(y-beta0): %w", err)
	}

	sigma2 := mat.Dot(yMinBetaVec, &w) / float64(N)
	if sigma2 <= 0 {
		return ErrDegenerateVariance
	}

	m.chol = chol
	m.beta0 = beta0
	m.sigma2 = sigma2
	m.alpha = w.RawVector().Data
	m.rInv1 = bvec.RawVector().Data
	m.oneTRInvOne = oneTB
	m.base.ifInitialized = true
	return nil
}

// directionalSecondDerivative approximates d2K/(dv_i dv_j) by central finite
// differences along both directions; closed forms exist for gamma==2 but
// the mixed second derivative is not worth hand-deriving symbolically for
// every gamma, so this path always uses FD.
func (m *TangentModel) directionalSecondDerivative(xi, xj, vi, vj []float64) float64 {
	const h = 1e-5
	xip := addScaled(xi, vi, h)
	xim := addScaled(xi, vi, -h)
	xjp := addScaled(xj, vj, h)
	xjm := addScaled(xj, vj, -h)

	kpp := m.correlation(xip, xjp)
	kpm := m.correlation(xip, xjm)
	kmp := m.correlation(xim, xjp)
	kmm := m.correlation(xim, xjm)
	return (kpp - kpm - kmp + kmm) / (4 * h * h)
}

func addScaled(x, v []float64, h float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = x[i] + h*v[i]
	}
	return out
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// Predict returns the TGEK mean at a normalized point.
func (m *TangentModel) Predict(xNormalized []float64) (float64, error) {
	mean, _, err := m.PredictWithVariance(xNormalized)
	return mean, err
}

// PredictWithVariance evaluates the augmented system's mean/variance at a
// normalized point, following the same closed form as ordinary Kriging
// over the 2n-dimensional augmented correlation vector.
func (m *TangentModel) PredictWithVariance(xNormalized []float64) (float64, float64, error) {
	if !m.base.ifInitialized {
		return 0, 0, ErrNotInitialized
	}
	n := m.base.NumSamples()
	d := m.base.dim
	if len(xNormalized) != d {
		return 0, 0, fmt.Errorf("surrogate: tangent: dimension mismatch, got %d want %d", len(xNormalized), d)
	}

	X := m.base.xNormalized
	dirs := m.base.table.Directions()
	row := make([]float64, d)
	vj := make([]float64, d)

	r := make([]float64, 2*n)
	for i := 0; i < n; i++ {
		mat.Row(row, i, X)
		r[i] = m.correlation(xNormalized, row)
	}
	for j := 0; j < n; j++ {
		mat.Row(row, j, X)
		mat.Row(vj, j, dirs)
		k0 := m.correlation(row, xNormalized)
		grad := m.correlationGradient(row, xNormalized, k0)
		r[n+j] = dot(grad, vj)
	}

	mean := m.beta0
	for i, ri := range r {
		mean += ri * m.alpha[i]
	}

	rVec := mat.NewVecDense(2*n, r)
	var rInvR mat.VecDense
	if err := m.chol.SolveVecTo(&rInvR, rVec); err != nil {
		return mean, 0, fmt.Errorf("surrogate: tangent: solve R*z=r: %w", err)
	}
	rTRInvR := mat.Dot(rVec, &rInvR)

	rTRInvOnes := 0.0
	for i, ri := range r {
		rTRInvOnes += ri * m.rInv1[i]
	}

	correction := (rTRInvOnes - 1) * (rTRInvOnes - 1) / m.oneTRInvOne
	variance := m.sigma2 * (1 - rTRInvR + correction)
	if variance < 0 {
		variance = 0
	}
	return mean, variance, nil
}

// Train recomputes the augmented correlation system at the current theta,
// gamma. It runs no hyperparameter search: theta and gamma keep the values
// set at construction or by SetHyperparameters.
func (m *TangentModel) Train() error {
	if m.base.NumSamples() == 0 {
		return ErrNoSamples
	}
	return m.updateAuxiliary()
}

// SetHyperparameters installs theta, gamma directly.
func (m *TangentModel) SetHyperparameters(theta, gamma []float64) error {
	if len(theta) != m.base.dim || len(gamma) != m.base.dim {
		return fmt.Errorf("surrogate: tangent: hyperparameter dimension mismatch")
	}
	m.theta = append([]float64(nil), theta...)
	m.gamma = append([]float64(nil), gamma...)
	return nil
}

// AddSample appends one (x, function value, directional derivative,
// direction) row.
func (m *TangentModel) AddSample(x []float64, y, directionalDerivative float64, direction []float64) error {
	if len(direction) != m.base.dim {
		return fmt.Errorf("surrogate: tangent: direction dimension mismatch, got %d want %d", len(direction), m.base.dim)
	}
	row := make([]float64, 0, 2*m.base.dim+2)
	row = append(row, x...)
	row = append(row, y, directionalDerivative)
	row = append(row, direction...)
	return m.base.addRawSample(x, row, duplicateTolerance)
}

// Ingest implements Predictor. row must already carry the direction block.
func (m *TangentModel) Ingest(row []float64) error {
	return m.base.addRawSample(row[:m.base.dim], row, duplicateTolerance)
}

// Renormalize implements Predictor.
func (m *TangentModel) Renormalize() error {
	return m.base.renormalize()
}
