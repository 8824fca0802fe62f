package surrogate

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/scicomp-tuk/rodeo/internal/bounds"
	"github.com/scicomp-tuk/rodeo/internal/data"
)

// jitter is added to the diagonal of the correlation matrix before every
// Cholesky factorization, per §4.3.
const jitter = 1e-10

// duplicateTolerance is the infinity-norm distance below which a candidate
// sample is rejected as a near-duplicate of an existing training row.
const duplicateTolerance = 1e-8

// KrigingModel implements ordinary and universal Kriging: a Gaussian-process
// surrogate with an exponential-power correlation kernel and either a
// constant or linear trend.
type KrigingModel struct {
	base baseModel

	// Hyperparameters. theta >= 0, gamma in [0,2] per dimension.
	theta []float64
	gamma []float64

	// Trend: always has beta0; linear is non-nil only for UniversalKriging.
	linear *LinearModel

	// Cached auxiliary fields from updateAuxiliary.
	R              *mat.SymDense // correlation matrix, n x n
	chol           mat.Cholesky  // upper-Cholesky factor of R
	beta0          float64
	sigma2         float64
	rInvYMinBeta   []float64 // R^-1 (y - beta0*1)
	rInvOnes       []float64 // R^-1 * 1
	oneTRInvOnes   float64   // 1' R^-1 1, cached for the variance formula
	trainedY       []float64 // y used to build the cache above, kept for residual recompute
}

// NewKrigingModel constructs an (initially untrained) Kriging model of the
// requested variant. universal selects UniversalKriging (linear trend) vs
// OrdinaryKriging (constant trend).
func NewKrigingModel(table *data.Table, b *bounds.Bounds, universal bool) (*KrigingModel, error) {
	base, err := newBaseModel(OrdinaryKriging, table, b)
	if err != nil {
		return nil, err
	}
	m := &KrigingModel{base: base}
	if universal {
		m.base.modelType = UniversalKriging
		lin, err := NewLinearModel(table, b)
		if err != nil {
			return nil, err
		}
		m.linear = lin
	}
	d := base.dim
	m.theta = make([]float64, d)
	m.gamma = make([]float64, d)
	for i := range m.theta {
		m.theta[i] = 1.0
		m.gamma[i] = 2.0
	}
	return m, nil
}

func (m *KrigingModel) Initialized() bool { return m.base.Initialized() }
func (m *KrigingModel) NumSamples() int   { return m.base.NumSamples() }
func (m *KrigingModel) Type() ModelType   { return m.base.Type() }
func (m *KrigingModel) Dim() int          { return m.base.dim }

// Theta returns a copy of the current correlation hyperparameters.
func (m *KrigingModel) Theta() []float64 { return append([]float64(nil), m.theta...) }

// Gamma returns a copy of the current exponents.
func (m *KrigingModel) Gamma() []float64 { return append([]float64(nil), m.gamma...) }

// SetHyperparameters installs theta, gamma directly (used when loading a
// persisted hyperparameter file) without re-running the evolutionary
// search, then recomputes the auxiliary fields so the model is immediately
// usable for prediction.
func (m *KrigingModel) SetHyperparameters(theta, gamma []float64) error {
	if len(theta) != m.base.dim || len(gamma) != m.base.dim {
		return fmt.Errorf("surrogate: kriging: hyperparameter dimension mismatch")
	}
	if m.base.NumSamples() == 0 {
		return ErrNoSamples
	}
	if m.linear != nil {
		if err := m.linear.Train(); err != nil {
			return err
		}
	}
	prevTheta, prevGamma := m.theta, m.gamma
	m.theta = append([]float64(nil), theta...)
	m.gamma = append([]float64(nil), gamma...)
	if err := m.updateAuxiliary(); err != nil {
		m.theta, m.gamma = prevTheta, prevGamma
		return fmt.Errorf("surrogate: kriging: set hyperparameters: %w", err)
	}
	return nil
}

// SaveHyperparameters writes theta, gamma to path as a single CSV row
// [theta_1..theta_d, gamma_1..gamma_d], per §6's
// "<label>_kriging_hyperparameters.csv" convention.
func (m *KrigingModel) SaveHyperparameters(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("surrogate: kriging: save hyperparameters: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	record := make([]string, 0, 2*m.base.dim)
	for _, v := range m.theta {
		record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
	}
	for _, v := range m.gamma {
		record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
	}
	if err := w.Write(record); err != nil {
		return fmt.Errorf("surrogate: kriging: save hyperparameters: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("surrogate: kriging: save hyperparameters: %w", err)
	}
	return nil
}

// LoadHyperparameters reads a file written by SaveHyperparameters and
// installs it via SetHyperparameters.
func (m *KrigingModel) LoadHyperparameters(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("surrogate: kriging: load hyperparameters: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	record, err := r.Read()
	if err != nil {
		return fmt.Errorf("surrogate: kriging: load hyperparameters: %w", err)
	}
	d := m.base.dim
	if len(record) != 2*d {
		return fmt.Errorf("surrogate: kriging: load hyperparameters: expected %d columns, got %d", 2*d, len(record))
	}
	theta := make([]float64, d)
	gamma := make([]float64, d)
	for i := 0; i < d; i++ {
		v, err := strconv.ParseFloat(record[i], 64)
		if err != nil {
			return fmt.Errorf("surrogate: kriging: load hyperparameters: theta[%d]: %w", i, err)
		}
		theta[i] = v
	}
	for i := 0; i < d; i++ {
		v, err := strconv.ParseFloat(record[d+i], 64)
		if err != nil {
			return fmt.Errorf("surrogate: kriging: load hyperparameters: gamma[%d]: %w", i, err)
		}
		gamma[i] = v
	}
	return m.SetHyperparameters(theta, gamma)
}

// residual returns the vector the Kriging model actually trains on: y
// itself for OrdinaryKriging, or y minus the fitted linear trend for
// UniversalKriging.
func (m *KrigingModel) residual() ([]float64, error) {
	y := m.base.table.Y()
	if m.linear == nil {
		return y, nil
	}
	if !m.linear.Initialized() {
		if err := m.linear.Train(); err != nil {
			return nil, fmt.Errorf("surrogate: universal kriging: train linear trend: %w", err)
		}
	}
	out := make([]float64, len(y))
	for i := range y {
		row := make([]float64, m.base.dim)
		mat.Row(row, i, m.base.xNormalized)
		trend, err := m.linear.Predict(row)
		if err != nil {
			return nil, err
		}
		out[i] = y[i] - trend
	}
	return out, nil
}

// correlation evaluates K(xi, xj) under the current theta, gamma.
func (m *KrigingModel) correlation(xi, xj []float64) float64 {
	sum := 0.0
	for k := range xi {
		d := math.Abs(xi[k] - xj[k])
		sum += m.theta[k] * math.Pow(d, m.gamma[k])
	}
	return math.Exp(-sum)
}

// correlationVector returns r(x)_i = K(x, X_i) for every training row.
func (m *KrigingModel) correlationVector(xNormalized []float64) []float64 {
	n := m.base.NumSamples()
	r := make([]float64, n)
	row := make([]float64, m.base.dim)
	for i := 0; i < n; i++ {
		mat.Row(row, i, m.base.xNormalized)
		r[i] = m.correlation(xNormalized, row)
	}
	return r
}

// updateAuxiliary recomputes R, its Cholesky factor, beta0, sigma2 and the
// two precomputed solve vectors, per §4.3. It is re-run after every
// hyperparameter change and, once the model is trained, after every
// AddSample/Ingest.
func (m *KrigingModel) updateAuxiliary() error {
	n := m.base.NumSamples()
	if n == 0 {
		return ErrNoSamples
	}
	y, err := m.residual()
	if err != nil {
		return err
	}

	R := mat.NewSymDense(n, nil)
	rowI := make([]float64, m.base.dim)
	rowJ := make([]float64, m.base.dim)
	for i := 0; i < n; i++ {
		mat.Row(rowI, i, m.base.xNormalized)
		for j := i; j < n; j++ {
			mat.Row(rowJ, j, m.base.xNormalized)
			v := m.correlation(rowI, rowJ)
			if i == j {
				v += jitter
			}
			R.SetSym(i, j, v)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(R); !ok {
		return ErrNotPositiveDefinite
	}

	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1.0
	}
	onesVec := mat.NewVecDense(n, ones)
	yVec := mat.NewVecDense(n, y)

	var a, bvec mat.VecDense
	if err := chol.SolveVecTo(&a, yVec); err != nil {
		return fmt.Errorf("surrogate: kriging: solve R*a=y: %w", err)
	}
	if err := chol.SolveVecTo(&bvec, onesVec); err != nil {
		return fmt.Errorf("surrogate: kriging: solve R*b=1: %w", err)
	}

	oneTA := mat.Dot(onesVec, &a)
	oneTB := mat.Dot(onesVec, &bvec)
	if oneTB == 0 {
		return ErrDegenerateVariance
	}
	beta0 := oneTA / oneTB

	yMinBeta := make([]float64, n)
	for i := range y {
		yMinBeta[i] = y[i] - beta0
	}
	yMinBetaVec := mat.NewVecDense(n, yMinBeta)

	var w mat.VecDense
	if err := chol.SolveVecTo(&w, yMinBetaVec); err != nil {
		return fmt.Errorf("surrogate: kriging: solve R*w=(y-beta0): %w", err)
	}

	sigma2 := mat.Dot(yMinBetaVec, &w) / float64(n)
	if sigma2 <= 0 {
		return ErrDegenerateVariance
	}

	m.R = R
	m.chol = chol
	m.beta0 = beta0
	m.sigma2 = sigma2
	m.rInvYMinBeta = w.RawVector().Data
	m.rInvOnes = bvec.RawVector().Data
	m.oneTRInvOnes = oneTB
	m.trainedY = y
	m.base.ifInitialized = true
	return nil
}

// Predict returns the Kriging mean at a normalized point.
func (m *KrigingModel) Predict(xNormalized []float64) (float64, error) {
	mean, _, err := m.PredictWithVariance(xNormalized)
	return mean, err
}

// PredictWithVariance returns mean and variance at a normalized point, per
// the formulas in §4.3.
func (m *KrigingModel) PredictWithVariance(xNormalized []float64) (float64, float64, error) {
	if !m.base.ifInitialized {
		return 0, 0, ErrNotInitialized
	}
	if len(xNormalized) != m.base.dim {
		return 0, 0, fmt.Errorf("surrogate: kriging: dimension mismatch, got %d want %d", len(xNormalized), m.base.dim)
	}

	trend := m.beta0
	if m.linear != nil {
		lp, err := m.linear.Predict(xNormalized)
		if err != nil {
			return 0, 0, err
		}
		trend += lp
	}

	r := m.correlationVector(xNormalized)
	rVec := mat.NewVecDense(len(r), r)

	mean := trend
	for i, ri := range r {
		mean += ri * m.rInvYMinBeta[i]
	}

	var rInvR mat.VecDense
	if err := m.chol.SolveVecTo(&rInvR, rVec); err != nil {
		return mean, 0, fmt.Errorf("surrogate: kriging: solve R*z=r: %w", err)
	}
	rTRInvR := mat.Dot(rVec, &rInvR)

	rTRInvOnes := 0.0
	for i, ri := range r {
		rTRInvOnes += ri * m.rInvOnes[i]
	}

	correction := (rTRInvOnes - 1) * (rTRInvOnes - 1) / m.oneTRInvOnes
	variance := m.sigma2 * (1 - rTRInvR + correction)
	if variance < 0 {
		variance = 0
	}
	return mean, variance, nil
}

// Train runs the evolutionary hyperparameter search (train_ga.go) and
// recomputes the auxiliary fields.
func (m *KrigingModel) Train() error {
	return m.Train2(DefaultTrainingOptions())
}

// Train2 runs the evolutionary hyperparameter search with explicit options;
// Train calls it with DefaultTrainingOptions.
func (m *KrigingModel) Train2(opts TrainingOptions) error {
	if m.base.NumSamples() == 0 {
		return ErrNoSamples
	}
	if m.linear != nil {
		if err := m.linear.Train(); err != nil {
			return err
		}
	}
	theta, gamma, err := trainHyperparameters(m, opts)
	if err != nil {
		return err
	}
	prevTheta, prevGamma := m.theta, m.gamma
	m.theta, m.gamma = theta, gamma
	if err := m.updateAuxiliary(); err != nil {
		// Failure semantics (§4.9): reuse previously valid hyperparameters
		// rather than leaving the model in a half-updated state.
		m.theta, m.gamma = prevTheta, prevGamma
		_ = m.updateAuxiliary()
		return fmt.Errorf("surrogate: kriging: training converged to an ill-conditioned model, kept previous hyperparameters: %w", err)
	}
	return nil
}

// logLikelihood evaluates the concentrated log-likelihood L(theta,gamma)
// used as the evolutionary search's fitness, without mutating the model's
// persisted hyperparameters or cached auxiliary fields.
func (m *KrigingModel) logLikelihood(theta, gamma []float64) (float64, error) {
	saved := &KrigingModel{base: m.base, theta: theta, gamma: gamma, linear: m.linear}
	if err := saved.updateAuxiliary(); err != nil {
		return math.Inf(-1), err
	}
	n := float64(m.base.NumSamples())
	logDet := saved.chol.LogDet()
	return -0.5*n*math.Log(saved.sigma2) - 0.5*logDet, nil
}

// AddSample appends one (x, y) pair in natural scale. Near-duplicate design
// points (within duplicateTolerance in infinity norm of an existing row)
// are rejected outright since they would otherwise push R toward
// singularity.
func (m *KrigingModel) AddSample(x []float64, y float64) error {
	row := append(append([]float64(nil), x...), y)
	return m.Ingest(row)
}

// Ingest implements Predictor. On a trained model the auxiliary fields are
// recomputed so predictions cover the new row.
func (m *KrigingModel) Ingest(row []float64) error {
	if err := m.base.addRawSample(row[:m.base.dim], row, duplicateTolerance); err != nil {
		return err
	}
	if m.base.ifInitialized {
		return m.updateAuxiliary()
	}
	return nil
}

// Renormalize implements Predictor.
func (m *KrigingModel) Renormalize() error {
	if err := m.base.renormalize(); err != nil {
		return err
	}
	if m.linear != nil {
		return m.linear.Renormalize()
	}
	return nil
}
