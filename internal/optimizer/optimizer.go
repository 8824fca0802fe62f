// Package optimizer implements the EGO (efficient global optimization)
// control loop of §4.9: surrogate initialization and retraining, expected
// improvement maximization under constraint feasibility, simulator
// invocation, training-set ingestion and history tracking, with an
// optional design-space zoom-in.
package optimizer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/scicomp-tuk/rodeo/internal/acquisition"
	"github.com/scicomp-tuk/rodeo/internal/bounds"
	"github.com/scicomp-tuk/rodeo/internal/design"
	"github.com/scicomp-tuk/rodeo/internal/doe"
	"github.com/scicomp-tuk/rodeo/internal/eval"
	"github.com/scicomp-tuk/rodeo/internal/logging"
)

// Config holds the tunables named in §6/§4.9. Zero values are replaced with
// the documented defaults by New.
type Config struct {
	MaxNumberOfIterations  int
	HowOftenTrainModels    int
	NumberOfInitialSamples int
	NumberOfEICandidates   int     // defaults to ~1e6/d if 0
	TopKSeeds              int     // defaults to 10 if 0
	EnableZoomIn           bool
	ZoomInEveryIterations  int     // defaults to 20 if EnableZoomIn and 0
	ZoomInFactor           float64 // defaults to 0.5 if EnableZoomIn and 0

	GradientAscentMaxIterations int     // defaults to 50
	GradientAscentInitialStep   float64 // defaults to 0.1
	GradientAscentStepTolerance float64 // defaults to 1e-8

	Seed uint64
}

func (c *Config) applyDefaults(dim int) {
	if c.TopKSeeds == 0 {
		c.TopKSeeds = 10
	}
	if c.NumberOfEICandidates == 0 {
		c.NumberOfEICandidates = int(1e6 / float64(dim))
		if c.NumberOfEICandidates < 1000 {
			c.NumberOfEICandidates = 1000
		}
	}
	if c.HowOftenTrainModels == 0 {
		c.HowOftenTrainModels = 1
	}
	if c.NumberOfInitialSamples == 0 {
		c.NumberOfInitialSamples = 50
	}
	if c.EnableZoomIn && c.ZoomInEveryIterations == 0 {
		c.ZoomInEveryIterations = 20
	}
	if c.EnableZoomIn && c.ZoomInFactor == 0 {
		c.ZoomInFactor = 0.5
	}
	if c.GradientAscentMaxIterations == 0 {
		c.GradientAscentMaxIterations = 50
	}
	if c.GradientAscentInitialStep == 0 {
		c.GradientAscentInitialStep = 0.1
	}
	if c.GradientAscentStepTolerance == 0 {
		c.GradientAscentStepTolerance = 1e-8
	}
}

// Optimizer drives the EGO loop over one objective and zero or more
// constraints, all sharing the same (possibly zoomed) box bounds.
type Optimizer struct {
	Bounds      *bounds.Bounds
	Objective   *eval.ObjectiveFunction
	Constraints []*eval.ConstraintFunction
	History     *design.History

	Config Config

	rng    *rand.Rand
	logger *slog.Logger

	iteration int
}

// New builds an Optimizer. logger may be nil, in which case a discarding
// logger is used.
func New(b *bounds.Bounds, objective *eval.ObjectiveFunction, constraints []*eval.ConstraintFunction, cfg Config, logger *slog.Logger) *Optimizer {
	cfg.applyDefaults(b.Dim())
	if logger == nil {
		logger = logging.Discard()
	}
	seed1, seed2 := cfg.Seed, cfg.Seed^0x9E3779B97F4A7C15
	return &Optimizer{
		Bounds:      b,
		Objective:   objective,
		Constraints: constraints,
		History:     &design.History{},
		Config:      cfg,
		rng:         rand.New(rand.NewPCG(seed1, seed2)),
		logger:      logger,
	}
}

// Init bootstraps an empty training set via Latin-hypercube DOE (if
// needed), trains every surrogate, and replays the initial samples into
// the optimization history. It is the "Init" state of §4.9.
func (o *Optimizer) Init(ctx context.Context) error {
	needsBootstrap := o.Objective.Table.NumSamples() == 0
	for _, c := range o.Constraints {
		if c.Table.NumSamples() == 0 {
			needsBootstrap = true
		}
	}
	if needsBootstrap {
		xs, err := doe.LatinHypercube(o.Bounds, o.Config.NumberOfInitialSamples, o.rng)
		if err != nil {
			return fmt.Errorf("optimizer: init: generate LHS samples: %w", err)
		}
		o.logger.Info("generated initial design of experiments", "samples", len(xs))
		if err := o.Objective.Bootstrap(ctx, xs); err != nil {
			return fmt.Errorf("optimizer: init: bootstrap objective: %w", err)
		}
		for _, c := range o.Constraints {
			if err := c.Bootstrap(ctx, xs); err != nil {
				return fmt.Errorf("optimizer: init: bootstrap constraint %s: %w", c.Definition.Name, err)
			}
		}
	}

	if err := o.Objective.InitializeSurrogate(); err != nil {
		return fmt.Errorf("optimizer: init: train objective surrogate: %w", err)
	}
	for _, c := range o.Constraints {
		if err := c.InitializeSurrogate(); err != nil {
			return fmt.Errorf("optimizer: init: train constraint %s surrogate: %w", c.Definition.Name, err)
		}
	}

	o.replayInitialSamplesIntoHistory()
	return nil
}

// replayInitialSamplesIntoHistory reconstructs history rows for whatever
// samples are already in the objective's training table (freshly
// bootstrapped or loaded from a prior run), computing feasibility and
// improvement in table order exactly as Ingest would for each new design.
func (o *Optimizer) replayInitialSamplesIntoHistory() {
	n := o.Objective.Table.NumSamples()
	d := o.Bounds.Dim()
	for i := 0; i < n; i++ {
		objRow := o.Objective.Table.Row(i)
		x := objRow[:d]
		obj := objRow[d]

		feasible := true
		constraintValues := make([]float64, len(o.Constraints))
		for _, c := range o.Constraints {
			if i >= c.Table.NumSamples() {
				feasible = false
				continue
			}
			cRow := c.Table.Row(i)
			v := cRow[d]
			constraintValues[c.Definition.ID] = v
			if !c.CheckFeasibility(v) {
				feasible = false
			}
		}

		prevFStar, _ := o.History.Incumbent()
		improvement := 0.0
		if feasible {
			if math.IsInf(prevFStar, 1) {
				improvement = 0
			} else {
				improvement = math.Max(prevFStar-obj, 0)
			}
		}

		o.History.Append(&design.Design{
			DesignParameters:     append([]float64(nil), x...),
			TrueValue:            obj,
			ConstraintTrueValues: constraintValues,
			ImprovementValue:     improvement,
			IsFeasible:           feasible,
		})
	}
}

// TrainIfDue retrains every surrogate every HowOftenTrainModels iterations;
// otherwise it is a no-op, since Ingest already keeps each surrogate's
// normalized cache in sync with its training table on every new sample.
func (o *Optimizer) TrainIfDue() error {
	o.iteration++
	if o.iteration%o.Config.HowOftenTrainModels != 0 {
		return nil
	}
	if err := o.Objective.Train(); err != nil {
		o.logger.Error("objective surrogate training failed, reusing previous hyperparameters", "error", err)
	}
	for _, c := range o.Constraints {
		if err := c.Train(); err != nil {
			o.logger.Error("constraint surrogate training failed, reusing previous hyperparameters", "error", err, "constraint", c.Definition.Name)
		}
	}
	return nil
}

// seed is one random-start candidate carried from PickCandidates through
// RefineByGradient to Select.
type seed struct {
	x     []float64 // normalized
	value float64
}

func (o *Optimizer) constraintSpecs() []acquisition.ConstraintSpec {
	specs := make([]acquisition.ConstraintSpec, len(o.Constraints))
	for i, c := range o.Constraints {
		specs[i] = acquisition.ConstraintSpec{
			Model:     c.Model(),
			Direction: c.Definition.Direction,
			Threshold: c.Definition.Threshold,
		}
	}
	return specs
}

func (o *Optimizer) acquisitionAt(xNormalized []float64, fStar float64) (float64, error) {
	return acquisition.WeightedAcquisition(o.Objective.Model(), o.constraintSpecs(), xNormalized, fStar)
}

// PickCandidates draws NumberOfEICandidates uniform random normalized
// points, evaluates the weighted acquisition at each, and returns the
// TopKSeeds best as gradient-ascent starting points.
func (o *Optimizer) PickCandidates(fStar float64) ([]seed, error) {
	d := o.Bounds.Dim()
	best := make([]seed, 0, o.Config.TopKSeeds)

	for i := 0; i < o.Config.NumberOfEICandidates; i++ {
		x := make([]float64, d)
		for j := range x {
			x[j] = o.rng.Float64()
		}
		a, err := o.acquisitionAt(x, fStar)
		if err != nil {
			return nil, fmt.Errorf("optimizer: pick candidates: %w", err)
		}
		best = insertTopK(best, seed{x: x, value: a}, o.Config.TopKSeeds)
	}
	return best, nil
}

// insertTopK keeps the k largest-value seeds seen so far, sorted
// descending by value.
func insertTopK(current []seed, candidate seed, k int) []seed {
	if len(current) < k {
		current = append(current, candidate)
		sortSeedsDescending(current)
		return current
	}
	if candidate.value > current[len(current)-1].value {
		current[len(current)-1] = candidate
		sortSeedsDescending(current)
	}
	return current
}

func sortSeedsDescending(s []seed) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].value > s[j-1].value; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// RefineByGradient runs projected gradient ascent on the weighted
// acquisition from each seed, using a central finite-difference gradient
// (the acquisition's closed-form EI gradient is not specialized here; see
// the design notes). Step size backtracks on a non-improving step;
// iteration stops after GradientAscentMaxIterations or once the step norm
// falls under GradientAscentStepTolerance.
func (o *Optimizer) RefineByGradient(seeds []seed, fStar float64) ([]seed, error) {
	refined := make([]seed, len(seeds))
	for i, s := range seeds {
		x := append([]float64(nil), s.x...)
		value := s.value
		step := o.Config.GradientAscentInitialStep

		for iter := 0; iter < o.Config.GradientAscentMaxIterations; iter++ {
			grad, err := o.acquisitionGradientFD(x, fStar)
			if err != nil {
				return nil, fmt.Errorf("optimizer: refine by gradient: %w", err)
			}
			normGrad := l2Norm(grad)
			if normGrad < o.Config.GradientAscentStepTolerance {
				break
			}

			accepted := false
			for backtrack := 0; backtrack < 10; backtrack++ {
				candidate := make([]float64, len(x))
				for j := range x {
					candidate[j] = math.Min(1, math.Max(0, x[j]+step*grad[j]/normGrad))
				}
				candValue, err := o.acquisitionAt(candidate, fStar)
				if err != nil {
					return nil, fmt.Errorf("optimizer: refine by gradient: %w", err)
				}
				if candValue > value {
					stepNorm := l2Norm(diff(candidate, x))
					x = candidate
					value = candValue
					accepted = true
					if stepNorm < o.Config.GradientAscentStepTolerance {
						iter = o.Config.GradientAscentMaxIterations
					}
					break
				}
				step *= 0.5
			}
			if !accepted {
				break
			}
		}
		refined[i] = seed{x: x, value: value}
	}
	return refined, nil
}

func (o *Optimizer) acquisitionGradientFD(x []float64, fStar float64) ([]float64, error) {
	const h = 1e-5
	grad := make([]float64, len(x))
	for j := range x {
		xp := append([]float64(nil), x...)
		xm := append([]float64(nil), x...)
		xp[j] = math.Min(1, xp[j]+h)
		xm[j] = math.Max(0, xm[j]-h)
		denom := xp[j] - xm[j]
		if denom == 0 {
			continue
		}
		ap, err := o.acquisitionAt(xp, fStar)
		if err != nil {
			return nil, err
		}
		am, err := o.acquisitionAt(xm, fStar)
		if err != nil {
			return nil, err
		}
		grad[j] = (ap - am) / denom
	}
	return grad, nil
}

func l2Norm(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func diff(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

// Select returns the refined seed with the largest acquisition value.
func (o *Optimizer) Select(refined []seed) (seed, error) {
	if len(refined) == 0 {
		return seed{}, fmt.Errorf("optimizer: select: no candidates to choose from")
	}
	best := refined[0]
	for _, s := range refined[1:] {
		if s.value > best.value {
			best = s
		}
	}
	return best, nil
}

// EvaluateAndIngest denormalizes the winning candidate, invokes the
// objective and constraint evaluators, records feasibility and
// improvement, ingests the new sample into every training table/surrogate,
// and appends to history. It composes the Evaluate/Ingest/RecordHistory
// states of §4.9.
func (o *Optimizer) EvaluateAndIngest(ctx context.Context, winner seed) (*design.Design, error) {
	x, err := o.Bounds.Denormalize(winner.x)
	if err != nil {
		return nil, fmt.Errorf("optimizer: evaluate: denormalize winner: %w", err)
	}

	d := design.NewDesign(x, len(o.Constraints))
	if err := o.Objective.EvaluateDesign(ctx, d); err != nil {
		return nil, fmt.Errorf("optimizer: evaluate: objective: %w", err)
	}
	feasible := true
	for _, c := range o.Constraints {
		if err := c.EvaluateDesign(ctx, d); err != nil {
			return nil, fmt.Errorf("optimizer: evaluate: constraint %s: %w", c.Definition.Name, err)
		}
		if !c.CheckFeasibility(d.ConstraintTrueValues[c.Definition.ID]) {
			feasible = false
		}
	}
	d.IsFeasible = feasible

	fStar, _ := o.History.Incumbent()
	if feasible && !math.IsInf(fStar, 1) {
		d.ImprovementValue = math.Max(fStar-d.TrueValue, 0)
	}

	if err := o.Objective.AddDesignToData(d); err != nil {
		return nil, fmt.Errorf("optimizer: ingest: objective: %w", err)
	}
	for _, c := range o.Constraints {
		if err := c.AddDesignToData(d); err != nil {
			return nil, fmt.Errorf("optimizer: ingest: constraint %s: %w", c.Definition.Name, err)
		}
	}

	o.History.Append(d)
	o.logger.Info("iteration complete",
		"iter", o.iteration,
		"objective", d.TrueValue,
		"feasible", d.IsFeasible,
		"improvement", d.ImprovementValue,
	)
	return d, nil
}

// MaybeZoomIn shrinks Bounds around the current incumbent design every
// ZoomInEveryIterations iterations, per §4.9's optional zoom-in step.
// Training data is left untouched; every bound surrogate is renormalized
// against the (in-place mutated) shared Bounds.
func (o *Optimizer) MaybeZoomIn() error {
	if !o.Config.EnableZoomIn || o.iteration%o.Config.ZoomInEveryIterations != 0 {
		return nil
	}
	if o.History.RowCount() == 0 {
		return nil
	}
	incumbentX := o.incumbentDesignParameters()
	if incumbentX == nil {
		return nil
	}
	shrunk, err := o.Bounds.Shrink(incumbentX, o.Config.ZoomInFactor)
	if err != nil {
		return fmt.Errorf("optimizer: zoom-in: %w", err)
	}
	*o.Bounds = *shrunk
	o.logger.Info("zoomed in", "iter", o.iteration, "lb", o.Bounds.Lb, "ub", o.Bounds.Ub)

	if err := o.Objective.Model().Renormalize(); err != nil {
		return fmt.Errorf("optimizer: zoom-in: renormalize objective: %w", err)
	}
	for _, c := range o.Constraints {
		if err := c.Model().Renormalize(); err != nil {
			return fmt.Errorf("optimizer: zoom-in: renormalize constraint %s: %w", c.Definition.Name, err)
		}
	}
	return nil
}

// incumbentDesignParameters returns the design parameters of whichever
// history row currently defines f*.
func (o *Optimizer) incumbentDesignParameters() []float64 {
	fStar, usedFeasible := o.History.Incumbent()
	for i := len(o.History.Rows) - 1; i >= 0; i-- {
		row := o.History.Rows[i]
		if usedFeasible && !row.Feasible {
			continue
		}
		if row.Objective == fStar {
			return row.X
		}
	}
	return nil
}

// Run executes the full EGO loop for Config.MaxNumberOfIterations
// iterations, returning the final history.
func (o *Optimizer) Run(ctx context.Context) (*design.History, error) {
	if err := o.Init(ctx); err != nil {
		return nil, err
	}
	for iter := 0; iter < o.Config.MaxNumberOfIterations; iter++ {
		select {
		case <-ctx.Done():
			return o.History, ctx.Err()
		default:
		}

		if err := o.TrainIfDue(); err != nil {
			return o.History, err
		}

		fStar, _ := o.History.Incumbent()
		candidates, err := o.PickCandidates(fStar)
		if err != nil {
			return o.History, err
		}
		refined, err := o.RefineByGradient(candidates, fStar)
		if err != nil {
			return o.History, err
		}
		winner, err := o.Select(refined)
		if err != nil {
			return o.History, err
		}
		if _, err := o.EvaluateAndIngest(ctx, winner); err != nil {
			return o.History, err
		}
		if err := o.MaybeZoomIn(); err != nil {
			return o.History, err
		}
	}
	return o.History, nil
}
