// Package acquisition implements the expected-improvement acquisition
// function and its probability-of-feasibility weighting (§4.8).
package acquisition

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/scicomp-tuk/rodeo/internal/design"
	"github.com/scicomp-tuk/rodeo/internal/surrogate"
)

// sigmaFloor is the standard-deviation threshold below which expected
// improvement is treated as exactly zero, avoiding a division by a value
// indistinguishable from zero.
const sigmaFloor = 1e-12

var standardNormal = distuv.Normal{Mu: 0, Sigma: 1}

// ExpectedImprovement evaluates EI(x) at a normalized candidate, given the
// objective surrogate and the current incumbent fStar (the smallest
// observed objective value, feasible-only when at least one feasible
// design has been observed; see design.History.Incumbent).
func ExpectedImprovement(objective surrogate.Predictor, xNormalized []float64, fStar float64) (float64, error) {
	mu, variance, err := objective.PredictWithVariance(xNormalized)
	if err != nil {
		return 0, err
	}
	sigma := math.Sqrt(variance)
	if sigma < sigmaFloor {
		return 0, nil
	}
	z := (fStar - mu) / sigma
	return (fStar-mu)*standardNormal.CDF(z) + sigma*standardNormal.Prob(z), nil
}

// ProbabilityOfFeasibility evaluates P(constraint j is satisfied at x)
// under the constraint surrogate's Gaussian predictive distribution, per
// §4.8. direction '<' means "value must be below threshold"; any other
// direction is treated as '>'.
func ProbabilityOfFeasibility(constraint surrogate.Predictor, xNormalized []float64, dir design.Direction, threshold float64) (float64, error) {
	mu, variance, err := constraint.PredictWithVariance(xNormalized)
	if err != nil {
		return 0, err
	}
	sigma := math.Sqrt(variance)
	if sigma == 0 {
		if dir == design.LessThan {
			if mu < threshold {
				return 1, nil
			}
			return 0, nil
		}
		if mu > threshold {
			return 1, nil
		}
		return 0, nil
	}
	z := (threshold - mu) / sigma
	p := standardNormal.CDF(z)
	if dir == design.LessThan {
		return p, nil
	}
	return 1 - p, nil
}

// ConstraintSpec pairs one constraint's surrogate with the feasibility
// parameters needed to weight the acquisition.
type ConstraintSpec struct {
	Model     surrogate.Predictor
	Direction design.Direction
	Threshold float64
}

// WeightedAcquisition evaluates A(x) = EI(x) * Prod_j P_j(x), the quantity
// PickCandidates/RefineByGradient maximize.
func WeightedAcquisition(objective surrogate.Predictor, constraints []ConstraintSpec, xNormalized []float64, fStar float64) (float64, error) {
	ei, err := ExpectedImprovement(objective, xNormalized, fStar)
	if err != nil {
		return 0, err
	}
	if ei == 0 {
		return 0, nil
	}
	product := ei
	for _, c := range constraints {
		p, err := ProbabilityOfFeasibility(c.Model, xNormalized, c.Direction, c.Threshold)
		if err != nil {
			return 0, err
		}
		product *= p
		if product == 0 {
			return 0, nil
		}
	}
	return product, nil
}
