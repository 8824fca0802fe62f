package surrogate

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// TrainingOptions configures the evolutionary hyperparameter search of
// §4.3. Each worker goroutine runs its own genetic algorithm over an
// independent population and an independent *rand.Rand source; only the
// best individual survives the final reduction.
type TrainingOptions struct {
	Workers                int
	PopulationPerWorker    int
	FitnessEvaluationsEach int
	ThetaMax               float64
	Seed                   uint64
}

// DefaultTrainingOptions mirrors §4.3's "at least 100*d/threads initial
// individuals, minimum 100" rule and a worker count derived from the host.
func DefaultTrainingOptions() TrainingOptions {
	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	return TrainingOptions{
		Workers:                workers,
		PopulationPerWorker:    100,
		FitnessEvaluationsEach: 2000,
		ThetaMax:               10.0,
		Seed:                   42,
	}
}

type individual struct {
	theta, gamma []float64
	fitness      float64
}

// trainHyperparameters runs the parallel evolutionary search described in
// §4.3 and §5 and returns the globally best (theta, gamma).
func trainHyperparameters(m *KrigingModel, opts TrainingOptions) ([]float64, []float64, error) {
	d := m.base.dim
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	popSize := opts.PopulationPerWorker
	minPop := 100 * d / workers
	if minPop < 100 {
		minPop = 100
	}
	if popSize < minPop {
		popSize = minPop
	}

	var mu sync.Mutex
	var globalBest individual
	haveGlobalBest := false

	g, _ := errgroup.WithContext(context.Background())
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(opts.Seed, uint64(w)*0x9E3779B97F4A7C15+1))
			best, err := runSingleWorkerGA(m, d, popSize, opts.FitnessEvaluationsEach, opts.ThetaMax, rng)
			if err != nil {
				return err
			}
			mu.Lock()
			if !haveGlobalBest || best.fitness > globalBest.fitness {
				globalBest = best
				haveGlobalBest = true
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if !haveGlobalBest || math.IsInf(globalBest.fitness, -1) {
		return nil, nil, fmt.Errorf("surrogate: kriging: evolutionary search found no feasible hyperparameters")
	}
	return globalBest.theta, globalBest.gamma, nil
}

// runSingleWorkerGA runs one independent genetic algorithm population to
// convergence over a fixed fitness-evaluation budget, returning its best
// individual. Candidates whose correlation matrix is not positive definite
// or whose sigma^2 is non-positive are penalized to -Inf fitness, counted
// but discarded from reproduction.
func runSingleWorkerGA(m *KrigingModel, d, popSize, evalBudget int, thetaMax float64, rng *rand.Rand) (individual, error) {
	randomIndividual := func() individual {
		theta := make([]float64, d)
		gamma := make([]float64, d)
		for i := 0; i < d; i++ {
			theta[i] = rng.Float64() * thetaMax
			gamma[i] = rng.Float64() * 2.0
		}
		return individual{theta: theta, gamma: gamma}
	}

	population := make([]individual, popSize)
	for i := range population {
		population[i] = randomIndividual()
	}

	evaluate := func(ind *individual) {
		L, err := m.logLikelihood(ind.theta, ind.gamma)
		if err != nil {
			ind.fitness = math.Inf(-1)
			return
		}
		ind.fitness = L
	}

	for i := range population {
		evaluate(&population[i])
	}
	evalsUsed := popSize

	var firstSeen float64
	firstSeenSet := false
	for _, ind := range population {
		if !math.IsInf(ind.fitness, -1) {
			firstSeen = ind.fitness
			firstSeenSet = true
			break
		}
	}
	if !firstSeenSet {
		firstSeen = 0
	}

	best := bestOf(population)

	for evalsUsed < evalBudget {
		lMin, lMax := math.Inf(1), math.Inf(-1)
		for _, ind := range population {
			f := ind.fitness - firstSeen
			if math.IsInf(f, -1) {
				continue
			}
			if f < lMin {
				lMin = f
			}
			if f > lMax {
				lMax = f
			}
		}
		if math.IsInf(lMin, 1) {
			// Every individual in this generation is infeasible; reseed
			// uniformly rather than spin on a degenerate roulette wheel.
			for i := range population {
				population[i] = randomIndividual()
				evaluate(&population[i])
			}
			evalsUsed += popSize
			continue
		}

		weights := make([]float64, popSize)
		total := 0.0
		for i, ind := range population {
			f := ind.fitness - firstSeen
			norm := 0.0
			if lMax > lMin {
				norm = (f - lMin) / (lMax - lMin) * 100
			}
			if math.IsInf(f, -1) || norm < 0 {
				norm = 0
			}
			weights[i] = norm
			total += norm
		}

		nextGen := make([]individual, popSize)
		for i := 0; i < popSize; i++ {
			p1 := rouletteSelect(population, weights, total, rng)
			p2 := rouletteSelect(population, weights, total, rng)
			child := gaussianCrossover(p1, p2, thetaMax, rng)
			evaluate(&child)
			nextGen[i] = child
		}
		evalsUsed += popSize
		population = nextGen

		candidate := bestOf(population)
		if candidate.fitness > best.fitness {
			best = candidate
		}
	}

	return best, nil
}

func bestOf(population []individual) individual {
	best := population[0]
	for _, ind := range population[1:] {
		if ind.fitness > best.fitness {
			best = ind
		}
	}
	return best
}

// rouletteSelect picks one parent with probability proportional to its
// normalized fitness weight.
func rouletteSelect(population []individual, weights []float64, total float64, rng *rand.Rand) individual {
	if total <= 0 {
		return population[rng.IntN(len(population))]
	}
	r := rng.Float64() * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return population[i]
		}
	}
	return population[len(population)-1]
}

// gaussianCrossover draws a child centered at the parents' mean gene, with
// standard deviation proportional to the spread between the two parents'
// genes, rejection-resampling theta<0 and gamma outside (0,2).
func gaussianCrossover(p1, p2 individual, thetaMax float64, rng *rand.Rand) individual {
	d := len(p1.theta)
	theta := make([]float64, d)
	gamma := make([]float64, d)

	for i := 0; i < d; i++ {
		meanTheta := 0.5 * (p1.theta[i] + p2.theta[i])
		spreadTheta := math.Abs(p1.theta[i]-p2.theta[i])/2 + 1e-3
		for {
			v := meanTheta + rng.NormFloat64()*spreadTheta
			if v >= 0 && v <= thetaMax {
				theta[i] = v
				break
			}
		}

		meanGamma := 0.5 * (p1.gamma[i] + p2.gamma[i])
		spreadGamma := math.Abs(p1.gamma[i]-p2.gamma[i])/2 + 1e-3
		for {
			v := meanGamma + rng.NormFloat64()*spreadGamma
			if v > 0 && v < 2 {
				gamma[i] = v
				break
			}
		}
	}
	return individual{theta: theta, gamma: gamma}
}
