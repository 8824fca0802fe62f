// Package doe generates the initial design-of-experiments sample set used
// to bootstrap a training table that does not yet exist on disk (§D).
package doe

import (
	"math/rand/v2"

	"github.com/scicomp-tuk/rodeo/internal/bounds"
)

// LatinHypercube draws n samples in d = b.Dim() dimensions using a basic
// stratified Latin-hypercube scheme: each dimension's [0,1) range is split
// into n equal strata, one stratum per sample with an independently
// shuffled assignment across dimensions, then jittered uniformly within
// its stratum and denormalized into b's natural scale.
//
// This is a minimal LHS, not a space-filling-optimized one (no maximin or
// correlation-reduction pass) — per §1/§D, stratification quality is not a
// tested property of this package, only "produces a runnable initial
// training set" is.
func LatinHypercube(b *bounds.Bounds, n int, rng *rand.Rand) ([][]float64, error) {
	d := b.Dim()
	samples := make([][]float64, n)
	for i := range samples {
		samples[i] = make([]float64, d)
	}

	stratumWidth := 1.0 / float64(n)
	for dim := 0; dim < d; dim++ {
		perm := rng.Perm(n)
		for i := 0; i < n; i++ {
			stratum := perm[i]
			u := (float64(stratum) + rng.Float64()) * stratumWidth
			samples[i][dim] = u
		}
	}

	out := make([][]float64, n)
	for i, normalized := range samples {
		x, err := b.Denormalize(normalized)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}
