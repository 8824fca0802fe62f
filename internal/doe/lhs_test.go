package doe

import (
	"math/rand/v2"
	"testing"

	"github.com/scicomp-tuk/rodeo/internal/bounds"
)

func TestLatinHypercubeProducesStratifiedSamplesInsideBounds(t *testing.T) {
	b := bounds.New([]float64{-1, 0}, []float64{1, 10})
	rng := rand.New(rand.NewPCG(1, 2))

	n := 8
	samples, err := LatinHypercube(b, n, rng)
	if err != nil {
		t.Fatalf("LatinHypercube: %v", err)
	}
	if len(samples) != n {
		t.Fatalf("len(samples) = %d, want %d", len(samples), n)
	}
	for i, x := range samples {
		if !b.Contains(x) {
			t.Errorf("sample %d = %v not contained in bounds", i, x)
		}
	}
}

func TestLatinHypercubeStratifiesEachDimension(t *testing.T) {
	b := bounds.New([]float64{0}, []float64{1})
	rng := rand.New(rand.NewPCG(3, 4))

	n := 10
	samples, err := LatinHypercube(b, n, rng)
	if err != nil {
		t.Fatalf("LatinHypercube: %v", err)
	}
	seen := make([]bool, n)
	stratumWidth := 1.0 / float64(n)
	for _, x := range samples {
		stratum := int(x[0] / stratumWidth)
		if stratum == n {
			stratum = n - 1
		}
		if seen[stratum] {
			t.Errorf("stratum %d occupied by more than one sample", stratum)
		}
		seen[stratum] = true
	}
	for i, ok := range seen {
		if !ok {
			t.Errorf("stratum %d never occupied", i)
		}
	}
}
