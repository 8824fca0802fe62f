// Package bounds implements box constraints on a design vector and the
// forward/inverse min-max scaling every surrogate model trains on.
package bounds

import (
	"fmt"
	"math/rand/v2"
)

// Bounds holds the lower and lower/upper box constraints on a design vector
// of fixed dimension. Immutable once Valid() has been checked by the caller;
// nothing in this package mutates Lb/Ub after construction.
type Bounds struct {
	Lb []float64
	Ub []float64
}

// New builds a Bounds from copies of lb and ub. It does not validate them;
// call Valid to check lb[i] < ub[i] before relying on the instance.
func New(lb, ub []float64) *Bounds {
	b := &Bounds{
		Lb: append([]float64(nil), lb...),
		Ub: append([]float64(nil), ub...),
	}
	return b
}

// Dim returns the design dimension.
func (b *Bounds) Dim() int { return len(b.Lb) }

// Valid reports whether lb[i] < ub[i] for every dimension and the two
// vectors have matching, nonzero length.
func (b *Bounds) Valid() bool {
	if len(b.Lb) == 0 || len(b.Lb) != len(b.Ub) {
		return false
	}
	for i := range b.Lb {
		if !(b.Lb[i] < b.Ub[i]) {
			return false
		}
	}
	return true
}

// Contains reports whether x lies within the box, inclusive of the edges.
func (b *Bounds) Contains(x []float64) bool {
	if len(x) != len(b.Lb) {
		return false
	}
	for i, v := range x {
		if v < b.Lb[i] || v > b.Ub[i] {
			return false
		}
	}
	return true
}

// SampleUniform draws a single point uniformly inside the box using rng.
func (b *Bounds) SampleUniform(rng *rand.Rand) []float64 {
	x := make([]float64, len(b.Lb))
	for i := range x {
		x[i] = b.Lb[i] + rng.Float64()*(b.Ub[i]-b.Lb[i])
	}
	return x
}

// Normalize maps x (in natural scale) to [0,1]^d.
func (b *Bounds) Normalize(x []float64) ([]float64, error) {
	if len(x) != len(b.Lb) {
		return nil, fmt.Errorf("bounds: normalize: dimension mismatch, got %d want %d", len(x), len(b.Lb))
	}
	xn := make([]float64, len(x))
	for i, v := range x {
		xn[i] = (v - b.Lb[i]) / (b.Ub[i] - b.Lb[i])
	}
	return xn, nil
}

// Denormalize maps xn (in [0,1]^d) back to natural scale.
func (b *Bounds) Denormalize(xn []float64) ([]float64, error) {
	if len(xn) != len(b.Lb) {
		return nil, fmt.Errorf("bounds: denormalize: dimension mismatch, got %d want %d", len(xn), len(b.Lb))
	}
	x := make([]float64, len(xn))
	for i, v := range xn {
		x[i] = b.Lb[i] + v*(b.Ub[i]-b.Lb[i])
	}
	return x, nil
}

// Project clamps x into the box, in place style (returns a new slice).
func (b *Bounds) Project(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		lo, hi := 0.0, 1.0
		if i < len(b.Lb) {
			lo, hi = b.Lb[i], b.Ub[i]
		}
		if v < lo {
			v = lo
		}
		if v > hi {
			v = hi
		}
		out[i] = v
	}
	return out
}

// Shrink produces a new Bounds, shrunk around center by factor (0<factor<1),
// clamped to the receiver's own box. center is pushed strictly interior to
// the shrunk box so a zoom-in step never leaves the incumbent exactly on an
// edge, where surrogate variance collapses to zero and acquisition search
// stalls.
func (b *Bounds) Shrink(center []float64, factor float64) (*Bounds, error) {
	if len(center) != len(b.Lb) {
		return nil, fmt.Errorf("bounds: shrink: dimension mismatch, got %d want %d", len(center), len(b.Lb))
	}
	if factor <= 0 || factor >= 1 {
		return nil, fmt.Errorf("bounds: shrink: factor must be in (0,1), got %v", factor)
	}
	const interiorMargin = 1e-6
	lb := make([]float64, len(b.Lb))
	ub := make([]float64, len(b.Ub))
	for i := range b.Lb {
		half := 0.5 * factor * (b.Ub[i] - b.Lb[i])
		lo := center[i] - half
		hi := center[i] + half
		if lo < b.Lb[i] {
			lo = b.Lb[i]
		}
		if hi > b.Ub[i] {
			hi = b.Ub[i]
		}
		margin := interiorMargin * (b.Ub[i] - b.Lb[i])
		if center[i]-lo < margin {
			lo = center[i] - margin
		}
		if hi-center[i] < margin {
			hi = center[i] + margin
		}
		if lo < b.Lb[i] {
			lo = b.Lb[i]
		}
		if hi > b.Ub[i] {
			hi = b.Ub[i]
		}
		lb[i] = lo
		ub[i] = hi
	}
	return New(lb, ub), nil
}
