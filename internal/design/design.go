// Package design holds the data types exchanged between the optimizer, the
// surrogate models, and the simulator adapters: a Design record, the
// constraint definition it is evaluated against, and the append-only
// optimization history.
package design

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
)

// Direction is the inequality sense of a constraint threshold. It replaces
// a string-typed "<"/">" field with a small closed tag type.
type Direction int

const (
	LessThan Direction = iota
	GreaterThan
)

func (d Direction) String() string {
	if d == LessThan {
		return "<"
	}
	return ">"
}

// ParseDirection converts the textual config form into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "<":
		return LessThan, nil
	case ">":
		return GreaterThan, nil
	default:
		return 0, fmt.Errorf("design: unknown inequality direction %q, want \"<\" or \">\"", s)
	}
}

// EvaluationMode selects which columns the simulator output is expected to
// carry.
type EvaluationMode int

const (
	Primal EvaluationMode = iota
	Tangent
	Adjoint
)

// Design is one input/output record produced by a single simulator call.
// It is immutable once the evaluator and optimizer have finished populating
// it and has been appended to the relevant training tables.
type Design struct {
	DesignParameters []float64 // length d, natural (denormalized) scale

	TrueValue float64 // objective primal value

	TangentDirection []float64 // length d, unit vector (tangent mode)
	TangentValue     float64   // directional derivative along TangentDirection

	Gradient []float64 // length d (adjoint mode)

	ConstraintTrueValues []float64   // length m
	ConstraintGradients  [][]float64 // m vectors of length d (adjoint mode)

	ConstraintTangent                         []float64   // length m
	ConstraintDifferentiationDirectionsMatrix [][]float64 // m vectors of length d (tangent mode)

	ImprovementValue float64 // incumbent minimum minus objective, clamped at 0; 0 when infeasible
	IsFeasible       bool
}

// NewDesign allocates a Design for a d-dimensional problem with m
// constraints; callers populate DesignParameters before evaluation.
func NewDesign(x []float64, numberOfConstraints int) *Design {
	return &Design{
		DesignParameters:     append([]float64(nil), x...),
		ConstraintTrueValues: make([]float64, numberOfConstraints),
	}
}

// ConstraintDefinition describes how one constraint function is evaluated
// and checked for feasibility.
type ConstraintDefinition struct {
	Name      string
	ID        int
	Direction Direction
	Threshold float64

	ExecutablePath        string
	DesignVectorFilename  string
	OutputFilename        string
	ModelType             string
	Mode                  EvaluationMode

	// LowFidelityExecutablePath and friends are non-empty only when this
	// constraint uses a MULTI_LEVEL surrogate.
	LowFidelityExecutablePath       string
	LowFidelityDesignVectorFilename string
	LowFidelityOutputFilename       string
	LowFidelityTrainingDataFilename string
}

// CheckFeasibility evaluates the constraint's inequality against v.
func (c ConstraintDefinition) CheckFeasibility(v float64) bool {
	if c.Direction == LessThan {
		return v < c.Threshold
	}
	return v > c.Threshold
}

// HistoryRow is one row of the append-only optimization history:
// [x | y_obj | c_1 ... c_m | improvement | feasibility_flag].
type HistoryRow struct {
	X                    []float64
	Objective            float64
	ConstraintTrueValues []float64
	Improvement          float64
	Feasible             bool
}

// History is the append-only optimization history matrix.
type History struct {
	Rows []HistoryRow
}

// Append adds one row built from d and the incumbent improvement value
// already computed by the caller.
func (h *History) Append(d *Design) {
	h.Rows = append(h.Rows, HistoryRow{
		X:                    append([]float64(nil), d.DesignParameters...),
		Objective:            d.TrueValue,
		ConstraintTrueValues: append([]float64(nil), d.ConstraintTrueValues...),
		Improvement:          d.ImprovementValue,
		Feasible:             d.IsFeasible,
	})
}

// RowCount returns the number of rows recorded so far.
func (h *History) RowCount() int { return len(h.Rows) }

// Incumbent returns the current f* used by expected improvement: the
// smallest objective value among feasible rows, or, if no row has ever
// been feasible, the smallest objective value overall (the Open Question
// resolution recorded in the design notes). usedFeasible reports which
// branch was taken, so callers can log it.
func (h *History) Incumbent() (fStar float64, usedFeasible bool) {
	bestFeasible := math.Inf(1)
	haveFeasible := false
	bestOverall := math.Inf(1)

	for _, row := range h.Rows {
		if row.Objective < bestOverall {
			bestOverall = row.Objective
		}
		if row.Feasible && row.Objective < bestFeasible {
			bestFeasible = row.Objective
			haveFeasible = true
		}
	}
	if haveFeasible {
		return bestFeasible, true
	}
	return bestOverall, false
}

// WriteCSV dumps the history to path, one row per design, ASCII CSV without
// a header, matching the training-data CSV convention used elsewhere in
// this codebase.
func (h *History) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("design: write history: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	for _, row := range h.Rows {
		record := make([]string, 0, len(row.X)+len(row.ConstraintTrueValues)+3)
		for _, v := range row.X {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		record = append(record, strconv.FormatFloat(row.Objective, 'g', -1, 64))
		for _, v := range row.ConstraintTrueValues {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		record = append(record, strconv.FormatFloat(row.Improvement, 'g', -1, 64))
		feasible := "0"
		if row.Feasible {
			feasible = "1"
		}
		record = append(record, feasible)

		if err := w.Write(record); err != nil {
			return fmt.Errorf("design: write history row: %w", err)
		}
	}
	return nil
}
