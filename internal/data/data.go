// Package data implements the CSV-backed training tables that back every
// surrogate model: append-only growth, and loading a row layout that varies
// by model type (plain x|y, gradient-augmented, or direction-augmented).
package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// Layout describes which extra column blocks a training table carries,
// beyond the mandatory x_1..x_d | y block.
type Layout struct {
	Dim          int  // d
	HasGradient  bool // dy/dx_1 .. dy/dx_d columns present (AGGREGATION)
	HasDirection bool // one dy/dv column plus v_1..v_d present (TANGENT)
}

// NumColumns returns the total column count implied by the layout.
func (l Layout) NumColumns() int {
	n := l.Dim + 1 // x + y
	if l.HasGradient {
		n += l.Dim
	}
	if l.HasDirection {
		n += 1 + l.Dim // directional derivative + direction vector
	}
	return n
}

// Table is an in-memory, append-only mirror of a training-data CSV file.
// Rows are never edited once read, only appended, matching the source
// record's lifecycle.
type Table struct {
	Path   string
	Layout Layout

	// rows holds every raw row exactly as read from (or appended to) the
	// file, in x_1..x_d, y, [gradient...], [direction...] column order.
	rows [][]float64
}

// Load reads path into memory under the given layout. A missing file is not
// an error: it yields an empty table so the optimizer can create it via its
// first AddSample/AppendRow call (this is how the DOE bootstrap produces a
// brand-new training CSV for a problem that has never been run before).
func Load(path string, layout Layout) (*Table, error) {
	t := &Table{Path: path, Layout: layout}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("data: load %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	want := layout.NumColumns()
	lineNo := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("data: read %s row %d: %w", path, lineNo+1, err)
		}
		lineNo++
		if len(record) == 1 && record[0] == "" {
			continue
		}
		if len(record) != want {
			return nil, fmt.Errorf("data: %s row %d: expected %d columns, got %d", path, lineNo, want, len(record))
		}
		row := make([]float64, want)
		for j, s := range record {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("data: %s row %d col %d (%q): %w", path, lineNo, j+1, s, err)
			}
			row[j] = v
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

// NewEmptyTable creates an in-memory table under layout with no backing
// file. Used for derived tables (e.g. the multi-level model's residual
// table) that are recomputed from another table rather than loaded from
// disk.
func NewEmptyTable(layout Layout) *Table {
	return &Table{Layout: layout}
}

// AppendRowInMemory appends row without touching any backing file. Used to
// populate derived tables created via NewEmptyTable.
func (t *Table) AppendRowInMemory(row []float64) error {
	if len(row) != t.Layout.NumColumns() {
		return fmt.Errorf("data: append row in memory: expected %d columns, got %d", t.Layout.NumColumns(), len(row))
	}
	t.rows = append(t.rows, append([]float64(nil), row...))
	return nil
}

// NumSamples returns the current row count.
func (t *Table) NumSamples() int { return len(t.rows) }

// Dim returns the design dimension.
func (t *Table) Dim() int { return t.Layout.Dim }

// X returns the raw (natural scale) design matrix, n x d.
func (t *Table) X() *mat.Dense {
	n, d := t.NumSamples(), t.Layout.Dim
	out := mat.NewDense(n, d, nil)
	for i, row := range t.rows {
		for j := 0; j < d; j++ {
			out.Set(i, j, row[j])
		}
	}
	return out
}

// Y returns the output column.
func (t *Table) Y() []float64 {
	d := t.Layout.Dim
	y := make([]float64, t.NumSamples())
	for i, row := range t.rows {
		y[i] = row[d]
	}
	return y
}

// Gradients returns the n x d gradient block, valid only when
// Layout.HasGradient.
func (t *Table) Gradients() *mat.Dense {
	if !t.Layout.HasGradient {
		return nil
	}
	n, d := t.NumSamples(), t.Layout.Dim
	start := d + 1
	out := mat.NewDense(n, d, nil)
	for i, row := range t.rows {
		for j := 0; j < d; j++ {
			out.Set(i, j, row[start+j])
		}
	}
	return out
}

// DirectionalDerivative returns the dy/dv column, valid only when
// Layout.HasDirection. This is distinct from Y, which always holds the
// function value itself (§3: TANGENT rows are x | y | dy/dv | v).
func (t *Table) DirectionalDerivative() []float64 {
	if !t.Layout.HasDirection {
		return nil
	}
	d := t.Layout.Dim
	start := d + 1
	if t.Layout.HasGradient {
		start += d
	}
	out := make([]float64, t.NumSamples())
	for i, row := range t.rows {
		out[i] = row[start]
	}
	return out
}

// Directions returns the n x d direction block, valid only when
// Layout.HasDirection.
func (t *Table) Directions() *mat.Dense {
	if !t.Layout.HasDirection {
		return nil
	}
	n, d := t.NumSamples(), t.Layout.Dim
	start := d + 2 // skip x and y, plus the directional-derivative column
	if t.Layout.HasGradient {
		start += d
	}
	out := mat.NewDense(n, d, nil)
	for i, row := range t.rows {
		for j := 0; j < d; j++ {
			out.Set(i, j, row[start+j])
		}
	}
	return out
}

// Row returns a copy of raw row i.
func (t *Table) Row(i int) []float64 {
	return append([]float64(nil), t.rows[i]...)
}

// AppendRow appends row to the in-memory table and to the backing CSV file.
// A table without a backing file (empty Path, as from NewEmptyTable) is
// appended in memory only. row must already match Layout.NumColumns().
func (t *Table) AppendRow(row []float64) error {
	if len(row) != t.Layout.NumColumns() {
		return fmt.Errorf("data: append row: expected %d columns, got %d", t.Layout.NumColumns(), len(row))
	}
	if t.Path == "" {
		t.rows = append(t.rows, append([]float64(nil), row...))
		return nil
	}

	f, err := os.OpenFile(t.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("data: append to %s: %w", t.Path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	record := make([]string, len(row))
	for i, v := range row {
		record[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	if err := w.Write(record); err != nil {
		return fmt.Errorf("data: append row to %s: %w", t.Path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("data: flush %s: %w", t.Path, err)
	}

	t.rows = append(t.rows, append([]float64(nil), row...))
	return nil
}

// NearestNeighborDistance returns the infinity-norm distance from x
// (natural scale) to the closest existing row's design parameters. Used by
// the Kriging model to reject near-duplicate samples before they destroy
// R's conditioning.
func (t *Table) NearestNeighborDistance(x []float64) float64 {
	best := -1.0
	d := t.Layout.Dim
	for _, row := range t.rows {
		maxAbs := 0.0
		for j := 0; j < d; j++ {
			diff := row[j] - x[j]
			if diff < 0 {
				diff = -diff
			}
			if diff > maxAbs {
				maxAbs = diff
			}
		}
		if best < 0 || maxAbs < best {
			best = maxAbs
		}
	}
	return best
}
