// Package eval adapts a configured external simulator program into the
// Evaluator contract the optimizer drives, and wraps one surrogate per
// objective/constraint in the small facade §4.7 describes.
package eval

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/scicomp-tuk/rodeo/internal/design"
)

// Evaluator is the injectable contract between an adapter and the thing
// that actually produces (value[, gradient/tangent]) for a design vector.
// Production code binds it to a process-spawning implementation
// (ProcessEvaluator); tests substitute a pure Go function.
type Evaluator interface {
	Evaluate(ctx context.Context, x []float64) (EvaluationResult, error)
}

// EvaluationResult carries whichever columns the configured EvaluationMode
// produces; callers only read the fields relevant to their mode.
type EvaluationResult struct {
	Value      float64
	TangentVal float64   // valid when Mode == design.Tangent
	Gradient   []float64 // valid when Mode == design.Adjoint, length d
}

// EvaluatorFunc adapts a plain function to the Evaluator interface, the
// shape tests use to avoid spawning a process.
type EvaluatorFunc func(ctx context.Context, x []float64) (EvaluationResult, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, x []float64) (EvaluationResult, error) {
	return f(ctx, x)
}

// ProcessEvaluator drives the external simulator contract of §6: write the
// design vector to a whitespace-separated file, run the configured
// executable, and parse its single-line output per the evaluation mode.
type ProcessEvaluator struct {
	ExecutablePath       string
	DesignVectorFilename string
	OutputFilename       string
	Mode                 design.EvaluationMode
	Dim                  int
}

// WriteDesignVector writes x to DesignVectorFilename as a single line of
// space-separated full-precision values, matching the training CSV's own
// number formatting.
func (p *ProcessEvaluator) WriteDesignVector(x []float64) error {
	var b strings.Builder
	for i, v := range x {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	b.WriteByte('\n')
	if err := os.WriteFile(p.DesignVectorFilename, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("eval: write design vector to %s: %w", p.DesignVectorFilename, err)
	}
	return nil
}

// InvokeEvaluator runs the configured executable to completion. A nonzero
// exit is fatal per §7 (SimulatorFailure), surfaced as *exec.ExitError
// through the wrapped error.
func (p *ProcessEvaluator) InvokeEvaluator(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, p.ExecutablePath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("eval: simulator %s failed: %w (output: %s)", p.ExecutablePath, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// ReadOutput parses OutputFilename per Mode: one number for primal, two for
// tangent, 1+d for adjoint.
func (p *ProcessEvaluator) ReadOutput() (EvaluationResult, error) {
	f, err := os.Open(p.OutputFilename)
	if err != nil {
		return EvaluationResult{}, fmt.Errorf("eval: read simulator output %s: %w", p.OutputFilename, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return EvaluationResult{}, fmt.Errorf("eval: simulator output %s is empty", p.OutputFilename)
	}
	fields := strings.Fields(scanner.Text())

	parse := func(s string) (float64, error) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("eval: simulator output %s: unparsable number %q: %w", p.OutputFilename, s, err)
		}
		return v, nil
	}

	switch p.Mode {
	case design.Primal:
		if len(fields) != 1 {
			return EvaluationResult{}, fmt.Errorf("eval: simulator output %s: primal mode expects 1 value, got %d", p.OutputFilename, len(fields))
		}
		v, err := parse(fields[0])
		if err != nil {
			return EvaluationResult{}, err
		}
		return EvaluationResult{Value: v}, nil

	case design.Tangent:
		if len(fields) != 2 {
			return EvaluationResult{}, fmt.Errorf("eval: simulator output %s: tangent mode expects 2 values, got %d", p.OutputFilename, len(fields))
		}
		v, err := parse(fields[0])
		if err != nil {
			return EvaluationResult{}, err
		}
		tv, err := parse(fields[1])
		if err != nil {
			return EvaluationResult{}, err
		}
		return EvaluationResult{Value: v, TangentVal: tv}, nil

	case design.Adjoint:
		want := 1 + p.Dim
		if len(fields) != want {
			return EvaluationResult{}, fmt.Errorf("eval: simulator output %s: adjoint mode expects %d values, got %d", p.OutputFilename, want, len(fields))
		}
		v, err := parse(fields[0])
		if err != nil {
			return EvaluationResult{}, err
		}
		grad := make([]float64, p.Dim)
		for i := 0; i < p.Dim; i++ {
			g, err := parse(fields[1+i])
			if err != nil {
				return EvaluationResult{}, err
			}
			grad[i] = g
		}
		return EvaluationResult{Value: v, Gradient: grad}, nil

	default:
		return EvaluationResult{}, fmt.Errorf("eval: unknown evaluation mode %v", p.Mode)
	}
}

// Evaluate composes WriteDesignVector, InvokeEvaluator and ReadOutput.
func (p *ProcessEvaluator) Evaluate(ctx context.Context, x []float64) (EvaluationResult, error) {
	if err := p.WriteDesignVector(x); err != nil {
		return EvaluationResult{}, err
	}
	if err := p.InvokeEvaluator(ctx); err != nil {
		return EvaluationResult{}, err
	}
	return p.ReadOutput()
}
