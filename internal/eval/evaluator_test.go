package eval

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/scicomp-tuk/rodeo/internal/design"
)

func TestEvaluatorFuncAdaptsPlainFunction(t *testing.T) {
	var gotX []float64
	f := EvaluatorFunc(func(ctx context.Context, x []float64) (EvaluationResult, error) {
		gotX = x
		return EvaluationResult{Value: 42}, nil
	})

	result, err := f.Evaluate(context.Background(), []float64{1, 2, 3})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Value != 42 {
		t.Errorf("Value = %v, want 42", result.Value)
	}
	if len(gotX) != 3 {
		t.Errorf("x not passed through, got %v", gotX)
	}
}

func TestProcessEvaluatorWriteDesignVector(t *testing.T) {
	dir := t.TempDir()
	p := &ProcessEvaluator{DesignVectorFilename: filepath.Join(dir, "x.txt")}
	if err := p.WriteDesignVector([]float64{1.5, -2.25, 3}); err != nil {
		t.Fatalf("WriteDesignVector: %v", err)
	}
	content, err := os.ReadFile(p.DesignVectorFilename)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := "1.5 -2.25 3\n"
	if string(content) != want {
		t.Errorf("design vector file = %q, want %q", content, want)
	}
}

func TestProcessEvaluatorReadOutputPrimal(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.txt")
	if err := os.WriteFile(outPath, []byte("3.14\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	p := &ProcessEvaluator{OutputFilename: outPath, Mode: design.Primal}
	result, err := p.ReadOutput()
	if err != nil {
		t.Fatalf("ReadOutput: %v", err)
	}
	if result.Value != 3.14 {
		t.Errorf("Value = %v, want 3.14", result.Value)
	}
}

func TestProcessEvaluatorReadOutputTangent(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.txt")
	if err := os.WriteFile(outPath, []byte("1.0 2.0\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	p := &ProcessEvaluator{OutputFilename: outPath, Mode: design.Tangent}
	result, err := p.ReadOutput()
	if err != nil {
		t.Fatalf("ReadOutput: %v", err)
	}
	if result.Value != 1.0 || result.TangentVal != 2.0 {
		t.Errorf("result = %+v, want Value=1.0 TangentVal=2.0", result)
	}
}

func TestProcessEvaluatorReadOutputAdjoint(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.txt")
	if err := os.WriteFile(outPath, []byte("1.0 0.1 0.2 0.3\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	p := &ProcessEvaluator{OutputFilename: outPath, Mode: design.Adjoint, Dim: 3}
	result, err := p.ReadOutput()
	if err != nil {
		t.Fatalf("ReadOutput: %v", err)
	}
	if result.Value != 1.0 {
		t.Errorf("Value = %v, want 1.0", result.Value)
	}
	if len(result.Gradient) != 3 || result.Gradient[0] != 0.1 {
		t.Errorf("Gradient = %v, want [0.1 0.2 0.3]", result.Gradient)
	}
}

func TestProcessEvaluatorReadOutputWrongFieldCount(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.txt")
	if err := os.WriteFile(outPath, []byte("1.0 2.0 3.0\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	p := &ProcessEvaluator{OutputFilename: outPath, Mode: design.Primal}
	if _, err := p.ReadOutput(); err == nil {
		t.Fatalf("expected error for unexpected field count in primal mode")
	}
}
