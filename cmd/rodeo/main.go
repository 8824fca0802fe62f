// Command rodeo drives the constrained Bayesian design optimization loop
// (internal/optimizer) from a YAML run configuration: it wires bounds,
// training tables, surrogate models and simulator evaluators together,
// runs the EGO loop to completion, and writes the optimization history.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/scicomp-tuk/rodeo/internal/bounds"
	"github.com/scicomp-tuk/rodeo/internal/config"
	"github.com/scicomp-tuk/rodeo/internal/data"
	"github.com/scicomp-tuk/rodeo/internal/design"
	"github.com/scicomp-tuk/rodeo/internal/eval"
	"github.com/scicomp-tuk/rodeo/internal/logging"
	"github.com/scicomp-tuk/rodeo/internal/optimizer"
	"github.com/scicomp-tuk/rodeo/internal/surrogate"
)

func main() {
	configPath := flag.String("config", "rodeo.yaml", "path to the run configuration YAML")
	verbose := flag.Bool("v", false, "enable debug-level logging")
	validateOnly := flag.Bool("validate", false, "run leave-one-out cross-validation on the objective's current training table and exit")
	flag.Parse()

	logger := logging.New(os.Stderr, *verbose)

	if err := run(*configPath, *validateOnly, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, validateOnly bool, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	b := bounds.New(cfg.LowerBounds, cfg.UpperBounds)
	if !b.Valid() {
		return fmt.Errorf("config: lower_bounds/upper_bounds do not form a valid box")
	}

	objectiveTable, err := loadTable(cfg.Objective, cfg.Dimension)
	if err != nil {
		return fmt.Errorf("load objective training data: %w", err)
	}
	objectiveModel, err := buildSurrogate(cfg.Objective, objectiveTable, b)
	if err != nil {
		return fmt.Errorf("build objective surrogate: %w", err)
	}

	if validateOnly {
		return runValidate(objectiveTable, b, cfg.Objective.ModelType, logger)
	}

	objectiveMode, err := parseMode(cfg.Objective.Mode)
	if err != nil {
		return fmt.Errorf("objective: %w", err)
	}
	objective := &eval.ObjectiveFunction{
		Name:   cfg.Objective.Name,
		Mode:   objectiveMode,
		Table:  objectiveTable,
		Bounds: b,
		Evaluator: &eval.ProcessEvaluator{
			ExecutablePath:       cfg.Objective.ExecutablePath,
			DesignVectorFilename: cfg.Objective.DesignVectorFilename,
			OutputFilename:       cfg.Objective.OutputFilename,
			Mode:                 objectiveMode,
			Dim:                  cfg.Dimension,
		},
	}
	objective.BindSurrogateModel(objectiveModel)

	constraints := make([]*eval.ConstraintFunction, len(cfg.Constraints))
	for i, spec := range cfg.Constraints {
		table, err := loadTable(spec, cfg.Dimension)
		if err != nil {
			return fmt.Errorf("load constraint %s training data: %w", spec.Name, err)
		}
		model, err := buildSurrogate(spec, table, b)
		if err != nil {
			return fmt.Errorf("build constraint %s surrogate: %w", spec.Name, err)
		}
		dir, err := design.ParseDirection(spec.Direction)
		if err != nil {
			return fmt.Errorf("constraint %s: %w", spec.Name, err)
		}
		mode, err := parseMode(spec.Mode)
		if err != nil {
			return fmt.Errorf("constraint %s: %w", spec.Name, err)
		}
		cf := &eval.ConstraintFunction{
			Definition: design.ConstraintDefinition{
				Name:                 spec.Name,
				ID:                   i,
				Direction:            dir,
				Threshold:            spec.Threshold,
				ExecutablePath:       spec.ExecutablePath,
				DesignVectorFilename: spec.DesignVectorFilename,
				OutputFilename:       spec.OutputFilename,
				ModelType:            spec.ModelType,
				Mode:                 mode,
			},
			Table:  table,
			Bounds: b,
			Evaluator: &eval.ProcessEvaluator{
				ExecutablePath:       spec.ExecutablePath,
				DesignVectorFilename: spec.DesignVectorFilename,
				OutputFilename:       spec.OutputFilename,
				Mode:                 mode,
				Dim:                  cfg.Dimension,
			},
		}
		cf.BindSurrogateModel(model)
		constraints[i] = cf
	}

	opt := optimizer.New(b, objective, constraints, optimizer.Config{
		MaxNumberOfIterations:  cfg.MaxNumberOfIterations,
		HowOftenTrainModels:    cfg.HowOftenTrainModels,
		NumberOfInitialSamples: cfg.NumberOfInitialSamples,
		NumberOfEICandidates:   cfg.NumberOfEICandidates,
		TopKSeeds:              cfg.TopKSeeds,
		EnableZoomIn:           cfg.EnableZoomIn,
		ZoomInFactor:           cfg.ZoomInFactor,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	history, err := opt.Run(ctx)
	if history != nil {
		historyPath := cfg.HistoryFilename
		if historyPath == "" {
			historyPath = "optimization_history.csv"
		}
		if writeErr := history.WriteCSV(historyPath); writeErr != nil {
			logger.Error("failed to write optimization history", "error", writeErr)
		}
	}
	if err != nil {
		return fmt.Errorf("optimization run: %w", err)
	}

	saveKrigingHyperparameters(cfg.Objective.Name, objective.Model(), logger)
	for _, c := range constraints {
		saveKrigingHyperparameters(c.Definition.Name, c.Model(), logger)
	}

	fStar, usedFeasible := history.Incumbent()
	logger.Info("optimization finished",
		"history_rows", history.RowCount(),
		"best_objective", fStar,
		"used_feasible_incumbent", usedFeasible,
	)
	return nil
}

func runValidate(table *data.Table, b *bounds.Bounds, modelType string, logger *slog.Logger) error {
	var build func(*data.Table, *bounds.Bounds) (surrogate.Predictor, error)
	switch modelType {
	case "LINEAR_REGRESSION":
		build = surrogate.BuildLinearModel
	case "UNIVERSAL_KRIGING":
		build = surrogate.BuildUniversalKriging
	default:
		build = surrogate.BuildOrdinaryKriging
	}
	report, err := surrogate.LeaveOneOut(table, b, build)
	if err != nil {
		return err
	}
	logger.Info("cross-validation complete", "folds", report.Folds, "mean_mse", report.MeanMSE, "rmse", report.RootMeanSquaredError())
	return nil
}

func parseMode(s string) (design.EvaluationMode, error) {
	switch s {
	case "", "primal":
		return design.Primal, nil
	case "tangent":
		return design.Tangent, nil
	case "adjoint":
		return design.Adjoint, nil
	default:
		return 0, fmt.Errorf("unknown evaluation mode %q, want primal|tangent|adjoint", s)
	}
}

func loadTable(spec config.FunctionSpec, dim int) (*data.Table, error) {
	layout := data.Layout{Dim: dim}
	switch spec.ModelType {
	case "AGGREGATION":
		layout.HasGradient = true
	case "TANGENT":
		layout.HasDirection = true
	}
	return data.Load(spec.TrainingDataFilename, layout)
}

func buildSurrogate(spec config.FunctionSpec, table *data.Table, b *bounds.Bounds) (surrogate.Predictor, error) {
	switch spec.ModelType {
	case "LINEAR_REGRESSION":
		return surrogate.NewLinearModel(table, b)
	case "ORDINARY_KRIGING":
		return loadKrigingWithHyperparameters(spec, table, b, false)
	case "UNIVERSAL_KRIGING":
		return loadKrigingWithHyperparameters(spec, table, b, true)
	case "AGGREGATION":
		return surrogate.NewAggregationModel(table, b)
	case "TANGENT":
		return surrogate.NewTangentModel(table, b)
	case "MULTI_LEVEL":
		lowLayout := data.Layout{Dim: b.Dim()}
		lowTable, err := data.Load(spec.LowFidelityTrainingDataFilename, lowLayout)
		if err != nil {
			return nil, err
		}
		return surrogate.NewMultiLevelModel(table, lowTable, b)
	default:
		return nil, fmt.Errorf("unknown model type %q", spec.ModelType)
	}
}

// hyperparameterPath is the per-function hyperparameter file named in §6:
// "<label>_kriging_hyperparameters.csv".
func hyperparameterPath(name string) string {
	return name + "_kriging_hyperparameters.csv"
}

// loadKrigingWithHyperparameters builds a Kriging model and, if a previously
// saved hyperparameter file exists for this function, installs it so the
// evolutionary search does not need to rerun before the first prediction.
// A missing file is not an error: the model simply trains from scratch.
func loadKrigingWithHyperparameters(spec config.FunctionSpec, table *data.Table, b *bounds.Bounds, universal bool) (surrogate.Predictor, error) {
	model, err := surrogate.NewKrigingModel(table, b, universal)
	if err != nil {
		return nil, err
	}
	path := hyperparameterPath(spec.Name)
	if err := model.LoadHyperparameters(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load hyperparameters for %s: %w", spec.Name, err)
	}
	return model, nil
}

// saveKrigingHyperparameters persists model's current (theta, gamma) under
// name's hyperparameter file, if model is a Kriging variant; every other
// surrogate type is a no-op.
func saveKrigingHyperparameters(name string, model surrogate.Predictor, logger *slog.Logger) {
	k, ok := model.(*surrogate.KrigingModel)
	if !ok {
		return
	}
	if err := k.SaveHyperparameters(hyperparameterPath(name)); err != nil {
		logger.Error("failed to save hyperparameters", "function", name, "error", err)
	}
}
