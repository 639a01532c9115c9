package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/cvtune/internal/config"
	"github.com/copyleftdev/cvtune/internal/cv"
	"github.com/copyleftdev/cvtune/internal/hpt"
	"github.com/copyleftdev/cvtune/internal/logging"
	"github.com/copyleftdev/cvtune/internal/tuning"
)

var (
	dataPath      string
	learnerName   string
	optimizerName string
	metricName    string
	argSpecs      []string
	cvMethod      string
	folds         int
	validation    float64
	shuffle       bool
	maxIterations int
	initialPoints int
	gridSize      int
	popSize       int
	seed          int64
	jsonOutput    bool
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Tune a learner on a CSV data set",
	Long: `Loads a CSV data set (last column is the response), searches the
learner's arguments and prints the best cross-validation score.

Every learner argument needs an --arg entry:

  --arg lambda=0.001:10          search a range
  --arg lambda=values:0.1,1,10   search a value set
  --arg intercept=fixed:true     hold an argument fixed`,
	Example: `  cvtune tune --data prices.csv --learner ridge --optimizer grid \
    --arg lambda=0.01:10 --arg intercept=fixed:true --folds 5`,
	RunE: runTune,
}

func init() {
	tuneCmd.Flags().StringVar(&dataPath, "data", "", "CSV data set path, - for stdin (required)")
	tuneCmd.Flags().StringVar(&learnerName, "learner", "", "Learner: "+strings.Join(tuning.LearnerNames(), ", ")+" (required)")
	tuneCmd.Flags().StringVar(&optimizerName, "optimizer", "", "Optimizer: "+strings.Join(tuning.OptimizerNames, ", ")+" (default from TUNE_OPTIMIZER)")
	tuneCmd.Flags().StringVar(&metricName, "metric", "mse", "Score: mse, mae or r2")
	tuneCmd.Flags().StringArrayVar(&argSpecs, "arg", nil, "Argument spec name=min:max|values:a,b|fixed:v (repeatable)")
	tuneCmd.Flags().StringVar(&cvMethod, "cv", "kfold", "Cross-validation: kfold or simple")
	tuneCmd.Flags().IntVar(&folds, "folds", 0, "Number of folds for kfold")
	tuneCmd.Flags().Float64Var(&validation, "validation-size", 0, "Validation fraction for simple")
	tuneCmd.Flags().BoolVar(&shuffle, "shuffle", false, "Shuffle rows before splitting")
	tuneCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Optimizer iterations")
	tuneCmd.Flags().IntVar(&initialPoints, "initial-points", 0, "Random points before the Bayesian surrogate is used")
	tuneCmd.Flags().IntVar(&gridSize, "grid-size", 0, "Grid points per range argument")
	tuneCmd.Flags().IntVar(&popSize, "pop", 0, "Mayfly population size")
	tuneCmd.Flags().Int64Var(&seed, "seed", 0, "Random seed")
	tuneCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")

	_ = tuneCmd.MarkFlagRequired("data")
	_ = tuneCmd.MarkFlagRequired("learner")
	rootCmd.AddCommand(tuneCmd)
}

// parseArgFlags turns repeated name=spec flags into a request argument map.
func parseArgFlags(flags []string) (map[string]tuning.ArgSpec, error) {
	args := make(map[string]tuning.ArgSpec, len(flags))
	for _, f := range flags {
		name, spec, ok := strings.Cut(f, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --arg %q, expected name=spec", f)
		}
		if _, dup := args[name]; dup {
			return nil, fmt.Errorf("argument %q given twice", name)
		}
		s, err := tuning.ParseArgSpec(spec)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", name, err)
		}
		args[name] = s
	}
	return args, nil
}

func openData(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func runTune(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	f, err := openData(dataPath)
	if err != nil {
		return fmt.Errorf("failed to open data: %w", err)
	}
	X, y, err := readDataset(f)
	f.Close()
	if err != nil {
		return err
	}

	args, err := parseArgFlags(argSpecs)
	if err != nil {
		return err
	}

	req := tuning.Request{
		Learner:   learnerName,
		Optimizer: optimizerName,
		Metric:    metricName,
		X:         X,
		Y:         y,
		CV: tuning.CVSpec{
			Method:         cvMethod,
			Folds:          folds,
			ValidationSize: validation,
			Shuffle:        shuffle,
			Seed:           seed,
		},
		Args:          args,
		MaxIterations: maxIterations,
		InitialPoints: initialPoints,
		GridSize:      gridSize,
		Population:    popSize,
		Seed:          seed,
	}

	job, err := tuning.Prepare(req, tuning.DefaultsFromConfig(cfg), logging.NewZapLogger(logger))
	if err != nil {
		return err
	}

	logger.Info("Tuning started", map[string]interface{}{
		"learner":   job.Request.Learner,
		"optimizer": job.Request.Optimizer,
		"metric":    job.Request.Metric,
		"rows":      len(y),
		"budget":    job.Budget(),
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	result, err := job.Run(ctx, func(t hpt.Trial) {
		if t.Improved {
			logger.Info("New best", map[string]interface{}{
				"evaluation": t.Evaluation,
				"objective":  t.Objective,
				"args":       t.Args,
			})
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("tuning interrupted: %w", context.Cause(ctx))
		}
		return err
	}

	return printResult(cmd.OutOrStdout(), job, result, time.Since(start))
}

type resultSummary struct {
	Learner       string         `json:"learner"`
	Optimizer     string         `json:"optimizer"`
	Metric        string         `json:"metric"`
	BestObjective float64        `json:"best_objective"`
	BestArgs      map[string]any `json:"best_args"`
	Evaluations   int            `json:"evaluations"`
	ElapsedMS     int64          `json:"elapsed_ms"`
}

func printResult(w io.Writer, job *tuning.Job, result *hpt.Result[cv.Predictor], elapsed time.Duration) error {
	names := job.ArgNames()
	summary := resultSummary{
		Learner:       job.Request.Learner,
		Optimizer:     job.Request.Optimizer,
		Metric:        job.Request.Metric,
		BestObjective: result.BestObjective,
		BestArgs:      make(map[string]any, len(names)),
		Evaluations:   result.Evaluations,
		ElapsedMS:     elapsed.Milliseconds(),
	}
	for i, name := range names {
		summary.BestArgs[name] = result.BestArgs[i]
	}

	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "learner\t%s\n", summary.Learner)
	fmt.Fprintf(tw, "optimizer\t%s\n", summary.Optimizer)
	fmt.Fprintf(tw, "%s\t%.6g\n", summary.Metric, summary.BestObjective)
	for _, name := range names {
		fmt.Fprintf(tw, "  %s\t%v\n", name, summary.BestArgs[name])
	}
	fmt.Fprintf(tw, "evaluations\t%d\n", summary.Evaluations)
	fmt.Fprintf(tw, "elapsed\t%s\n", elapsed.Round(time.Millisecond))
	return tw.Flush()
}
