package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/cvtune/internal/logging"
)

var (
	logLevel  string
	logFormat string
	logger    *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cvtune",
	Short: "Cross-validated hyperparameter tuning",
	Long: `cvtune searches a learner's hyperparameters by minimizing a
cross-validation score with grid search, Nelder-Mead, Bayesian
optimization or the mayfly algorithm.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.NewLogger(&logging.Config{
			Level:  logLevel,
			Format: logFormat,
			Output: "stderr",
		})
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log format (json, console)")
	rootCmd.SetOut(os.Stdout)
}
