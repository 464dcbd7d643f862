// Package cmd implements the rcnneval command line.
package cmd

import (
	"log/slog"
	"os"

	"github.com/MeKo-Tech/rcnneval/internal/config"
	"github.com/MeKo-Tech/rcnneval/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the state shared by the commands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
}

// NewRootCommand builds a fresh command tree with its own configuration
// state, so tests can run several invocations in one process.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "rcnneval",
		Short: "Evaluate region-based object detectors on image datasets",
		Long: `rcnneval scores every image of a dataset with a Fast R-CNN style network,
turns the raw per-region outputs into per-class detections, bounds the
number of stored detections with adaptive class thresholds, applies
non-maximum suppression and hands the result to the dataset evaluator.

Examples:
  rcnneval datasets
  rcnneval evaluate --dataset voc_2007_test --model frcnn.onnx
  rcnneval evaluate --dataset kitti_val --oracle replay --replay outputs.yaml
  rcnneval config init rcnneval.yaml`,
		Version:           version.Short(),
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is search in ., $HOME, $HOME/.config/rcnneval, /etc/rcnneval)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	_ = a.v.BindPFlag("verbose", pf.Lookup("verbose"))
	_ = a.v.BindPFlag("log_level", pf.Lookup("log-level"))

	root.AddCommand(newEvaluateCommand(a), newDatasetsCommand(), newConfigCommand(a))
	return root
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration and installs the structured logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.NewLoaderWith(a.v).LoadWithFile(a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	var logLevel slog.Level
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			logLevel = slog.LevelDebug
		case "warn":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		default:
			logLevel = slog.LevelInfo
		}
	}

	logger := slog.New(slog.NewJSONHandler(cmd.OutOrStdout(), &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return nil
}
