package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/rcnneval/internal/config"
	"github.com/MeKo-Tech/rcnneval/internal/dataset"
	"github.com/MeKo-Tech/rcnneval/internal/detector"
	"github.com/MeKo-Tech/rcnneval/internal/eval"
	"github.com/MeKo-Tech/rcnneval/internal/monitor"
	"github.com/MeKo-Tech/rcnneval/internal/oracle"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func newEvaluateCommand(a *app) *cobra.Command {
	evalCmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run detection or proposal evaluation over a dataset",
		Long: `Score every image of the selected dataset, store the provisional detections
as detections.gob in the output directory and evaluate the suppressed result.

With --proposals the network's dense window scores are ranked instead and
the proposal evaluator runs on the unsuppressed table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runEvaluate(ctx, cmd.OutOrStdout(), a.cfg)
		},
	}

	f := evalCmd.Flags()
	f.String("dataset", "", "registered dataset name (see 'rcnneval datasets')")
	f.String("data-dir", "data", "directory holding the dataset manifests")
	f.String("output-dir", "output", "directory for detections.gob and report.yaml")
	f.Bool("reuse", false, "reuse a previous detections.gob when it matches the dataset")
	f.Bool("proposals", false, "evaluate region proposals instead of detections")
	f.String("oracle", config.BackendONNX, "scoring backend (onnx, replay)")
	f.String("model", "", "ONNX model path")
	f.String("replay", "", "recorded network outputs (YAML)")
	f.String("monitor-addr", "", "serve /metrics and /progress on this address")
	f.String("metrics-file", "", "write Prometheus text metrics here after the run")

	for key, flag := range map[string]string{
		"dataset":              "dataset",
		"data_dir":             "data-dir",
		"output_dir":           "output-dir",
		"reuse_detections":     "reuse",
		"is_rpn":               "proposals",
		"oracle.backend":       "oracle",
		"oracle.model_path":    "model",
		"oracle.replay_path":   "replay",
		"monitor.addr":         "monitor-addr",
		"monitor.metrics_file": "metrics-file",
	} {
		_ = a.v.BindPFlag(key, f.Lookup(flag))
	}
	return evalCmd
}

// openOracle builds the configured backend. The returned closer is never nil.
func openOracle(cfg config.OracleConfig) (oracle.Oracle, func(), error) {
	switch cfg.Backend {
	case config.BackendReplay:
		r, err := oracle.LoadReplay(cfg.ReplayPath)
		if err != nil {
			return nil, nil, err
		}
		return r, func() {}, nil
	default:
		s, err := oracle.NewSession(oracle.SessionConfig{
			ModelPath:   cfg.ModelPath,
			LibraryPath: cfg.LibraryPath,
			NumThreads:  cfg.NumThreads,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open model: %w", err)
		}
		return s, func() {
			if err := s.Close(); err != nil {
				slog.Warn("Failed to close model session", "error", err)
			}
		}, nil
	}
}

func runEvaluate(ctx context.Context, out io.Writer, cfg *config.Config) error {
	if cfg.Dataset == "" {
		return errors.New("no dataset selected (use --dataset)")
	}
	ds, err := dataset.Get(cfg.Dataset, cfg.DataDir)
	if err != nil {
		return err
	}

	metrics := monitor.NewMetrics()
	o, closeOracle, err := openOracle(cfg.Oracle)
	if err != nil {
		return err
	}
	defer closeOracle()

	det, err := detector.New(monitor.InstrumentOracle(o, metrics), cfg.ToDetectorConfig())
	if err != nil {
		return err
	}

	hub := monitor.NewHub(metrics)
	defer hub.Close()
	if cfg.Monitor.Addr != "" {
		srv := monitor.NewServer(cfg.Monitor.Addr, metrics, hub)
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("Monitor shutdown failed", "error", err)
			}
		}()
	}

	driver, err := eval.NewDriver(ds, det, cfg.ToEvalConfig(),
		eval.WithObserver(eval.Observers{metrics, hub}))
	if err != nil {
		return err
	}
	slog.Info("Starting evaluation",
		"dataset", ds.Name(),
		"images", ds.NumImages(),
		"classes", ds.NumClasses(),
		"proposals", cfg.IsRPN,
		"oracle", cfg.Oracle.Backend)

	sum, runErr := driver.Run(ctx)
	if cfg.Monitor.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.Monitor.MetricsFile); err != nil {
			slog.Warn("Failed to write metrics file", "path", cfg.Monitor.MetricsFile, "error", err)
		}
	}
	if runErr != nil {
		return runErr
	}
	return printSummary(out, sum, cfg.OutputDir)
}

func printSummary(w io.Writer, sum eval.Summary, outputDir string) error {
	p := message.NewPrinter(language.English)
	lines := []string{
		p.Sprintf("Dataset:    %s (%s)\n", sum.Dataset, sum.Mode),
		p.Sprintf("Images:     %d\n", sum.Images),
		p.Sprintf("Selected:   %d\n", sum.Selected),
		p.Sprintf("Pruned:     %d\n", sum.Pruned),
		p.Sprintf("Kept:       %d\n", sum.Kept),
		p.Sprintf("Artifact:   %s (reused: %t)\n", sum.Artifact, sum.Reused),
	}
	if !sum.Reused {
		lines = append(lines, p.Sprintf("Timing:     detect %v, misc %v per image\n", sum.DetectAvg, sum.MiscAvg))
	}
	// a report left by an earlier run must not be shown for a skipped evaluation
	if sum.Evaluated {
		rep, err := dataset.ReadReport(outputDir)
		if err != nil {
			return err
		}
		if sum.Mode == eval.ModeProposals {
			for _, r := range rep.ProposalRecall {
				lines = append(lines, p.Sprintf("Recall@%.1f: %.4f\n", r.IoU, r.Recall))
			}
		} else {
			lines = append(lines, p.Sprintf("Mean AP:    %.4f\n", rep.MeanAP))
		}
	} else {
		lines = append(lines, p.Sprintf("Evaluation: skipped for %s\n", sum.Dataset))
	}
	for _, l := range lines {
		if _, err := io.WriteString(w, l); err != nil {
			return err
		}
	}
	return nil
}
