package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/MeKo-Tech/rcnneval/internal/dataset"
	"github.com/MeKo-Tech/rcnneval/internal/synth"
	"github.com/MeKo-Tech/rcnneval/internal/testutil"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir  = flag.String("out", "testdata/synthetic", "Directory relative to the project root")
		name    = flag.String("dataset", "kitti_val", "Registered dataset name the manifest is written for")
		count   = flag.Int("images", 4, "Number of scenes to render")
		verbose = flag.Bool("v", false, "Verbose output")
		help    = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate a synthetic dataset with recorded network outputs.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                          # kitti_val with 4 scenes\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -dataset voc_2007_test   # manifest for another name\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nThen run:\n")
		fmt.Fprintf(os.Stderr, "  rcnneval --config testdata/synthetic/rcnneval.yaml evaluate --dataset kitti_val \\\n")
		fmt.Fprintf(os.Stderr, "    --data-dir testdata/synthetic --oracle replay --replay testdata/synthetic/replay.yaml\n")
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	if !slices.Contains(dataset.List(), *name) {
		slog.Error("Dataset is not registered", "dataset", *name)
		os.Exit(1)
	}

	root, err := testutil.GetProjectRoot()
	if err != nil {
		slog.Error("Failed to find project root", "error", err)
		os.Exit(1)
	}
	dir := filepath.Join(root, *outDir)

	if *verbose {
		slog.Info("Options", "dir", dir, "dataset", *name, "images", *count)
	}

	fx, err := synth.Write(dir, *name, *count)
	if err != nil {
		slog.Error("Failed to generate fixture", "error", err)
		os.Exit(1)
	}

	if err := writeDescription(fx); err != nil {
		slog.Error("Failed to write fixture description", "error", err)
		os.Exit(1)
	}

	slog.Info("Synthetic fixture generated",
		"dataset", fx.Dataset,
		"images", fx.NumImages,
		"manifest", fx.Manifest,
		"replay", fx.Replay,
		"config", fx.Config)
}

// writeDescription records the fixture layout next to it as fixture.json.
func writeDescription(fx synth.Fixture) error {
	data, err := json.MarshalIndent(fx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal fixture: %w", err)
	}
	path := filepath.Join(fx.Dir, "fixture.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
