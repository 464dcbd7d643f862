// Package support holds the step definitions of the CLI feature suite.
package support

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/rcnneval/internal/synth"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Command execution state
	LastCommand  string
	LastOutput   string
	LastError    error
	LastExitCode int
	LastDuration time.Duration

	// Test environment
	TempDir    string
	DataDir    string
	OutputDir  string
	ConfigFile string
	ReplayFile string

	// Fixture written by the dataset steps, nil until one is
	Fixture *synth.Fixture
}

// NewTestContext creates a context rooted in a fresh temporary directory.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "rcnneval-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &TestContext{
		TempDir:   tempDir,
		DataDir:   filepath.Join(tempDir, "data"),
		OutputDir: filepath.Join(tempDir, "output"),
	}, nil
}

// Cleanup removes the scenario's temporary directory.
func (testCtx *TestContext) Cleanup() error {
	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err)
	}
	return nil
}

// substitute expands the {placeholders} feature files may use in commands and paths.
func (testCtx *TestContext) substitute(s string) string {
	return strings.NewReplacer(
		"{temp_dir}", testCtx.TempDir,
		"{data_dir}", testCtx.DataDir,
		"{output_dir}", testCtx.OutputDir,
		"{config}", testCtx.ConfigFile,
		"{replay}", testCtx.ReplayFile,
	).Replace(s)
}
