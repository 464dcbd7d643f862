package oracle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/yalue/onnxruntime_go"
)

const (
	osLinux    = "linux"
	osDarwin   = "darwin"
	osWindows  = "windows"
	libLinux   = "libonnxruntime.so"
	libDarwin  = "libonnxruntime.dylib"
	libWindows = "onnxruntime.dll"
)

// systemLibraryPaths are tried before any project-relative location.
var systemLibraryPaths = []string{
	"/usr/local/lib/libonnxruntime.so",
	"/usr/lib/libonnxruntime.so",
	"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
}

// libraryName returns the runtime library filename for the current OS.
func libraryName() (string, error) {
	switch runtime.GOOS {
	case osLinux:
		return libLinux, nil
	case osDarwin:
		return libDarwin, nil
	case osWindows:
		return libWindows, nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// findProjectRoot walks up from the working directory to the nearest go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root")
		}
		dir = parent
	}
}

// ResolveLibraryPath picks the ONNX Runtime shared library: an explicit path,
// then the system locations, then <project>/onnxruntime/lib.
func ResolveLibraryPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("ONNX Runtime library not found at %s: %w", explicit, err)
		}
		return explicit, nil
	}
	for _, p := range systemLibraryPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	root, err := findProjectRoot()
	if err != nil {
		return "", err
	}
	name, err := libraryName()
	if err != nil {
		return "", err
	}
	p := filepath.Join(root, "onnxruntime", "lib", name)
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("ONNX Runtime library not found at %s", p)
	}
	return p, nil
}

// initEnvironment loads the runtime once per process.
func initEnvironment(libraryPath string) error {
	if onnxruntime_go.IsInitialized() {
		return nil
	}
	p, err := ResolveLibraryPath(libraryPath)
	if err != nil {
		return err
	}
	onnxruntime_go.SetSharedLibraryPath(p)
	if err := onnxruntime_go.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}
	return nil
}
