// Package config loads rcnneval settings from files, environment variables
// and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "rcnneval"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "RCNNEVAL"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so that flags
// bound by the root command take part in resolution.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWith creates a loader on v.
func NewLoaderWith(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load searches the standard paths for rcnneval.yaml, applies environment
// variables and defaults, and validates the result.
func (l *Loader) Load() (*Config, error) {
	return l.LoadWithFile("")
}

// LoadWithFile loads configuration from a specific file path. An empty path
// searches the standard locations and tolerates a missing file.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	config, err := l.read(configFile)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

func (l *Loader) read(configFile string) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, continue with defaults and env vars
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) any {
	return l.v.Get(key)
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables configures environment variable handling.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	// Replace dots and dashes with underscores in env var names
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults sets default values for all configuration options.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	// Global settings
	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("verbose", defaults.Verbose)
	l.v.SetDefault("dataset", defaults.Dataset)
	l.v.SetDefault("data_dir", defaults.DataDir)
	l.v.SetDefault("output_dir", defaults.OutputDir)
	l.v.SetDefault("reuse_detections", defaults.ReuseDetections)

	// Scoring mode
	l.v.SetDefault("is_rpn", defaults.IsRPN)
	l.v.SetDefault("multiscale", defaults.Multiscale)
	l.v.SetDefault("extrapolating", defaults.Extrapolating)
	l.v.SetDefault("pixel_means", defaults.PixelMeans)
	l.v.SetDefault("dedup_boxes", defaults.DedupBoxes)
	l.v.SetDefault("eps", defaults.Eps)

	// Test defaults
	l.v.SetDefault("test.scales_base", defaults.Test.ScalesBase)
	l.v.SetDefault("test.scales", defaults.Test.Scales)
	l.v.SetDefault("test.svm", defaults.Test.SVM)
	l.v.SetDefault("test.bbox_reg", defaults.Test.BBoxReg)
	l.v.SetDefault("test.subcls", defaults.Test.Subcls)
	l.v.SetDefault("test.viewpoint", defaults.Test.Viewpoint)
	l.v.SetDefault("test.is_patch", defaults.Test.IsPatch)
	l.v.SetDefault("test.nms", defaults.Test.NMS)
	l.v.SetDefault("test.det_threshold", defaults.Test.DetThreshold)
	l.v.SetDefault("test.roi_num", defaults.Test.RoiNum)
	l.v.SetDefault("test.patch_batch_size", defaults.Test.PatchBatchSize)
	l.v.SetDefault("train.scales", defaults.Train.Scales)

	// Grid defaults
	l.v.SetDefault("grid.stride", defaults.Grid.Stride)
	l.v.SetDefault("grid.aspects", defaults.Grid.Aspects)

	// Oracle defaults
	l.v.SetDefault("oracle.backend", defaults.Oracle.Backend)
	l.v.SetDefault("oracle.model_path", defaults.Oracle.ModelPath)
	l.v.SetDefault("oracle.library_path", defaults.Oracle.LibraryPath)
	l.v.SetDefault("oracle.replay_path", defaults.Oracle.ReplayPath)
	l.v.SetDefault("oracle.num_threads", defaults.Oracle.NumThreads)

	// Monitor defaults
	l.v.SetDefault("monitor.addr", defaults.Monitor.Addr)
	l.v.SetDefault("monitor.metrics_file", defaults.Monitor.MetricsFile)
}

// GetResolvedConfig returns the current resolved configuration for debugging.
func (l *Loader) GetResolvedConfig() map[string]any {
	return l.v.AllSettings()
}

// WriteConfigToFile writes the current configuration to a file.
func (l *Loader) WriteConfigToFile(filename string) error {
	return l.v.WriteConfigAs(filename)
}

// GenerateDefaultConfigFile generates a default configuration file.
func GenerateDefaultConfigFile(filename string) error {
	loader := NewLoaderWith(viper.New())
	loader.setDefaults()

	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	return loader.WriteConfigToFile(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}

	return append(paths, "/etc/"+ConfigFileName)
}
