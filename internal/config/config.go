package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
}

// DICOMWeb contains settings for the DICOM-web retrieval client.
type DICOMWeb struct {
	URL            string  `toml:"url"`
	RequestTimeout int     `toml:"request_timeout"`
	RatePerSecond  float64 `toml:"rate_per_second"`
	RateBurst      int     `toml:"rate_burst"`
}

// Import contains settings for the batch import pipeline.
type Import struct {
	// SegmentationExtension is the dot-separated filename token that marks
	// a non-DICOM source as a segmentation (e.g. "seg" in scan.seg.nii).
	SegmentationExtension string `toml:"segmentation_extension"`
	Concurrency           int    `toml:"concurrency"`
}

// Windowing contains settings for intensity auto-range computation.
type Windowing struct {
	HistogramBins int `toml:"histogram_bins"`
	// Presets maps a preset name to the percentile clipped from each tail.
	Presets      map[string]float64 `toml:"presets"`
	ActivePreset string             `toml:"active_preset"`
}

// Bridge contains settings for the cross-context event bus bridge.
type Bridge struct {
	Location     string `toml:"location"`
	ProjectID    string `toml:"project_id"`
	DatasetID    string `toml:"dataset_id"`
	UID          string `toml:"uid"`
	PipelineID   string `toml:"pipeline_id"`
	ManualNodeID string `toml:"manual_node_id"`
	// HostReadyTimeout caps the wait for the embedding host, in seconds.
	// Zero means wait until the bridge is torn down.
	HostReadyTimeout int `toml:"host_ready_timeout"`
}

// LoadData contains settings for load orchestration bookkeeping.
type LoadData struct {
	ResolveIntervalMillis int `toml:"resolve_interval_millis"`
	ResolveAttempts       int `toml:"resolve_attempts"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for voxview.
//
// Configuration sections by subsystem:
//   - Paths: data/staging/log directories
//   - DICOMWeb: remote DICOM-web endpoint and client pacing
//   - Import: batch import pipeline behavior
//   - Windowing: intensity auto-range presets
//   - Bridge: peer identity and host handshake settings
//   - LoadData: session bookkeeping and resolution budgets
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	DICOMWeb      DICOMWeb      `toml:"dicomweb"`
	Import        Import        `toml:"import"`
	Windowing     Windowing     `toml:"windowing"`
	Bridge        Bridge        `toml:"bridge"`
	LoadData      LoadData      `toml:"load_data"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/voxview/config.toml")
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("voxview.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// ExpandPath resolves a leading ~ and returns an absolute path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

// CreateSample writes the embedded sample configuration to path.
func CreateSample(path string) error {
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// EnsureDirectories creates the directories voxview writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.StagingDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}
