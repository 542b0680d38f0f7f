package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDICOMWeb()
	c.normalizeImport()
	c.normalizeWindowing()
	c.normalizeLoadData()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDICOMWeb() {
	c.DICOMWeb.URL = strings.TrimRight(strings.TrimSpace(c.DICOMWeb.URL), "/")
	if c.DICOMWeb.RequestTimeout <= 0 {
		c.DICOMWeb.RequestTimeout = defaultDICOMWebTimeout
	}
	if c.DICOMWeb.RatePerSecond <= 0 {
		c.DICOMWeb.RatePerSecond = defaultDICOMWebRate
	}
	if c.DICOMWeb.RateBurst <= 0 {
		c.DICOMWeb.RateBurst = defaultDICOMWebBurst
	}
}

func (c *Config) normalizeImport() {
	c.Import.SegmentationExtension = strings.TrimSpace(c.Import.SegmentationExtension)
	if c.Import.Concurrency <= 0 {
		c.Import.Concurrency = defaultImportConcurrency
	}
}

func (c *Config) normalizeWindowing() {
	if c.Windowing.HistogramBins <= 0 {
		c.Windowing.HistogramBins = defaultHistogramBins
	}
	if len(c.Windowing.Presets) == 0 {
		c.Windowing.Presets = Default().Windowing.Presets
	}
	if strings.TrimSpace(c.Windowing.ActivePreset) == "" {
		c.Windowing.ActivePreset = defaultActivePreset
	}
}

func (c *Config) normalizeLoadData() {
	if c.LoadData.ResolveIntervalMillis <= 0 {
		c.LoadData.ResolveIntervalMillis = defaultResolveInterval
	}
	if c.LoadData.ResolveAttempts <= 0 {
		c.LoadData.ResolveAttempts = defaultResolveAttempts
	}
}

func (c *Config) normalizeLogging() {
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaultLogFormat
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", trimmed, err)
	}
	return abs, nil
}
