package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDICOMWeb(); err != nil {
		return err
	}
	if err := c.validateImport(); err != nil {
		return err
	}
	if err := c.validateWindowing(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDICOMWeb() error {
	if c.DICOMWeb.URL == "" {
		return nil
	}
	parsed, err := url.Parse(c.DICOMWeb.URL)
	if err != nil {
		return fmt.Errorf("dicomweb.url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("dicomweb.url must be http or https, got %q", c.DICOMWeb.URL)
	}
	return nil
}

func (c *Config) validateImport() error {
	if strings.ContainsAny(c.Import.SegmentationExtension, "./\\") {
		return fmt.Errorf("import.segmentation_extension must be a bare token, got %q", c.Import.SegmentationExtension)
	}
	return nil
}

func (c *Config) validateWindowing() error {
	for name, percentile := range c.Windowing.Presets {
		if percentile < 0 || percentile >= 50 {
			return fmt.Errorf("windowing.presets[%s]: percentile must be in [0, 50), got %v", name, percentile)
		}
	}
	if _, ok := c.Windowing.Presets[c.Windowing.ActivePreset]; !ok {
		return fmt.Errorf("windowing.active_preset %q has no preset entry", c.Windowing.ActivePreset)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
}
