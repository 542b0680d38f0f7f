package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voxview/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadAppliesDefaultsForMissingKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[dicomweb]
url = "https://pacs.example.org/dicom-web/"

[import]
segmentation_extension = "label"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("config file should be reported as existing")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.DICOMWeb.URL != "https://pacs.example.org/dicom-web" {
		t.Fatalf("dicomweb url not trimmed: %q", cfg.DICOMWeb.URL)
	}
	if cfg.Import.SegmentationExtension != "label" {
		t.Fatalf("segmentation extension = %q", cfg.Import.SegmentationExtension)
	}
	if cfg.Import.Concurrency <= 0 {
		t.Fatal("concurrency default not applied")
	}
	if cfg.Windowing.HistogramBins <= 0 {
		t.Fatal("histogram bins default not applied")
	}
	if cfg.LoadData.ResolveAttempts != 100 || cfg.LoadData.ResolveIntervalMillis != 10 {
		t.Fatalf("resolve defaults not applied: %+v", cfg.LoadData)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantSub string
	}{
		{
			name:    "bad dicomweb scheme",
			content: "[dicomweb]\nurl = \"ftp://pacs\"\n",
			wantSub: "dicomweb.url",
		},
		{
			name:    "segmentation token with dot",
			content: "[import]\nsegmentation_extension = \".seg\"\n",
			wantSub: "segmentation_extension",
		},
		{
			name:    "unknown active preset",
			content: "[windowing]\nactive_preset = \"missing\"\n",
			wantSub: "active_preset",
		},
		{
			name:    "bad log format",
			content: "[logging]\nformat = \"xml\"\n",
			wantSub: "logging.format",
		},
		{
			name:    "percentile out of range",
			content: "[windowing.presets]\ndefault = 75.0\n",
			wantSub: "percentile",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("error %q missing %q", err, tc.wantSub)
			}
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("missing config should not report existing")
	}
	if cfg.Import.SegmentationExtension != "seg" {
		t.Fatalf("default segmentation extension = %q", cfg.Import.SegmentationExtension)
	}
}

func TestSampleConfigParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := os.WriteFile(path, []byte(config.SampleConfig()), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
}
