package config

const (
	defaultDataDir               = "~/.local/share/voxview/data"
	defaultStagingDir            = "~/.local/share/voxview/staging"
	defaultLogDir                = "~/.local/share/voxview/logs"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultDICOMWebTimeout       = 60
	defaultDICOMWebRate          = 8.0
	defaultDICOMWebBurst         = 4
	defaultSegmentationExtension = "seg"
	defaultImportConcurrency     = 4
	defaultHistogramBins         = 512
	defaultActivePreset          = "default"
	defaultResolveInterval       = 10
	defaultResolveAttempts       = 100
	defaultNotifyTimeout         = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
		},
		DICOMWeb: DICOMWeb{
			RequestTimeout: defaultDICOMWebTimeout,
			RatePerSecond:  defaultDICOMWebRate,
			RateBurst:      defaultDICOMWebBurst,
		},
		Import: Import{
			SegmentationExtension: defaultSegmentationExtension,
			Concurrency:           defaultImportConcurrency,
		},
		Windowing: Windowing{
			HistogramBins: defaultHistogramBins,
			Presets: map[string]float64{
				"default": 1,
				"wide":    0.1,
				"narrow":  5,
			},
			ActivePreset: defaultActivePreset,
		},
		LoadData: LoadData{
			ResolveIntervalMillis: defaultResolveInterval,
			ResolveAttempts:       defaultResolveAttempts,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
