package windowing

import (
	"log/slog"
	"sync"

	"voxview/internal/config"
	"voxview/internal/logging"
	"voxview/internal/services"
)

// Level is a width/center window-level pair, the form DICOM tags and view
// configuration use.
type Level struct {
	Width  float64
	Center float64
}

// LevelFromWindow converts a clipped intensity range to width/center form.
func LevelFromWindow(w Window) Level {
	return Level{Width: w.Width(), Center: w.Center()}
}

type volumeState struct {
	ranges map[string]Window
	active Level
}

// Initializer owns per-volume window-level state. When a volume first loads
// it is seeded from the active percentile preset, then overridden by a DICOM
// tag window if present, then by a runtime-forced level if one was supplied.
// Changing the active preset re-seeds from the computed ranges only; tag and
// forced overrides are not re-derived.
type Initializer struct {
	bins    int
	presets map[string]float64
	forced  *Level
	logger  *slog.Logger

	mu           sync.Mutex
	activePreset string
	volumes      map[string]*volumeState
}

// Option customizes initializer construction.
type Option func(*Initializer)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Initializer) { i.logger = logger }
}

// WithForcedLevel installs a runtime-forced window level that outranks both
// the auto seed and any DICOM tag values.
func WithForcedLevel(level Level) Option {
	return func(i *Initializer) { i.forced = &level }
}

// New constructs an initializer from the windowing configuration.
func New(cfg *config.Config, opts ...Option) *Initializer {
	i := &Initializer{
		bins:         cfg.Windowing.HistogramBins,
		presets:      cfg.Windowing.Presets,
		activePreset: cfg.Windowing.ActivePreset,
		logger:       logging.NewNop(),
		volumes:      make(map[string]*volumeState),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = logging.WithComponent(i.logger, "windowing")
	return i
}

// Initialize computes the preset windows for a newly loaded volume and
// applies the seeding precedence. Samples may be empty when only metadata was
// decoded; the level then comes from the tag or forced override. The tag
// level, when non-nil, carries the volume's explicit DICOM window
// width/center. The resulting active level is returned and becomes the
// volume's reset target.
func (i *Initializer) Initialize(dataID string, samples []float64, tag *Level) (Level, error) {
	var ranges map[string]Window
	if len(samples) > 0 {
		var err error
		ranges, err = ComputeRanges(samples, i.bins, i.presets)
		if err != nil {
			return Level{}, err
		}
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	level, seeded := i.seedLocked(ranges)
	if len(samples) > 0 && !seeded {
		return Level{}, services.Wrap(services.ErrConfiguration, "windowing", "initialize",
			"active preset "+i.activePreset+" not configured", nil)
	}
	if tag != nil {
		level = *tag
		seeded = true
	}
	if i.forced != nil {
		level = *i.forced
		seeded = true
	}
	if !seeded {
		return Level{}, services.Wrap(services.ErrValidation, "windowing", "initialize",
			"no samples and no window overrides for "+dataID, nil)
	}

	i.volumes[dataID] = &volumeState{ranges: ranges, active: level}
	i.logger.Debug("window level initialized",
		logging.String(logging.FieldDataID, dataID),
		logging.Float64("width", level.Width),
		logging.Float64("center", level.Center))
	return level, nil
}

func (i *Initializer) seedLocked(ranges map[string]Window) (Level, bool) {
	window, ok := ranges[i.activePreset]
	if !ok {
		return Level{}, false
	}
	return LevelFromWindow(window), true
}

// SetActivePreset switches the percentile preset and re-seeds every known
// volume from its already computed ranges. Tag and forced overrides applied
// at load time are deliberately not re-applied.
func (i *Initializer) SetActivePreset(name string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.presets[name]; !ok {
		return services.Wrap(services.ErrValidation, "windowing", "preset",
			"unknown preset "+name, nil)
	}
	i.activePreset = name
	for _, state := range i.volumes {
		if window, ok := state.ranges[name]; ok {
			state.active = LevelFromWindow(window)
		}
	}
	return nil
}

// ActivePreset returns the selected preset name.
func (i *Initializer) ActivePreset() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.activePreset
}

// Level returns the current active level for a volume.
func (i *Initializer) Level(dataID string) (Level, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	state, ok := i.volumes[dataID]
	if !ok {
		return Level{}, false
	}
	return state.active, true
}

// Ranges returns the computed preset windows for a volume.
func (i *Initializer) Ranges(dataID string) (map[string]Window, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	state, ok := i.volumes[dataID]
	if !ok {
		return nil, false
	}
	out := make(map[string]Window, len(state.ranges))
	for name, window := range state.ranges {
		out[name] = window
	}
	return out, true
}

// Forget drops the state for a removed volume.
func (i *Initializer) Forget(dataID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.volumes, dataID)
}
