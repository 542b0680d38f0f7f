package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"voxview/internal/bridge"
	"voxview/internal/catalog"
	"voxview/internal/config"
	"voxview/internal/datasource"
	"voxview/internal/dicomweb"
	"voxview/internal/importer"
	"voxview/internal/loaddata"
	"voxview/internal/logging"
	"voxview/internal/notifications"
	"voxview/internal/selection"
	"voxview/internal/windowing"
)

// Daemon hosts the long-running bridge loop: it mounts the event bus,
// translates load events into import batches, and enforces single-instance
// execution through a file lock.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *catalog.Store

	emitter      *bridge.Emitter
	bus          *bridge.Bridge
	orchestrator *loaddata.Orchestrator
	pipeline     *importer.Pipeline
	engine       *selection.Engine
	windows      *windowing.Initializer

	lockPath string
	lock     *flock.Flock

	running     atomic.Bool
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	loads       sync.WaitGroup
}

// New constructs a daemon with initialized collaborators.
func New(cfg *config.Config, store *catalog.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, and logger")
	}

	emitter := bridge.NewEmitter()
	notifier := notifications.NewService(cfg)

	var pipelineOpts []importer.Option
	pipelineOpts = append(pipelineOpts,
		importer.WithConcurrency(cfg.Import.Concurrency),
		importer.WithLogger(logger))
	if cfg.DICOMWeb.URL != "" {
		web := dicomweb.ClientForURL(cfg.DICOMWeb.URL,
			dicomweb.WithRate(cfg.DICOMWeb.RatePerSecond, cfg.DICOMWeb.RateBurst),
			dicomweb.WithLogger(logger))
		pipelineOpts = append(pipelineOpts, importer.WithDICOMWebClient(web))
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "voxview.lock")
	return &Daemon{
		cfg:          cfg,
		logger:       logging.WithComponent(logger, "daemon"),
		store:        store,
		emitter:      emitter,
		bus:          bridge.New(cfg, emitter, bridge.WithLogger(logger)),
		orchestrator: loaddata.New(cfg, notifier, loaddata.WithLogger(logger)),
		pipeline:     importer.New(store, pipelineOpts...),
		engine: selection.New(store, store, store, store,
			cfg.Import.SegmentationExtension, selection.WithLogger(logger)),
		windows:  windowing.New(cfg, windowing.WithLogger(logger)),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Bridge exposes the event bus endpoint for handshake delivery.
func (d *Daemon) Bridge() *bridge.Bridge { return d.bus }

// Orchestrator exposes the load bookkeeping surface.
func (d *Daemon) Orchestrator() *loaddata.Orchestrator { return d.orchestrator }

// Windowing exposes the per-volume window-level state.
func (d *Daemon) Windowing() *windowing.Initializer { return d.windows }

// Start acquires the instance lock and mounts the bridge.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another voxview instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.unsubscribe = d.emitter.Subscribe(bridge.ChannelLoad, func(payload []byte) {
		d.loads.Add(1)
		go func() {
			defer d.loads.Done()
			d.handleLoad(d.ctx, payload)
		}()
	})
	d.bus.Mount()

	d.running.Store(true)
	d.logger.Info("voxview daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop unmounts the bridge, waits for in-flight loads, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.unsubscribe != nil {
		d.unsubscribe()
		d.unsubscribe = nil
	}
	d.bus.Unmount()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.loads.Wait()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release instance lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("voxview daemon stopped")
}

// Close releases every resource the daemon holds.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether Start has completed without a matching Stop.
func (d *Daemon) Running() bool { return d.running.Load() }

// handleLoad runs one bus-triggered load end to end: normalize the payload,
// import the batch, apply primary selection, and resolve the session's image
// ID. Failures are folded into the terminal toast, never returned.
func (d *Daemon) handleLoad(ctx context.Context, payload []byte) {
	var request bridge.LoadRequest
	if err := json.Unmarshal(payload, &request); err != nil {
		d.logger.Warn("malformed load payload", logging.Error(err))
		return
	}
	if len(request.URLs) == 0 {
		d.logger.Debug("load event with no urls ignored")
		return
	}

	key := loaddata.Key(request.UID)
	d.orchestrator.MarkSessionStarted(key, loaddata.SessionUpdate{
		LayoutName:    request.Layout,
		SliceAxial:    request.SliceAxial,
		SliceCoronal:  request.SliceCoronal,
		SliceSagittal: request.SliceSagittal,
	})

	err := d.orchestrator.Run(ctx, func(ctx context.Context) error {
		sources := datasource.NormalizeNamed(request.URLs, request.Names)
		batch, err := d.pipeline.ImportBatch(ctx, sources)
		if err != nil {
			d.orchestrator.RecordError(err.Error())
			return err
		}
		if len(batch.Errored) > 0 {
			d.orchestrator.RecordError(selection.ErrorReport(d.logger, batch.Errored))
		}
		if len(batch.Succeeded) == 0 {
			return nil
		}

		primary, err := d.engine.Apply(ctx, batch)
		if err != nil {
			d.orchestrator.RecordError(err.Error())
			return err
		}
		d.orchestrator.ResolveImageID(key, primary.DataID)
		d.applyWindowDefaults(ctx, key, primary.DataID)
		d.orchestrator.RecordLoaded(len(batch.Succeeded))
		return nil
	})
	if err != nil {
		d.logger.Error("bus load failed",
			logging.String(logging.FieldSession, request.UID),
			logging.Error(err))
	}
}

// applyWindowDefaults seeds the primary volume's window level from its DICOM
// tags and marks the session as already window-leveled when a level applied.
func (d *Daemon) applyWindowDefaults(ctx context.Context, key loaddata.Key, dataID string) {
	rec, err := d.store.GetVolume(ctx, dataID)
	if err != nil || rec.WindowWidth == nil || rec.WindowCenter == nil {
		return
	}
	tag := windowing.Level{Width: *rec.WindowWidth, Center: *rec.WindowCenter}
	if _, err := d.windows.Initialize(dataID, nil, &tag); err != nil {
		d.logger.Warn("window level seed failed",
			logging.String(logging.FieldDataID, dataID),
			logging.Error(err))
		return
	}
	d.orchestrator.MergeSession(key, loaddata.SessionUpdate{WLConfigured: true})
}
