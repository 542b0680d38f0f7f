package loaddata

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"voxview/internal/config"
	"voxview/internal/logging"
	"voxview/internal/notifications"
)

// Orchestrator wraps units of load work in a scoped loading counter and owns
// the per-session bookkeeping table. Overlapping loads keep the loading state
// true until the last one finishes; only the 0->1 and ->0 counter transitions
// emit toasts.
type Orchestrator struct {
	mu        sync.Mutex
	active    int
	lastError string
	loaded    int
	sessions  map[Key]*SessionRecord

	resolver *Resolver
	notifier notifications.Service
	logger   *slog.Logger
	budget   time.Duration
}

// Option customizes orchestrator construction.
type Option func(*Orchestrator)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithResolveBudget overrides the image-ID wait budget.
func WithResolveBudget(budget time.Duration) Option {
	return func(o *Orchestrator) {
		if budget > 0 {
			o.budget = budget
		}
	}
}

// New constructs an orchestrator. The resolve budget defaults to the
// configured interval times attempts (10ms x 100 out of the box).
func New(cfg *config.Config, notifier notifications.Service, opts ...Option) *Orchestrator {
	budget := time.Duration(cfg.LoadData.ResolveIntervalMillis) * time.Millisecond *
		time.Duration(cfg.LoadData.ResolveAttempts)
	o := &Orchestrator{
		sessions: make(map[Key]*SessionRecord),
		resolver: NewResolver(),
		notifier: notifier,
		logger:   logging.NewNop(),
		budget:   budget,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.WithComponent(o.logger, "loaddata")
	return o
}

// Resolver exposes the image-ID future so the import pipeline can resolve
// keys as volumes land.
func (o *Orchestrator) Resolver() *Resolver { return o.resolver }

// Loading reports whether any load is in flight.
func (o *Orchestrator) Loading() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active > 0
}

// RecordError stores an aggregate error message for the terminal toast.
func (o *Orchestrator) RecordError(message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastError = message
}

// RecordLoaded counts datasets applied by a finished load, reported in the
// terminal success toast.
func (o *Orchestrator) RecordLoaded(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.loaded += n
}

// Run executes one unit of load work inside the loading counter. The counter
// is decremented in all outcomes; the terminal toast fires only when the
// last overlapping load finishes.
func (o *Orchestrator) Run(ctx context.Context, work func(context.Context) error) error {
	o.begin(ctx)
	defer o.finish(ctx)
	return work(ctx)
}

func (o *Orchestrator) begin(ctx context.Context) {
	o.mu.Lock()
	o.active++
	first := o.active == 1
	o.mu.Unlock()

	if first {
		if err := o.notifier.NotifyLoading(ctx); err != nil {
			o.logger.Warn("loading toast failed", logging.Error(err))
		}
	}
}

func (o *Orchestrator) finish(ctx context.Context) {
	o.mu.Lock()
	if o.active > 0 {
		o.active--
	}
	last := o.active == 0
	message := o.lastError
	loaded := o.loaded
	if last {
		o.lastError = ""
		o.loaded = 0
	}
	o.mu.Unlock()

	if !last {
		return
	}
	var err error
	if message != "" {
		err = o.notifier.NotifyLoadFailed(ctx, message)
	} else {
		err = o.notifier.NotifyLoadSucceeded(ctx, loaded)
	}
	if err != nil {
		o.logger.Warn("terminal toast failed", logging.Error(err))
	}
}

// MarkSessionStarted creates or merges the session record for a key before
// any asynchronous import step runs, so concurrent readers can observe that
// the session exists.
func (o *Orchestrator) MarkSessionStarted(key Key, update SessionUpdate) {
	if key == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	record, ok := o.sessions[key]
	if !ok {
		record = &SessionRecord{}
		o.sessions[key] = record
	}
	record.merge(update)
}

// MergeSession applies a partial update to an existing session. Unknown keys
// create the record, matching MarkSessionStarted semantics.
func (o *Orchestrator) MergeSession(key Key, update SessionUpdate) {
	o.MarkSessionStarted(key, update)
}

// Session returns a copy of the record for a key.
func (o *Orchestrator) Session(key Key) (SessionRecord, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	record, ok := o.sessions[key]
	if !ok {
		return SessionRecord{}, false
	}
	return *record, true
}

// ResolveImageID records that a key's primary image ID became available and
// folds it into the session record.
func (o *Orchestrator) ResolveImageID(key Key, imageID string) {
	if key == "" || imageID == "" {
		return
	}
	o.MergeSession(key, SessionUpdate{ImageID: imageID})
	o.resolver.Resolve(key, imageID)
}

// AwaitImageID waits for a key's primary image ID within the configured
// budget. Giving up is silent; the caller proceeds without the ID.
func (o *Orchestrator) AwaitImageID(ctx context.Context, key Key) (string, bool) {
	id, ok := o.resolver.Await(ctx, key, o.budget)
	if !ok {
		o.logger.Debug("image ID never resolved",
			logging.String(logging.FieldSession, string(key)),
			logging.Duration("budget", o.budget))
		return "", false
	}
	o.MergeSession(key, SessionUpdate{ImageID: id})
	return id, true
}
