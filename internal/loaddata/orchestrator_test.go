package loaddata_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"voxview/internal/loaddata"
	"voxview/internal/testsupport"
)

type countingNotifier struct {
	mu        sync.Mutex
	loading   int
	succeeded int
	failed    int
	lastError string
	lastCount int
}

func (n *countingNotifier) NotifyLoading(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.loading++
	return nil
}

func (n *countingNotifier) NotifyLoadSucceeded(_ context.Context, datasets int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.succeeded++
	n.lastCount = datasets
	return nil
}

func (n *countingNotifier) NotifyLoadFailed(_ context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed++
	n.lastError = message
	return nil
}

func newOrchestrator(t *testing.T, opts ...loaddata.Option) (*loaddata.Orchestrator, *countingNotifier) {
	t.Helper()
	notifier := &countingNotifier{}
	cfg := testsupport.NewConfig(t)
	return loaddata.New(cfg, notifier, opts...), notifier
}

func TestOverlappingLoadsEmitOneToastPair(t *testing.T) {
	o, notifier := newOrchestrator(t)

	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = o.Run(context.Background(), func(context.Context) error {
				<-release
				return nil
			})
		}()
	}

	// Wait until all five are inside the counter.
	deadline := time.Now().Add(2 * time.Second)
	for !o.Loading() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	if notifier.loading != 1 {
		t.Fatalf("loading toasts = %d, want exactly 1", notifier.loading)
	}
	if notifier.succeeded != 1 {
		t.Fatalf("terminal toasts = %d, want exactly 1", notifier.succeeded)
	}
	if o.Loading() {
		t.Fatal("loading flag should clear after last load")
	}
}

func TestTerminalToastCarriesRecordedError(t *testing.T) {
	o, notifier := newOrchestrator(t)

	_ = o.Run(context.Background(), func(context.Context) error {
		o.RecordError("- scan.nii: truncated")
		return nil
	})

	if notifier.failed != 1 {
		t.Fatalf("failed toasts = %d", notifier.failed)
	}
	if notifier.lastError != "- scan.nii: truncated" {
		t.Fatalf("error message = %q", notifier.lastError)
	}

	// Error cleared on the terminal transition; the next load succeeds.
	_ = o.Run(context.Background(), func(context.Context) error {
		o.RecordLoaded(2)
		return nil
	})
	if notifier.succeeded != 1 || notifier.lastCount != 2 {
		t.Fatalf("second load should succeed cleanly: %+v", notifier)
	}
}

func TestSessionMergeIsCommutativeOverDisjointFields(t *testing.T) {
	layoutFirst, _ := newOrchestrator(t)
	sliceFirst, _ := newOrchestrator(t)
	axial := 12

	layoutFirst.MarkSessionStarted("k", loaddata.SessionUpdate{LayoutName: "quad"})
	layoutFirst.MergeSession("k", loaddata.SessionUpdate{SliceAxial: &axial})

	sliceFirst.MarkSessionStarted("k", loaddata.SessionUpdate{SliceAxial: &axial})
	sliceFirst.MergeSession("k", loaddata.SessionUpdate{LayoutName: "quad"})

	a, _ := layoutFirst.Session("k")
	b, _ := sliceFirst.Session("k")
	if a.LayoutName != b.LayoutName || *a.SliceAxial != *b.SliceAxial {
		t.Fatalf("merge order should not matter: %+v vs %+v", a, b)
	}
}

func TestSessionMergeNeverClearsFields(t *testing.T) {
	o, _ := newOrchestrator(t)
	o.MarkSessionStarted("k", loaddata.SessionUpdate{LayoutName: "quad", WLConfigured: true})
	o.MergeSession("k", loaddata.SessionUpdate{ImageID: "img-1"})

	record, ok := o.Session("k")
	if !ok {
		t.Fatal("session should exist")
	}
	if record.LayoutName != "quad" || !record.WLConfigured || record.ImageID != "img-1" {
		t.Fatalf("merge dropped fields: %+v", record)
	}
}

func TestAwaitImageIDResolves(t *testing.T) {
	o, _ := newOrchestrator(t, loaddata.WithResolveBudget(time.Second))

	go func() {
		time.Sleep(20 * time.Millisecond)
		o.ResolveImageID("k", "img-9")
	}()

	id, ok := o.AwaitImageID(context.Background(), "k")
	if !ok || id != "img-9" {
		t.Fatalf("Await = %q/%v", id, ok)
	}
	record, _ := o.Session("k")
	if record.ImageID != "img-9" {
		t.Fatalf("session image ID = %q", record.ImageID)
	}
}

func TestAwaitImageIDGivesUpSilently(t *testing.T) {
	o, _ := newOrchestrator(t, loaddata.WithResolveBudget(20*time.Millisecond))

	start := time.Now()
	id, ok := o.AwaitImageID(context.Background(), "never")
	if ok || id != "" {
		t.Fatalf("expected silent miss, got %q/%v", id, ok)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("wait exceeded budget by too much: %v", elapsed)
	}
}

func TestResolveFirstWriteWins(t *testing.T) {
	o, _ := newOrchestrator(t, loaddata.WithResolveBudget(time.Second))
	o.ResolveImageID("k", "first")
	o.ResolveImageID("k", "second")

	id, ok := o.AwaitImageID(context.Background(), "k")
	if !ok || id != "first" {
		t.Fatalf("Await = %q/%v, want first resolution to win", id, ok)
	}
}
