package membership

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"
)

// ErrAlreadyStarted is returned by Start on a running Watcher.
var ErrAlreadyStarted = errors.New("watcher already started")

// Watcher polls a MemberSource and applies the difference to a Ring.
type Watcher struct {
	ring    Ring
	source  MemberSource
	options options

	mu     sync.Mutex // Serializes reconciles and guards cancel/done
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a new Watcher.
func NewWatcher(ring Ring, source MemberSource, opts ...Option) *Watcher {
	var options = defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &Watcher{
		ring:    ring,
		source:  source,
		options: options,
	}
}

// Start reconciles once and then keeps polling in the background.
// The first reconcile uses the caller's context and its error is returned.
// The poll worker runs with its own context until Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	var started = w.cancel != nil
	w.mu.Unlock()

	if started {
		return ErrAlreadyStarted
	}

	if err := w.Reconcile(ctx); err != nil {
		return fmt.Errorf("failed initial reconcile: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return ErrAlreadyStarted
	}

	var workerCtx context.Context
	workerCtx, w.cancel = context.WithCancel(context.Background())
	w.done = make(chan struct{})

	go w.pollWorker(workerCtx, w.done)

	w.options.logger.Info("membership watcher started",
		"poll_interval", w.options.pollInterval,
		"nodes", len(w.ring.Nodes()))

	return nil
}

// Stop cancels the poll worker and waits for it to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	var (
		cancel = w.cancel
		done   = w.done
	)
	w.cancel = nil
	w.done = nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}

// Reconcile lists the desired members and adds, grows, or removes ring nodes to match.
// A failure on one member does not stop the others; all failures are joined.
func (w *Watcher) Reconcile(ctx context.Context) error {
	var members, err = w.source.ListMembers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list members: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var (
		desired = make(map[string]uint32, len(members))
		current = make(map[string]uint32)
		errs    []error
	)

	for _, member := range members {
		var count = member.VirtualCount
		if count == 0 {
			count = w.options.defaultVirtualCount
		}
		desired[member.Address] = count
	}

	for _, node := range w.ring.Nodes() {
		current[node.ID] = uint32(node.VirtualNodes)
	}

	for _, id := range slices.Sorted(maps.Keys(current)) {
		if _, keep := desired[id]; keep {
			continue
		}
		if err := w.ring.RemoveNode(id); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", id, err))
			continue
		}
		w.options.logger.Info("member left", "address", id)
	}

	for _, address := range slices.Sorted(maps.Keys(desired)) {
		var (
			want      = desired[address]
			have, has = current[address]
		)

		switch {
		case !has:
			if err := w.ring.AddNode(address, want); err != nil {
				errs = append(errs, fmt.Errorf("failed to add %s: %w", address, err))
				continue
			}
			w.options.logger.Info("member joined", "address", address, "vnodes", want)

		case want > have:
			if err := w.ring.AddNode(address, want-have); err != nil {
				errs = append(errs, fmt.Errorf("failed to grow %s: %w", address, err))
				continue
			}
			w.options.logger.Info("member grew", "address", address, "from", have, "to", want)

		case want < have:
			// A node only grows in place; shrinking re-places it from scratch.
			if err := w.ring.RemoveNode(address); err != nil {
				errs = append(errs, fmt.Errorf("failed to shrink %s: %w", address, err))
				continue
			}
			if err := w.ring.AddNode(address, want); err != nil {
				// Absent until a later reconcile adds it back.
				w.options.logger.Error("member missing from ring after shrink",
					"address", address, "vnodes", want, "error", err)
				errs = append(errs, fmt.Errorf("failed to re-add %s: %w", address, err))
				continue
			}
			w.options.logger.Info("member shrank", "address", address, "from", have, "to", want)
		}
	}

	return errors.Join(errs...)
}

// pollWorker periodically reconciles the ring with the member source.
func (w *Watcher) pollWorker(ctx context.Context, done chan struct{}) {
	defer close(done)

	var ticker = time.NewTicker(w.options.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Reconcile(ctx); err != nil {
				w.options.logger.Error("failed to reconcile membership", "error", err)
			}
		}
	}
}
