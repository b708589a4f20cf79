package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/udisondev/attrpool/internal/attribute"
)

// ErrUnknownOwner is returned by Do for owners that were never registered.
var ErrUnknownOwner = errors.New("unknown owner")

// Loop drives every registered container with a fixed step.
//
// Containers are not safe for concurrent use, so all access goes through the
// loop: ticks and Do callbacks are serialized under one mutex. Listeners run
// inside that lock and must not call back into the loop.
type Loop struct {
	step time.Duration

	mu         sync.Mutex
	containers map[string]*attribute.Container

	ticks    atomic.Uint64
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewLoop creates a loop advancing containers by step on every tick.
func NewLoop(step time.Duration) *Loop {
	return &Loop{
		step:       step,
		containers: make(map[string]*attribute.Container),
		stopCh:     make(chan struct{}),
	}
}

// Register adds a container under owner. Returns false if owner is taken.
func (l *Loop) Register(owner string, c *attribute.Container) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.containers[owner]; exists {
		return false
	}
	l.containers[owner] = c

	slog.Debug("container registered", "owner", owner, "attributes", len(c.Attributes()))
	return true
}

// Unregister removes the container of owner.
func (l *Loop) Unregister(owner string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.containers[owner]; !ok {
		return false
	}
	delete(l.containers, owner)

	slog.Debug("container unregistered", "owner", owner)
	return true
}

// Do runs fn with exclusive access to the container of owner.
func (l *Loop) Do(owner string, fn func(*attribute.Container)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.containers[owner]
	if !ok {
		return fmt.Errorf("owner %q: %w", owner, ErrUnknownOwner)
	}
	fn(c)
	return nil
}

// Owners returns registered owners in sorted order.
func (l *Loop) Owners() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Sorted(maps.Keys(l.containers))
}

// Count returns the number of registered containers.
func (l *Loop) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.containers)
}

// Ticks returns how many steps have run.
func (l *Loop) Ticks() uint64 {
	return l.ticks.Load()
}

// Step advances every container by one fixed step, in owner order.
func (l *Loop) Step() {
	l.mu.Lock()
	defer l.mu.Unlock()

	delta := l.step.Seconds()
	for _, owner := range slices.Sorted(maps.Keys(l.containers)) {
		l.containers[owner].Tick(delta)
	}
	l.ticks.Add(1)
}

// Snapshots captures every container's attribute state.
func (l *Loop) Snapshots() map[string]attribute.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snaps := make(map[string]attribute.Snapshot, len(l.containers))
	for owner, c := range l.containers {
		snaps[owner] = c.ToDictionary()
	}
	return snaps
}

// Start runs the tick loop until ctx is canceled or Stop is called.
func (l *Loop) Start(ctx context.Context) error {
	if l.step <= 0 {
		return fmt.Errorf("invalid step %s", l.step)
	}

	ticker := time.NewTicker(l.step)
	defer ticker.Stop()

	slog.Info("simulation loop started", "step", l.step, "containers", l.Count())

	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation loop stopping", "ticks", l.Ticks())
			return nil

		case <-l.stopCh:
			slog.Info("simulation loop stopped", "ticks", l.Ticks())
			return nil

		case <-ticker.C:
			l.Step()
		}
	}
}

// Stop ends a running Start. Safe to call more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}
