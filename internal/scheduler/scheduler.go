// Package scheduler drives the outer tick loop: sync-pull, scan, dispatch,
// then a post-batch commit/push (delegated to the Dispatcher). Grounded on
// the teacher's pkg/dispatch runStrategy convention — an explicit
// interface separating "how the loop executes" from the Dispatcher
// itself — generalized here to a single concrete ticker since Accord has
// no goroutine-vs-step-by-step execution mode to select between.
package scheduler

import (
	"context"
	"sync"
	"time"

	"accord/internal/dispatch"
	"accord/internal/eventbus"
	"accord/internal/scanner"
	"accord/internal/syncer"
	"accord/pkg/logx"
)

var logger = logx.NewLogger("scheduler")

// Scheduler runs a single-threaded outer loop. Ticks are non-reentrant: if
// a tick is still running when the next one is due, the next is dropped
// rather than queued, per spec §5.
type Scheduler struct {
	accordDir    string
	services     []string
	tickInterval time.Duration
	dispatcher   *dispatch.Dispatcher
	sync         *syncer.Syncer
	bus          *eventbus.Bus

	mu      sync.Mutex
	running bool

	triggerCh chan struct{}
	stopCh    chan struct{}
	stopOnce  sync.Once
	doneCh    chan struct{}
}

// New constructs a Scheduler over accordDir, ticking every interval.
func New(accordDir string, services []string, interval time.Duration, d *dispatch.Dispatcher, s *syncer.Syncer, bus *eventbus.Bus) *Scheduler {
	return &Scheduler{
		accordDir:    accordDir,
		services:     services,
		tickInterval: interval,
		dispatcher:   d,
		sync:         s,
		bus:          bus,
		triggerCh:    make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start runs tick() immediately, then every interval, until ctx is done
// or Stop is called. It returns immediately; the loop runs in its own
// goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.tickInterval)
	go func() {
		defer ticker.Stop()
		defer close(s.doneCh)

		s.runTick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.runTick(ctx)
			case <-s.triggerCh:
				s.runTick(ctx)
			}
		}
	}()
}

// Stop halts the loop and blocks until it has exited.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

// TriggerNow requests an out-of-band tick as soon as the loop is free. If
// a trigger is already pending, this is a no-op — at most one extra tick
// is ever queued.
func (s *Scheduler) TriggerNow() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

// TickResult is the payload of a scheduler:tick event.
type TickResult struct {
	PendingCount   int       `json:"pendingCount"`
	ProcessedCount int       `json:"processedCount"`
	Timestamp      time.Time `json:"timestamp"`
}

// runTick enforces non-reentrancy: a tick already in flight makes this
// call a no-op that returns 0, per spec §4.7.
func (s *Scheduler) runTick(ctx context.Context) int {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		logger.Debug("tick skipped: previous tick still in flight")
		return 0
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	return s.tick(ctx)
}

func (s *Scheduler) tick(ctx context.Context) int {
	if s.sync != nil {
		if err := s.sync.Pull(ctx); err != nil {
			logger.Warn("sync pull failed: %v", err)
		}
		s.bus.Publish(eventbus.TopicSyncPull, nil)
	}

	requests := scanner.ScanInboxes(s.accordDir, s.services)
	completed := scanner.CompletedSet(s.accordDir, s.services)
	pending := scanner.GetDispatchable(requests, completed)
	scanner.SortByPriority(pending)

	processed := s.dispatcher.Dispatch(ctx, pending, false)

	s.bus.Publish(eventbus.TopicSchedulerTick, TickResult{
		PendingCount:   len(pending),
		ProcessedCount: processed,
		Timestamp:      time.Now().UTC(),
	})

	return processed
}
