// Package dispatch implements the Dispatcher: a bounded worker pool that
// assigns priority-ordered pending requests to idle Workers while
// enforcing Accord's per-service and per-working-directory exclusivity
// invariants. Grounded on the teacher's pkg/dispatch.Dispatcher — its
// mutex-guarded bookkeeping and execution-strategy shape survive; the
// channel-routing machinery does not, since this package's assignment
// decision is a plain per-tick sweep over a priority-sorted slice rather
// than a set of goroutine-driven message queues.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"accord/internal/eventbus"
	"accord/internal/model"
	"accord/internal/syncer"
	"accord/internal/worker"
	"accord/pkg/logx"
	"accord/pkg/metrics"
)

var logger = logx.NewLogger("dispatch")

// Dispatcher owns the WorkerSlot set and assigns requests to idle workers,
// per spec §4.6's invariants: at most one in-flight request per service
// name, at most one per working directory, no more than len(workers)
// in-flight total.
type Dispatcher struct {
	mu             sync.Mutex
	slots          []*model.WorkerSlot
	workers        []*worker.Worker
	serviceConfigs map[string]worker.ServiceConfig
	sync           *syncer.Syncer
	bus            *eventbus.Bus
	metrics        *metrics.Recorder

	shuttingDown atomic.Bool
	inFlight     sync.WaitGroup
}

// New constructs a Dispatcher with workerCount Workers, all sharing cfg
// (and therefore its SessionManager, EventBus, and HistoryLog writer).
func New(workerCount int, cfg worker.Config, sync *syncer.Syncer, bus *eventbus.Bus) *Dispatcher {
	d := &Dispatcher{
		slots:          make([]*model.WorkerSlot, workerCount),
		workers:        make([]*worker.Worker, workerCount),
		serviceConfigs: cfg.ServiceConfigs,
		sync:           sync,
		bus:            bus,
		metrics:        cfg.Metrics,
	}
	for i := 0; i < workerCount; i++ {
		id := fmt.Sprintf("worker-%d", i)
		d.slots[i] = &model.WorkerSlot{WorkerID: id, State: model.WorkerIdle}
		d.workers[i] = worker.New(id, cfg)
	}
	return d
}

// Slots returns the live WorkerSlot set, for status reporting. Callers
// must not mutate the returned slice's elements.
func (d *Dispatcher) Slots() []*model.WorkerSlot {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*model.WorkerSlot, len(d.slots))
	copy(out, d.slots)
	return out
}

type assignment struct {
	workerIdx int
	req       *model.Request
}

// Dispatch assigns as many of pending (assumed already priority-sorted) as
// the exclusivity invariants and idle worker count allow, then — unless
// dryRun — runs every assignment concurrently and awaits completion,
// followed by a single commit and sync-push for the batch. It returns the
// number of assignments made (performed, or in dry-run, assignable).
func (d *Dispatcher) Dispatch(ctx context.Context, pending []*model.Request, dryRun bool) int {
	if d.shuttingDown.Load() {
		return 0
	}
	d.inFlight.Add(1)
	defer d.inFlight.Done()

	assignments := d.planAssignments(pending)
	if d.metrics != nil {
		d.metrics.ObserveDispatchedPerTick(len(assignments))
	}
	if dryRun || len(assignments) == 0 {
		return len(assignments)
	}

	if d.metrics != nil {
		d.metrics.SetActiveWorkers("all", len(assignments))
	}

	var wg sync.WaitGroup
	for _, a := range assignments {
		wg.Add(1)
		go func(a assignment) {
			defer wg.Done()
			d.workers[a.workerIdx].ProcessRequest(ctx, d.slots[a.workerIdx], a.req)
		}(a)
	}
	wg.Wait()
	if d.metrics != nil {
		d.metrics.SetActiveWorkers("all", 0)
	}

	if d.sync != nil {
		if _, err := d.sync.Commit(ctx, fmt.Sprintf("dispatcher processed %d request(s)", len(assignments))); err != nil {
			logger.Warn("post-batch commit failed: %v", err)
		}
		if err := d.sync.Push(ctx); err != nil {
			logger.Warn("post-batch push failed: %v", err)
		} else if d.bus != nil {
			d.bus.Publish(eventbus.TopicSyncPush, nil)
		}
	}

	return len(assignments)
}

// closer is implemented by adapter backends holding resources that must be
// released at shutdown (Persistent's managed sessions).
type closer interface {
	CloseAll()
}

// Shutdown stops accepting new Dispatch calls, awaits any in-flight batch,
// then closes every adapter backend that holds closeable resources, per
// spec §4.6's shutdown contract.
func (d *Dispatcher) Shutdown() {
	d.shuttingDown.Store(true)
	d.inFlight.Wait()

	closed := make(map[closer]bool)
	for _, sc := range d.serviceConfigs {
		if c, ok := sc.Adapter.(closer); ok && !closed[c] {
			c.CloseAll()
			closed[c] = true
		}
	}
}

// planAssignments implements spec §4.6's per-tick assignment algorithm.
func (d *Dispatcher) planAssignments(pending []*model.Request) []assignment {
	d.mu.Lock()
	defer d.mu.Unlock()

	activeServices := make(map[string]bool)
	activeDirs := make(map[string]bool)
	for _, slot := range d.slots {
		if slot.State == model.WorkerBusy {
			activeServices[slot.CurrentService] = true
			if dir := d.workingDir(slot.CurrentService); dir != "" {
				activeDirs[dir] = true
			}
		}
	}

	reserved := make(map[int]bool, len(d.slots))
	var assignments []assignment
	for _, req := range pending {
		svc := req.ServiceName
		if activeServices[svc] {
			continue
		}
		dir := d.workingDir(svc)
		if dir != "" && activeDirs[dir] {
			continue
		}
		idx := d.pickIdleWorker(svc, reserved)
		if idx < 0 {
			continue
		}
		reserved[idx] = true
		activeServices[svc] = true
		if dir != "" {
			activeDirs[dir] = true
		}
		assignments = append(assignments, assignment{workerIdx: idx, req: req})
	}
	return assignments
}

// pickIdleWorker returns the index of the lowest-id idle, unreserved
// worker whose slot's LastServiceName matches svc (session affinity);
// absent a match, the lowest-id idle, unreserved worker; -1 if none.
func (d *Dispatcher) pickIdleWorker(svc string, reserved map[int]bool) int {
	fallback := -1
	for i, slot := range d.slots {
		if slot.State != model.WorkerIdle || reserved[i] {
			continue
		}
		if slot.LastServiceName == svc {
			return i
		}
		if fallback == -1 {
			fallback = i
		}
	}
	return fallback
}

func (d *Dispatcher) workingDir(service string) string {
	sc, ok := d.serviceConfigs[service]
	if !ok {
		return ""
	}
	return sc.WorkingDir
}
