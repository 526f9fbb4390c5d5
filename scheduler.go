package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oriys/dispatch/internal/metrics"
	"github.com/oriys/dispatch/internal/tracing"
)

// schedState is the mutable state the parallel scheduler's launch loop
// reads and updates under mu, in the spirit of oriys/nova's
// internal/pool functionPool: a mutex-guarded struct with "Locked"-suffixed
// helpers, plus a sync.Cond so the loop can block until something changes
// instead of busy-polling.
type schedState struct {
	mu   sync.Mutex
	cond *sync.Cond

	unsatisfied []int
	started     []bool

	activeReads  map[ResourceID]int
	activeWrites map[ResourceID]struct{}

	running int
}

func newSchedState(nodes []*planNode) *schedState {
	s := &schedState{
		unsatisfied:  make([]int, len(nodes)),
		started:      make([]bool, len(nodes)),
		activeReads:  make(map[ResourceID]int),
		activeWrites: make(map[ResourceID]struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	for i, n := range nodes {
		s.unsatisfied[i] = len(n.depIdx)
	}
	return s
}

// launchableLocked implements the launch predicate from spec §4.6: the
// task's dependencies are all satisfied, and its reads/writes don't
// overlap anything currently active.
func (s *schedState) launchableLocked(access AccessSet) bool {
	for _, id := range access.Writes {
		if _, ok := s.activeWrites[id]; ok {
			return false
		}
		if s.activeReads[id] > 0 {
			return false
		}
	}
	for _, id := range access.Reads {
		if _, ok := s.activeWrites[id]; ok {
			return false
		}
	}
	return true
}

func (s *schedState) claimLocked(access AccessSet) {
	for _, id := range access.Reads {
		s.activeReads[id]++
	}
	for _, id := range access.Writes {
		s.activeWrites[id] = struct{}{}
	}
}

func (s *schedState) releaseLocked(access AccessSet) {
	for _, id := range access.Reads {
		s.activeReads[id]--
		if s.activeReads[id] == 0 {
			delete(s.activeReads, id)
		}
	}
	for _, id := range access.Writes {
		delete(s.activeWrites, id)
	}
}

// runScheduler is the parallel stage's launch loop (spec §4.6). It scans
// pending tasks in registration order (a stable tie-breaker per §5's
// ordering guarantees), launches every one whose launch predicate holds,
// and blocks on cond until a completion changes the picture. Once any
// task reports a fatal error, no further tasks are launched, but every
// already-running task is allowed to finish before the composite error
// is returned (spec §4.6 "Panic propagation").
//
// Termination needs only running == 0: every scan pass launches every
// node whose dependencies are satisfied and whose access doesn't
// conflict with what's active, up to maxWorkers concurrently running at
// once. Reaching running == 0 right after a scan means the pass found
// nothing left to launch within that bound — and since running == 0
// means the bound wasn't the reason, no node was left launchable at
// all: either every node is done, or aborting is true and the rest will
// never become reachable.
func runScheduler(ctx context.Context, plan *Plan, store *Store, maxWorkers int, col *metrics.Collector, log *slog.Logger) error {
	nodes := plan.nodes
	s := newSchedState(nodes)

	// maxWorkers is enforced by schedState.running below, not by
	// errgroup.Group.SetLimit: SetLimit's Go blocks the caller until a
	// slot frees, and every launch below happens with s.mu held so that
	// claiming a node's access and marking it started is atomic with the
	// scan that found it launchable. A blocking Go call under that lock
	// would deadlock against the very goroutines whose completion would
	// free a slot, since they need s.mu themselves to report done.
	g, gctx := errgroup.WithContext(ctx)

	var errMu sync.Mutex
	var errs []error
	aborting := false

	s.mu.Lock()
	for {
		if !aborting {
			for i, n := range nodes {
				if maxWorkers > 0 && s.running >= maxWorkers {
					break
				}
				if s.started[i] || s.unsatisfied[i] > 0 {
					continue
				}
				if !s.launchableLocked(n.access) {
					continue
				}

				s.claimLocked(n.access)
				s.started[i] = true
				s.running++

				node := n
				g.Go(func() error {
					err := runOne(gctx, node, store, col, log)

					s.mu.Lock()
					s.releaseLocked(node.access)
					s.running--
					if err != nil {
						errMu.Lock()
						errs = append(errs, err)
						errMu.Unlock()
						aborting = true
					}
					for _, succ := range node.successors {
						s.unsatisfied[succ]--
					}
					s.cond.Broadcast()
					s.mu.Unlock()

					return err
				})
			}
		}

		if s.running == 0 {
			break
		}
		s.cond.Wait()
	}
	s.mu.Unlock()

	// g.Wait returns the first error errgroup saw; we already collected
	// every error ourselves in errs, so only use g.Wait to block until
	// every launched goroutine has actually returned.
	_ = g.Wait()

	errMu.Lock()
	defer errMu.Unlock()
	return errors.Join(errs...)
}

func runOneSeq(ctx context.Context, n runnable, store *Store, col *metrics.Collector, log *slog.Logger) error {
	return runOne(ctx, n, store, col, log)
}

// runOne instruments and executes a single task's full cycle (Fetch, Run,
// Release), used identically by the parallel scheduler and SeqDispatcher
// so both paths produce the same metrics, logs, and spans.
func runOne(ctx context.Context, n runnable, store *Store, col *metrics.Collector, log *slog.Logger) error {
	name := n.name()

	ctx, span := tracing.StartTask(ctx, name)
	defer span.End()

	col.TaskStarted(name)
	start := time.Now()
	log.Debug("task starting", "task", name)

	err := n.run(ctx, store)

	col.TaskFinished(name, time.Since(start))

	if err != nil {
		var pe *PanicError
		if errors.As(err, &pe) {
			col.TaskPanicked(name)
			log.Error("task panicked", "task", name, "panic", pe.Value)
		} else {
			col.TaskError(name)
			log.Error("task failed", "task", name, "error", err)
		}
		return err
	}

	log.Debug("task finished", "task", name)
	return nil
}
