package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/oriys/dispatch/internal/logging"
	"github.com/oriys/dispatch/internal/metrics"
	"github.com/oriys/dispatch/internal/tracing"
)

// Dispatcher is a compiled Plan plus the scheduler that executes it
// (spec §2, §4.6). Built once via Builder.Build, a Dispatcher can be
// Dispatch-ed any number of times against any Store whose contents
// satisfy every task's declared access set.
type Dispatcher struct {
	plan        *Plan
	threadLocal []runnable
	cfg         Config

	setupOnce sync.Once
	setupErr  error

	metricsOnce sync.Once
	metrics     *metrics.Collector
}

func (d *Dispatcher) collector() *metrics.Collector {
	d.metricsOnce.Do(func() {
		if d.cfg.Metrics.Enabled {
			d.metrics = metrics.New(prometheus.DefaultRegisterer, d.cfg.Metrics.Namespace)
		}
	})
	return d.metrics
}

// Setup installs every task's default resources into store, per spec
// §4.3/§4.2. It is idempotent and safe to call from multiple goroutines;
// Dispatch and DispatchSeq both call it automatically on first use, so
// most callers never need to call it directly. It exists as a public
// method for callers who want setup's potential error surfaced before the
// first real dispatch rather than folded into it.
func (d *Dispatcher) Setup(store *Store) error {
	d.setupOnce.Do(func() {
		store.attachMetrics(d.collector())
		for _, n := range d.plan.nodes {
			if err := n.setup(store); err != nil {
				d.setupErr = err
				return
			}
		}
		for _, n := range d.threadLocal {
			if err := n.setup(store); err != nil {
				d.setupErr = err
				return
			}
		}
	})
	return d.setupErr
}

// Dispatch runs every registered task against store: parallel tasks run
// on worker goroutines, at most Config.MaxWorkers at once when it is
// positive, subject to DAG order and resource exclusion
// (spec §4.6), then thread-local tasks run sequentially on the calling
// goroutine in registration order (spec §4.5/§4.6 step 4).
//
// Per the conservative reading of spec §9's open question, if the
// parallel stage reports any fatal failure (a task error or panic), the
// thread-local stage is skipped for that call and the composite error is
// returned.
func (d *Dispatcher) Dispatch(ctx context.Context, store *Store) error {
	if err := d.Setup(store); err != nil {
		return err
	}

	runID := uuid.NewString()
	log := logging.WithRun(runID)
	ctx, span := tracing.StartDispatch(ctx, runID, len(d.plan.nodes))
	defer span.End()

	col := d.collector()

	log.Debug("dispatch starting", "tasks", len(d.plan.nodes), "thread_local", len(d.threadLocal))

	err := runScheduler(ctx, d.plan, store, d.cfg.MaxWorkers, col, log)

	if err != nil {
		col.DispatchCompleted(containsPanic(err))
		log.Error("dispatch parallel stage failed", "error", err)
		return err
	}

	if err := d.runThreadLocal(ctx, store, log); err != nil {
		col.DispatchCompleted(containsPanic(err))
		return err
	}

	col.DispatchCompleted(false)
	log.Debug("dispatch complete")
	return nil
}

// runThreadLocal executes every thread-local task in registration order
// on the calling goroutine, each with the ability to borrow anything in
// store (GetMutUnique is safe here: the parallel stage has fully joined,
// so nothing else can be borrowing concurrently).
func (d *Dispatcher) runThreadLocal(ctx context.Context, store *Store, log *slog.Logger) error {
	var errs []error
	for _, n := range d.threadLocal {
		if err := runOne(ctx, n, store, d.collector(), log); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DispatchSeq runs every task — parallel and thread-local alike — in a
// single valid topological order on the calling goroutine, one at a time.
// It exists for single-threaded contexts and for tasks that are not safe
// to move to a worker goroutine (spec §4.7), and is also what P5 (seq
// equivalence) compares Dispatch's outcome against.
//
// It follows the same failure semantics as Dispatch: once a task in the
// DAG-ordered stage fails fatally, no further DAG-ordered task is run
// (there is nothing already in flight to drain, unlike the parallel
// stage, so this takes effect immediately) and the thread-local stage is
// skipped entirely for that call.
func (d *Dispatcher) DispatchSeq(ctx context.Context, store *Store) error {
	if err := d.Setup(store); err != nil {
		return err
	}

	runID := uuid.NewString()
	log := logging.WithRun(runID)
	ctx, span := tracing.StartDispatch(ctx, runID, len(d.plan.nodes))
	defer span.End()

	col := d.collector()

	var errs []error
	for _, idx := range d.plan.order {
		n := d.plan.nodes[idx]
		if err := runOneSeq(ctx, n, store, col, log); err != nil {
			errs = append(errs, err)
			break
		}
	}

	if len(errs) == 0 {
		for _, n := range d.threadLocal {
			if err := runOneSeq(ctx, n, store, col, log); err != nil {
				errs = append(errs, err)
			}
		}
	}

	err := errors.Join(errs...)
	col.DispatchCompleted(containsPanic(err))
	return err
}
