package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/drive-mirror/internal/ident"
	"github.com/tonimelisma/drive-mirror/internal/provider"
	"github.com/tonimelisma/drive-mirror/internal/reconcile"
)

// reconcileDeadline bounds a single Reconcile pass (delta fetch plus every
// per-item store transaction). On expiry the pass aborts without
// advancing the cursor, per spec, and the job is re-queued like any other
// transient failure.
const reconcileDeadline = 5 * time.Minute

// maxJobAttempts bounds how many reconciliation passes a job gets: after
// its maxJobAttempts-th failed pass (maxJobAttempts-1 re-queues) it is
// dropped and logged.
const maxJobAttempts = 5

// gateKeeper is the narrow subset of gate.Gate the pool depends on.
type gateKeeper interface {
	IsEnabled() bool
	Disable()
}

// reconciler is the narrow subset of reconcile.Engine the pool depends
// on, letting tests supply a fake without a real store/gateway pair.
type reconciler interface {
	Reconcile(ctx context.Context, driveID ident.ID) (reconcile.Result, error)
}

// Pool drains a Queue with a bounded set of goroutines, running the
// Reconciliation Engine for each job. Jobs for the same drive id never
// run concurrently, enforced with a mutex-per-drive-id map rather than
// routing same-drive jobs to a single fixed worker, since the drive set
// is unbounded and unknown ahead of time.
type Pool struct {
	queue       Queue
	gate        gateKeeper
	engine      reconciler
	logger      *slog.Logger
	concurrency int

	driveLocks sync.Map // ident.ID.String() -> *sync.Mutex
}

// New builds a Pool. concurrency is floored at 1.
func New(queue Queue, gate gateKeeper, engine reconciler, logger *slog.Logger, concurrency int) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}

	return &Pool{queue: queue, gate: gate, engine: engine, logger: logger, concurrency: concurrency}
}

// Run starts the worker goroutines and blocks until ctx is canceled or
// the queue is closed.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for range p.concurrency {
		g.Go(func() error {
			p.loop(ctx)
			return nil
		})
	}

	return g.Wait()
}

func (p *Pool) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.queue.Jobs():
			if !ok {
				return
			}

			p.safeProcess(ctx, job)
		}
	}
}

// safeProcess wraps process with panic recovery so one bad job never
// takes down the whole pool.
func (p *Pool) safeProcess(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker: panic processing job",
				slog.String("drive_id", job.DriveID.String()),
				slog.Any("panic", r))
		}
	}()

	p.process(ctx, job)
}

func (p *Pool) process(ctx context.Context, job Job) {
	if !p.gate.IsEnabled() {
		p.logger.Warn("dropping job: credential gate disabled",
			slog.String("drive_id", job.DriveID.String()), slog.String("reason", job.Reason))

		return
	}

	mu := p.driveMutex(job.DriveID)
	mu.Lock()
	defer mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, reconcileDeadline)
	defer cancel()

	result, err := p.engine.Reconcile(callCtx, job.DriveID)
	if err != nil {
		if errors.Is(err, provider.ErrAuthInvalid) {
			p.logger.Error("worker: credential rejected, disabling gate",
				slog.String("drive_id", job.DriveID.String()), slog.String("error", err.Error()))
			p.gate.Disable()

			return
		}

		p.logger.Error("worker: reconciliation pass failed, re-queueing",
			slog.String("drive_id", job.DriveID.String()),
			slog.String("reason", job.Reason),
			slog.Int("attempt", job.Attempt),
			slog.String("error", err.Error()))

		p.requeue(job)

		return
	}

	p.logger.Info("worker: reconciliation pass succeeded",
		slog.String("drive_id", job.DriveID.String()),
		slog.String("reason", job.Reason),
		slog.Int("items_processed", result.ItemsProcessed),
		slog.Int("changes_detected", result.ChangesDetected))
}

// requeue re-submits job after a transient failure (store/gateway error or
// deadline expiry) with its attempt counter incremented, up to
// maxJobAttempts; beyond that the job is dropped and logged, since the
// provider's own notification redelivery and the next full reconciliation
// pass will eventually catch the drive back up.
func (p *Pool) requeue(job Job) {
	job.Attempt++

	if job.Attempt >= maxJobAttempts {
		p.logger.Error("worker: dropping job after exhausting retries",
			slog.String("drive_id", job.DriveID.String()),
			slog.String("reason", job.Reason),
			slog.Int("attempt", job.Attempt))

		return
	}

	if err := p.queue.Enqueue(job); err != nil {
		p.logger.Error("worker: failed to re-queue job",
			slog.String("drive_id", job.DriveID.String()),
			slog.String("reason", job.Reason),
			slog.String("error", err.Error()))
	}
}

func (p *Pool) driveMutex(driveID ident.ID) *sync.Mutex {
	key := driveID.String()

	actual, _ := p.driveLocks.LoadOrStore(key, &sync.Mutex{})

	mu, ok := actual.(*sync.Mutex)
	if !ok {
		// Unreachable: driveLocks only ever stores *sync.Mutex values.
		panic(fmt.Sprintf("worker: corrupt drive lock entry for %s", key))
	}

	return mu
}
