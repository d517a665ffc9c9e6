// Package syncer implements the permission sync engine: a scheduler that
// finds subjects due for a resync, a durable job queue between scheduler and
// worker, and a worker that executes one reconciliation at a time. One Engine
// instance runs per subject type (account, repo, user); the per-type behavior
// is injected as a Strategy.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/codelens/permsync-worker/internal/audit"
	"github.com/codelens/permsync-worker/internal/license"
	"github.com/codelens/permsync-worker/internal/models"
	"github.com/codelens/permsync-worker/internal/queue"
	"github.com/codelens/permsync-worker/internal/repository"
)

// ErrNotEntitled is returned by Start when the current plan does not include
// permission syncing.
var ErrNotEntitled = errors.New("permission syncing is not included in the current plan")

// Audit actions emitted by the worker.
const (
	ActionSyncCompleted = "permission_sync.completed"
	ActionSyncFailed    = "permission_sync.failed"
)

// Strategy is the per-subject-type behavior of the engine: which subjects are
// due, what the authoritative grant set is, and how to apply it.
type Strategy interface {
	// SubjectType names the subject for logs and audit records.
	SubjectType() string

	// SelectEligible returns the subject ids due for a resync. threshold is
	// now minus the sync interval; implementations must honor the
	// at-most-one-active-job and failure-backoff predicates.
	SelectEligible(ctx context.Context, threshold time.Time) ([]string, error)

	// Reconcile fetches the authoritative grant set for one subject from the
	// code host. An empty result is valid and clears all grants. Provider
	// errors must be returned, never converted into an empty set.
	Reconcile(ctx context.Context, subjectID string) ([]string, error)

	// ApplyGrants atomically replaces the subject's permission edges with
	// grants. Partial application must never be observable.
	ApplyGrants(ctx context.Context, subjectID string, grants []string) error
}

// JobStore is the durable record of sync jobs for one subject type.
type JobStore interface {
	CreateBatch(ctx context.Context, subjectIDs []string) ([]models.SyncJob, error)
	ListPending(ctx context.Context) ([]models.SyncJob, error)
	Claim(ctx context.Context, jobID string) (*models.SyncJob, error)
	Complete(ctx context.Context, jobID, subjectID string) error
	Fail(ctx context.Context, jobID string, errMsg string) error
}

// EntitlementChecker gates engine startup.
type EntitlementChecker interface {
	HasEntitlement(entitlement license.Entitlement) bool
}

// Options tune an Engine. Zero values fall back to defaults.
type Options struct {
	// SchedulerInterval is the tick between eligibility scans. Default 5s.
	SchedulerInterval time.Duration

	// SyncInterval is how stale a subject's last successful sync may be
	// before it is rescheduled, and equally the backoff window after a
	// failed job. Default 24h.
	SyncInterval time.Duration
}

const (
	defaultSchedulerInterval = 5 * time.Second
	defaultSyncInterval      = 24 * time.Hour
)

// Engine owns one scheduler loop and one worker (concurrency 1) for a single
// subject type. Scheduler and worker communicate only through the job store
// and the queue.
type Engine struct {
	strategy     Strategy
	jobs         JobStore
	queue        queue.Queue
	sink         audit.Sink
	entitlements EntitlementChecker

	schedulerInterval time.Duration
	syncInterval      time.Duration

	// job ids whose enqueue failed; retried on the next tick. The rows are
	// already committed as pending, so nothing is lost if the process dies
	// first: startup recovery re-enqueues all pending rows.
	retry []string

	cancelScheduler context.CancelFunc
	cancelWorker    context.CancelFunc
	schedulerDone   chan struct{}
	workerDone      chan struct{}

	mu      sync.Mutex
	started bool
}

func NewEngine(strategy Strategy, jobs JobStore, q queue.Queue, sink audit.Sink, entitlements EntitlementChecker, opts Options) *Engine {
	if opts.SchedulerInterval <= 0 {
		opts.SchedulerInterval = defaultSchedulerInterval
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = defaultSyncInterval
	}
	return &Engine{
		strategy:          strategy,
		jobs:              jobs,
		queue:             q,
		sink:              sink,
		entitlements:      entitlements,
		schedulerInterval: opts.SchedulerInterval,
		syncInterval:      opts.SyncInterval,
	}
}

// Start checks the entitlement once, re-enqueues pending job rows left over
// from a previous run, and launches the scheduler and worker goroutines.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return fmt.Errorf("%s permission sync engine already started", e.strategy.SubjectType())
	}

	if e.entitlements == nil || !e.entitlements.HasEntitlement(license.EntitlementPermissionSyncing) {
		return ErrNotEntitled
	}

	if err := e.recoverPending(ctx); err != nil {
		log.Printf("Warning: failed to recover pending %s sync jobs on startup: %v", e.strategy.SubjectType(), err)
	}

	schedulerCtx, cancelScheduler := context.WithCancel(context.Background())
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	e.cancelScheduler = cancelScheduler
	e.cancelWorker = cancelWorker
	e.schedulerDone = make(chan struct{})
	e.workerDone = make(chan struct{})

	go e.schedulerLoop(schedulerCtx)
	go e.workerLoop(workerCtx)

	e.started = true
	log.Printf("Started %s permission sync engine (tick: %s, sync interval: %s)",
		e.strategy.SubjectType(), e.schedulerInterval, e.syncInterval)
	return nil
}

// Stop shuts the engine down gracefully: the scheduler stops first so no new
// jobs are admitted, then the worker, which always finishes its in-flight job.
// ctx bounds how long Stop waits.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = false
	e.mu.Unlock()

	e.cancelScheduler()
	select {
	case <-e.schedulerDone:
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for %s scheduler to stop: %w", e.strategy.SubjectType(), ctx.Err())
	}

	e.cancelWorker()
	select {
	case <-e.workerDone:
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for %s worker to stop: %w", e.strategy.SubjectType(), ctx.Err())
	}

	log.Printf("Stopped %s permission sync engine", e.strategy.SubjectType())
	return nil
}

// recoverPending re-enqueues every pending job row. Covers both process
// crashes between commit and enqueue, and enqueue failures from the previous
// run. Redelivery of an id already in the queue is harmless: the claim step
// rejects the duplicate.
func (e *Engine) recoverPending(ctx context.Context) error {
	jobs, err := e.jobs.ListPending(ctx)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return nil
	}

	log.Printf("Recovering %d pending %s sync job(s)", len(jobs), e.strategy.SubjectType())
	for _, job := range jobs {
		if err := e.queue.Enqueue(ctx, job.ID); err != nil {
			e.retry = append(e.retry, job.ID)
		}
	}
	return nil
}

func (e *Engine) schedulerLoop(ctx context.Context) {
	defer close(e.schedulerDone)

	ticker := time.NewTicker(e.schedulerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.scheduleOnce(ctx); err != nil {
				log.Printf("Error scheduling %s permission syncs: %v", e.strategy.SubjectType(), err)
			}
		}
	}
}

// scheduleOnce runs one scheduler tick: retry previously failed enqueues,
// select eligible subjects, insert pending job rows, enqueue their ids. Row
// insertion and enqueue are deliberately two sequential steps rather than one
// transaction: the rows must be durably committed before their ids become
// visible to the worker.
func (e *Engine) scheduleOnce(ctx context.Context) error {
	e.retry = e.enqueueAll(ctx, e.retry)

	threshold := time.Now().Add(-e.syncInterval)
	subjectIDs, err := e.strategy.SelectEligible(ctx, threshold)
	if err != nil {
		return fmt.Errorf("failed to select eligible subjects: %w", err)
	}
	if len(subjectIDs) == 0 {
		return nil
	}

	jobs, err := e.jobs.CreateBatch(ctx, subjectIDs)
	if err != nil {
		return fmt.Errorf("failed to create sync jobs: %w", err)
	}

	jobIDs := make([]string, 0, len(jobs))
	for _, job := range jobs {
		jobIDs = append(jobIDs, job.ID)
	}
	e.retry = append(e.retry, e.enqueueAll(ctx, jobIDs)...)

	log.Printf("Scheduled %d %s permission sync job(s)", len(jobs), e.strategy.SubjectType())
	return nil
}

// enqueueAll enqueues each id and returns the ids that could not be enqueued.
// A failed enqueue is not fatal: the pending row survives and the id is
// retried on the next tick.
func (e *Engine) enqueueAll(ctx context.Context, ids []string) []string {
	var failed []string
	for _, id := range ids {
		if err := e.queue.Enqueue(ctx, id); err != nil {
			log.Printf("Failed to enqueue %s sync job %s (will retry): %v", e.strategy.SubjectType(), id, err)
			failed = append(failed, id)
		}
	}
	return failed
}

func (e *Engine) workerLoop(ctx context.Context) {
	defer close(e.workerDone)

	for {
		jobID, ok := e.queue.Dequeue(ctx)
		if !ok {
			return
		}
		// The job itself runs on a fresh context: cancelling the worker must
		// not abandon a claim or a replace transaction midway.
		e.runJob(context.Background(), jobID)
	}
}

// runJob executes one sync job end to end. Provider and apply errors become a
// failed job plus an audit record; claim errors are logged loudly and
// terminate only this attempt.
func (e *Engine) runJob(ctx context.Context, jobID string) {
	subject := e.strategy.SubjectType()

	job, err := e.jobs.Claim(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotPending) {
			// Queue redelivery; another delivery already claimed the job.
			log.Printf("Skipping redelivered %s sync job %s", subject, jobID)
			return
		}
		log.Printf("ERROR: failed to claim %s sync job %s: %v", subject, jobID, err)
		return
	}

	log.Printf("Syncing permissions for %s %s (job %s)...", subject, job.SubjectID, job.ID)

	grants, err := e.strategy.Reconcile(ctx, job.SubjectID)
	if err != nil {
		e.failJob(ctx, job, fmt.Errorf("reconcile: %w", err))
		return
	}

	if err := e.strategy.ApplyGrants(ctx, job.SubjectID, grants); err != nil {
		e.failJob(ctx, job, fmt.Errorf("apply grants: %w", err))
		return
	}

	if err := e.jobs.Complete(ctx, job.ID, job.SubjectID); err != nil {
		log.Printf("ERROR: failed to complete %s sync job %s: %v", subject, job.ID, err)
		return
	}

	audit.Record(ctx, e.sink, audit.Event{
		Action:     ActionSyncCompleted,
		ActorID:    "system",
		ActorType:  audit.ActorTypeSystem,
		TargetID:   job.SubjectID,
		TargetType: subject,
	})
	log.Printf("Permissions synced for %s %s (%d grant(s))", subject, job.SubjectID, len(grants))
}

func (e *Engine) failJob(ctx context.Context, job *models.SyncJob, jobErr error) {
	subject := e.strategy.SubjectType()
	log.Printf("%s permission sync job %s failed for %s: %v", subject, job.ID, job.SubjectID, jobErr)

	if err := e.jobs.Fail(ctx, job.ID, jobErr.Error()); err != nil {
		log.Printf("ERROR: failed to mark %s sync job %s failed: %v", subject, job.ID, err)
	}

	audit.Record(ctx, e.sink, audit.Event{
		Action:     ActionSyncFailed,
		ActorID:    "system",
		ActorType:  audit.ActorTypeSystem,
		TargetID:   job.SubjectID,
		TargetType: subject,
		Metadata:   jobErr.Error(),
	})
}
