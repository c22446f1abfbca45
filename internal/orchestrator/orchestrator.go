// Package orchestrator implements the Job Orchestrator (C11): single-owner
// per-kind worker pools driving every long-running operation through the
// pending -> running -> completed/failed/paused lifecycle, durable via the
// progress ledger (C2).
//
// The worker loop is grounded on the teacher's internal/queue/worker.go
// ticker-driven pool: fixed goroutines per kind, context-cancellation
// checked at the top of every iteration, panic-safe via
// common.SafeGoWithContext. The durable substrate here is the blob-backed
// progress ledger rather than the teacher's goqite/Badger queue, so
// dispatch uses plain buffered Go channels instead of a polled SQL queue.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/antigravity-dev/ragforge/internal/common"
	"github.com/antigravity-dev/ragforge/internal/interfaces"
	"github.com/antigravity-dev/ragforge/internal/models"
)

// jobDefinitionSuffix names the durable record of a job's kind/inputs/
// options/retry budget, written under "<job-id>/job/definition.json" so
// Recover can reconstruct the in-memory job table after a restart. The
// progress ledger (C2) only ever carries status/progress, never the
// definition a handler needs to re-run the job.
const jobDefinitionSuffix = "/job/definition.json"

func jobDefinitionKey(jobID string) string {
	return jobID + jobDefinitionSuffix
}

// Handler executes one job to completion, reporting progress via emit.
// Returning a non-nil, non-retryable error fails the job permanently;
// returning an error that satisfies retryableError moves it back to
// pending (budget permitting) instead.
type Handler func(ctx context.Context, job *models.Job, emit func(phase, step string, progress int)) (*models.ResultDescriptor, error)

type retryableError interface {
	Retryable() bool
}

// queueClass buckets a JobKind onto one of the three concurrency pools
// named in OrchestratorConfig.
type queueClass int

const (
	classPDF queueClass = iota
	classJSONUnified
	classOther
)

func classify(kind models.JobKind) queueClass {
	switch kind {
	case models.JobKindPDF:
		return classPDF
	case models.JobKindJSONUnified:
		return classJSONUnified
	default:
		return classOther
	}
}

// Orchestrator implements interfaces.Orchestrator. All job-table mutations
// are serialised through mu, held only across the transition itself
// (never across a handler invocation), satisfying the single-writer
// discipline from spec section 5.
type Orchestrator struct {
	cfg       common.OrchestratorConfig
	ledger    interfaces.ProgressLedger
	blobStore interfaces.BlobStore
	logger    arbor.ILogger
	handlers  map[models.JobKind]Handler

	mu      sync.Mutex
	jobs    map[string]*models.Job
	cancels map[string]context.CancelFunc

	queues map[queueClass]chan string
	wg     sync.WaitGroup
}

var _ interfaces.Orchestrator = (*Orchestrator)(nil)

// New creates an Orchestrator. Register handlers with RegisterHandler
// before calling Start.
func New(cfg common.OrchestratorConfig, ledger interfaces.ProgressLedger, blobStore interfaces.BlobStore, logger arbor.ILogger) *Orchestrator {
	depth := cfg.QueueDepthPerKind
	if depth <= 0 {
		depth = 64
	}

	return &Orchestrator{
		cfg:       cfg,
		ledger:    ledger,
		blobStore: blobStore,
		logger:    logger,
		handlers:  make(map[models.JobKind]Handler),
		jobs:      make(map[string]*models.Job),
		cancels:   make(map[string]context.CancelFunc),
		queues: map[queueClass]chan string{
			classPDF:         make(chan string, depth),
			classJSONUnified: make(chan string, depth),
			classOther:       make(chan string, depth),
		},
	}
}

// RegisterHandler binds kind to handler. Must be called before Start.
func (o *Orchestrator) RegisterHandler(kind models.JobKind, handler Handler) {
	o.handlers[kind] = handler
}

func (o *Orchestrator) Submit(ctx context.Context, req interfaces.SubmitRequest) (string, error) {
	id := common.NewJobID()
	now := time.Now()

	maxRetries := o.cfg.DefaultMaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	job := &models.Job{
		ID:            id,
		Kind:          req.Kind,
		SubmittedAt:   now,
		LastUpdatedAt: now,
		Status:        models.JobStatusPending,
		Inputs:        req.Inputs,
		Options:       req.Options,
		MaxRetries:    maxRetries,
	}

	o.mu.Lock()
	o.jobs[id] = job
	o.mu.Unlock()

	if err := o.persistJobDefinition(ctx, job); err != nil {
		return "", fmt.Errorf("storage-transient: persist job definition: %w", err)
	}

	if err := o.ledger.Record(ctx, id, models.ProgressEvent{
		Timestamp: now,
		Phase:     "init",
		Step:      "submitted",
		Progress:  0,
		Status:    models.JobStatusPending,
	}); err != nil {
		return "", fmt.Errorf("storage-transient: record submission: %w", err)
	}

	if err := o.enqueue(ctx, job); err != nil {
		return "", err
	}

	return id, nil
}

// persistJobDefinition writes job's kind/inputs/options/retry budget to
// the blob store so Recover can reload it after a restart. Progress and
// status live in the ledger and are not duplicated here.
func (o *Orchestrator) persistJobDefinition(ctx context.Context, job *models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job definition: %w", err)
	}
	_, err = o.blobStore.Put(ctx, jobDefinitionKey(job.ID), bytes.NewReader(data), "application/json")
	return err
}

func (o *Orchestrator) enqueue(ctx context.Context, job *models.Job) error {
	queue := o.queues[classify(job.Kind)]
	select {
	case queue <- job.ID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) State(ctx context.Context, jobID string) (*models.ProgressSnapshot, error) {
	snapshot, _, err := o.ledger.Read(ctx, jobID, false)
	return snapshot, err
}

func (o *Orchestrator) History(ctx context.Context, jobID string) ([]models.ProgressEvent, error) {
	_, history, err := o.ledger.Read(ctx, jobID, true)
	return history, err
}

func (o *Orchestrator) Cancel(ctx context.Context, jobID string) error {
	o.mu.Lock()
	job, ok := o.jobs[jobID]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("submission-rejected: unknown job %q", jobID)
	}
	if job.IsTerminal() {
		o.mu.Unlock()
		return fmt.Errorf("submission-rejected: job %q already terminal", jobID)
	}
	job.Status = models.JobStatusPaused
	job.LastUpdatedAt = time.Now()
	cancel := o.cancels[jobID]
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	return o.ledger.Record(ctx, jobID, models.ProgressEvent{
		Timestamp: time.Now(),
		Phase:     "cancelled",
		Step:      "cancel requested",
		Status:    models.JobStatusPaused,
	})
}

func (o *Orchestrator) Retry(ctx context.Context, jobID string) error {
	o.mu.Lock()
	job, ok := o.jobs[jobID]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("submission-rejected: unknown job %q", jobID)
	}
	if !job.CanRetry() {
		o.mu.Unlock()
		return fmt.Errorf("submission-rejected: job %q is not retryable from status %q", jobID, job.Status)
	}
	job.Status = models.JobStatusPending
	job.RetryCount++
	job.LastUpdatedAt = time.Now()
	o.mu.Unlock()

	if err := o.persistJobDefinition(ctx, job); err != nil {
		return fmt.Errorf("storage-transient: persist job definition: %w", err)
	}

	if err := o.ledger.Record(ctx, jobID, models.ProgressEvent{
		Timestamp: time.Now(),
		Phase:     "init",
		Step:      "retry requested",
		Status:    models.JobStatusPending,
	}); err != nil {
		return fmt.Errorf("storage-transient: record retry: %w", err)
	}

	return o.enqueue(ctx, job)
}

// Recover reloads every non-terminal job's definition from the blob store
// and restores the in-memory job table, matching spec's durability
// contract: completed/failed jobs are never reloaded, paused jobs remain
// paused (reachable via Retry but not auto-dispatched), and pending/running
// jobs are re-queued from pending (a crash mid-handler loses only the
// in-flight stage's partial work, not the job itself). Call before Start
// spawns workers so recovered jobs cannot race a worker draining an empty
// queue.
func (o *Orchestrator) Recover(ctx context.Context) error {
	infos, err := o.blobStore.List(ctx, "")
	if err != nil {
		return fmt.Errorf("storage-transient: list blob store for recovery: %w", err)
	}

	recovered, requeued := 0, 0
	for _, info := range infos {
		if !strings.HasSuffix(info.Key, jobDefinitionSuffix) {
			continue
		}
		jobID := strings.TrimSuffix(info.Key, jobDefinitionSuffix)

		data, _, err := o.blobStore.Get(ctx, info.Key)
		if err != nil {
			o.logger.Warn().Err(err).Str("job_id", jobID).Msg("failed to read job definition during recovery")
			continue
		}
		var job models.Job
		if err := json.Unmarshal(data, &job); err != nil {
			o.logger.Warn().Err(err).Str("job_id", jobID).Msg("failed to decode job definition during recovery")
			continue
		}

		snapshot, _, err := o.ledger.Read(ctx, jobID, false)
		if err != nil {
			o.logger.Warn().Err(err).Str("job_id", jobID).Msg("failed to read progress snapshot during recovery")
			continue
		}
		if snapshot.Status == models.JobStatusCompleted || snapshot.Status == models.JobStatusFailed {
			continue
		}

		job.Progress = snapshot.Progress
		job.LastUpdatedAt = time.Now()
		if snapshot.Status == models.JobStatusPaused {
			job.Status = models.JobStatusPaused
			o.mu.Lock()
			o.jobs[jobID] = &job
			o.mu.Unlock()
			recovered++
			continue
		}

		job.Status = models.JobStatusPending
		o.mu.Lock()
		o.jobs[jobID] = &job
		o.mu.Unlock()

		if err := o.ledger.Record(ctx, jobID, models.ProgressEvent{
			Timestamp: time.Now(),
			Phase:     "init",
			Step:      "recovered after restart",
			Status:    models.JobStatusPending,
		}); err != nil {
			o.logger.Warn().Err(err).Str("job_id", jobID).Msg("failed to record recovery event")
		}
		if err := o.enqueue(ctx, &job); err != nil {
			o.logger.Warn().Err(err).Str("job_id", jobID).Msg("failed to re-enqueue recovered job")
			continue
		}
		recovered++
		requeued++
	}

	if recovered > 0 {
		o.logger.Info().Int("recovered", recovered).Int("requeued", requeued).Msg("reloaded in-flight jobs from prior run")
	}
	return nil
}

// Start reloads any in-flight jobs from a prior run, launches the three
// per-kind worker pools, and blocks until ctx is cancelled, then waits for
// in-flight handlers to return.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.Recover(ctx); err != nil {
		return err
	}

	pdfConcurrency := orDefault(o.cfg.PDFConcurrency, 4)
	jsonConcurrency := orDefault(o.cfg.JSONUnifiedConcurrency, 2)
	otherConcurrency := orDefault(o.cfg.OtherConcurrency, 4)

	o.spawnWorkers(ctx, classPDF, pdfConcurrency)
	o.spawnWorkers(ctx, classJSONUnified, jsonConcurrency)
	o.spawnWorkers(ctx, classOther, otherConcurrency)

	o.logger.Info().
		Int("pdf_concurrency", pdfConcurrency).
		Int("json_unified_concurrency", jsonConcurrency).
		Int("other_concurrency", otherConcurrency).
		Msg("orchestrator worker pools started")

	<-ctx.Done()
	o.wg.Wait()
	return nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func (o *Orchestrator) spawnWorkers(ctx context.Context, class queueClass, count int) {
	queue := o.queues[class]
	for i := 0; i < count; i++ {
		o.wg.Add(1)
		workerID := i
		common.SafeGoWithContext(ctx, o.logger, fmt.Sprintf("orchestrator-worker-%d-%d", class, workerID), func() {
			defer o.wg.Done()
			o.runWorker(ctx, queue)
		})
	}
}

func (o *Orchestrator) runWorker(ctx context.Context, queue chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case jobID := <-queue:
			o.process(ctx, jobID)
		}
	}
}

func (o *Orchestrator) process(parentCtx context.Context, jobID string) {
	o.mu.Lock()
	job, ok := o.jobs[jobID]
	if !ok || job.Status != models.JobStatusPending {
		o.mu.Unlock()
		return
	}
	job.Status = models.JobStatusRunning
	job.LastUpdatedAt = time.Now()
	jobCtx, cancel := context.WithCancel(parentCtx)
	o.cancels[jobID] = cancel
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.cancels, jobID)
		o.mu.Unlock()
		cancel()
	}()

	handler, ok := o.handlers[job.Kind]
	if !ok {
		o.fail(parentCtx, job, models.JobError{
			Kind:    "submission-rejected",
			Message: fmt.Sprintf("no handler registered for kind %q", job.Kind),
			Stage:   "dispatch",
		})
		return
	}

	emit := func(phase, step string, progress int) {
		o.mu.Lock()
		job.Progress = progress
		job.LastUpdatedAt = time.Now()
		o.mu.Unlock()
		if err := o.ledger.Record(parentCtx, jobID, models.ProgressEvent{
			Timestamp: time.Now(),
			Phase:     phase,
			Step:      step,
			Progress:  progress,
			Status:    models.JobStatusRunning,
		}); err != nil {
			o.logger.Warn().Err(err).Str("job_id", jobID).Msg("failed to record progress event")
		}
	}

	result, err := handler(jobCtx, job, emit)

	if jobCtx.Err() != nil && err != nil {
		o.logger.Info().Str("job_id", jobID).Msg("job cancelled mid-run")
		return
	}

	if err != nil {
		o.handleFailure(parentCtx, job, err)
		return
	}

	o.mu.Lock()
	job.Status = models.JobStatusCompleted
	job.Progress = 100
	job.LastUpdatedAt = time.Now()
	job.Result = result
	o.mu.Unlock()

	if lerr := o.ledger.Record(parentCtx, jobID, models.ProgressEvent{
		Timestamp: time.Now(),
		Phase:     "success",
		Step:      "job completed",
		Progress:  100,
		Status:    models.JobStatusCompleted,
	}); lerr != nil {
		o.logger.Warn().Err(lerr).Str("job_id", jobID).Msg("failed to record completion event")
	}
	o.forgetJobDefinition(parentCtx, jobID)
}

// forgetJobDefinition deletes a terminal job's durable definition, since
// Recover never reloads completed/failed jobs. Best-effort: a leftover
// definition blob for an already-terminal job is harmless clutter, not a
// correctness issue, so a delete failure is only logged.
func (o *Orchestrator) forgetJobDefinition(ctx context.Context, jobID string) {
	if err := o.blobStore.Delete(ctx, jobDefinitionKey(jobID)); err != nil {
		o.logger.Warn().Err(err).Str("job_id", jobID).Msg("failed to delete job definition after terminal state")
	}
}

// handleFailure classifies err and either moves the job back to pending
// with jittered backoff (retryable, budget remaining) or to failed
// (non-retryable or retries exhausted).
func (o *Orchestrator) handleFailure(ctx context.Context, job *models.Job, err error) {
	retryable := isRetryable(err)

	o.mu.Lock()
	canRetry := retryable && job.RetryCount < job.MaxRetries
	if canRetry {
		job.RetryCount++
		job.Status = models.JobStatusPending
	} else {
		job.Status = models.JobStatusFailed
	}
	job.LastError = &models.JobError{
		Kind:      classifyErrorKind(err),
		Message:   err.Error(),
		Stage:     "handler",
		Retryable: retryable,
	}
	job.LastUpdatedAt = time.Now()
	jobID := job.ID
	o.mu.Unlock()

	phase := "failed"
	status := models.JobStatusFailed
	if canRetry {
		phase = "init"
		status = models.JobStatusPending
	}

	if lerr := o.ledger.Record(ctx, jobID, models.ProgressEvent{
		Timestamp: time.Now(),
		Phase:     phase,
		Step:      err.Error(),
		Status:    status,
		Metadata:  map[string]interface{}{"retry_count": job.RetryCount},
	}); lerr != nil {
		o.logger.Warn().Err(lerr).Str("job_id", jobID).Msg("failed to record failure event")
	}

	if canRetry {
		delay := backoffDelay(job.RetryCount)
		common.SafeGo(o.logger, "orchestrator-retry-delay", func() {
			time.Sleep(delay)
			if enqErr := o.enqueue(ctx, job); enqErr != nil {
				o.logger.Warn().Err(enqErr).Str("job_id", jobID).Msg("failed to re-enqueue job for retry")
			}
		})
	} else {
		o.forgetJobDefinition(ctx, jobID)
	}
}

func (o *Orchestrator) fail(ctx context.Context, job *models.Job, jobErr models.JobError) {
	o.mu.Lock()
	job.Status = models.JobStatusFailed
	job.LastError = &jobErr
	job.LastUpdatedAt = time.Now()
	o.mu.Unlock()

	if err := o.ledger.Record(ctx, job.ID, models.ProgressEvent{
		Timestamp: time.Now(),
		Phase:     "failed",
		Step:      jobErr.Message,
		Status:    models.JobStatusFailed,
	}); err != nil {
		o.logger.Warn().Err(err).Str("job_id", job.ID).Msg("failed to record failure event")
	}
	o.forgetJobDefinition(ctx, job.ID)
}

// isRetryable classifies by the error's message prefix, matching the
// storage-transient/gateway-transient/schema-violation tags used throughout
// the services packages; pdf-unreadable, malformed-beyond-repair,
// cancellation, and submission-rejected are never retried.
func isRetryable(err error) bool {
	if re, ok := err.(retryableError); ok {
		return re.Retryable()
	}
	msg := err.Error()
	for _, tag := range []string{"storage-transient", "gateway-transient", "schema-violation"} {
		if strings.HasPrefix(msg, tag) {
			return true
		}
	}
	return false
}

func classifyErrorKind(err error) string {
	msg := err.Error()
	for _, tag := range []string{
		"storage-transient", "gateway-transient", "schema-violation",
		"pdf-unreadable", "pdf-corrupt", "malformed-beyond-repair",
		"submission-rejected", "missing-required-field",
	} {
		if strings.HasPrefix(msg, tag) {
			return tag
		}
	}
	return "unknown"
}

// backoffDelay implements jittered exponential backoff for job retries,
// base 1s, factor 2, cap 30s, matching the spec's retry contract at the
// job level (distinct from the per-call backoffs inside C1/C5).
func backoffDelay(retryCount int) time.Duration {
	base := time.Second
	delay := base
	for i := 1; i < retryCount; i++ {
		delay *= 2
		if delay > 30*time.Second {
			delay = 30 * time.Second
			break
		}
	}
	return time.Duration(float64(delay) * (0.5 + rand.Float64()))
}
