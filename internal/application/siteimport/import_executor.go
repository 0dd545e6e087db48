package siteimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	domain "github.com/mohammadpnp/site-import/internal/domain/siteimport"
)

const finalizeTimeout = 30 * time.Second

type executorJobManager interface {
	ClaimNext(ctx context.Context) (*domain.ImportJob, error)
	UpdateProgress(ctx context.Context, importID string, u domain.ProgressUpdate) (domain.ImportJob, error)
}

type quotaReleaser interface {
	CompleteImport(organizationID, importID string) bool
}

type eventWriter interface {
	InsertBatch(ctx context.Context, events []domain.CanonicalEvent) error
}

type ImportExecutorConfig struct {
	Workers      int
	BatchSize    int
	PollInterval time.Duration
	// DedupeWindow is how many recent source ids a job checks repeats against.
	DedupeWindow int
	FetchRetry   RetryPolicy
	WriteRetry   RetryPolicy
	Logger       *slog.Logger
}

// ImportExecutor drives claimed jobs through fetch, normalize and batched
// write. Each job is owned by exactly one worker loop from claim to
// terminal status.
type ImportExecutor struct {
	jobs     executorJobManager
	adapters *AdapterRegistry
	events   eventWriter
	quota    quotaReleaser
	cfg      ImportExecutorConfig
	logger   *slog.Logger

	wake chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func NewImportExecutor(jobs executorJobManager, adapters *AdapterRegistry, events eventWriter, quota quotaReleaser, cfg ImportExecutorConfig) *ImportExecutor {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5000
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.DedupeWindow <= 0 {
		cfg.DedupeWindow = 10000
	}
	cfg.FetchRetry = cfg.FetchRetry.withDefaults()
	cfg.WriteRetry = cfg.WriteRetry.withDefaults()
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &ImportExecutor{
		jobs:     jobs,
		adapters: adapters,
		events:   events,
		quota:    quota,
		cfg:      cfg,
		logger:   cfg.Logger,
		wake:     make(chan struct{}, 1),
	}
}

func (e *ImportExecutor) Start(ctx context.Context) {
	e.once.Do(func() {
		for i := 0; i < e.cfg.Workers; i++ {
			e.wg.Add(1)
			go func() {
				defer e.wg.Done()
				e.workerLoop(ctx)
			}()
		}
	})
}

// Wait blocks until every worker loop has returned after ctx cancellation.
func (e *ImportExecutor) Wait() {
	e.wg.Wait()
}

// Notify wakes an idle worker so a freshly created job is claimed without
// waiting for the next poll.
func (e *ImportExecutor) Notify() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *ImportExecutor) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := e.jobs.ClaimNext(ctx)
		if err != nil {
			if ctx.Err() == nil {
				e.logger.Error("claim next import job failed", "error", err)
			}
			if !e.idle(ctx) {
				return
			}
			continue
		}

		if job == nil {
			if !e.idle(ctx) {
				return
			}
			continue
		}

		if err := e.ProcessJob(ctx, *job); err != nil {
			e.logger.Warn("import job failed", "import_id", job.ID, "error", err)
		}
	}
}

func (e *ImportExecutor) idle(ctx context.Context) bool {
	timer := time.NewTimer(e.cfg.PollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-e.wake:
		return true
	case <-timer.C:
		return true
	}
}

// ProcessJob runs a job that has already been claimed (status processing)
// to a terminal status. The returned error describes why the job failed.
func (e *ImportExecutor) ProcessJob(ctx context.Context, job domain.ImportJob) error {
	log := e.logger.With("import_id", job.ID, "site_id", job.SiteID, "organization_id", job.OrganizationID)

	adapter, err := e.adapters.Lookup(job.Platform)
	if err != nil {
		return e.fail(ctx, job, domain.ImportProgress{}, err)
	}

	var stream RecordStream
	err = e.cfg.FetchRetry.retry(ctx, func() error {
		var openErr error
		stream, openErr = adapter.FetchRecords(ctx, job)
		return openErr
	}, e.onRetry(log, "fetch"))
	if err != nil {
		return e.fail(ctx, job, domain.ImportProgress{}, e.interruptedOr(ctx, fmt.Errorf("%w: %v", ErrFetchRecords, err)))
	}
	defer stream.Close()

	log.Info("import started", "platform", job.Platform, "from", job.AllowedRange.EarliestString(), "to", job.AllowedRange.LatestString())

	progress := job.Progress()
	seen := newRecentIDs(e.cfg.DedupeWindow)
	batch := make([]domain.CanonicalEvent, 0, e.cfg.BatchSize)
	m := getMetrics()

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := e.cfg.WriteRetry.retry(ctx, func() error {
			return e.events.InsertBatch(ctx, batch)
		}, e.onRetry(log, "write"))
		if err != nil {
			return e.interruptedOr(ctx, fmt.Errorf("%w: %v", ErrWriteEvents, err))
		}

		progress.ImportedEvents += int64(len(batch))
		m.records.WithLabelValues("imported").Add(float64(len(batch)))
		batch = batch[:0]

		if _, err := e.jobs.UpdateProgress(ctx, job.ID, domain.ProgressUpdate{
			Status:   domain.StatusProcessing,
			Progress: progress,
		}); err != nil {
			return e.interruptedOr(ctx, fmt.Errorf("update progress: %w", err))
		}
		return nil
	}

	// abort counts records that never reached the event store as skipped,
	// so the counters still add up to what the adapter emitted.
	abort := func(cause error) error {
		progress.SkippedEvents += int64(len(batch))
		m.records.WithLabelValues("skipped").Add(float64(len(batch)))
		batch = batch[:0]
		return e.fail(ctx, job, progress, cause)
	}

	for {
		if ctx.Err() != nil {
			return abort(ErrImportInterrupted)
		}

		var raw RawRecord
		err := e.cfg.FetchRetry.retry(ctx, func() error {
			var nextErr error
			raw, nextErr = stream.Next(ctx)
			if errors.Is(nextErr, io.EOF) {
				return backoff.Permanent(nextErr)
			}
			return nextErr
		}, e.onRetry(log, "fetch"))
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return abort(e.interruptedOr(ctx, fmt.Errorf("%w: %v", ErrFetchRecords, err)))
		}

		event, err := adapter.Normalize(raw)
		if err != nil {
			progress.InvalidEvents++
			m.records.WithLabelValues("invalid").Inc()
			continue
		}
		if !job.AllowedRange.Contains(event.Timestamp) || seen.Seen(raw.SourceID()) {
			progress.SkippedEvents++
			m.records.WithLabelValues("skipped").Inc()
			continue
		}

		event.ImportID = job.ID
		event.SiteID = job.SiteID
		batch = append(batch, event)
		if len(batch) >= e.cfg.BatchSize {
			if err := flush(); err != nil {
				return abort(err)
			}
		}
	}

	if err := flush(); err != nil {
		return abort(err)
	}

	if err := e.finish(ctx, job, domain.ProgressUpdate{Status: domain.StatusCompleted, Progress: progress}); err != nil {
		return err
	}
	log.Info("import completed",
		"imported_events", progress.ImportedEvents,
		"skipped_events", progress.SkippedEvents,
		"invalid_events", progress.InvalidEvents,
	)
	return nil
}

func (e *ImportExecutor) onRetry(log *slog.Logger, stage string) func(error, time.Duration) {
	return func(err error, wait time.Duration) {
		getMetrics().retries.WithLabelValues(stage).Inc()
		log.Warn("retrying import "+stage, "error", err, "wait", wait)
	}
}

func (e *ImportExecutor) interruptedOr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ErrImportInterrupted
	}
	return err
}

func (e *ImportExecutor) fail(ctx context.Context, job domain.ImportJob, progress domain.ImportProgress, cause error) error {
	if finishErr := e.finish(ctx, job, domain.ProgressUpdate{
		Status:       domain.StatusFailed,
		Progress:     progress,
		ErrorMessage: truncateReason(cause.Error()),
	}); finishErr != nil {
		return fmt.Errorf("%v; fail update failed: %w", cause, finishErr)
	}
	return cause
}

// finish records the terminal status and then releases the quota slot. The
// write is retried on a context detached from ctx so shutdown still records
// it. The slot is released even when every attempt fails; startup recovery
// fails a record left processing.
func (e *ImportExecutor) finish(ctx context.Context, job domain.ImportJob, u domain.ProgressUpdate) error {
	finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	log := e.logger.With("import_id", job.ID, "status", u.Status)
	err := e.cfg.WriteRetry.retry(finalCtx, func() error {
		_, saveErr := e.jobs.UpdateProgress(finalCtx, job.ID, u)
		if errors.Is(saveErr, domain.ErrInvalidTransition) || errors.Is(saveErr, domain.ErrImportNotFound) {
			return backoff.Permanent(saveErr)
		}
		return saveErr
	}, e.onRetry(log, "finalize"))
	if err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
		log.Error("record terminal import status failed", "error", err)
	}

	e.quota.CompleteImport(job.OrganizationID, job.ID)
	getMetrics().jobsFinished.WithLabelValues(string(job.Platform), string(u.Status)).Inc()
	return err
}

// truncateReason bounds an error message to maxLen bytes without splitting
// a UTF-8 sequence.
func truncateReason(reason string) string {
	const maxLen = 1000
	reason = strings.ToValidUTF8(strings.TrimSpace(reason), "\uFFFD")
	if len(reason) <= maxLen {
		return reason
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}
