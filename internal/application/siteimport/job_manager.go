package siteimport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domain "github.com/mohammadpnp/site-import/internal/domain/siteimport"
)

// JobManager owns the import job records and is the only path by which
// their status changes.
type JobManager struct {
	repo   domain.ImportJobRepository
	now    func() time.Time
	logger *slog.Logger
}

func NewJobManager(repo domain.ImportJobRepository, now func() time.Time, logger *slog.Logger) *JobManager {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JobManager{repo: repo, now: now, logger: logger}
}

// Create persists a new pending job. The caller must already hold a quota
// reservation for p.ID.
func (m *JobManager) Create(ctx context.Context, p domain.NewImportJobParams) (domain.ImportJob, error) {
	job := domain.NewImportJob(p, m.now().UTC())
	if err := m.repo.Create(ctx, job); err != nil {
		return domain.ImportJob{}, err
	}
	return job, nil
}

func (m *JobManager) Get(ctx context.Context, importID string) (domain.ImportJob, error) {
	job, err := m.repo.GetByID(ctx, importID)
	if err != nil {
		return domain.ImportJob{}, err
	}
	if job == nil {
		return domain.ImportJob{}, domain.ErrImportNotFound
	}
	return *job, nil
}

func (m *JobManager) ListBySite(ctx context.Context, siteID int64) ([]domain.ImportJob, error) {
	return m.repo.ListBySite(ctx, siteID)
}

// ClaimNext moves the oldest pending job to processing. It returns nil when
// there is nothing to do.
func (m *JobManager) ClaimNext(ctx context.Context) (*domain.ImportJob, error) {
	return m.repo.ClaimNext(ctx)
}

// UpdateProgress applies an executor update to the job it owns.
func (m *JobManager) UpdateProgress(ctx context.Context, importID string, u domain.ProgressUpdate) (domain.ImportJob, error) {
	current, err := m.Get(ctx, importID)
	if err != nil {
		return domain.ImportJob{}, err
	}

	next, err := current.Apply(u, m.now().UTC())
	if err != nil {
		m.logger.Error("rejected import job update",
			"import_id", importID,
			"from", current.Status,
			"to", u.Status,
			"error", err,
		)
		return current, err
	}

	if err := m.repo.Save(ctx, next, current.Status); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			m.logger.Error("import job changed concurrently", "import_id", importID, "error", err)
		}
		return current, err
	}
	return next, nil
}

// Delete removes a terminal job record.
func (m *JobManager) Delete(ctx context.Context, importID string) error {
	return m.repo.DeleteTerminal(ctx, importID)
}

// Recover fails jobs left processing by a previous process and returns the
// jobs that still hold a quota slot.
func (m *JobManager) Recover(ctx context.Context) ([]domain.ImportJob, error) {
	failed, err := m.repo.FailProcessing(ctx, ErrImportInterrupted.Error()+": process restarted")
	if err != nil {
		return nil, fmt.Errorf("fail interrupted imports: %w", err)
	}
	if failed > 0 {
		m.logger.Warn("marked interrupted imports as failed", "count", failed)
	}

	active, err := m.repo.ListByStatus(ctx, domain.StatusPending, domain.StatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("list active imports: %w", err)
	}
	return active, nil
}
