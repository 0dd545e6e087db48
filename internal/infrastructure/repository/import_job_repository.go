package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/mohammadpnp/site-import/internal/domain/siteimport"
	"github.com/mohammadpnp/site-import/internal/infrastructure/db/models"
	"gorm.io/gorm"
)

type ImportJobRepository struct {
	db *gorm.DB
}

func NewImportJobRepository(db *gorm.DB) *ImportJobRepository {
	return &ImportJobRepository{db: db}
}

func (r *ImportJobRepository) Create(ctx context.Context, job domain.ImportJob) error {
	row := toImportJobModel(job)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create import job: %w", err)
	}
	return nil
}

func (r *ImportJobRepository) GetByID(ctx context.Context, importID string) (*domain.ImportJob, error) {
	var row models.ImportJob

	err := r.db.WithContext(ctx).First(&row, "id = ?", importID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrImportNotFound
		}
		return nil, fmt.Errorf("get import job by id: %w", err)
	}

	job := toImportJob(row)
	return &job, nil
}

func (r *ImportJobRepository) ListBySite(ctx context.Context, siteID int64) ([]domain.ImportJob, error) {
	var rows []models.ImportJob

	err := r.db.WithContext(ctx).
		Where("site_id = ?", siteID).
		Order("started_at DESC").
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list import jobs by site: %w", err)
	}
	return toImportJobs(rows), nil
}

func (r *ImportJobRepository) ListByStatus(ctx context.Context, statuses ...domain.Status) ([]domain.ImportJob, error) {
	if len(statuses) == 0 {
		return []domain.ImportJob{}, nil
	}
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, string(status))
	}

	var rows []models.ImportJob
	err := r.db.WithContext(ctx).
		Where("status IN ?", values).
		Order("started_at").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list import jobs by status: %w", err)
	}
	return toImportJobs(rows), nil
}

// ClaimNext moves the oldest pending job to processing. Concurrent callers
// never claim the same row.
func (r *ImportJobRepository) ClaimNext(ctx context.Context) (*domain.ImportJob, error) {
	var row models.ImportJob

	res := r.db.WithContext(ctx).Raw(`
UPDATE import_jobs
SET status = ?, updated_at = NOW()
WHERE id = (
    SELECT id
    FROM import_jobs
    WHERE status = ?
    ORDER BY started_at, id
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
RETURNING *
`, string(domain.StatusProcessing), string(domain.StatusPending)).Scan(&row)
	if res.Error != nil {
		return nil, fmt.Errorf("claim import job: %w", res.Error)
	}
	if res.RowsAffected == 0 || row.ID == "" {
		return nil, nil
	}

	job := toImportJob(row)
	return &job, nil
}

// Save writes job if the stored status still equals expected.
func (r *ImportJobRepository) Save(ctx context.Context, job domain.ImportJob, expected domain.Status) error {
	res := r.db.WithContext(ctx).
		Model(&models.ImportJob{}).
		Where("id = ? AND status = ?", job.ID, string(expected)).
		Updates(map[string]any{
			"status":          string(job.Status),
			"imported_events": job.ImportedEvents,
			"skipped_events":  job.SkippedEvents,
			"invalid_events":  job.InvalidEvents,
			"error_message":   job.ErrorMessage,
			"completed_at":    job.CompletedAt,
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("save import job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return r.missingOr(ctx, job.ID, fmt.Errorf("%w: job %s is no longer %s", domain.ErrInvalidTransition, job.ID, expected))
	}
	return nil
}

func (r *ImportJobRepository) FailProcessing(ctx context.Context, reason string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ImportJob{}).
		Where("status = ?", string(domain.StatusProcessing)).
		Updates(map[string]any{
			"status":        string(domain.StatusFailed),
			"error_message": reason,
			"completed_at":  gorm.Expr("NOW()"),
			"updated_at":    gorm.Expr("NOW()"),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("fail processing import jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteTerminal removes the job only once it has completed or failed.
func (r *ImportJobRepository) DeleteTerminal(ctx context.Context, importID string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND completed_at IS NOT NULL", importID).
		Delete(&models.ImportJob{})
	if res.Error != nil {
		return fmt.Errorf("delete import job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return r.missingOr(ctx, importID, fmt.Errorf("%w: job %s is still active", domain.ErrInvalidTransition, importID))
	}
	return nil
}

func (r *ImportJobRepository) missingOr(ctx context.Context, importID string, err error) error {
	var count int64
	if cerr := r.db.WithContext(ctx).Model(&models.ImportJob{}).Where("id = ?", importID).Count(&count).Error; cerr != nil {
		return fmt.Errorf("check import job: %w", cerr)
	}
	if count == 0 {
		return domain.ErrImportNotFound
	}
	return err
}

func toImportJobModel(job domain.ImportJob) models.ImportJob {
	return models.ImportJob{
		ID:                  job.ID,
		SiteID:              job.SiteID,
		OrganizationID:      job.OrganizationID,
		Platform:            string(job.Platform),
		SourceRef:           job.SourceRef,
		Status:              string(job.Status),
		ImportedEvents:      job.ImportedEvents,
		SkippedEvents:       job.SkippedEvents,
		InvalidEvents:       job.InvalidEvents,
		ErrorMessage:        job.ErrorMessage,
		EarliestAllowedDate: job.AllowedRange.EarliestAllowedDate,
		LatestAllowedDate:   job.AllowedRange.LatestAllowedDate,
		StartedAt:           job.StartedAt,
		CompletedAt:         job.CompletedAt,
	}
}

func toImportJob(row models.ImportJob) domain.ImportJob {
	job := domain.ImportJob{
		ID:             row.ID,
		SiteID:         row.SiteID,
		OrganizationID: row.OrganizationID,
		Platform:       domain.Platform(row.Platform),
		SourceRef:      row.SourceRef,
		Status:         domain.Status(row.Status),
		ImportedEvents: row.ImportedEvents,
		SkippedEvents:  row.SkippedEvents,
		InvalidEvents:  row.InvalidEvents,
		ErrorMessage:   row.ErrorMessage,
		AllowedRange: domain.AllowedDateRange{
			EarliestAllowedDate: row.EarliestAllowedDate.UTC(),
			LatestAllowedDate:   row.LatestAllowedDate.UTC(),
		},
		StartedAt: row.StartedAt.UTC(),
	}
	if row.CompletedAt != nil {
		completedAt := row.CompletedAt.UTC()
		job.CompletedAt = &completedAt
	}
	return job
}

func toImportJobs(rows []models.ImportJob) []domain.ImportJob {
	jobs := make([]domain.ImportJob, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, toImportJob(row))
	}
	return jobs
}
