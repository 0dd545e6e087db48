package siteimport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	domain "github.com/mohammadpnp/site-import/internal/domain/siteimport"
)

// ValidImportID reports whether id is a UUID in canonical 36 character form.
func ValidImportID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

type DeleteSiteImportInput struct {
	SiteID                   int64
	ImportID                 string
	RequestingOrganizationID string
}

type DeleteSiteImport interface {
	Execute(ctx context.Context, in DeleteSiteImportInput) error
}

type deletionJobManager interface {
	Get(ctx context.Context, importID string) (domain.ImportJob, error)
	Delete(ctx context.Context, importID string) error
}

type eventDeleter interface {
	DeleteByImport(ctx context.Context, siteID int64, importID string) error
}

// deletionStep is one step of the deletion saga. A failing step stops the
// saga and is reported wrapped in its failure sentinel.
type deletionStep struct {
	name    string
	failure error
	run     func(ctx context.Context) error
}

type deletionCoordinator struct {
	jobs   deletionJobManager
	events eventDeleter
	quota  quotaReleaser
	logger *slog.Logger
}

func NewDeletionCoordinator(jobs deletionJobManager, events eventDeleter, quota quotaReleaser, logger *slog.Logger) DeleteSiteImport {
	if logger == nil {
		logger = slog.Default()
	}
	return &deletionCoordinator{jobs: jobs, events: events, quota: quota, logger: logger}
}

func (d *deletionCoordinator) Execute(ctx context.Context, in DeleteSiteImportInput) error {
	if in.SiteID <= 0 {
		return ErrInvalidSite
	}
	if !ValidImportID(in.ImportID) {
		return ErrInvalidImportID
	}

	job, err := d.jobs.Get(ctx, in.ImportID)
	if err != nil {
		if errors.Is(err, domain.ErrImportNotFound) {
			return ErrImportNotFound
		}
		return fmt.Errorf("load import: %w", err)
	}
	if job.SiteID != in.SiteID {
		return fmt.Errorf("%w: site %d", ErrForbidden, in.SiteID)
	}
	if job.CompletedAt == nil {
		return ErrActiveImport
	}
	if job.OrganizationID != in.RequestingOrganizationID {
		return fmt.Errorf("%w: organization %s", ErrForbidden, in.RequestingOrganizationID)
	}

	log := d.logger.With("import_id", job.ID, "site_id", job.SiteID, "organization_id", job.OrganizationID)
	m := getMetrics()

	for _, step := range d.steps(job, log) {
		if err := step.run(ctx); err != nil {
			log.ErrorContext(ctx, "import deletion step failed", "step", step.name, "error", err)
			m.deletions.WithLabelValues(step.name + "_failed").Inc()
			return fmt.Errorf("%w: %v", step.failure, err)
		}
	}

	log.InfoContext(ctx, "import deleted")
	m.deletions.WithLabelValues("deleted").Inc()
	return nil
}

// steps returns the saga in execution order: events before the record so
// that a retry after any failure starts from a still-existing record, and
// quota only once nothing of the import is left.
func (d *deletionCoordinator) steps(job domain.ImportJob, log *slog.Logger) []deletionStep {
	return []deletionStep{
		{
			name:    "events",
			failure: ErrEventDeletionFailed,
			run: func(ctx context.Context) error {
				return d.events.DeleteByImport(ctx, job.SiteID, job.ID)
			},
		},
		{
			name:    "record",
			failure: ErrRecordDeletionFailed,
			run: func(ctx context.Context) error {
				return d.jobs.Delete(ctx, job.ID)
			},
		},
		{
			name: "quota",
			run: func(ctx context.Context) error {
				if !d.quota.CompleteImport(job.OrganizationID, job.ID) {
					log.DebugContext(ctx, "no quota slot held by deleted import")
				}
				return nil
			},
		},
	}
}
