package siteimport

import (
	"context"
	"fmt"
	"time"

	domain "github.com/mohammadpnp/site-import/internal/domain/siteimport"
)

type ListSiteImportsInput struct {
	SiteID int64
}

type SiteImportOutput struct {
	ImportID       string     `json:"importId"`
	Platform       string     `json:"platform"`
	Status         string     `json:"status"`
	ImportedEvents int64      `json:"importedEvents"`
	SkippedEvents  int64      `json:"skippedEvents"`
	InvalidEvents  int64      `json:"invalidEvents"`
	ErrorMessage   *string    `json:"errorMessage"`
	StartedAt      time.Time  `json:"startedAt"`
	CompletedAt    *time.Time `json:"completedAt"`
}

type ListSiteImports interface {
	Execute(ctx context.Context, in ListSiteImportsInput) ([]SiteImportOutput, error)
}

type importJobLister interface {
	ListBySite(ctx context.Context, siteID int64) ([]domain.ImportJob, error)
}

type listSiteImports struct {
	jobs importJobLister
}

func NewListSiteImports(jobs importJobLister) ListSiteImports {
	return &listSiteImports{jobs: jobs}
}

func (uc *listSiteImports) Execute(ctx context.Context, in ListSiteImportsInput) ([]SiteImportOutput, error) {
	if in.SiteID <= 0 {
		return nil, ErrInvalidSite
	}

	jobs, err := uc.jobs.ListBySite(ctx, in.SiteID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrListImports, err)
	}

	out := make([]SiteImportOutput, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, toSiteImportOutput(job))
	}
	return out, nil
}

func toSiteImportOutput(job domain.ImportJob) SiteImportOutput {
	return SiteImportOutput{
		ImportID:       job.ID,
		Platform:       string(job.Platform),
		Status:         string(job.Status),
		ImportedEvents: job.ImportedEvents,
		SkippedEvents:  job.SkippedEvents,
		InvalidEvents:  job.InvalidEvents,
		ErrorMessage:   job.ErrorMessage,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
	}
}
