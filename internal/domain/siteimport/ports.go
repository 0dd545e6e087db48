package siteimport

import "context"

type ImportJobRepository interface {
	Create(ctx context.Context, job ImportJob) error
	GetByID(ctx context.Context, importID string) (*ImportJob, error)
	ListBySite(ctx context.Context, siteID int64) ([]ImportJob, error)
	ListByStatus(ctx context.Context, statuses ...Status) ([]ImportJob, error)
	ClaimNext(ctx context.Context) (*ImportJob, error)
	Save(ctx context.Context, job ImportJob, expected Status) error
	FailProcessing(ctx context.Context, reason string) (int64, error)
	DeleteTerminal(ctx context.Context, importID string) error
}

type SiteDirectory interface {
	GetSite(ctx context.Context, siteID int64) (Site, error)
}

type EventStore interface {
	InsertBatch(ctx context.Context, events []CanonicalEvent) error
	DeleteByImport(ctx context.Context, siteID int64, importID string) error
	CountByImport(ctx context.Context, siteID int64, importID string) (uint64, error)
}
