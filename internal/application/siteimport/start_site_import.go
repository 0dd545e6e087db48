package siteimport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	domain "github.com/mohammadpnp/site-import/internal/domain/siteimport"
)

type StartSiteImportInput struct {
	SiteID    int64
	Platform  string
	SourceRef string
}

type AllowedDateRangeOutput struct {
	EarliestAllowedDate string `json:"earliestAllowedDate"`
	LatestAllowedDate   string `json:"latestAllowedDate"`
}

type StartSiteImportOutput struct {
	ImportID         string                 `json:"importId"`
	AllowedDateRange AllowedDateRangeOutput `json:"allowedDateRange"`
}

type StartSiteImport interface {
	Execute(ctx context.Context, in StartSiteImportInput) (StartSiteImportOutput, error)
}

type importReserver interface {
	Reserve(org domain.Organization, importID string) (domain.AllowedDateRange, error)
	CompleteImport(organizationID, importID string) bool
}

type importJobCreator interface {
	Create(ctx context.Context, p domain.NewImportJobParams) (domain.ImportJob, error)
}

type importNotifier interface {
	Notify()
}

type startSiteImport struct {
	sites           domain.SiteDirectory
	quota           importReserver
	jobs            importJobCreator
	adapters        *AdapterRegistry
	notifier        importNotifier
	defaultPlatform domain.Platform
	logger          *slog.Logger
}

type StartSiteImportDeps struct {
	Sites           domain.SiteDirectory
	Quota           importReserver
	Jobs            importJobCreator
	Adapters        *AdapterRegistry
	Notifier        importNotifier
	DefaultPlatform domain.Platform
	Logger          *slog.Logger
}

func NewStartSiteImport(deps StartSiteImportDeps) StartSiteImport {
	if deps.DefaultPlatform == "" {
		deps.DefaultPlatform = domain.PlatformUmami
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &startSiteImport{
		sites:           deps.Sites,
		quota:           deps.Quota,
		jobs:            deps.Jobs,
		adapters:        deps.Adapters,
		notifier:        deps.Notifier,
		defaultPlatform: deps.DefaultPlatform,
		logger:          deps.Logger,
	}
}

func (uc *startSiteImport) Execute(ctx context.Context, in StartSiteImportInput) (StartSiteImportOutput, error) {
	if in.SiteID <= 0 {
		return StartSiteImportOutput{}, ErrInvalidSite
	}

	platform := domain.Platform(strings.ToLower(strings.TrimSpace(in.Platform)))
	if platform == "" {
		platform = uc.defaultPlatform
	}
	adapter, err := uc.adapters.Lookup(platform)
	if err != nil {
		return StartSiteImportOutput{}, err
	}
	sourceRef := strings.TrimSpace(in.SourceRef)
	if err := adapter.ValidateSource(sourceRef); err != nil {
		return StartSiteImportOutput{}, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}

	site, err := uc.sites.GetSite(ctx, in.SiteID)
	if err != nil {
		if errors.Is(err, domain.ErrSiteNotFound) {
			return StartSiteImportOutput{}, ErrSiteNotFound
		}
		return StartSiteImportOutput{}, fmt.Errorf("%w: %v", ErrCreateImport, err)
	}

	importID := uuid.NewString()
	window, err := uc.quota.Reserve(site.Organization, importID)
	if err != nil {
		return StartSiteImportOutput{}, err
	}

	job, err := uc.jobs.Create(ctx, domain.NewImportJobParams{
		ID:             importID,
		SiteID:         site.ID,
		OrganizationID: site.Organization.ID,
		Platform:       platform,
		SourceRef:      sourceRef,
		AllowedRange:   window,
	})
	if err != nil {
		uc.quota.CompleteImport(site.Organization.ID, importID)
		return StartSiteImportOutput{}, fmt.Errorf("%w: %v", ErrCreateImport, err)
	}

	uc.logger.InfoContext(ctx, "import created",
		"import_id", job.ID,
		"site_id", job.SiteID,
		"organization_id", job.OrganizationID,
		"platform", job.Platform,
	)
	getMetrics().jobsStarted.WithLabelValues(string(platform)).Inc()
	if uc.notifier != nil {
		uc.notifier.Notify()
	}

	return StartSiteImportOutput{
		ImportID: job.ID,
		AllowedDateRange: AllowedDateRangeOutput{
			EarliestAllowedDate: window.EarliestString(),
			LatestAllowedDate:   window.LatestString(),
		},
	}, nil
}
