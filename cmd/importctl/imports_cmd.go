package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	app "github.com/mohammadpnp/site-import/internal/application/siteimport"
)

type importDetailOutput struct {
	ImportID            string     `json:"import_id"`
	SiteID              int64      `json:"site_id"`
	OrganizationID      string     `json:"organization_id"`
	Platform            string     `json:"platform"`
	SourceRef           string     `json:"source_ref"`
	Status              string     `json:"status"`
	ImportedEvents      int64      `json:"imported_events"`
	SkippedEvents       int64      `json:"skipped_events"`
	InvalidEvents       int64      `json:"invalid_events"`
	StoredEvents        uint64     `json:"stored_events"`
	ErrorMessage        *string    `json:"error_message"`
	EarliestAllowedDate string     `json:"earliest_allowed_date"`
	LatestAllowedDate   string     `json:"latest_allowed_date"`
	StartedAt           time.Time  `json:"started_at"`
	CompletedAt         *time.Time `json:"completed_at"`
}

type deleteOutput struct {
	Command    string `json:"command"`
	ImportID   string `json:"import_id"`
	DurationMS int64  `json:"duration_ms"`
}

func newImportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imports",
		Short: "Inspect and delete site imports",
	}
	cmd.AddCommand(newImportsListCmd())
	cmd.AddCommand(newImportsShowCmd())
	cmd.AddCommand(newImportsDeleteCmd())
	return cmd
}

func newImportsListCmd() *cobra.Command {
	var siteID int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List imports of a site, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			out, err := c.ListImports.Execute(cmd.Context(), app.ListSiteImportsInput{SiteID: siteID})
			if err != nil {
				return err
			}
			return writeJSON(out)
		},
	}

	cmd.Flags().Int64Var(&siteID, "site", 0, "Site id (required)")
	_ = cmd.MarkFlagRequired("site")
	return cmd
}

func newImportsShowCmd() *cobra.Command {
	var (
		siteID   int64
		importID string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one import with the number of events stored for it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !app.ValidImportID(importID) {
				return fmt.Errorf("invalid --import %q: %w", importID, app.ErrInvalidImportID)
			}

			c, err := openContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			job, err := c.Jobs.Get(cmd.Context(), importID)
			if err != nil {
				return err
			}
			if job.SiteID != siteID {
				return fmt.Errorf("import %s does not belong to site %d", importID, siteID)
			}

			stored, err := c.EventStore.CountByImport(cmd.Context(), siteID, importID)
			if err != nil {
				return err
			}

			return writeJSON(importDetailOutput{
				ImportID:            job.ID,
				SiteID:              job.SiteID,
				OrganizationID:      job.OrganizationID,
				Platform:            string(job.Platform),
				SourceRef:           job.SourceRef,
				Status:              string(job.Status),
				ImportedEvents:      job.ImportedEvents,
				SkippedEvents:       job.SkippedEvents,
				InvalidEvents:       job.InvalidEvents,
				StoredEvents:        stored,
				ErrorMessage:        job.ErrorMessage,
				EarliestAllowedDate: job.AllowedRange.EarliestString(),
				LatestAllowedDate:   job.AllowedRange.LatestString(),
				StartedAt:           job.StartedAt,
				CompletedAt:         job.CompletedAt,
			})
		},
	}

	cmd.Flags().Int64Var(&siteID, "site", 0, "Site id (required)")
	cmd.Flags().StringVar(&importID, "import", "", "Import UUID (required)")
	_ = cmd.MarkFlagRequired("site")
	_ = cmd.MarkFlagRequired("import")
	return cmd
}

func newImportsDeleteCmd() *cobra.Command {
	var (
		siteID   int64
		importID string
		orgID    string
	)

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a finished import and every event it wrote",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !app.ValidImportID(importID) {
				return fmt.Errorf("invalid --import %q: %w", importID, app.ErrInvalidImportID)
			}

			c, err := openContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			start := time.Now()
			err = c.DeleteImport.Execute(cmd.Context(), app.DeleteSiteImportInput{
				SiteID:                   siteID,
				ImportID:                 importID,
				RequestingOrganizationID: orgID,
			})
			if err != nil {
				return err
			}

			return writeJSON(deleteOutput{
				Command:    "imports delete",
				ImportID:   importID,
				DurationMS: time.Since(start).Milliseconds(),
			})
		},
	}

	cmd.Flags().Int64Var(&siteID, "site", 0, "Site id (required)")
	cmd.Flags().StringVar(&importID, "import", "", "Import UUID (required)")
	cmd.Flags().StringVar(&orgID, "org", "", "Organization id that owns the site (required)")
	_ = cmd.MarkFlagRequired("site")
	_ = cmd.MarkFlagRequired("import")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}
