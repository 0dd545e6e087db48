package main

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mohammadpnp/site-import/internal/bootstrap"
	"github.com/mohammadpnp/site-import/internal/infrastructure/migrations"
)

type migrationStatusOutput struct {
	Target   migrations.Target `json:"target"`
	Applied  []int64           `json:"applied"`
	Pending  []int64           `json:"pending"`
	UpToDate bool              `json:"up_to_date"`
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect PostgreSQL and ClickHouse migrations",
	}
	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateStatusCmd())
	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := selectTargets(target)
			if err != nil {
				return err
			}

			c, err := openContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			for _, t := range targets {
				db, err := targetDB(c, t)
				if err != nil {
					return err
				}
				if err := migrations.Up(cmd.Context(), t, db, c.Logger); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "Migration target: postgres or clickhouse (default both)")
	return cmd
}

func newMigrateStatusCmd() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := selectTargets(target)
			if err != nil {
				return err
			}

			c, err := openContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			out := make([]migrationStatusOutput, 0, len(targets))
			for _, t := range targets {
				db, err := targetDB(c, t)
				if err != nil {
					return err
				}
				versions, err := migrations.Status(cmd.Context(), t, db)
				if err != nil {
					return err
				}
				out = append(out, toMigrationStatus(t, versions))
			}
			return writeJSON(out)
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "Migration target: postgres or clickhouse (default both)")
	return cmd
}

func selectTargets(raw string) ([]migrations.Target, error) {
	if raw == "" {
		return migrations.Targets(), nil
	}
	for _, t := range migrations.Targets() {
		if string(t) == raw {
			return []migrations.Target{t}, nil
		}
	}
	return nil, fmt.Errorf("invalid --target %q", raw)
}

func targetDB(c *bootstrap.Container, target migrations.Target) (*sql.DB, error) {
	if target == migrations.TargetClickHouse {
		return c.ClickHouse, nil
	}
	db, err := c.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	return db, nil
}

func toMigrationStatus(target migrations.Target, versions map[int64]bool) migrationStatusOutput {
	out := migrationStatusOutput{Target: target, Applied: []int64{}, Pending: []int64{}}
	for version, applied := range versions {
		if applied {
			out.Applied = append(out.Applied, version)
		} else {
			out.Pending = append(out.Pending, version)
		}
	}
	sort.Slice(out.Applied, func(i, j int) bool { return out.Applied[i] < out.Applied[j] })
	sort.Slice(out.Pending, func(i, j int) bool { return out.Pending[i] < out.Pending[j] })
	out.UpToDate = len(out.Pending) == 0
	return out
}
