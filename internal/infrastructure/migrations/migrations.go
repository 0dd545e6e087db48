package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql
var postgresFS embed.FS

//go:embed clickhouse/*.sql
var clickhouseFS embed.FS

// Target names one of the two stores the service migrates.
type Target string

const (
	TargetPostgres   Target = "postgres"
	TargetClickHouse Target = "clickhouse"
)

func Targets() []Target {
	return []Target{TargetPostgres, TargetClickHouse}
}

func provider(target Target, db *sql.DB) (*goose.Provider, error) {
	var (
		dialect goose.Dialect
		root    embed.FS
	)
	switch target {
	case TargetPostgres:
		dialect, root = goose.DialectPostgres, postgresFS
	case TargetClickHouse:
		dialect, root = goose.DialectClickHouse, clickhouseFS
	default:
		return nil, fmt.Errorf("unknown migration target %q", target)
	}

	fsys, err := fs.Sub(root, string(target))
	if err != nil {
		return nil, fmt.Errorf("open %s migrations: %w", target, err)
	}
	p, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s migration provider: %w", target, err)
	}
	return p, nil
}

// Up applies every pending migration of target.
func Up(ctx context.Context, target Target, db *sql.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	p, err := provider(target, db)
	if err != nil {
		return err
	}

	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to migrate %s: %w", target, err)
	}
	for _, r := range results {
		logger.Info("migration applied", "target", target, "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

// Status reports, per known migration version, whether it has been applied.
func Status(ctx context.Context, target Target, db *sql.DB) (map[int64]bool, error) {
	p, err := provider(target, db)
	if err != nil {
		return nil, err
	}

	statuses, err := p.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s migration status: %w", target, err)
	}
	out := make(map[int64]bool, len(statuses))
	for _, s := range statuses {
		out[s.Source.Version] = s.State == goose.StateApplied
	}
	return out, nil
}
