package repository

import (
	"context"
	"database/sql"
	"fmt"

	domain "github.com/mohammadpnp/site-import/internal/domain/siteimport"
)

const insertEventsSQL = `INSERT INTO events (
    site_id, import_id, source_id, timestamp, type, event_name, session_id,
    hostname, pathname, querystring, page_title, referrer,
    browser, operating_system, device_type, screen_width, screen_height,
    language, country, region, city
)`

// EventStoreRepository writes imported events to the ClickHouse events
// table through the clickhouse-go database/sql driver.
type EventStoreRepository struct {
	db *sql.DB
}

func NewEventStoreRepository(db *sql.DB) *EventStoreRepository {
	return &EventStoreRepository{db: db}
}

// InsertBatch sends all events as a single ClickHouse block. Either the whole
// batch is committed or none of it is.
func (r *EventStoreRepository) InsertBatch(ctx context.Context, events []domain.CanonicalEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertEventsSQL)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, event := range events {
		if _, err := stmt.ExecContext(ctx,
			event.SiteID,
			event.ImportID,
			event.SourceID,
			event.Timestamp.UTC(),
			string(event.Type),
			event.EventName,
			event.SessionID,
			event.Hostname,
			event.Pathname,
			event.Querystring,
			event.PageTitle,
			event.Referrer,
			event.Browser,
			event.OperatingSystem,
			event.DeviceType,
			event.ScreenWidth,
			event.ScreenHeight,
			event.Language,
			event.Country,
			event.Region,
			event.City,
		); err != nil {
			return fmt.Errorf("append event %s: %w", event.SourceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

func (r *EventStoreRepository) DeleteByImport(ctx context.Context, siteID int64, importID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM events WHERE import_id = ? AND site_id = ?", importID, siteID); err != nil {
		return fmt.Errorf("delete imported events: %w", err)
	}
	return nil
}

func (r *EventStoreRepository) CountByImport(ctx context.Context, siteID int64, importID string) (uint64, error) {
	var count uint64
	err := r.db.QueryRowContext(ctx, "SELECT count() FROM events WHERE import_id = ? AND site_id = ?", importID, siteID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count imported events: %w", err)
	}
	return count, nil
}
