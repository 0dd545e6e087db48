// Package umami reads historical events straight from an Umami Postgres
// database and maps them onto canonical events.
package umami

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	app "github.com/mohammadpnp/site-import/internal/application/siteimport"
	domain "github.com/mohammadpnp/site-import/internal/domain/siteimport"
)

const (
	eventTypePageview    = 1
	eventTypeCustomEvent = 2

	defaultPageSize = 1000
)

var errNotConfigured = errors.New("umami source database is not configured")

const pageSQL = `
SELECT
  e.event_id::text AS event_id,
  e.session_id::text AS session_id,
  e.created_at,
  e.event_type,
  COALESCE(e.event_name, '') AS event_name,
  COALESCE(e.hostname, '') AS hostname,
  COALESCE(e.url_path, '') AS url_path,
  COALESCE(e.url_query, '') AS url_query,
  COALESCE(e.page_title, '') AS page_title,
  COALESCE(e.referrer_domain, '') AS referrer_domain,
  COALESCE(s.browser, '') AS browser,
  COALESCE(s.os, '') AS os,
  COALESCE(s.device, '') AS device,
  COALESCE(s.screen, '') AS screen,
  COALESCE(s.language, '') AS language,
  COALESCE(s.country, '') AS country,
  COALESCE(s.subdivision1, '') AS region,
  COALESCE(s.city, '') AS city
FROM website_event e
JOIN session s ON s.session_id = e.session_id
WHERE e.website_id = $1::uuid
  AND e.created_at >= $2
  AND e.created_at < $3
  AND ($4::timestamptz IS NULL OR (e.created_at, e.event_id) > ($4::timestamptz, $5::uuid))
ORDER BY e.created_at, e.event_id
LIMIT $6
`

// Record is one Umami website_event row joined with its session.
type Record struct {
	EventID        string    `db:"event_id"`
	SessionID      string    `db:"session_id"`
	CreatedAt      time.Time `db:"created_at"`
	EventType      int32     `db:"event_type"`
	EventName      string    `db:"event_name"`
	Hostname       string    `db:"hostname"`
	URLPath        string    `db:"url_path"`
	URLQuery       string    `db:"url_query"`
	PageTitle      string    `db:"page_title"`
	ReferrerDomain string    `db:"referrer_domain"`
	Browser        string    `db:"browser"`
	OS             string    `db:"os"`
	Device         string    `db:"device"`
	Screen         string    `db:"screen"`
	Language       string    `db:"language"`
	Country        string    `db:"country"`
	Region         string    `db:"region"`
	City           string    `db:"city"`
}

func (r Record) SourceID() string { return r.EventID }

// Querier is the subset of *pgxpool.Pool the adapter needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Config struct {
	PageSize int
	Logger   *slog.Logger
}

type Adapter struct {
	db       Querier
	pageSize int
	logger   *slog.Logger
}

// NewAdapter returns the Umami adapter. A nil db keeps the platform
// registered but fails every fetch.
func NewAdapter(db Querier, cfg Config) *Adapter {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Adapter{db: db, pageSize: cfg.PageSize, logger: cfg.Logger}
}

func (a *Adapter) Platform() domain.Platform {
	return domain.PlatformUmami
}

// ValidateSource checks that sourceRef is an Umami website id.
func (a *Adapter) ValidateSource(sourceRef string) error {
	if sourceRef == "" {
		return errors.New("umami website id is required")
	}
	if _, err := uuid.Parse(sourceRef); err != nil {
		return fmt.Errorf("umami website id %q is not a uuid", sourceRef)
	}
	return nil
}

func (a *Adapter) FetchRecords(ctx context.Context, job domain.ImportJob) (app.RecordStream, error) {
	if a.db == nil {
		return nil, errNotConfigured
	}
	if err := a.ValidateSource(job.SourceRef); err != nil {
		return nil, err
	}

	from := job.AllowedRange.EarliestAllowedDate
	to := job.AllowedRange.End()
	a.logger.DebugContext(ctx, "opening umami event stream", "import_id", job.ID, "website_id", job.SourceRef)

	return newStream(a.pageSize, func(ctx context.Context, after *cursor, limit int) ([]Record, error) {
		return a.fetchPage(ctx, job.SourceRef, from, to, after, limit)
	}), nil
}

func (a *Adapter) fetchPage(ctx context.Context, websiteID string, from, to time.Time, after *cursor, limit int) ([]Record, error) {
	var (
		afterAt any
		afterID any
	)
	if after != nil {
		afterAt, afterID = after.createdAt, after.eventID
	}

	rows, err := a.db.Query(ctx, pageSQL, websiteID, from, to, afterAt, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("query umami events: %w", err)
	}
	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[Record])
	if err != nil {
		return nil, fmt.Errorf("scan umami events: %w", err)
	}
	return records, nil
}

// Normalize maps an Umami record onto a canonical event. ImportID and SiteID
// are left for the executor to set.
func (a *Adapter) Normalize(raw app.RawRecord) (domain.CanonicalEvent, error) {
	r, ok := raw.(Record)
	if !ok {
		return domain.CanonicalEvent{}, domain.NewValidationError("", fmt.Sprintf("unexpected record type %T", raw))
	}
	if strings.TrimSpace(r.EventID) == "" {
		return domain.CanonicalEvent{}, domain.NewValidationError("event_id", "missing")
	}
	if r.CreatedAt.IsZero() {
		return domain.CanonicalEvent{}, domain.NewValidationError("created_at", "missing")
	}

	event := domain.CanonicalEvent{
		SourceID:        r.EventID,
		Timestamp:       r.CreatedAt.UTC(),
		SessionID:       r.SessionID,
		Hostname:        strings.ToLower(r.Hostname),
		Pathname:        r.URLPath,
		Querystring:     r.URLQuery,
		PageTitle:       r.PageTitle,
		Referrer:        r.ReferrerDomain,
		Browser:         r.Browser,
		OperatingSystem: r.OS,
		DeviceType:      strings.ToLower(r.Device),
		Language:        r.Language,
		Country:         strings.ToUpper(r.Country),
		Region:          r.Region,
		City:            r.City,
	}
	event.ScreenWidth, event.ScreenHeight = parseScreen(r.Screen)

	switch r.EventType {
	case eventTypePageview:
		event.Type = domain.EventTypePageview
	case eventTypeCustomEvent:
		if strings.TrimSpace(r.EventName) == "" {
			return domain.CanonicalEvent{}, domain.NewValidationError("event_name", "custom event without a name")
		}
		event.Type = domain.EventTypeCustomEvent
		event.EventName = r.EventName
	default:
		return domain.CanonicalEvent{}, domain.NewValidationError("event_type", fmt.Sprintf("unsupported value %d", r.EventType))
	}

	if event.Pathname == "" {
		event.Pathname = "/"
	}
	if event.Querystring != "" && !strings.HasPrefix(event.Querystring, "?") {
		event.Querystring = "?" + event.Querystring
	}
	return event, nil
}

// parseScreen reads Umami's "1920x1080" screen value. Anything else yields
// zero dimensions.
func parseScreen(screen string) (uint16, uint16) {
	w, h, ok := strings.Cut(strings.ToLower(screen), "x")
	if !ok {
		return 0, 0
	}
	width, err := strconv.ParseUint(strings.TrimSpace(w), 10, 16)
	if err != nil {
		return 0, 0
	}
	height, err := strconv.ParseUint(strings.TrimSpace(h), 10, 16)
	if err != nil {
		return 0, 0
	}
	return uint16(width), uint16(height)
}
