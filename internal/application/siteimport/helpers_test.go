package siteimport_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	app "github.com/mohammadpnp/site-import/internal/application/siteimport"
	domain "github.com/mohammadpnp/site-import/internal/domain/siteimport"
)

var (
	testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	testOrg = domain.Organization{ID: "org-1", Plan: "standard"}
)

func fixedNow() time.Time { return testNow }

type memoryJobStore struct {
	mu        sync.Mutex
	jobs      map[string]domain.ImportJob
	createErr error
	deleteErr error

	// terminalSaveFails fails that many saves of a terminal status; < 0 fails forever.
	terminalSaveFails int
	terminalSaves     int
}

func newMemoryJobStore() *memoryJobStore {
	return &memoryJobStore{jobs: make(map[string]domain.ImportJob)}
}

func (s *memoryJobStore) Create(ctx context.Context, job domain.ImportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *memoryJobStore) GetByID(ctx context.Context, importID string) (*domain.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[importID]
	if !ok {
		return nil, domain.ErrImportNotFound
	}
	return &job, nil
}

func (s *memoryJobStore) ListBySite(ctx context.Context, siteID int64) ([]domain.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ImportJob, 0)
	for _, job := range s.jobs {
		if job.SiteID == siteID {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (s *memoryJobStore) ListByStatus(ctx context.Context, statuses ...domain.Status) ([]domain.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ImportJob, 0)
	for _, job := range s.jobs {
		for _, status := range statuses {
			if job.Status == status {
				out = append(out, job)
			}
		}
	}
	return out, nil
}

func (s *memoryJobStore) ClaimNext(ctx context.Context) (*domain.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var oldest *domain.ImportJob
	for _, job := range s.jobs {
		if job.Status != domain.StatusPending {
			continue
		}
		if oldest == nil || job.StartedAt.Before(oldest.StartedAt) {
			candidate := job
			oldest = &candidate
		}
	}
	if oldest == nil {
		return nil, nil
	}
	oldest.Status = domain.StatusProcessing
	s.jobs[oldest.ID] = *oldest
	return oldest, nil
}

func (s *memoryJobStore) Save(ctx context.Context, job domain.ImportJob, expected domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.jobs[job.ID]
	if !ok {
		return domain.ErrImportNotFound
	}
	if current.Status != expected {
		return domain.ErrInvalidTransition
	}
	if job.Status.Terminal() {
		s.terminalSaves++
		if s.terminalSaveFails != 0 {
			if s.terminalSaveFails > 0 {
				s.terminalSaveFails--
			}
			return errors.New("postgres: connection reset")
		}
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *memoryJobStore) FailProcessing(ctx context.Context, reason string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, job := range s.jobs {
		if job.Status != domain.StatusProcessing {
			continue
		}
		completedAt := testNow
		job.Status = domain.StatusFailed
		job.ErrorMessage = &reason
		job.CompletedAt = &completedAt
		s.jobs[id] = job
		n++
	}
	return n, nil
}

func (s *memoryJobStore) DeleteTerminal(ctx context.Context, importID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	job, ok := s.jobs[importID]
	if !ok {
		return domain.ErrImportNotFound
	}
	if job.CompletedAt == nil {
		return domain.ErrInvalidTransition
	}
	delete(s.jobs, importID)
	return nil
}

func (s *memoryJobStore) get(t *testing.T, importID string) domain.ImportJob {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[importID]
	require.True(t, ok, "job %s not stored", importID)
	return job
}

func (s *memoryJobStore) put(job domain.ImportJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

type fakeSites struct {
	sites map[int64]domain.Site
	err   error
}

func (f *fakeSites) GetSite(ctx context.Context, siteID int64) (domain.Site, error) {
	if f.err != nil {
		return domain.Site{}, f.err
	}
	site, ok := f.sites[siteID]
	if !ok {
		return domain.Site{}, domain.ErrSiteNotFound
	}
	return site, nil
}

type fakeEventStore struct {
	mu          sync.Mutex
	events      []domain.CanonicalEvent
	insertFails int
	insertCalls int
	deleteErr   error
	deleteCalls int
}

func (f *fakeEventStore) InsertBatch(ctx context.Context, events []domain.CanonicalEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if f.insertFails != 0 {
		if f.insertFails > 0 {
			f.insertFails--
		}
		return errors.New("clickhouse: connection reset")
	}
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeEventStore) DeleteByImport(ctx context.Context, siteID int64, importID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	kept := f.events[:0]
	for _, event := range f.events {
		if event.SiteID == siteID && event.ImportID == importID {
			continue
		}
		kept = append(kept, event)
	}
	f.events = kept
	return nil
}

func (f *fakeEventStore) CountByImport(ctx context.Context, siteID int64, importID string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n uint64
	for _, event := range f.events {
		if event.SiteID == siteID && event.ImportID == importID {
			n++
		}
	}
	return n, nil
}

type fakeRecord struct {
	id    string
	at    time.Time
	valid bool
}

func (r fakeRecord) SourceID() string { return r.id }

// fakeStream fails at index failAt; failures < 0 fails forever.
type fakeStream struct {
	mu       sync.Mutex
	records  []fakeRecord
	pos      int
	failAt   int
	failures int
	closed   bool
}

func (s *fakeStream) Next(ctx context.Context) (app.RawRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos == s.failAt && s.failures != 0 {
		if s.failures > 0 {
			s.failures--
		}
		return nil, errors.New("umami: connection refused")
	}
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}
	r := s.records[s.pos]
	s.pos++
	return r, nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type fakeAdapter struct {
	stream    *fakeStream
	openErr   error
	sourceErr error
}

func (a *fakeAdapter) Platform() domain.Platform { return domain.PlatformUmami }

func (a *fakeAdapter) ValidateSource(sourceRef string) error { return a.sourceErr }

func (a *fakeAdapter) FetchRecords(ctx context.Context, job domain.ImportJob) (app.RecordStream, error) {
	if a.openErr != nil {
		return nil, a.openErr
	}
	return a.stream, nil
}

func (a *fakeAdapter) Normalize(raw app.RawRecord) (domain.CanonicalEvent, error) {
	r := raw.(fakeRecord)
	if !r.valid {
		return domain.CanonicalEvent{}, domain.NewValidationError("created_at", "missing")
	}
	return domain.CanonicalEvent{SourceID: r.id, Timestamp: r.at, Type: domain.EventTypePageview}, nil
}

func validRecords(n int) []fakeRecord {
	records := make([]fakeRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, fakeRecord{
			id:    fmt.Sprintf("evt-%d", i),
			at:    testNow.Add(-time.Duration(i+1) * time.Minute),
			valid: true,
		})
	}
	return records
}

func newQuota() *app.QuotaManager {
	return app.NewQuotaManager(app.QuotaManagerConfig{Now: fixedNow})
}

// admitAndClaim runs admission and claim for one job, leaving it processing.
func admitAndClaim(t *testing.T, jobs *app.JobManager, quota *app.QuotaManager, importID string) domain.ImportJob {
	t.Helper()

	window, err := quota.Reserve(testOrg, importID)
	require.NoError(t, err)

	_, err = jobs.Create(context.Background(), domain.NewImportJobParams{
		ID:             importID,
		SiteID:         42,
		OrganizationID: testOrg.ID,
		Platform:       domain.PlatformUmami,
		SourceRef:      "b3b4f6a2-4d2e-4c9f-9d3c-0a7e5f3c1b11",
		AllowedRange:   window,
	})
	require.NoError(t, err)

	claimed, err := jobs.ClaimNext(context.Background())
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.Equal(t, importID, claimed.ID)
	return *claimed
}

func fastRetry(retries int) app.RetryPolicy {
	return app.RetryPolicy{MaxRetries: retries, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}
