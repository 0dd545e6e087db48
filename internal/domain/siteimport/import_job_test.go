package siteimport_test

import (
	"errors"
	"testing"
	"time"

	domain "github.com/mohammadpnp/site-import/internal/domain/siteimport"
)

var now = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func processingJob() domain.ImportJob {
	job := domain.NewImportJob(domain.NewImportJobParams{
		ID:             "0f8fad5b-d9cb-469f-a165-70867728950e",
		SiteID:         42,
		OrganizationID: "org-1",
		Platform:       domain.PlatformUmami,
	}, now)
	job.Status = domain.StatusProcessing
	return job
}

func TestNewImportJobStartsPending(t *testing.T) {
	t.Parallel()

	job := domain.NewImportJob(domain.NewImportJobParams{ID: "job-1", SiteID: 42}, now)
	if job.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", job.Status)
	}
	if job.CompletedAt != nil {
		t.Fatal("expected nil completedAt")
	}
	if job.Progress().Total() != 0 {
		t.Fatalf("expected zero counters, got %+v", job.Progress())
	}
	if !job.StartedAt.Equal(now) {
		t.Fatalf("unexpected startedAt: %s", job.StartedAt)
	}
}

func TestApplyProgressKeepsCompletedAtNil(t *testing.T) {
	t.Parallel()

	next, err := processingJob().Apply(domain.ProgressUpdate{
		Status:   domain.StatusProcessing,
		Progress: domain.ImportProgress{ImportedEvents: 10, SkippedEvents: 1},
	}, now)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if next.CompletedAt != nil {
		t.Fatal("completedAt must stay nil while processing")
	}
	if next.ImportedEvents != 10 || next.SkippedEvents != 1 {
		t.Fatalf("unexpected counters: %+v", next.Progress())
	}
}

func TestApplyTerminalSetsCompletedAt(t *testing.T) {
	t.Parallel()

	for _, status := range []domain.Status{domain.StatusCompleted, domain.StatusFailed} {
		next, err := processingJob().Apply(domain.ProgressUpdate{Status: status, ErrorMessage: "x"}, now)
		if err != nil {
			t.Fatalf("%s: expected no error, got %v", status, err)
		}
		if next.CompletedAt == nil || !next.CompletedAt.Equal(now) {
			t.Fatalf("%s: expected completedAt=%s, got %v", status, now, next.CompletedAt)
		}
		if next.ErrorMessage == nil || *next.ErrorMessage != "x" {
			t.Fatalf("%s: expected error message", status)
		}
	}
}

func TestApplyRejectsInvalidTransitions(t *testing.T) {
	t.Parallel()

	completed, err := processingJob().Apply(domain.ProgressUpdate{Status: domain.StatusCompleted}, now)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	pending := processingJob()
	pending.Status = domain.StatusPending

	cases := []struct {
		name   string
		job    domain.ImportJob
		update domain.ProgressUpdate
	}{
		{"leave completed", completed, domain.ProgressUpdate{Status: domain.StatusProcessing}},
		{"complete twice", completed, domain.ProgressUpdate{Status: domain.StatusCompleted}},
		{"skip processing", pending, domain.ProgressUpdate{Status: domain.StatusCompleted}},
		{"back to pending", processingJob(), domain.ProgressUpdate{Status: domain.StatusPending}},
		{"unknown status", processingJob(), domain.ProgressUpdate{Status: "paused"}},
	}

	for _, tc := range cases {
		if _, err := tc.job.Apply(tc.update, now); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("%s: expected ErrInvalidTransition, got %v", tc.name, err)
		}
	}
}

func TestApplyRejectsDecreasingCounters(t *testing.T) {
	t.Parallel()

	job := processingJob()
	job.ImportedEvents = 50

	_, err := job.Apply(domain.ProgressUpdate{
		Status:   domain.StatusProcessing,
		Progress: domain.ImportProgress{ImportedEvents: 49, InvalidEvents: 3},
	}, now)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestAllowedDateRange(t *testing.T) {
	t.Parallel()

	r := domain.NewAllowedDateRange(now, 24)
	if r.EarliestString() != "2024-03-14" || r.LatestString() != "2026-03-14" {
		t.Fatalf("unexpected range: %s..%s", r.EarliestString(), r.LatestString())
	}

	cases := []struct {
		at   time.Time
		want bool
	}{
		{time.Date(2024, 3, 13, 23, 59, 59, 0, time.UTC), false},
		{time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), true},
		{time.Date(2026, 3, 14, 23, 59, 59, 0, time.UTC), true},
		{time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		if got := r.Contains(tc.at); got != tc.want {
			t.Fatalf("Contains(%s): want %v got %v", tc.at, tc.want, got)
		}
	}
}
