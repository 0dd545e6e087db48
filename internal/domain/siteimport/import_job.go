package siteimport

import (
	"fmt"
	"time"
)

type Platform string

const PlatformUmami Platform = "umami"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

type ImportJob struct {
	ID             string
	SiteID         int64
	OrganizationID string
	Platform       Platform
	SourceRef      string
	Status         Status
	ImportedEvents int64
	SkippedEvents  int64
	InvalidEvents  int64
	ErrorMessage   *string
	AllowedRange   AllowedDateRange
	StartedAt      time.Time
	CompletedAt    *time.Time
}

type NewImportJobParams struct {
	ID             string
	SiteID         int64
	OrganizationID string
	Platform       Platform
	SourceRef      string
	AllowedRange   AllowedDateRange
}

func NewImportJob(p NewImportJobParams, now time.Time) ImportJob {
	return ImportJob{
		ID:             p.ID,
		SiteID:         p.SiteID,
		OrganizationID: p.OrganizationID,
		Platform:       p.Platform,
		SourceRef:      p.SourceRef,
		Status:         StatusPending,
		AllowedRange:   p.AllowedRange,
		StartedAt:      now,
	}
}

func (j ImportJob) Active() bool {
	return !j.Status.Terminal()
}

func (j ImportJob) Progress() ImportProgress {
	return ImportProgress{
		ImportedEvents: j.ImportedEvents,
		SkippedEvents:  j.SkippedEvents,
		InvalidEvents:  j.InvalidEvents,
	}
}

type ImportProgress struct {
	ImportedEvents int64
	SkippedEvents  int64
	InvalidEvents  int64
}

func (p ImportProgress) Total() int64 {
	return p.ImportedEvents + p.SkippedEvents + p.InvalidEvents
}

func (p ImportProgress) covers(prev ImportProgress) bool {
	return p.ImportedEvents >= prev.ImportedEvents &&
		p.SkippedEvents >= prev.SkippedEvents &&
		p.InvalidEvents >= prev.InvalidEvents
}

// ProgressUpdate is what the executor reports for the job it owns. The
// completion timestamp is never part of it: it is derived from Status.
type ProgressUpdate struct {
	Progress     ImportProgress
	Status       Status
	ErrorMessage string
}

// Apply returns the job after the update, enforcing the lifecycle
// pending -> processing -> {completed, failed} and non-decreasing counters.
func (j ImportJob) Apply(u ProgressUpdate, now time.Time) (ImportJob, error) {
	if j.Status.Terminal() {
		return j, fmt.Errorf("%w: job %s is already %s", ErrInvalidTransition, j.ID, j.Status)
	}
	if j.Status != StatusProcessing {
		return j, fmt.Errorf("%w: job %s is %s, not processing", ErrInvalidTransition, j.ID, j.Status)
	}
	switch u.Status {
	case StatusProcessing, StatusCompleted, StatusFailed:
	default:
		return j, fmt.Errorf("%w: %s -> %q", ErrInvalidTransition, j.Status, u.Status)
	}
	if !u.Progress.covers(j.Progress()) {
		return j, fmt.Errorf("%w: counters of job %s cannot decrease", ErrInvalidTransition, j.ID)
	}

	next := j
	next.Status = u.Status
	next.ImportedEvents = u.Progress.ImportedEvents
	next.SkippedEvents = u.Progress.SkippedEvents
	next.InvalidEvents = u.Progress.InvalidEvents
	if u.ErrorMessage != "" {
		msg := u.ErrorMessage
		next.ErrorMessage = &msg
	}
	if u.Status.Terminal() {
		completedAt := now
		next.CompletedAt = &completedAt
	}
	return next, nil
}
