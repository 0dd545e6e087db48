package siteimport

import "time"

const dateLayout = "2006-01-02"

// AllowedDateRange is the historical window an organization's plan permits
// importing. Both bounds are whole UTC days and inclusive.
type AllowedDateRange struct {
	EarliestAllowedDate time.Time
	LatestAllowedDate   time.Time
}

func NewAllowedDateRange(today time.Time, historyMonths int) AllowedDateRange {
	latest := truncateDay(today)
	return AllowedDateRange{
		EarliestAllowedDate: latest.AddDate(0, -historyMonths, 0),
		LatestAllowedDate:   latest,
	}
}

func (r AllowedDateRange) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(r.EarliestAllowedDate) && t.Before(r.End())
}

// End is the exclusive upper bound of the range.
func (r AllowedDateRange) End() time.Time {
	return r.LatestAllowedDate.AddDate(0, 0, 1)
}

func (r AllowedDateRange) EarliestString() string {
	return r.EarliestAllowedDate.Format(dateLayout)
}

func (r AllowedDateRange) LatestString() string {
	return r.LatestAllowedDate.Format(dateLayout)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type PlanPolicy struct {
	Name              string
	ImportsAllowed    bool
	HistoryMonths     int
	ConcurrentImports int
}

const PlanFree = "free"

func DefaultPlanPolicies() map[string]PlanPolicy {
	return map[string]PlanPolicy{
		PlanFree:   {Name: PlanFree},
		"standard": {Name: "standard", ImportsAllowed: true, HistoryMonths: 24, ConcurrentImports: 1},
		"pro":      {Name: "pro", ImportsAllowed: true, HistoryMonths: 60, ConcurrentImports: 1},
	}
}

type Organization struct {
	ID   string
	Plan string
}

type Site struct {
	ID           int64
	Organization Organization
}
