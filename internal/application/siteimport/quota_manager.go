package siteimport

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	domain "github.com/mohammadpnp/site-import/internal/domain/siteimport"
)

// QuotaManager tracks, per organization, which imports currently hold a
// concurrency slot. State lives in process memory and is rebuilt from the
// non-terminal jobs in the metadata store at startup.
//
// Slots are keyed by import id, so releasing the same import twice is a
// no-op rather than freeing a slot that belongs to another import.
type QuotaManager struct {
	mu     sync.Mutex
	plans  map[string]domain.PlanPolicy
	active map[string]map[string]struct{}
	now    func() time.Time
	logger *slog.Logger
}

type QuotaManagerConfig struct {
	Plans  map[string]domain.PlanPolicy
	Now    func() time.Time
	Logger *slog.Logger
}

func NewQuotaManager(cfg QuotaManagerConfig) *QuotaManager {
	if cfg.Plans == nil {
		cfg.Plans = domain.DefaultPlanPolicies()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &QuotaManager{
		plans:  cfg.Plans,
		active: make(map[string]map[string]struct{}),
		now:    cfg.Now,
		logger: cfg.Logger,
	}
}

func (q *QuotaManager) policy(plan string) domain.PlanPolicy {
	if p, ok := q.plans[plan]; ok {
		return p
	}
	return q.plans[domain.PlanFree]
}

// AllowedDateRange computes the window the organization's plan permits
// without reserving anything.
func (q *QuotaManager) AllowedDateRange(org domain.Organization) (domain.AllowedDateRange, error) {
	p := q.policy(org.Plan)
	if !p.ImportsAllowed {
		return domain.AllowedDateRange{}, fmt.Errorf("%w: plan %q", ErrPlanRestriction, org.Plan)
	}
	return domain.NewAllowedDateRange(q.now(), p.HistoryMonths), nil
}

// Reserve atomically takes a concurrency slot for importID.
func (q *QuotaManager) Reserve(org domain.Organization, importID string) (domain.AllowedDateRange, error) {
	window, err := q.AllowedDateRange(org)
	if err != nil {
		return domain.AllowedDateRange{}, err
	}
	limit := q.policy(org.Plan).ConcurrentImports
	if limit <= 0 {
		limit = 1
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	slots := q.active[org.ID]
	if len(slots) >= limit {
		return domain.AllowedDateRange{}, fmt.Errorf("%w: organization %s", ErrQuotaExceeded, org.ID)
	}
	if slots == nil {
		slots = make(map[string]struct{}, limit)
		q.active[org.ID] = slots
	}
	slots[importID] = struct{}{}
	return window, nil
}

// CompleteImport releases the slot held by importID. It reports whether a
// slot was actually held.
func (q *QuotaManager) CompleteImport(organizationID, importID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	slots, ok := q.active[organizationID]
	if !ok {
		return false
	}
	if _, held := slots[importID]; !held {
		return false
	}
	delete(slots, importID)
	if len(slots) == 0 {
		delete(q.active, organizationID)
	}
	return true
}

func (q *QuotaManager) ActiveImports(organizationID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active[organizationID])
}

// Rebuild replaces the in-memory state with one slot per non-terminal job.
func (q *QuotaManager) Rebuild(jobs []domain.ImportJob) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.active = make(map[string]map[string]struct{})
	for _, job := range jobs {
		if !job.Active() {
			continue
		}
		slots := q.active[job.OrganizationID]
		if slots == nil {
			slots = make(map[string]struct{}, 1)
			q.active[job.OrganizationID] = slots
		}
		slots[job.ID] = struct{}{}
	}
	q.logger.Info("import quota rebuilt", "organizations", len(q.active), "jobs", len(jobs))
}
