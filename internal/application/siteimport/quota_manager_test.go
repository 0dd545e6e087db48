package siteimport_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	app "github.com/mohammadpnp/site-import/internal/application/siteimport"
	domain "github.com/mohammadpnp/site-import/internal/domain/siteimport"
)

func TestQuotaManagerReserveReturnsPlanWindow(t *testing.T) {
	t.Parallel()

	q := newQuota()

	window, err := q.Reserve(domain.Organization{ID: "org-1", Plan: "pro"}, "job-1")
	require.NoError(t, err)
	require.Equal(t, "2021-03-14", window.EarliestString())
	require.Equal(t, "2026-03-14", window.LatestString())
	require.Equal(t, 1, q.ActiveImports("org-1"))
}

func TestQuotaManagerRejectsSecondConcurrentImport(t *testing.T) {
	t.Parallel()

	q := newQuota()

	_, err := q.Reserve(testOrg, "job-1")
	require.NoError(t, err)

	_, err = q.Reserve(testOrg, "job-2")
	require.ErrorIs(t, err, app.ErrQuotaExceeded)

	_, err = q.Reserve(domain.Organization{ID: "org-2", Plan: "standard"}, "job-3")
	require.NoError(t, err, "other organizations are not affected")
}

func TestQuotaManagerPlanRestriction(t *testing.T) {
	t.Parallel()

	q := newQuota()

	for _, plan := range []string{"free", "", "legacy-trial"} {
		_, err := q.Reserve(domain.Organization{ID: "org-1", Plan: plan}, "job-1")
		require.ErrorIs(t, err, app.ErrPlanRestriction, "plan %q", plan)
	}
	require.Zero(t, q.ActiveImports("org-1"))
}

func TestQuotaManagerCompleteImportIsIdempotent(t *testing.T) {
	t.Parallel()

	q := newQuota()

	_, err := q.Reserve(testOrg, "job-1")
	require.NoError(t, err)

	require.True(t, q.CompleteImport(testOrg.ID, "job-1"))
	require.False(t, q.CompleteImport(testOrg.ID, "job-1"))
	require.False(t, q.CompleteImport(testOrg.ID, "job-unknown"))
	require.Zero(t, q.ActiveImports(testOrg.ID))

	_, err = q.Reserve(testOrg, "job-2")
	require.NoError(t, err)
}

func TestQuotaManagerReleaseOfStaleImportKeepsActiveSlot(t *testing.T) {
	t.Parallel()

	q := newQuota()

	_, err := q.Reserve(testOrg, "job-1")
	require.NoError(t, err)
	require.True(t, q.CompleteImport(testOrg.ID, "job-1"))

	_, err = q.Reserve(testOrg, "job-2")
	require.NoError(t, err)

	require.False(t, q.CompleteImport(testOrg.ID, "job-1"))
	require.Equal(t, 1, q.ActiveImports(testOrg.ID))
}

func TestQuotaManagerRebuildFromActiveJobs(t *testing.T) {
	t.Parallel()

	q := newQuota()
	_, err := q.Reserve(domain.Organization{ID: "org-stale", Plan: "standard"}, "job-stale")
	require.NoError(t, err)

	q.Rebuild([]domain.ImportJob{
		{ID: "job-1", OrganizationID: "org-1", Status: domain.StatusPending},
		{ID: "job-2", OrganizationID: "org-2", Status: domain.StatusProcessing},
		{ID: "job-3", OrganizationID: "org-3", Status: domain.StatusCompleted},
	})

	require.Equal(t, 1, q.ActiveImports("org-1"))
	require.Equal(t, 1, q.ActiveImports("org-2"))
	require.Zero(t, q.ActiveImports("org-3"))
	require.Zero(t, q.ActiveImports("org-stale"))

	_, err = q.Reserve(domain.Organization{ID: "org-1", Plan: "standard"}, "job-4")
	require.ErrorIs(t, err, app.ErrQuotaExceeded)
}

func TestQuotaManagerConcurrentReserveGrantsOneSlot(t *testing.T) {
	t.Parallel()

	q := newQuota()

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := q.Reserve(testOrg, string(rune('a'+i))); err == nil {
				granted.Add(1)
			}
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, granted.Load())
	require.Equal(t, 1, q.ActiveImports(testOrg.ID))
}
