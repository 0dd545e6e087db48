package migrations

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestProviderLoadsEmbeddedMigrations(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for _, target := range Targets() {
		p, err := provider(target, db)
		require.NoError(t, err, "target %s", target)

		sources := p.ListSources()
		require.NotEmpty(t, sources, "target %s", target)
		require.EqualValues(t, 1, sources[0].Version)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderRejectsUnknownTarget(t *testing.T) {
	t.Parallel()

	_, err := provider("mysql", nil)
	require.ErrorContains(t, err, "unknown migration target")
}
