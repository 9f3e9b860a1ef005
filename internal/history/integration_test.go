//go:build integration

package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/JonMunkholm/schedule-import/internal/core"
)

// setupDB starts a PostgreSQL container, applies the ledger migrations and
// returns a pool connected to it.
func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "testuser",
				"POSTGRES_PASSWORD": "testpass",
				"POSTGRES_DB":       "testdb",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	require.NoError(t, Migrate(ctx, db))

	return pool
}

func TestStore_Integration(t *testing.T) {
	pool := setupDB(t)
	store := NewStore(pool)
	ctx := context.Background()

	old := time.Now().AddDate(0, 0, -100).UTC().Truncate(time.Microsecond)
	recent := time.Now().UTC().Truncate(time.Microsecond)

	runs := []core.RunSummary{
		{ImportID: uuid.NewString(), Kind: core.KindAttendees, FileName: "a.csv", Total: 3, Success: 2, Errors: 1, StartedAt: old, FinishedAt: old},
		{ImportID: uuid.NewString(), Kind: core.KindMeetings, FileName: "m.csv", Total: 4, Success: 4, StartedAt: recent, FinishedAt: recent},
	}
	for _, r := range runs {
		require.NoError(t, store.RecordRun(ctx, r))
	}
	// Duplicate ids are ignored.
	require.NoError(t, store.RecordRun(ctx, runs[0]))

	all, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "m.csv", all[0].FileName, "newest first")

	attendees, err := store.List(ctx, Filter{Kind: core.KindAttendees})
	require.NoError(t, err)
	require.Len(t, attendees, 1)
	assert.Equal(t, 1, attendees[0].Errors)

	purged, err := store.Purge(ctx, time.Now().AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	left, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, core.KindMeetings, left[0].Kind)
}
