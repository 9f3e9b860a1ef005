package history

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/schedule-import/internal/core"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return NewStore(mock), mock
}

// anyArgs matches n arguments of any value.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestStore_RecordRun(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	started := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)
	finished := started.Add(3 * time.Second)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO import_runs (id,kind,file_name,total,success,errors,incomplete,failed,error,started_at,finished_at)")+".*ON CONFLICT \\(id\\) DO NOTHING").
		WithArgs(id, "attendees", "people.csv", 10, 8, 2, false, false, "", started, finished).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.RecordRun(context.Background(), core.RunSummary{
		ImportID:   id.String(),
		Kind:       core.KindAttendees,
		FileName:   "people.csv",
		Total:      10,
		Success:    8,
		Errors:     2,
		StartedAt:  started,
		FinishedAt: finished,
	})
	require.NoError(t, err)
}

func TestStore_RecordRun_InvalidID(t *testing.T) {
	store, _ := newMockStore(t)

	err := store.RecordRun(context.Background(), core.RunSummary{ImportID: "not-a-uuid"})
	assert.ErrorContains(t, err, "invalid import id")
}

func TestStore_RecordRun_DBError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO import_runs").
		WithArgs(anyArgs(len(columns))...).
		WillReturnError(errors.New("connection reset"))

	err := store.RecordRun(context.Background(), core.RunSummary{ImportID: uuid.NewString()})
	assert.ErrorContains(t, err, "connection reset")
}

func TestStore_List(t *testing.T) {
	id := uuid.New()
	now := time.Now().UTC()

	tests := []struct {
		name  string
		f     Filter
		query string
		args  []any
	}{
		{
			name:  "all kinds default limit",
			f:     Filter{},
			query: "FROM import_runs ORDER BY started_at DESC LIMIT 50",
		},
		{
			name:  "filtered by kind with offset",
			f:     Filter{Kind: core.KindMeetings, Limit: 10, Offset: 20},
			query: "FROM import_runs WHERE kind = $1 ORDER BY started_at DESC LIMIT 10 OFFSET 20",
			args:  []any{"meetings"},
		},
		{
			name:  "limit capped",
			f:     Filter{Limit: 10000},
			query: "FROM import_runs ORDER BY started_at DESC LIMIT 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			rows := pgxmock.NewRows(columns).
				AddRow(id, "meetings", "m.csv", 5, 5, 0, false, false, "", now, now)
			exp := mock.ExpectQuery(regexp.QuoteMeta(tt.query) + "$")
			if tt.args != nil {
				exp = exp.WithArgs(tt.args...)
			}
			exp.WillReturnRows(rows)

			runs, err := store.List(context.Background(), tt.f)
			require.NoError(t, err)
			require.Len(t, runs, 1)
			assert.Equal(t, id, runs[0].ID)
			assert.Equal(t, core.KindMeetings, runs[0].Kind)
			assert.Equal(t, 5, runs[0].Success)
		})
	}
}

func TestStore_List_Empty(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT").WillReturnRows(pgxmock.NewRows(columns))

	runs, err := store.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestStore_Purge(t *testing.T) {
	store, mock := newMockStore(t)
	cutoff := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM import_runs WHERE finished_at < $1")).
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := store.Purge(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
