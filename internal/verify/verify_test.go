package verify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dwhctl/internal/testutil"
	"dwhctl/internal/warehouse"
	"dwhctl/pkg/errors"
)

func counts(songplays, users, songs, artists, times int64) Counts {
	return Counts{
		warehouse.StagingEvents: 0,
		warehouse.StagingSongs:  0,
		warehouse.Songplays:     songplays,
		warehouse.Users:         users,
		warehouse.Songs:         songs,
		warehouse.Artists:       artists,
		warehouse.Times:         times,
	}
}

func TestPolicyNeedsLoad(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		counts Counts
		want   bool
	}{
		{"sum all empty", PolicySum, counts(0, 0, 0, 0, 0), true},
		{"sum one populated", PolicySum, counts(5, 0, 0, 0, 0), false},
		{"sum all populated", PolicySum, counts(1144, 107, 14896, 10025, 8023), false},
		{"per-table all empty", PolicyPerTable, counts(0, 0, 0, 0, 0), true},
		{"per-table one populated", PolicyPerTable, counts(5, 0, 0, 0, 0), true},
		{"per-table all populated", PolicyPerTable, counts(1, 1, 1, 1, 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.NeedsLoad(tt.counts))
		})
	}
}

func TestStagingRowsDoNotAffectDecision(t *testing.T) {
	c := counts(0, 0, 0, 0, 0)
	c[warehouse.StagingEvents] = 8056
	c[warehouse.StagingSongs] = 14896

	assert.Equal(t, int64(0), c.LoadDependentSum())
	assert.True(t, PolicySum.NeedsLoad(c))
	assert.Equal(t, 2, c.Loaded())
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicySum, p)

	p, err = ParsePolicy("per-table")
	require.NoError(t, err)
	assert.Equal(t, PolicyPerTable, p)

	_, err = ParsePolicy("majority")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
}

func TestCompareExact(t *testing.T) {
	expected := DefaultExpected()
	actual := Counts{}
	for k, v := range expected {
		actual[k] = v
	}

	assert.Empty(t, Compare(expected, actual))

	actual[warehouse.Users] = 108
	mismatches := Compare(expected, actual)
	require.Len(t, mismatches, 1)
	assert.Equal(t, Mismatch{Table: "users", Expected: 107, Actual: 108}, mismatches[0])
	assert.Equal(t, int64(1), mismatches[0].Delta())

	actual[warehouse.Users] = 107
	actual[warehouse.Times] = 8022
	mismatches = Compare(expected, actual)
	require.Len(t, mismatches, 1)
	assert.Equal(t, int64(-1), mismatches[0].Delta())
}

func TestCompareOrder(t *testing.T) {
	mismatches := Compare(DefaultExpected(), Counts{})
	assert.Equal(t,
		[]string{"staging_events", "staging_songs", "songplays", "users", "songs", "artists", "times"},
		Tables(mismatches))
}

func TestExpectedFrom(t *testing.T) {
	expected, err := ExpectedFrom(map[string]int64{"users": 10})
	require.NoError(t, err)
	assert.Equal(t, int64(10), expected[warehouse.Users])
	assert.Equal(t, int64(1144), expected[warehouse.Songplays])

	// defaults are not mutated by overrides
	assert.Equal(t, int64(107), DefaultExpected()[warehouse.Users])

	_, err = ExpectedFrom(map[string]int64{"events": 1})
	require.Error(t, err)
	assert.Equal(t, errors.ExitConfig, errors.ExitCode(err))
}

func TestCheckerCounts(t *testing.T) {
	db, mock := testutil.NewSQLMock(t)

	logger, _ := test.NewNullLogger()
	runner := warehouse.NewRunner(db, warehouse.TxPerStep, time.Minute, logger)

	for _, tbl := range warehouse.All() {
		mock.ExpectQuery(tbl.CountSQL()).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(DefaultExpected()[tbl.Name]))
	}

	got, err := NewChecker(runner, logger).Counts(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 7)
	assert.Empty(t, Compare(DefaultExpected(), got))
	assert.NoError(t, mock.ExpectationsWereMet())
}

type fakeQuerier struct {
	results map[string]int64
	fail    string
}

func (f *fakeQuerier) QueryInt64(_ context.Context, query string) (int64, error) {
	if query == f.fail {
		return 0, fmt.Errorf("relation does not exist")
	}
	return f.results[query], nil
}

func TestCheckerCountsFailure(t *testing.T) {
	users, _ := warehouse.Lookup(warehouse.Users)
	logger, _ := test.NewNullLogger()

	_, err := NewChecker(&fakeQuerier{fail: users.CountSQL()}, logger).Counts(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeCountFailed))
	assert.Contains(t, err.Error(), "users")
}

func TestDuplicateKeys(t *testing.T) {
	songs, _ := warehouse.Lookup(warehouse.Songs)
	logger, hook := test.NewNullLogger()

	q := &fakeQuerier{results: map[string]int64{songs.DuplicateKeySQL(): 3}}
	dups, err := NewChecker(q, logger).DuplicateKeys(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]int64{"users": 0, "songs": 3, "artists": 0, "times": 0}, dups)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "songs", hook.LastEntry().Data["table"])
}

func TestEarliestEvent(t *testing.T) {
	logger, _ := test.NewNullLogger()
	q := &fakeQuerier{results: map[string]int64{earliestEventSQL: 1541013600}}

	ts, err := NewChecker(q, logger).EarliestEvent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1541013600), ts)

	q.fail = earliestEventSQL
	_, err = NewChecker(q, logger).EarliestEvent(context.Background())
	assert.Error(t, err)
}
