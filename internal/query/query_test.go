package query

import (
	"testing"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gps-logger/backend/internal/timeprefix"
)

func TestBuild(t *testing.T) {
	loc := time.FixedZone("CET", 60*60)
	rng, err := timeprefix.NewResolver(loc).ResolvePrefix(timeprefix.MustValidate("2022-11"))
	require.NoError(t, err)

	p := Build(rng)
	assert.Equal(t,
		"utc_time >= '2022-10-31T23:00:00+00:00' AND utc_time < '2022-11-30T23:00:00+00:00'",
		p.String())
}

func TestBuildRendersWithBoundArgs(t *testing.T) {
	rng := timeprefix.Range{
		Start: time.Date(2022, 11, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2022, 12, 1, 0, 0, 0, 0, time.UTC),
	}

	sql, args, err := goqu.Dialect("sqlite3").
		From("locations").
		Where(Build(rng).Expr).
		Prepared(true).
		ToSQL()
	require.NoError(t, err)

	assert.Contains(t, sql, "`utc_time` >= ?")
	assert.Contains(t, sql, "`utc_time` < ?")
	assert.Equal(t, []interface{}{"2022-11-01T00:00:00+00:00", "2022-12-01T00:00:00+00:00"}, args)
}

func TestNotNull(t *testing.T) {
	p := NotNull()
	assert.Equal(t, "utc_time IS NOT NULL", p.String())

	sql, _, err := goqu.Dialect("sqlite3").From("locations").Where(p.Expr).ToSQL()
	require.NoError(t, err)
	assert.Contains(t, sql, "`utc_time` IS NOT NULL")
}

func TestPredicateMatches(t *testing.T) {
	rng := timeprefix.Range{
		Start: time.Date(2022, 11, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2022, 12, 1, 0, 0, 0, 0, time.UTC),
	}
	p := Build(rng)

	assert.True(t, p.Matches(rng.Start))
	assert.True(t, p.Matches(rng.End.Add(-time.Second)))
	assert.False(t, p.Matches(rng.End))
	assert.False(t, p.Matches(rng.Start.Add(-time.Second)))

	assert.True(t, NotNull().Matches(time.Time{}))
}
