// Package query builds storage predicates over the utc_time column.
package query

import (
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/gps-logger/backend/internal/models"
	"github.com/gps-logger/backend/internal/timeprefix"
)

// TimeColumn is the column every predicate filters on.
const TimeColumn = "utc_time"

// Predicate is a storage filter. Expr is rendered by the store for its own
// dialect; Text is the literal form shown to users. Window is set for time
// range predicates so in-memory stores can apply them.
type Predicate struct {
	Expr   exp.Expression
	Text   string
	Window *models.TimeRange
}

// Matches reports whether a fix taken at t satisfies the predicate.
// Predicates without a window match everything.
func (p Predicate) Matches(t time.Time) bool {
	return p.Window == nil || p.Window.Contains(t)
}

// String returns the literal SQL condition.
func (p Predicate) String() string {
	return p.Text
}

// Build returns utc_time >= start AND utc_time < end, with both bounds
// serialized as they are stored.
func Build(r timeprefix.Range) Predicate {
	start := models.FormatUTC(r.Start)
	end := models.FormatUTC(r.End)

	col := goqu.C(TimeColumn)
	return Predicate{
		Expr:   goqu.And(col.Gte(start), col.Lt(end)),
		Text:   fmt.Sprintf("%s >= '%s' AND %s < '%s'", TimeColumn, start, TimeColumn, end),
		Window: &models.TimeRange{Start: r.Start, End: r.End},
	}
}

// NotNull matches every fix with a timestamp.
func NotNull() Predicate {
	return Predicate{
		Expr: goqu.C(TimeColumn).IsNotNull(),
		Text: TimeColumn + " IS NOT NULL",
	}
}
