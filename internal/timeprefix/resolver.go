package timeprefix

import (
	"errors"
	"time"

	"github.com/gps-logger/backend/internal/models"
)

// ErrEmptyRange is returned when the start prefix does not come before the end of the end prefix.
var ErrEmptyRange = errors.New("start must be before end")

// Range is a half-open UTC interval [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// TimeRange converts r to the model type used by storage and export.
func (r Range) TimeRange() models.TimeRange {
	return models.TimeRange{Start: r.Start, End: r.End}
}

// Resolver converts prefixes, read as local time, into UTC ranges.
type Resolver struct {
	// Location is the zone prefixes are read in. Nil means time.Local at
	// resolution time.
	Location *time.Location
}

// NewResolver returns a Resolver for loc; nil selects the system zone.
func NewResolver(loc *time.Location) *Resolver {
	return &Resolver{Location: loc}
}

func (r *Resolver) location() *time.Location {
	if r == nil || r.Location == nil {
		return time.Local
	}
	return r.Location
}

// Resolve returns [earliest(start), successor(end)) in UTC.
func (r *Resolver) Resolve(start, end Prefix) (Range, error) {
	loc := r.location()

	from, err := Earliest(start, loc)
	if err != nil {
		return Range{}, err
	}
	to, err := Successor(end, loc)
	if err != nil {
		return Range{}, err
	}

	rng := Range{Start: from.UTC(), End: to.UTC()}
	if !rng.Start.Before(rng.End) {
		return Range{}, ErrEmptyRange
	}
	return rng, nil
}

// ResolvePrefix returns the range of every timestamp starting with p.
func (r *Resolver) ResolvePrefix(p Prefix) (Range, error) {
	return r.Resolve(p, p)
}
