package export

import (
	"fmt"
	"time"

	"github.com/gps-logger/backend/internal/geo"
	"github.com/gps-logger/backend/internal/models"
)

// Summary describes an exported track.
type Summary struct {
	Count      int
	Sessions   int
	Start      time.Time
	End        time.Time
	DistanceKm float64
	Bounds     geo.Bounds
}

// Summarize walks fixes in order. Distance is not counted across session gaps.
func Summarize(fixes []models.GpsFix) Summary {
	var s Summary
	if len(fixes) == 0 {
		return s
	}

	s.Count = len(fixes)
	s.Start = fixes[0].UTCTime
	s.End = fixes[len(fixes)-1].UTCTime
	s.Bounds = geo.NewBounds(fixes[0].Latitude, fixes[0].Longitude)

	for _, seg := range (Track{Fixes: fixes}).Segments() {
		s.Sessions++
		for i, f := range seg {
			s.Bounds.Extend(f.Latitude, f.Longitude)
			if i > 0 {
				prev := seg[i-1]
				s.DistanceKm += geo.HaversineKm(prev.Latitude, prev.Longitude, f.Latitude, f.Longitude)
			}
		}
	}
	return s
}

// Duration is the time between the first and last fix.
func (s Summary) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

func (s Summary) String() string {
	if s.Count == 0 {
		return "empty track"
	}
	return fmt.Sprintf("%d fixes in %d session(s), %s to %s (%s), %.2f km",
		s.Count, s.Sessions,
		s.Start.UTC().Format(time.RFC3339), s.End.UTC().Format(time.RFC3339),
		s.Duration(), s.DistanceKm)
}
