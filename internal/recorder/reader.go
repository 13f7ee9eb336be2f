// Package recorder samples NMEA fixes from a GPS receiver into storage.
package recorder

import (
	"bufio"
	"io"
	"strings"
	"time"

	"github.com/adrianmo/go-nmea"
	"github.com/rs/zerolog"

	"github.com/gps-logger/backend/internal/models"
)

const knotsToMetersPerSecond = 0.514444

// Reader turns a stream of NMEA 0183 sentences into fixes. RMC supplies
// time and position; a GGA with the same time stamp adds altitude,
// satellites and HDOP.
type Reader struct {
	scanner *bufio.Scanner
	log     zerolog.Logger

	lastGGA *nmea.GGA
	pending *models.GpsFix

	// Sentences counts parsed sentences, BadLines the ones that failed.
	Sentences int
	BadLines  int
}

func NewReader(r io.Reader, log zerolog.Logger) *Reader {
	return &Reader{
		scanner: bufio.NewScanner(r),
		log:     log,
	}
}

// Next returns the next valid fix, or io.EOF once the stream ends.
func (r *Reader) Next() (models.GpsFix, error) {
	for r.scanner.Scan() {
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}

		s, err := nmea.Parse(line)
		if err != nil {
			r.BadLines++
			r.log.Debug().Err(err).Str("line", line).Msg("Skipping malformed sentence")
			continue
		}
		r.Sentences++

		if fix, ok := r.handle(s); ok {
			return fix, nil
		}
	}
	if err := r.scanner.Err(); err != nil {
		return models.GpsFix{}, err
	}

	if r.pending != nil {
		fix := *r.pending
		r.pending = nil
		return fix, nil
	}
	return models.GpsFix{}, io.EOF
}

// handle folds one sentence into the reader state and reports a completed fix.
func (r *Reader) handle(s nmea.Sentence) (models.GpsFix, bool) {
	switch m := s.(type) {
	case nmea.RMC:
		prev := r.takePending()

		if m.Validity != nmea.ValidRMC || !m.Date.Valid || !m.Time.Valid {
			r.log.Debug().Str("validity", m.Validity).Msg("Ignoring invalid RMC")
			return unwrap(prev)
		}

		fix := fixFromRMC(m)
		if r.lastGGA != nil && r.lastGGA.Time == m.Time {
			mergeGGA(&fix, *r.lastGGA)
			r.lastGGA = nil
			if prev != nil {
				// emit the older fix now, keep this one for the next call
				r.pending = &fix
				return *prev, true
			}
			return fix, true
		}

		r.pending = &fix
		return unwrap(prev)

	case nmea.GGA:
		if m.FixQuality == nmea.Invalid {
			if r.pending != nil && r.pending.UTCTime.Equal(ggaTime(r.pending.UTCTime, m.Time)) {
				r.log.Debug().Msg("Dropping fix: GGA reports no fix")
				r.pending = nil
			}
			r.lastGGA = nil
			return models.GpsFix{}, false
		}

		if r.pending != nil && r.pending.UTCTime.Equal(ggaTime(r.pending.UTCTime, m.Time)) {
			fix := *r.pending
			r.pending = nil
			mergeGGA(&fix, m)
			return fix, true
		}
		gga := m
		r.lastGGA = &gga
	}
	return models.GpsFix{}, false
}

func (r *Reader) takePending() *models.GpsFix {
	p := r.pending
	r.pending = nil
	return p
}

func unwrap(f *models.GpsFix) (models.GpsFix, bool) {
	if f == nil {
		return models.GpsFix{}, false
	}
	return *f, true
}

func fixFromRMC(m nmea.RMC) models.GpsFix {
	ts := time.Date(2000+m.Date.YY, time.Month(m.Date.MM), m.Date.DD,
		m.Time.Hour, m.Time.Minute, m.Time.Second, m.Time.Millisecond*int(time.Millisecond), time.UTC)

	return models.GpsFix{
		UTCTime:   ts,
		Latitude:  m.Latitude,
		Longitude: m.Longitude,
		Speed:     m.Speed * knotsToMetersPerSecond,
		Course:    m.Course,
	}
}

func mergeGGA(fix *models.GpsFix, m nmea.GGA) {
	fix.Altitude = m.Altitude
	fix.Satellites = int(m.NumSatellites)
	fix.HDOP = m.HDOP
}

// ggaTime places a GGA time of day on the date of ref.
func ggaTime(ref time.Time, t nmea.Time) time.Time {
	y, mo, d := ref.Date()
	return time.Date(y, mo, d, t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}
