// Package models contains domain types for the GPS logger.
package models

import "time"

// UTCTimeLayout is the text form of utc_time in the fixes table.
// Formatting a UTC time with it yields a "+00:00" suffix.
const UTCTimeLayout = "2006-01-02T15:04:05-07:00"

// GpsFix represents a single recorded position.
type GpsFix struct {
	UTCTime    time.Time `json:"utcTime"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Altitude   float64   `json:"altitude"`   // meters above mean sea level
	Speed      float64   `json:"speed"`      // meters per second
	Course     float64   `json:"course"`     // degrees true
	Satellites int       `json:"satellites"` // satellites in use
	HDOP       float64   `json:"hdop"`
	SessionID  string    `json:"sessionId,omitempty"` // recorder run that stored the fix
}

// FormatUTC renders t the way utc_time values are stored and compared.
func FormatUTC(t time.Time) string {
	return t.UTC().Format(UTCTimeLayout)
}

// ParseUTC parses a stored utc_time value. Fractional seconds and any
// RFC 3339 offset are accepted since older databases were written by other tools.
func ParseUTC(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
