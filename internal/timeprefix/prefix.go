// Package timeprefix turns partial local timestamps such as "2022-11" into
// half-open UTC ranges.
package timeprefix

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ExampleFormat is shown to users whenever a prefix is rejected.
const ExampleFormat = "2022-11-05T20:15:30"

const (
	completionTemplate = "0000-00-00T00:00:00"
	completedLayout    = "2006-01-02T15:04:05"
)

// prefixRegex accepts left-to-right truncations of YYYY-MM-DDTHH:MM:SS where a
// field may stop after its first digit and no field follows a missing one.
var prefixRegex = regexp.MustCompile(`^\d(\d(\d(\d(-(\d(\d(-(\d(\d(T(\d(\d(:(\d(\d(:(\d(\d)?)?)?)?)?)?)?)?)?)?)?)?)?)?)?)?)?)?$`)

// Prefix is a validated truncation of a local ISO-8601 timestamp.
type Prefix string

// ErrorKind classifies a ParseError.
type ErrorKind string

const (
	// InvalidFormat means the input does not have the shape of a timestamp prefix.
	InvalidFormat ErrorKind = "invalid_format"
	// InvalidTimestamp means the shape is right but the completed timestamp is
	// not a real calendar time, e.g. month 13 or hour 25.
	InvalidTimestamp ErrorKind = "invalid_timestamp"
	// NoGranularity means no successor rule applies to the prefix.
	NoGranularity ErrorKind = "no_granularity"
)

// ParseError reports a prefix that cannot be turned into a time.
type ParseError struct {
	Kind     ErrorKind
	Value    string
	Expected string
	Err      error
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case InvalidFormat:
		return fmt.Sprintf("%q is not a prefix of a timestamp in the format %s", e.Value, e.Expected)
	case NoGranularity:
		return fmt.Sprintf("cannot determine the granularity of %q", e.Value)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%q does not complete to a valid timestamp: %v", e.Value, e.Err)
		}
		return fmt.Sprintf("%q does not complete to a valid timestamp", e.Value)
	}
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a *ParseError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Kind == kind
}

// Validate checks s against the prefix grammar. Only digit shape is checked;
// range errors surface later from Earliest or Successor.
func Validate(s string) (Prefix, error) {
	if !prefixRegex.MatchString(s) {
		return "", &ParseError{Kind: InvalidFormat, Value: s, Expected: ExampleFormat}
	}
	return Prefix(s), nil
}

// MustValidate is like Validate but panics on error. Intended for tests and constants.
func MustValidate(s string) Prefix {
	p, err := Validate(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the prefix as entered.
func (p Prefix) String() string {
	return string(p)
}

// Complete pads p with the matching tail of "0000-00-00T00:00:00" and turns
// any zero month or day into 01, giving the earliest timestamp p can denote.
func Complete(p Prefix) string {
	s := string(p)
	if len(s) < len(completionTemplate) {
		s += completionTemplate[len(s):]
	}
	return strings.ReplaceAll(s, "-00", "-01")
}

// civil parses the completed prefix as a wall-clock time. The result is in
// UTC only as a carrier for calendar fields; it does not denote an instant.
func civil(p Prefix) (time.Time, error) {
	t, err := time.Parse(completedLayout, Complete(p))
	if err != nil {
		return time.Time{}, &ParseError{Kind: InvalidTimestamp, Value: string(p), Expected: ExampleFormat, Err: err}
	}
	return t, nil
}

// inLocation places the wall-clock fields of c in loc.
func inLocation(c time.Time, loc *time.Location) time.Time {
	return time.Date(c.Year(), c.Month(), c.Day(), c.Hour(), c.Minute(), c.Second(), 0, loc)
}

// Earliest returns the first instant denoted by p when read as local time in loc.
func Earliest(p Prefix, loc *time.Location) (time.Time, error) {
	c, err := civil(p)
	if err != nil {
		return time.Time{}, err
	}
	return inLocation(c, loc), nil
}
