// Package dateutils provides the date parsing helpers shared by extraction
// and validation. The model is instructed to emit ISO dates, but responses
// drift into regional formats often enough that parsing stays lenient.
package dateutils

import (
	"fmt"
	"strings"
	"time"
)

// Date format constants used throughout the application.
const (
	DateLayoutISO      = "2006-01-02"
	DateLayoutEuropean = "02.01.2006"
	DateLayoutSlashed  = "02/01/2006"
	DateLayoutFull     = "2006-01-02 15:04:05"
)

// CommonFormats is the list of layouts tried in order when parsing dates.
var CommonFormats = []string{
	DateLayoutISO,
	DateLayoutFull,
	DateLayoutEuropean,
	DateLayoutSlashed,
	"02-01-2006",
	"2006/01/02",
	"2 Jan 2006",
	"Jan 2, 2006",
}

// relativeDays maps the relative day words the model occasionally emits.
var relativeDays = map[string]int{
	"today":        0,
	"hari ini":     0,
	"yesterday":    -1,
	"kemarin":      -1,
	"kemarin lusa": -2,
}

// ParseDate parses a date string using the common layouts, resolving
// relative day words against now. The zero time and an error are returned
// when nothing matches.
func ParseDate(dateStr string, now time.Time) (time.Time, error) {
	s := strings.ToLower(strings.TrimSpace(dateStr))
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	if offset, ok := relativeDays[s]; ok {
		day := now.AddDate(0, 0, offset)
		return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, now.Location()), nil
	}

	for _, layout := range CommonFormats {
		if t, err := time.Parse(layout, dateStr); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}

// DaysBetween returns the whole days from a to b, negative when b precedes a.
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
