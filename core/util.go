package core

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

var NowFunc = time.Now // mockable

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Today returns the current UTC calendar day.
func Today() civil.Date {
	return civil.DateOf(NowFunc().UTC())
}

// ParseDate parses a YYYY-MM-DD date, also accepting a full RFC 3339 timestamp (its UTC day is used).
func ParseDate(s string) (civil.Date, error) {
	s = CleanString(s)
	if d, err := civil.ParseDate(s); err == nil {
		return d, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return civil.Date{}, err
	}
	return civil.DateOf(t.UTC()), nil
}
