package fields

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order against receipt dates as the generation
// service returns them. The list matches the formats seen on real receipts,
// broadest last.
var dateLayouts = []string{
	"02-Jan-2006",
	"02/01/2006",
	"2006-01-02",
	"02Jan06",
	"Jan 02",
	"2006",
}

// ParseDate parses a free-text receipt date. It returns false when no known
// layout matches; the caller decides the fallback (the processing job
// substitutes its own clock). It never returns an error: an unreadable date
// is a degradation, not a failure.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	// Last resort: full ISO-8601 timestamps.
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

var nonAmount = regexp.MustCompile(`[^0-9.]`)

// ParseCurrency parses a currency-formatted string ("£12.34", "1,204.50")
// into its numeric value by stripping every rune that is not a digit or a
// decimal point.
func ParseCurrency(s string) (float64, error) {
	cleaned := nonAmount.ReplaceAllString(s, "")
	if cleaned == "" {
		return 0, fmt.Errorf("no numeric value in %q", s)
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return v, nil
}
