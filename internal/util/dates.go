package util

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata"
)

const NoDate = "Sin fecha"

const (
	timestampLayout = "02/01/2006 15:04:05"
	dateLayout      = "02/01/2006"
)

var (
	reDateOnly = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	reOffset   = regexp.MustCompile(`(Z|[+-]\d{2}:?\d{2})$`)

	// UTC instants are shown at a fixed -05:00 offset.
	utcDisplayZone = time.FixedZone("GMT-5", -5*60*60)

	naiveLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
	}
	offsetLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999Z0700",
		"2006-01-02T15:04Z07:00",
	}
)

// DateNormalizer turns the date-like strings of a search record into display
// strings. It never fails: anything it cannot read is returned verbatim.
type DateNormalizer struct {
	zone *time.Location
	// OnFault, when set, is told about every input that could not be parsed.
	OnFault func(input string, err error)
}

// NewDateNormalizer resolves zoneName (e.g. America/Lima) for naive
// timestamps, falling back to a fixed -05:00 zone if it cannot be loaded.
func NewDateNormalizer(zoneName string) *DateNormalizer {
	if strings.TrimSpace(zoneName) == "" {
		return &DateNormalizer{zone: utcDisplayZone}
	}
	loc, err := time.LoadLocation(zoneName)
	if err != nil {
		loc = time.FixedZone(zoneName, -5*60*60)
	}
	return &DateNormalizer{zone: loc}
}

var defaultNormalizer = NewDateNormalizer("America/Lima")

func FormatTimestamp(input string) string { return defaultNormalizer.FormatTimestamp(input) }

func FormatDateOnly(input string) string { return defaultNormalizer.FormatDateOnly(input) }

func (n *DateNormalizer) FormatTimestamp(input string) string {
	return n.format(input, timestampLayout)
}

func (n *DateNormalizer) FormatDateOnly(input string) string {
	return n.format(input, dateLayout)
}

func (n *DateNormalizer) format(input, layout string) string {
	if strings.TrimSpace(input) == "" {
		return NoDate
	}
	if m := reDateOnly.FindStringSubmatch(strings.TrimSpace(input)); m != nil {
		return m[3] + "/" + m[2] + "/" + m[1]
	}
	t, err := n.parse(input)
	if err != nil {
		n.fault(input, err)
		return input
	}
	return t.Format(layout)
}

// CalendarDate returns the day FormatDateOnly would display for input, at
// midnight UTC, so that differences between two results are whole days.
func (n *DateNormalizer) CalendarDate(input string) (time.Time, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return time.Time{}, false
	}
	if reDateOnly.MatchString(s) {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			n.fault(input, err)
			return time.Time{}, false
		}
		return t, true
	}
	t, err := n.parse(s)
	if err != nil {
		n.fault(input, err)
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}

func CalendarDate(input string) (time.Time, bool) { return defaultNormalizer.CalendarDate(input) }

// parse returns the instant already moved into its display zone.
func (n *DateNormalizer) parse(input string) (time.Time, error) {
	s := strings.TrimSpace(input)
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}

	if isUTC(s) {
		t, err := parseAny(s, offsetLayouts, time.UTC)
		if err != nil {
			return time.Time{}, err
		}
		return t.In(utcDisplayZone), nil
	}
	if reOffset.MatchString(s) {
		t, err := parseAny(s, offsetLayouts, time.UTC)
		if err != nil {
			return time.Time{}, err
		}
		return t.In(n.zone), nil
	}
	// Naive wall clock: read it as display-zone time so the numbers pass through.
	return parseAny(s, naiveLayouts, n.zone)
}

func (n *DateNormalizer) fault(input string, err error) {
	if n.OnFault != nil {
		n.OnFault(input, err)
	}
}

func isUTC(s string) bool {
	return strings.HasSuffix(s, "Z") || strings.HasSuffix(s, "+00:00") || strings.HasSuffix(s, "+0000")
}

func parseAny(s string, layouts []string, loc *time.Location) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format: %q", s)
}
