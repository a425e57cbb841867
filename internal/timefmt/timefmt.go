// Package timefmt parses and renders run durations and run dates.
//
// Durations are accepted as plain seconds ("95"), clock form ("1:35",
// "1:02:03") or unit spellings ("1h 2m 3s", "4m", "90 sec"). The canonical
// rendering is clock form: H:MM:SS when there are hours, M:SS otherwise.
package timefmt

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaxSeconds caps parsed durations at 10000 hours.
const MaxSeconds = 10000 * 3600

// DateLayout is the canonical MM/DD/YYYY rendering of run dates.
const DateLayout = "01/02/2006"

var (
	// ErrEmpty is returned for blank duration input.
	ErrEmpty = errors.New("no time given")
	// ErrNotPositive is returned for durations of zero seconds.
	ErrNotPositive = errors.New("time must be greater than zero")
	// ErrTooLong is returned for durations above MaxSeconds.
	ErrTooLong = errors.New("time is too long")
)

var (
	digits    = regexp.MustCompile(`^[0-9]+$`)
	unitsForm = regexp.MustCompile(`(?i)^(?:([0-9]+)\s*h(?:ours?|rs?)?)?\s*(?:([0-9]+)\s*m(?:in(?:ute)?s?)?)?\s*(?:([0-9]+)\s*s(?:ec(?:ond)?s?)?)?$`)
)

var dateLayouts = []string{"1/2/2006", "2006-01-02"}

// ParseDuration converts free text into a positive number of seconds.
func ParseDuration(text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, ErrEmpty
	}

	var (
		total int
		err   error
	)
	switch {
	case strings.Contains(text, ":"):
		total, err = parseClock(text)
	case digits.MatchString(text):
		total, err = atoi(text)
	default:
		total, err = parseUnits(text)
	}
	if err != nil {
		return 0, err
	}

	if total <= 0 {
		return 0, ErrNotPositive
	}
	if total > MaxSeconds {
		return 0, ErrTooLong
	}
	return total, nil
}

func parseClock(text string) (int, error) {
	parts := strings.Split(text, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("too many fields in %q", text)
	}

	total := 0
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if !digits.MatchString(p) {
			return 0, fmt.Errorf("%q is not a number", p)
		}
		n, err := atoi(p)
		if err != nil {
			return 0, err
		}
		if i > 0 && n > 59 {
			return 0, fmt.Errorf("%q must be between 0 and 59", p)
		}
		total = total*60 + n
	}
	return total, nil
}

func parseUnits(text string) (int, error) {
	m := unitsForm.FindStringSubmatch(text)
	if m == nil || (m[1] == "" && m[2] == "" && m[3] == "") {
		return 0, fmt.Errorf("unrecognized time %q", text)
	}

	total := 0
	for i, mult := range []int{3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, err := atoi(m[i+1])
		if err != nil {
			return 0, err
		}
		total += n * mult
	}
	return total, nil
}

// atoi rejects values too large to be a plausible field before they can
// overflow when multiplied.
func atoi(s string) (int, error) {
	if len(s) > 9 {
		return 0, ErrTooLong
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	return n, nil
}

// FormatDuration renders seconds in canonical clock form.
func FormatDuration(seconds int) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// ParseDate parses an optional run date. Blank input yields (nil, nil).
func ParseDate(text string) (*time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, text); err == nil {
			return &d, nil
		}
	}
	return nil, fmt.Errorf("%q is not a date (use MM/DD/YYYY)", text)
}

// FormatDate renders a date as MM/DD/YYYY, or "" for nil.
func FormatDate(d *time.Time) string {
	if d == nil {
		return ""
	}
	return d.Format(DateLayout)
}
