// Package timeutil holds the small time and text helpers shared by the fetcher,
// transformer and notifiers. Everything here is pure.
package timeutil

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// JST is the fixed UTC+9 zone the fetch window is computed in.
var JST = time.FixedZone("JST", 9*60*60)

// DateLayout is the layout Qiita's created:>= query expects.
const DateLayout = "2006-01-02"

// NowJST returns the current time in JST.
func NowJST() time.Time {
	return time.Now().In(JST)
}

// DateRange returns [end - days, end] with both bounds in JST.
func DateRange(end time.Time, days int) (time.Time, time.Time) {
	end = end.In(JST)
	return end.AddDate(0, 0, -days), end
}

// FormatDate formats t as YYYY-MM-DD in JST.
func FormatDate(t time.Time) string {
	return t.In(JST).Format(DateLayout)
}

// ParseISO parses an ISO-8601 timestamp with an offset or a trailing Z.
func ParseISO(value string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05-0700",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse ISO-8601 time: %q", value)
}

// WithinRange reports whether start <= t <= end.
func WithinRange(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// TruncateText cuts text to maxLength characters and appends "..." when it had to cut.
func TruncateText(text string, maxLength int) string {
	if text == "" {
		return ""
	}
	if utf8.RuneCountInString(text) <= maxLength {
		return text
	}
	return TruncateRunes(text, maxLength) + "..."
}

// TruncateRunes returns the first n characters of text.
func TruncateRunes(text string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range text {
		if count == n {
			return text[:i]
		}
		count++
	}
	return text
}
