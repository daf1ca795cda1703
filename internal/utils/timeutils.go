package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseRFC3339 returns a time from the provided string or an error.
func ParseRFC3339(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time: %w", err)
	}
	return t, nil
}

// ParseTimestamp accepts the layouts emitted by log stores and SQL drivers, plus unix seconds or
// milliseconds. Layouts without a zone are read as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("parse time %q: unsupported layout", value)
}

// DaySpans splits [start, end) into UTC calendar days, each clipped to the bounds.
func DaySpans(start, end time.Time) []models.TimeRange {
	start, end = start.UTC(), end.UTC()
	if !start.Before(end) {
		return nil
	}
	var spans []models.TimeRange
	cursor := start
	for cursor.Before(end) {
		y, m, d := cursor.Date()
		next := time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
		if next.After(end) {
			next = end
		}
		spans = append(spans, models.TimeRange{Start: cursor, End: next})
		cursor = next
	}
	return spans
}
