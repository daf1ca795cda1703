package utils

import (
	"testing"
	"time"
)

func TestDaySpansClipsToBounds(t *testing.T) {
	start := time.Date(2024, 5, 1, 22, 0, 0, 0, time.UTC)
	end := time.Date(2024, 5, 3, 7, 0, 0, 0, time.UTC)

	spans := DaySpans(start, end)
	if len(spans) != 3 {
		t.Fatalf("expected 3 day spans, got %d", len(spans))
	}
	if !spans[0].Start.Equal(start) || !spans[0].End.Equal(time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected first span %+v", spans[0])
	}
	if !spans[2].End.Equal(end) {
		t.Fatalf("last span must end at window end, got %v", spans[2].End)
	}

	if got := DaySpans(end, start); got != nil {
		t.Fatalf("expected no spans for inverted range")
	}
}

func TestDaySpansUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	start := time.Date(2024, 5, 2, 8, 0, 0, 0, loc) // 2024-05-01T22:00Z
	end := time.Date(2024, 5, 2, 9, 0, 0, 0, loc)   // 2024-05-01T23:00Z
	if spans := DaySpans(start, end); len(spans) != 1 {
		t.Fatalf("expected a single UTC day, got %d", len(spans))
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := map[string]time.Time{
		"2024-05-01T10:00:00Z":                time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		"2024-05-01 10:00:00+00:00":           time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		"2024-05-01 10:00:00":                 time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		"1714557600":                          time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		"1714557600000":                       time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		"2024-05-01T12:00:00.123456789+02:00": time.Date(2024, 5, 1, 10, 0, 0, 123456789, time.UTC),
	}
	for in, want := range cases {
		got, err := ParseTimestamp(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if !got.Equal(want) {
			t.Fatalf("parse %q: expected %v, got %v", in, want, got)
		}
	}
	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Fatalf("expected error")
	}
}
