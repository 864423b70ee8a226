package interval

import (
	"errors"
	"testing"
	"time"
)

func at(h, m int) time.Time {
	return time.Date(2026, 1, 28, h, m, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"disjoint", Interval{at(9, 0), at(10, 0)}, Interval{at(11, 0), at(12, 0)}, false},
		{"touching end to start", Interval{at(9, 0), at(10, 0)}, Interval{at(10, 0), at(11, 0)}, false},
		{"touching start to end", Interval{at(10, 0), at(11, 0)}, Interval{at(9, 0), at(10, 0)}, false},
		{"partial", Interval{at(9, 0), at(10, 0)}, Interval{at(9, 30), at(10, 30)}, true},
		{"contained", Interval{at(9, 0), at(12, 0)}, Interval{at(10, 0), at(11, 0)}, true},
		{"identical", Interval{at(9, 0), at(10, 0)}, Interval{at(9, 0), at(10, 0)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Fatalf("Overlaps(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if got := Overlaps(tt.b.Start, tt.b.End, tt.a.Start, tt.a.End); got != tt.want {
				t.Fatalf("overlap must be symmetric")
			}
		})
	}
}

func TestOverlapsAny_OverlappingBusy(t *testing.T) {
	busy := []Interval{
		{at(9, 0), at(11, 0)},
		{at(10, 0), at(12, 0)},
	}
	if !OverlapsAny(Interval{at(11, 30), at(12, 30)}, busy) {
		t.Fatal("expected overlap with second busy interval")
	}
	if OverlapsAny(Interval{at(12, 0), at(13, 0)}, busy) {
		t.Fatal("slot starting at busy end must be free")
	}
}

func TestLocalWallClockToUTC_UsesOffsetForDate(t *testing.T) {
	ny, err := LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}

	winter, err := LocalWallClockToUTC("2026-01-15", "09:00", ny)
	if err != nil {
		t.Fatalf("winter: %v", err)
	}
	if want := time.Date(2026, 1, 15, 14, 0, 0, 0, time.UTC); !winter.Equal(want) {
		t.Fatalf("winter 09:00 EST: got %s, want %s", winter, want)
	}

	summer, err := LocalWallClockToUTC("2026-07-15", "09:00", ny)
	if err != nil {
		t.Fatalf("summer: %v", err)
	}
	if want := time.Date(2026, 7, 15, 13, 0, 0, 0, time.UTC); !summer.Equal(want) {
		t.Fatalf("summer 09:00 EDT: got %s, want %s", summer, want)
	}
	if summer.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %s", summer.Location())
	}
}

func TestUTCToLocalDisplay(t *testing.T) {
	ny, err := LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	instant := time.Date(2026, 7, 15, 16, 30, 0, 0, time.UTC)
	if got := UTCToLocalDisplay(instant, ny); got != "12:30" {
		t.Fatalf("expected 12:30, got %s", got)
	}
	if got := UTCToLocalDisplay(instant, nil); got != "16:30" {
		t.Fatalf("nil zone should format in UTC, got %s", got)
	}
}

func TestLoadLocation_DefaultsToUTC(t *testing.T) {
	loc, err := LoadLocation("  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.String() != "UTC" {
		t.Fatalf("expected UTC, got %s", loc)
	}
	if _, err := LoadLocation("Mars/Olympus_Mons"); err == nil {
		t.Fatal("expected error for unknown zone")
	}
}

func TestParseClock(t *testing.T) {
	for _, ok := range []string{"00:00", "09:05", "23:59"} {
		if _, _, err := ParseClock(ok); err != nil {
			t.Fatalf("ParseClock(%q): %v", ok, err)
		}
	}
	for _, bad := range []string{"", "9:00", "24:00", "12:60", "noon", "12:00:00"} {
		if _, _, err := ParseClock(bad); !errors.Is(err, ErrInvalidClock) {
			t.Fatalf("ParseClock(%q): expected ErrInvalidClock, got %v", bad, err)
		}
	}
}

func TestParseDate(t *testing.T) {
	if _, _, _, err := ParseDate("2026-02-30"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
	y, m, d, err := ParseDate("2026-03-08")
	if err != nil || y != 2026 || m != time.March || d != 8 {
		t.Fatalf("unexpected parse result %d-%d-%d err=%v", y, m, d, err)
	}
}
