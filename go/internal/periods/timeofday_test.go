package periods

import (
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"9:00", 540, true},
		{"09:05", 545, true},
		{"23:59", 1439, true},
		{"9:30:45", 570, true},
		{"9:30 am", 570, true},
		{"9:30 PM", 1290, true},
		{"12:00 am", 0, true},
		{"12:00 pm", 720, true},
		{"12:15AM", 15, true},
		{"", 0, false},
		{"noon", 0, false},
		{"25:00", 0, false},
		{"10:75", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTimeOfDay(tt.in)
			if ok != tt.ok {
				t.Fatalf("ParseTimeOfDay(%q) ok: got %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("ParseTimeOfDay(%q): got %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestNextOccurrence(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 8, 28, 8, 56, 0, 0, time.UTC)

	tests := []struct {
		name        string
		minuteOfDay int
		want        time.Time
	}{
		{
			name:        "still ahead today",
			minuteOfDay: 9 * 60,
			want:        time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC),
		},
		{
			name:        "already passed rolls to tomorrow",
			minuteOfDay: 8 * 60,
			want:        time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC),
		},
		{
			name:        "exactly now rolls to tomorrow",
			minuteOfDay: 8*60 + 56,
			want:        time.Date(2026, 8, 29, 8, 56, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextOccurrence(now, tt.minuteOfDay)
			if !got.Equal(tt.want) {
				t.Errorf("NextOccurrence: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextMidnightIncludesMargin(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 8, 28, 23, 59, 59, 0, time.UTC)
	got := nextMidnight(now)
	want := time.Date(2026, 8, 29, 0, 0, 5, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("nextMidnight: got %v, want %v", got, want)
	}
}
