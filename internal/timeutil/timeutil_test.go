package timeutil

import (
	"testing"
	"time"
)

func ptr(s string) *string {
	return &s
}

func TestPtr(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want *string
	}{
		{
			name: "zero time returns nil",
			in:   time.Time{},
			want: nil,
		},
		{
			name: "non-zero returns RFC3339Nano UTC",
			in:   time.Date(2024, 6, 15, 12, 30, 45, 123000000, time.UTC),
			want: ptr("2024-06-15T12:30:45.123Z"),
		},
		{
			name: "converts to UTC",
			in:   time.Date(2024, 6, 15, 7, 30, 0, 0, time.FixedZone("EST", -5*60*60)),
			want: ptr("2024-06-15T12:30:00Z"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Ptr(tt.in)
			if tt.want == nil {
				if got != nil {
					t.Errorf("Ptr() = %v, want nil", *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("Ptr() returned nil, want %q", *tt.want)
			}
			if *got != *tt.want {
				t.Errorf("Ptr() = %q, want %q", *got, *tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"zero time returns empty", time.Time{}, ""},
		{"non-zero returns RFC3339Nano UTC", time.Date(2024, 6, 15, 12, 30, 45, 0, time.UTC), "2024-06-15T12:30:45Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.in); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"empty", "", time.Time{}},
		{
			"nano precision",
			"2024-06-15T12:30:45.123Z",
			time.Date(2024, 6, 15, 12, 30, 45, 123000000, time.UTC),
		},
		{
			"plain seconds",
			"2024-06-15T12:30:45Z",
			time.Date(2024, 6, 15, 12, 30, 45, 0, time.UTC),
		},
		{"garbage", "not a time", time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Parse(tt.in); !got.Equal(tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCalendarTruncation(t *testing.T) {
	// Thursday 2024-06-13 17:45:10 UTC.
	ts := time.Date(2024, 6, 13, 17, 45, 10, 0, time.UTC)

	if got := StartOfHour(ts, time.UTC); !got.Equal(
		time.Date(2024, 6, 13, 17, 0, 0, 0, time.UTC)) {
		t.Errorf("StartOfHour() = %v", got)
	}
	if got := StartOfDay(ts, time.UTC); !got.Equal(
		time.Date(2024, 6, 13, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("StartOfDay() = %v", got)
	}
	if got := StartOfISOWeek(ts, time.UTC); !got.Equal(
		time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("StartOfISOWeek() = %v, want Monday", got)
	}
	if got := StartOfMonth(ts, time.UTC); !got.Equal(
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("StartOfMonth() = %v", got)
	}
}

func TestISOWeekday(t *testing.T) {
	monday := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		day := monday.AddDate(0, 0, i)
		if got := ISOWeekday(day); got != i {
			t.Errorf("ISOWeekday(%s) = %d, want %d",
				day.Weekday(), got, i)
		}
	}
}

func TestLocalDay(t *testing.T) {
	// 01:30 UTC on the 15th is still the 14th in UTC-5.
	ts := time.Date(2024, 6, 15, 1, 30, 0, 0, time.UTC)
	est := time.FixedZone("EST", -5*60*60)

	if got := LocalDay(ts, time.UTC); got != "2024-06-15" {
		t.Errorf("LocalDay(UTC) = %q", got)
	}
	if got := LocalDay(ts, est); got != "2024-06-14" {
		t.Errorf("LocalDay(EST) = %q", got)
	}
}
