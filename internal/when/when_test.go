package when

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomMorning_AfterCutoffTargetsTomorrow(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 15, 0, 0, time.Local)
	r := rand.New(rand.NewSource(1))

	for i := 0; i < 50; i++ {
		target := RandomMorning(now, r)
		assert.Equal(t, 11, target.Day(), "09:15 is past the cutoff, target must be tomorrow")
		assert.Equal(t, MorningHour, target.Hour())
		assert.GreaterOrEqual(t, target.Minute(), 0)
		assert.LessOrEqual(t, target.Minute(), 59)
		assert.Equal(t, 0, target.Second())
	}
}

func TestRandomMorning_BeforeCutoffStaysToday(t *testing.T) {
	now := time.Date(2025, 6, 10, 3, 0, 0, 0, time.Local)
	r := rand.New(rand.NewSource(1))

	for i := 0; i < 50; i++ {
		target := RandomMorning(now, r)
		assert.Equal(t, 10, target.Day(), "03:00 is before the cutoff, target stays on the same day")
		assert.Equal(t, MorningHour, target.Hour())
	}
}

func TestRandomMorning_ExactCutoffTargetsTomorrow(t *testing.T) {
	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.Local)
	r := rand.New(rand.NewSource(1))

	target := RandomMorning(now, r)
	assert.Equal(t, 11, target.Day(), "08:00 sharp is already past the window")
}

func TestRandomMorning_MinuteVaries(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.Local)
	r := rand.New(rand.NewSource(42))

	seen := make(map[int]bool)
	for i := 0; i < 200; i++ {
		seen[RandomMorning(now, r).Minute()] = true
	}
	assert.Greater(t, len(seen), 30, "minute should be drawn across the full range")
}

func TestFormats(t *testing.T) {
	ts := time.Date(2025, 1, 2, 8, 34, 0, 0, time.Local)

	assert.Equal(t, "Jan 2, 8:34 AM", FormatMenuLabel(ts))
	assert.Equal(t, "01/02/2025", FormatDateField(ts))
	assert.Equal(t, "8:34 AM", FormatTimeField(ts))

	pm := time.Date(2025, 11, 21, 16, 5, 0, 0, time.Local)
	assert.Equal(t, "Nov 21, 4:05 PM", FormatMenuLabel(pm))
	assert.Equal(t, "4:05 PM", FormatTimeField(pm))
}

func TestCanonicalRoundTrip(t *testing.T) {
	ts := time.Date(2025, 3, 4, 8, 17, 42, 0, time.Local)

	got, err := ParseCanonical(FormatCanonical(ts))
	require.NoError(t, err)
	assert.True(t, got.Equal(ts), "canonical form must round-trip to the second")
}

func TestParseCanonical_Invalid(t *testing.T) {
	_, err := ParseCanonical("not a timestamp")
	assert.Error(t, err)
}

func TestParseDisplay(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.Local)

	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{
			name: "tomorrow_marker",
			raw:  "Tomorrow, 8:34 AM",
			want: time.Date(2025, 6, 11, 8, 34, 0, 0, time.Local),
		},
		{
			name: "today_marker",
			raw:  "Today, 2:05 PM",
			want: time.Date(2025, 6, 10, 14, 5, 0, 0, time.Local),
		},
		{
			name: "month_day",
			raw:  "Jan 2, 8:34 AM",
			want: time.Date(2025, 1, 2, 8, 34, 0, 0, time.Local),
		},
		{
			name: "full_banner_text",
			raw:  "Send scheduled for Jun 15, 9:00 AM",
			want: time.Date(2025, 6, 15, 9, 0, 0, 0, time.Local),
		},
		{
			name: "narrow_nbsp_before_meridiem",
			raw:  "Tomorrow, 8:34\u202fAM",
			want: time.Date(2025, 6, 11, 8, 34, 0, 0, time.Local),
		},
		{
			name: "dotted_meridiem",
			raw:  "Today, 11:59 p.m.",
			want: time.Date(2025, 6, 10, 23, 59, 0, 0, time.Local),
		},
		{
			name: "noon",
			raw:  "Today, 12:00 PM",
			want: time.Date(2025, 6, 10, 12, 0, 0, 0, time.Local),
		},
		{
			name: "midnight",
			raw:  "Tomorrow, 12:00 AM",
			want: time.Date(2025, 6, 11, 0, 0, 0, 0, time.Local),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDisplay(tt.raw, now)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}

func TestParseDisplay_Failures(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.Local)

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"whitespace_only", "   "},
		{"no_clock_time", "Tomorrow sometime"},
		{"no_date_marker", "8:34 AM"},
		{"bogus_hour", "Today, 13:00 PM"},
		{"bogus_minute", "Today, 8:71 AM"},
		{"plain_prose", "see you later"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDisplay(tt.raw, now)
			assert.Error(t, err)
		})
	}
}
