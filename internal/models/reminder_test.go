package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMilestoneWindowContains(t *testing.T) {
	start := time.Date(2025, time.June, 10, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		milestone Milestone
		now       time.Time
		want      bool
	}{
		{"one day, exactly 24h before", OneDayBefore, start.Add(-24 * time.Hour), true},
		{"one day, lower bound", OneDayBefore, start.Add(-23 * time.Hour), true},
		{"one day, upper bound", OneDayBefore, start.Add(-25 * time.Hour), true},
		{"one day, 26h before", OneDayBefore, start.Add(-26 * time.Hour), false},
		{"one day, 22h before", OneDayBefore, start.Add(-22 * time.Hour), false},
		{"two hours, exactly 2h before", TwoHoursBefore, start.Add(-2 * time.Hour), true},
		{"two hours, 105min before", TwoHoursBefore, start.Add(-105 * time.Minute), true},
		{"two hours, 89min before", TwoHoursBefore, start.Add(-89 * time.Minute), false},
		{"two hours, 151min before", TwoHoursBefore, start.Add(-151 * time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.milestone.Window().Contains(tt.now, start))
		})
	}
}

func TestWindowBounds(t *testing.T) {
	now := time.Date(2025, time.June, 9, 18, 30, 0, 0, time.UTC)

	lo, hi := OneDayBefore.Window().Bounds(now)
	assert.Equal(t, time.Date(2025, time.June, 10, 17, 30, 0, 0, time.UTC), lo)
	assert.Equal(t, time.Date(2025, time.June, 10, 19, 30, 0, 0, time.UTC), hi)

	lo, hi = TwoHoursBefore.Window().Bounds(now)
	assert.Equal(t, time.Date(2025, time.June, 9, 20, 0, 0, 0, time.UTC), lo)
	assert.Equal(t, time.Date(2025, time.June, 9, 21, 0, 0, 0, time.UTC), hi)
}

func TestMilestoneMetadata(t *testing.T) {
	assert.Equal(t, "one_day_sent", OneDayBefore.Column())
	assert.Equal(t, "two_hours_sent", TwoHoursBefore.Column())
	assert.Equal(t, 24*time.Hour, OneDayBefore.LeadTime())
	assert.Equal(t, 2*time.Hour, TwoHoursBefore.LeadTime())
	assert.Equal(t, "two_hours_before", TwoHoursBefore.String())
	assert.False(t, Milestone(0).Valid())
	assert.Equal(t, time.Hour, NarrowestWindow())
}

func TestReminderSent(t *testing.T) {
	r := Reminder{OneDaySent: true}
	assert.True(t, r.Sent(OneDayBefore))
	assert.False(t, r.Sent(TwoHoursBefore))
	assert.False(t, r.Sent(Milestone(42)))
}

func TestCombineDateAndTime(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	day := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		timeOfDay string
		want      time.Time
		wantErr   bool
	}{
		{"24h clock", "18:00", time.Date(2025, time.June, 10, 18, 0, 0, 0, chicago), false},
		{"with seconds", "09:15:30", time.Date(2025, time.June, 10, 9, 15, 30, 0, chicago), false},
		{"12h clock", "6:30 PM", time.Date(2025, time.June, 10, 18, 30, 0, 0, chicago), false},
		{"lowercase meridiem", "7pm", time.Date(2025, time.June, 10, 19, 0, 0, 0, chicago), false},
		{"garbage", "evening", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CombineDateAndTime(day, tt.timeOfDay, chicago)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestCombineDateAndTimeRejectsEmptyDate(t *testing.T) {
	_, err := CombineDateAndTime(time.Time{}, "18:00", time.UTC)
	require.Error(t, err)
}
