package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextBusinessBoundary_WeekendRollsToMonday(t *testing.T) {
	loc := eastern(t).Location()

	tests := []struct {
		name string
		in   time.Time
		kind Boundary
		want string
	}{
		{name: "saturday start", in: time.Date(2024, 4, 6, 13, 15, 0, 0, loc), kind: BoundaryStart, want: "2024-04-08 08:00:00-04:00"},
		{name: "saturday end", in: time.Date(2024, 4, 6, 0, 5, 0, 0, loc), kind: BoundaryEnd, want: "2024-04-08 17:00:00-04:00"},
		{name: "sunday start", in: time.Date(2024, 4, 7, 23, 59, 0, 0, loc), kind: BoundaryStart, want: "2024-04-08 08:00:00-04:00"},
		{name: "sunday end", in: time.Date(2024, 4, 7, 6, 0, 0, 0, loc), kind: BoundaryEnd, want: "2024-04-08 17:00:00-04:00"},
		{name: "weekend spanning DST start", in: time.Date(2024, 3, 9, 9, 0, 0, 0, loc), kind: BoundaryStart, want: "2024-03-11 08:00:00-04:00"},
		{name: "weekend spanning DST end", in: time.Date(2024, 11, 2, 9, 0, 0, 0, loc), kind: BoundaryEnd, want: "2024-11-04 17:00:00-05:00"},
		{name: "month rollover", in: time.Date(2024, 8, 31, 9, 0, 0, 0, loc), kind: BoundaryStart, want: "2024-09-02 08:00:00-04:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextBusinessBoundary(tt.in, tt.kind)
			assert.Equal(t, tt.want, FormatWithOffset(got))
			assert.Equal(t, time.Monday, got.Weekday())
		})
	}
}

func TestNextBusinessBoundary_WeekdayUnchanged(t *testing.T) {
	loc := eastern(t).Location()
	// Every weekday and a spread of clock times, including outside business hours.
	for day := 1; day <= 5; day++ {
		for _, hour := range []int{0, 7, 8, 12, 17, 22} {
			in := time.Date(2024, 4, day, hour, 42, 17, 0, loc)
			if !IsBusinessDay(in) {
				continue
			}
			assert.True(t, NextBusinessBoundary(in, BoundaryStart).Equal(in), "start %s", in)
			assert.True(t, NextBusinessBoundary(in, BoundaryEnd).Equal(in), "end %s", in)
		}
	}
}

func TestIsBusinessDay(t *testing.T) {
	loc := eastern(t).Location()
	assert.True(t, IsBusinessDay(time.Date(2024, 4, 5, 10, 0, 0, 0, loc)))
	assert.False(t, IsBusinessDay(time.Date(2024, 4, 6, 10, 0, 0, 0, loc)))
	assert.False(t, IsBusinessDay(time.Date(2024, 4, 7, 10, 0, 0, 0, loc)))
}

func TestComputeWindow(t *testing.T) {
	loc := eastern(t).Location()

	tests := []struct {
		name       string
		now        time.Time
		expandDays int
		wantStart  string
		wantEnd    string
	}{
		{
			name:       "friday rolls end past weekend",
			now:        time.Date(2024, 4, 5, 10, 0, 0, 0, loc),
			expandDays: 1,
			wantStart:  "2024-04-05 10:00:00-04:00",
			wantEnd:    "2024-04-08 17:00:00-04:00",
		},
		{
			name:       "wednesday one day",
			now:        time.Date(2024, 4, 3, 10, 0, 0, 0, loc),
			expandDays: 1,
			wantStart:  "2024-04-03 10:00:00-04:00",
			wantEnd:    "2024-04-04 17:00:00-04:00",
		},
		{
			name:       "wednesday two days",
			now:        time.Date(2024, 4, 3, 10, 0, 0, 0, loc),
			expandDays: 2,
			wantStart:  "2024-04-03 10:00:00-04:00",
			wantEnd:    "2024-04-05 17:00:00-04:00",
		},
		{
			name:       "saturday starts monday morning",
			now:        time.Date(2024, 4, 6, 15, 0, 0, 0, loc),
			expandDays: 1,
			wantStart:  "2024-04-08 08:00:00-04:00",
			wantEnd:    "2024-04-09 17:00:00-04:00",
		},
		{
			name:       "non-positive expand treated as one",
			now:        time.Date(2024, 4, 3, 10, 0, 0, 0, loc),
			expandDays: 0,
			wantStart:  "2024-04-03 10:00:00-04:00",
			wantEnd:    "2024-04-04 17:00:00-04:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ComputeWindow(tt.now, tt.expandDays)
			assert.Equal(t, tt.wantStart, FormatWithOffset(w.Start))
			assert.Equal(t, tt.wantEnd, FormatWithOffset(w.End))
			assert.False(t, w.End.Before(w.Start))
			assert.True(t, IsBusinessDay(w.End))
			assert.Equal(t, EpochMillis(w.Start), w.StartMillis())
			assert.Equal(t, EpochMillis(w.End), w.EndMillis())
		})
	}
}

func TestBoundaryString(t *testing.T) {
	assert.Equal(t, "start", BoundaryStart.String())
	assert.Equal(t, "end", BoundaryEnd.String())
}
