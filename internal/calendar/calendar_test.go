// SPDX-License-Identifier: MIT

package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ManuGH/mtxpanel/internal/bus"
	"github.com/ManuGH/mtxpanel/internal/state"
	"github.com/ManuGH/mtxpanel/internal/store"
)

type countingFetcher struct {
	calls int
}

func (f *countingFetcher) Fetch(context.Context) { f.calls++ }

func newTestNavigator() (*Navigator, *state.App, *countingFetcher) {
	app := state.New(store.NewMemoryStore(), bus.New())
	f := &countingFetcher{}
	return New(app, f), app, f
}

func TestDayRange(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Vienna")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	at := time.Date(2024, 5, 1, 15, 30, 45, 0, loc)

	start, end := DayRange(at)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2024, 5, 1, 23, 59, 59, int(999*time.Millisecond), loc), end)
	assert.Equal(t, loc, start.Location(), "range stays in the input location")
}

func TestShiftMonth(t *testing.T) {
	tests := []struct {
		name   string
		from   time.Time
		months int
		want   time.Time
	}{
		{
			name:   "forward",
			from:   time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "backward across year",
			from:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			months: -1,
			want:   time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			// AddDate would normalize Jan 31 - 1 month to Jan 1/Mar 2 style
			// surprises; anchoring to day 1 avoids that.
			name:   "backward from month end",
			from:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
			months: -1,
			want:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shiftMonth(tt.from, tt.months))
		})
	}
}

func TestMonthNavigationDoesNotRefetch(t *testing.T) {
	nav, app, f := newTestNavigator()
	app.SetCalendarCursor(time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC))
	selected := app.SelectedDate()

	nav.NextMonth()
	nav.NextMonth()
	nav.PrevMonth()

	assert.Equal(t, time.Month(6), app.CalendarCursor().Month())
	assert.Equal(t, selected, app.SelectedDate(), "browsing months leaves the viewed day alone")
	assert.Equal(t, 0, f.calls, "browsing months never queries upstream")
}

func TestSelectFetchesOnlyWithActiveChannel(t *testing.T) {
	nav, app, f := newTestNavigator()
	day := time.Date(2024, 5, 2, 0, 0, 0, 0, time.Local)

	nav.Select(context.Background(), day)
	assert.Equal(t, day, app.SelectedDate())
	assert.Equal(t, 0, f.calls, "no channel, no fetch")

	app.AddChannel(state.Channel{ID: "1", Name: "Front", Host: "http://a", Path: "cam1"})
	app.SetCurrentChannel("1")
	nav.Select(context.Background(), day)
	assert.Equal(t, 1, f.calls)
}

func TestToday(t *testing.T) {
	nav, app, f := newTestNavigator()
	app.SetCalendarCursor(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	app.SetSelectedDate(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	app.AddChannel(state.Channel{ID: "1", Name: "Front", Host: "http://a", Path: "cam1"})
	app.SetCurrentChannel("1")

	nav.Today(context.Background())

	now := time.Now()
	assert.Equal(t, now.Year(), app.SelectedDate().Year())
	assert.Equal(t, now.Month(), app.CalendarCursor().Month())
	assert.Equal(t, 1, f.calls)
}
