// SPDX-License-Identifier: MIT

// Package calendar maps the month grid and day selection onto the active
// date filter range.
package calendar

import (
	"context"
	"time"

	"github.com/ManuGH/mtxpanel/internal/state"
)

// Fetcher triggers a recordings refresh for the current selection.
type Fetcher interface {
	Fetch(ctx context.Context)
}

// Navigator owns the calendar cursor and the selected day.
type Navigator struct {
	app     *state.App
	fetcher Fetcher
}

func New(app *state.App, fetcher Fetcher) *Navigator {
	return &Navigator{app: app, fetcher: fetcher}
}

// DayRange returns the local full-day filter range for t:
// [local midnight, local 23:59:59.999].
func DayRange(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	end := time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
	return start, end
}

// Today moves both the month cursor and the selected day to the current
// moment and refreshes recordings when a channel is active.
func (n *Navigator) Today(ctx context.Context) {
	now := time.Now()
	n.app.SetCalendarCursor(now)
	n.app.SetSelectedDate(now)
	if _, ok := n.app.CurrentChannel(); ok {
		n.fetcher.Fetch(ctx)
	}
}

// PrevMonth moves the month cursor back one month. The selected day and
// the recordings view are untouched.
func (n *Navigator) PrevMonth() {
	n.app.SetCalendarCursor(shiftMonth(n.app.CalendarCursor(), -1))
}

// NextMonth moves the month cursor forward one month.
func (n *Navigator) NextMonth() {
	n.app.SetCalendarCursor(shiftMonth(n.app.CalendarCursor(), 1))
}

// shiftMonth moves the cursor anchored to the first of the month so that
// e.g. Jan 31 does not normalize past February.
func shiftMonth(t time.Time, months int) time.Time {
	return time.Date(t.Year(), t.Month()+time.Month(months), 1, 0, 0, 0, 0, t.Location())
}

// Select makes day the viewed date and refreshes recordings when a channel
// is active.
func (n *Navigator) Select(ctx context.Context, day time.Time) {
	n.app.SetSelectedDate(day)
	if _, ok := n.app.CurrentChannel(); ok {
		n.fetcher.Fetch(ctx)
	}
}
