// SPDX-License-Identifier: MIT

// Package recordings queries the active channel's recording server for the
// selected day and maintains the render cache.
package recordings

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ManuGH/mtxpanel/internal/bus"
	"github.com/ManuGH/mtxpanel/internal/calendar"
	"github.com/ManuGH/mtxpanel/internal/log"
	"github.com/ManuGH/mtxpanel/internal/mediamtx"
	"github.com/ManuGH/mtxpanel/internal/metrics"
	"github.com/ManuGH/mtxpanel/internal/state"
)

// Lookup is the recording lookup service.
type Lookup struct {
	app    *state.App
	client *mediamtx.Client
	bus    *bus.Bus
}

func New(app *state.App, client *mediamtx.Client, b *bus.Bus) *Lookup {
	return &Lookup{app: app, client: client, bus: b}
}

// Fetch lists recordings for the active channel over the selected day and
// replaces the render cache on success. A 404 listing is a valid empty
// result. On failure the cache is left untouched; the refresh stamp is
// updated on every attempted request regardless of outcome.
func (l *Lookup) Fetch(ctx context.Context) {
	ch, ok := l.app.CurrentChannel()
	if !ok || ch.Host == "" || ch.Path == "" {
		// No channel to query; let the presentation layer render its
		// empty state.
		l.bus.Publish(bus.Event{Kind: bus.KindRecordings})
		return
	}

	start, end := calendar.DayRange(l.app.SelectedDate())
	items, err := l.client.List(ctx, ch.Host, ch.Path, start, end)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("list", "error").Inc()
		logger := log.WithComponentFromContext(ctx, "recordings")
		logger.Error().
			Err(err).
			Str("event", "recordings.fetch_failed").
			Str("channel_id", ch.ID).
			Msg("failed to fetch recordings")
		l.bus.Publish(bus.Toast("Error", "Failed to fetch recordings", bus.SeverityError))
		l.app.SetLastRefreshed(time.Now())
		return
	}

	outcome := "ok"
	if len(items) == 0 {
		outcome = "empty"
	}
	metrics.UpstreamRequestsTotal.WithLabelValues("list", outcome).Inc()

	sort.Slice(items, func(i, j int) bool {
		return items[i].Start.After(items[j].Start)
	})
	l.app.SetCachedRecordings(items)
	l.bus.Publish(bus.Toast("Sync Complete", fmt.Sprintf("Found %d recordings", len(items)), bus.SeveritySuccess))
	l.app.SetLastRefreshed(time.Now())
}
