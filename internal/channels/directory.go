// SPDX-License-Identifier: MIT

// Package channels implements the channel directory: CRUD over saved
// recording sources, active-channel switching and latency probing.
package channels

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ManuGH/mtxpanel/internal/bus"
	"github.com/ManuGH/mtxpanel/internal/log"
	"github.com/ManuGH/mtxpanel/internal/mediamtx"
	"github.com/ManuGH/mtxpanel/internal/metrics"
	"github.com/ManuGH/mtxpanel/internal/state"
)

// Fetcher triggers a recordings refresh for the active channel.
type Fetcher interface {
	Fetch(ctx context.Context)
}

// Directory is the channel directory service.
type Directory struct {
	app    *state.App
	client *mediamtx.Client
	bus    *bus.Bus

	// probeSem serializes outbound latency probes. Weight 1 by default:
	// probing one channel at a time is a deliberate courtesy to the
	// remote servers.
	probeSem *semaphore.Weighted

	fetcher Fetcher
}

func New(app *state.App, client *mediamtx.Client, b *bus.Bus, probeLimit int) *Directory {
	if probeLimit < 1 {
		probeLimit = 1
	}
	d := &Directory{
		app:      app,
		client:   client,
		bus:      b,
		probeSem: semaphore.NewWeighted(int64(probeLimit)),
	}
	metrics.ChannelCount.Set(float64(len(app.Channels())))
	return d
}

// SetFetcher wires the recordings lookup service. Wired after construction
// because the lookup service also needs the directory's state.
func (d *Directory) SetFetcher(f Fetcher) {
	d.fetcher = f
}

func validate(name, host, path string) (string, string, string, error) {
	name = strings.TrimSpace(name)
	host = strings.TrimSpace(host)
	path = strings.TrimSpace(path)
	if name == "" || host == "" || path == "" {
		return "", "", "", &ValidationError{Reason: MissingField, Message: "all fields are required"}
	}
	host = strings.TrimRight(host, "/")
	return name, host, path, nil
}

// Add creates a channel. The first channel ever added becomes active with
// the full Select side effects.
func (d *Directory) Add(ctx context.Context, name, host, path string, useMP4 bool) (state.Channel, error) {
	name, host, path, err := validate(name, host, path)
	if err != nil {
		return state.Channel{}, err
	}
	for _, ch := range d.app.Channels() {
		if ch.Name == name {
			return state.Channel{}, &ValidationError{Reason: DuplicateName, Message: "a channel with this name already exists"}
		}
	}

	ch := state.Channel{
		ID:     state.NewChannelID(),
		Name:   name,
		Host:   host,
		Path:   path,
		UseMP4: useMP4,
	}
	first := len(d.app.Channels()) == 0
	d.app.AddChannel(ch)
	metrics.ChannelCount.Set(float64(len(d.app.Channels())))

	logger := log.WithComponentFromContext(ctx, "channels")
	logger.Info().
		Str("event", "channels.added").
		Str("channel_id", ch.ID).
		Str("name", ch.Name).
		Msg("channel added")
	d.bus.Publish(bus.Toast("Channel Added", fmt.Sprintf("%s has been created", ch.Name), bus.SeveritySuccess))

	if first {
		d.Select(ctx, ch.ID)
	}
	return ch, nil
}

// Update edits a channel in place. The duplicate-name check excludes the
// channel being edited. Editing the active channel refreshes recordings.
func (d *Directory) Update(ctx context.Context, id, name, host, path string, useMP4 bool) (state.Channel, error) {
	name, host, path, err := validate(name, host, path)
	if err != nil {
		return state.Channel{}, err
	}
	for _, ch := range d.app.Channels() {
		if ch.ID != id && ch.Name == name {
			return state.Channel{}, &ValidationError{Reason: DuplicateName, Message: "a channel with this name already exists"}
		}
	}

	d.app.UpdateChannel(id, state.ChannelUpdate{
		Name:   &name,
		Host:   &host,
		Path:   &path,
		UseMP4: &useMP4,
	})
	ch, ok := d.app.Channel(id)
	if !ok {
		return state.Channel{}, fmt.Errorf("channels: unknown id %q", id)
	}

	d.bus.Publish(bus.Toast("Channel Updated", fmt.Sprintf("%s has been updated", ch.Name), bus.SeveritySuccess))
	if d.app.CurrentChannelID() == id && d.fetcher != nil {
		d.fetcher.Fetch(ctx)
	}
	return ch, nil
}

// Delete removes a channel. Caller-facing flows must have confirmed the
// deletion by name before calling; the service applies it unconditionally.
// If the deleted channel was active and another remains, recordings are
// refreshed for the promoted channel.
func (d *Directory) Delete(ctx context.Context, id string) {
	ch, ok := d.app.Channel(id)
	if !ok {
		return
	}
	d.app.DeleteChannel(id)
	metrics.ChannelCount.Set(float64(len(d.app.Channels())))

	logger := log.WithComponentFromContext(ctx, "channels")
	logger.Info().
		Str("event", "channels.deleted").
		Str("channel_id", id).
		Str("name", ch.Name).
		Msg("channel deleted")

	if _, active := d.app.CurrentChannel(); active && d.fetcher != nil {
		d.fetcher.Fetch(ctx)
	}
	d.bus.Publish(bus.Toast("Channel Deleted", fmt.Sprintf("%s has been removed", ch.Name), bus.SeverityInfo))
}

// Select makes id the active channel, probes its latency and refreshes
// recordings, strictly in that order. Selecting the already-active channel
// is a no-op.
func (d *Directory) Select(ctx context.Context, id string) {
	if d.app.CurrentChannelID() == id {
		return
	}
	if _, ok := d.app.Channel(id); !ok {
		return
	}
	d.app.SetCurrentChannel(id)
	d.MeasureLatency(ctx, id)
	if d.fetcher != nil {
		d.fetcher.Fetch(ctx)
	}
}

// MeasureLatency probes one channel and records the elapsed milliseconds,
// or the failure sentinel on transport errors.
func (d *Directory) MeasureLatency(ctx context.Context, id string) int64 {
	ch, ok := d.app.Channel(id)
	if !ok {
		return state.LatencyUnknown
	}
	if err := d.probeSem.Acquire(ctx, 1); err != nil {
		return state.LatencyUnknown
	}
	defer d.probeSem.Release(1)

	elapsed, err := d.client.Probe(ctx, ch.Host, ch.Path)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("probe", "error").Inc()
		logger := log.WithComponentFromContext(ctx, "channels")
		logger.Warn().
			Err(err).
			Str("event", "channels.probe_failed").
			Str("channel_id", id).
			Msg("latency probe failed")
		d.app.SetChannelLatency(id, state.LatencyUnknown)
		return state.LatencyUnknown
	}
	metrics.UpstreamRequestsTotal.WithLabelValues("probe", "ok").Inc()
	metrics.ProbeDuration.Observe(elapsed.Seconds())

	ms := elapsed.Milliseconds()
	d.app.SetChannelLatency(id, ms)
	return ms
}

// MeasureAll probes every channel in collection order. Probes run through
// the shared semaphore, sequentially at the default limit.
func (d *Directory) MeasureAll(ctx context.Context) {
	for _, ch := range d.app.Channels() {
		if ctx.Err() != nil {
			return
		}
		d.MeasureLatency(ctx, ch.ID)
	}
	d.bus.Publish(bus.Event{Kind: bus.KindChannelList})
}

// TestConnection validates a prospective host/path before saving.
func (d *Directory) TestConnection(ctx context.Context, host, path string) (mediamtx.TestResult, error) {
	host = strings.TrimSpace(host)
	path = strings.TrimSpace(path)
	if host == "" || path == "" {
		return mediamtx.TestResult{}, &ValidationError{Reason: MissingField, Message: "please fill in all required fields"}
	}
	res, err := d.client.Test(ctx, strings.TrimRight(host, "/"), path)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("test", "error").Inc()
		return mediamtx.TestResult{}, err
	}
	if res.Empty {
		metrics.UpstreamRequestsTotal.WithLabelValues("test", "empty").Inc()
	} else {
		metrics.UpstreamRequestsTotal.WithLabelValues("test", "ok").Inc()
	}
	return res, nil
}

// Latency classification thresholds, shared with rendering.
const (
	goodBelow   = 100 * time.Millisecond
	mediumBelow = 300 * time.Millisecond
)

// Classify maps a measured latency to a badge class.
func Classify(ms int64) string {
	switch {
	case ms < 0:
		return "unknown"
	case ms < goodBelow.Milliseconds():
		return "good"
	case ms < mediumBelow.Milliseconds():
		return "medium"
	default:
		return "bad"
	}
}

// LatencyText renders a measured latency for display.
func LatencyText(ms int64) string {
	if ms < 0 {
		return "N/A"
	}
	return fmt.Sprintf("%dms", ms)
}
