// SPDX-License-Identifier: MIT

// Package playback selects clips for playback and relays clip downloads
// with progress reporting.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ManuGH/mtxpanel/internal/bus"
	"github.com/ManuGH/mtxpanel/internal/log"
	"github.com/ManuGH/mtxpanel/internal/mediamtx"
	"github.com/ManuGH/mtxpanel/internal/metrics"
	"github.com/ManuGH/mtxpanel/internal/state"
)

var (
	// ErrNoChannel is returned when playback is requested without an
	// active channel.
	ErrNoChannel = errors.New("playback: no active channel")
	// ErrNoStream is returned when a download is requested before any
	// clip was selected.
	ErrNoStream = errors.New("playback: no stream selected")
	// ErrUnknownClip is returned when the requested clip is not in the
	// current render cache.
	ErrUnknownClip = errors.New("playback: unknown clip")
)

// Player is the playback and download service.
type Player struct {
	app    *state.App
	client *mediamtx.Client
	bus    *bus.Bus
}

func New(app *state.App, client *mediamtx.Client, b *bus.Bus) *Player {
	return &Player{app: app, client: client, bus: b}
}

// Play selects the cached clip identified by its raw start timestamp,
// builds its retrieval URL and records it as the current stream URL.
func (p *Player) Play(ctx context.Context, rawStart string) (string, error) {
	ch, ok := p.app.CurrentChannel()
	if !ok {
		return "", ErrNoChannel
	}

	var item mediamtx.Recording
	found := false
	for _, r := range p.app.CachedRecordings() {
		if r.RawStart == rawStart {
			item = r
			found = true
			break
		}
	}
	if !found {
		return "", ErrUnknownClip
	}

	streamURL := mediamtx.PlaybackURL(ch.Host, ch.Path, item.RawStart, item.RawDuration, ch.UseMP4)
	p.app.SetCurrentStreamURL(streamURL)

	logger := log.WithComponentFromContext(ctx, "playback")
	logger.Info().
		Str("event", "playback.selected").
		Str("channel_id", ch.ID).
		Str("start", item.RawStart).
		Float64("duration_s", item.Duration).
		Msg("clip selected for playback")
	return streamURL, nil
}

// Progress is one download progress report. Percent is valid only when
// TotalKnown is set; otherwise Loaded carries the cumulative byte count.
type Progress struct {
	TotalKnown bool
	Percent    int
	Loaded     int64
	Total      int64
}

// Text renders the progress the way the download button shows it: a
// percentage when the total is known, cumulative megabytes otherwise.
func (pr Progress) Text() string {
	if pr.TotalKnown {
		return fmt.Sprintf("%d%%", pr.Percent)
	}
	return fmt.Sprintf("%.1f MB", float64(pr.Loaded)/(1024*1024))
}

// Result summarizes a completed download relay.
type Result struct {
	Bytes    int64
	Filename string
}

// Download streams the current stream URL into dst, reporting progress
// through report (which may be nil). Progress is a percentage when the
// upstream provides a Content-Length and cumulative megabytes otherwise —
// recording servers frequently omit the length for range-streamed media.
func (p *Player) Download(ctx context.Context, dst io.Writer, report func(Progress)) (Result, error) {
	streamURL := p.app.CurrentStreamURL()
	if streamURL == "" {
		return Result{}, ErrNoStream
	}

	res, err := p.client.Fetch(ctx, streamURL)
	if err != nil {
		metrics.DownloadsTotal.WithLabelValues("error").Inc()
		return Result{}, err
	}
	defer res.Body.Close()

	total := res.ContentLength
	known := total > 0

	var loaded int64
	lastPercent := -1
	var lastMB int64 = -1
	buf := make([]byte, 64*1024)
	for {
		n, readErr := res.Body.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				metrics.DownloadsTotal.WithLabelValues("error").Inc()
				return Result{Bytes: loaded}, fmt.Errorf("playback: relay write: %w", werr)
			}
			loaded += int64(n)
			metrics.DownloadBytesTotal.Add(float64(n))

			if report != nil {
				if known {
					percent := int(loaded * 100 / total)
					if percent != lastPercent {
						lastPercent = percent
						report(Progress{TotalKnown: true, Percent: percent, Loaded: loaded, Total: total})
					}
				} else if mb := loaded / (1024 * 1024); mb != lastMB {
					lastMB = mb
					report(Progress{Loaded: loaded})
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			metrics.DownloadsTotal.WithLabelValues("error").Inc()
			return Result{Bytes: loaded}, fmt.Errorf("playback: relay read: %w", readErr)
		}
	}

	metrics.DownloadsTotal.WithLabelValues("ok").Inc()
	p.bus.Publish(bus.Toast("Success", "Download complete", bus.SeveritySuccess))
	return Result{Bytes: loaded, Filename: DownloadFilename(time.Now())}, nil
}

// DownloadFilename derives a filesystem-safe name from t: colons and
// periods in the ISO timestamp are replaced with dashes.
func DownloadFilename(t time.Time) string {
	ts := t.UTC().Format("2006-01-02T15:04:05.000Z")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return "recording-" + ts + ".mp4"
}
