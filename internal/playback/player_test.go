// SPDX-License-Identifier: MIT

package playback

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/mtxpanel/internal/bus"
	"github.com/ManuGH/mtxpanel/internal/mediamtx"
	"github.com/ManuGH/mtxpanel/internal/state"
	"github.com/ManuGH/mtxpanel/internal/store"
)

func newTestPlayer(t *testing.T) (*Player, *state.App) {
	t.Helper()
	b := bus.New()
	app := state.New(store.NewMemoryStore(), b)
	return New(app, mediamtx.New(5*time.Second), b), app
}

func seedClip(app *state.App, host string, useMP4 bool) {
	app.AddChannel(state.Channel{ID: "1", Name: "Front", Host: host, Path: "cam1", UseMP4: useMP4})
	app.SetCurrentChannel("1")
	app.SetCachedRecordings([]mediamtx.Recording{{
		Start:       time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		RawStart:    "2024-05-01T10:00:00Z",
		Duration:    120.5,
		RawDuration: "120.5",
	}})
}

func TestPlay(t *testing.T) {
	t.Run("selects cached clip", func(t *testing.T) {
		p, app := newTestPlayer(t)
		seedClip(app, "http://box:9996", true)

		u, err := p.Play(context.Background(), "2024-05-01T10:00:00Z")
		require.NoError(t, err)
		assert.Contains(t, u, "start=2024-05-01T10%3A00%3A00Z")
		assert.Contains(t, u, "duration=120.5")
		assert.Contains(t, u, "format=mp4")
		assert.Equal(t, u, app.CurrentStreamURL())
	})

	t.Run("no mp4 param without flag", func(t *testing.T) {
		p, app := newTestPlayer(t)
		seedClip(app, "http://box:9996", false)

		u, err := p.Play(context.Background(), "2024-05-01T10:00:00Z")
		require.NoError(t, err)
		assert.NotContains(t, u, "format=")
	})

	t.Run("no active channel", func(t *testing.T) {
		p, _ := newTestPlayer(t)
		_, err := p.Play(context.Background(), "2024-05-01T10:00:00Z")
		assert.ErrorIs(t, err, ErrNoChannel)
	})

	t.Run("unknown clip", func(t *testing.T) {
		p, app := newTestPlayer(t)
		seedClip(app, "http://box:9996", false)
		_, err := p.Play(context.Background(), "2024-01-01T00:00:00Z")
		assert.ErrorIs(t, err, ErrUnknownClip)
	})
}

func TestProgressText(t *testing.T) {
	assert.Equal(t, "42%", Progress{TotalKnown: true, Percent: 42}.Text())
	assert.Equal(t, "2.5 MB", Progress{Loaded: int64(2.5 * 1024 * 1024)}.Text())
}

func TestDownloadWithContentLength(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 256*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// httptest sets Content-Length for buffered bodies.
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	p, app := newTestPlayer(t)
	app.SetCurrentStreamURL(srv.URL + "/get?path=cam1")

	var dst bytes.Buffer
	var reports []Progress
	res, err := p.Download(context.Background(), &dst, func(pr Progress) {
		reports = append(reports, pr)
	})
	require.NoError(t, err)
	assert.EqualValues(t, len(payload), res.Bytes)
	assert.Equal(t, payload, dst.Bytes())

	require.NotEmpty(t, reports)
	for _, pr := range reports {
		assert.True(t, pr.TotalKnown, "length known, progress is a percentage")
	}
	assert.Equal(t, 100, reports[len(reports)-1].Percent)
	assert.True(t, strings.HasPrefix(res.Filename, "recording-"))
}

func TestDownloadWithoutContentLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Flushing before the body forces chunked encoding, hiding the
		// length the way range-streaming recorders do.
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		_, _ = w.Write(bytes.Repeat([]byte("y"), 64*1024))
	}))
	defer srv.Close()

	p, app := newTestPlayer(t)
	app.SetCurrentStreamURL(srv.URL + "/get?path=cam1")

	var dst bytes.Buffer
	var reports []Progress
	_, err := p.Download(context.Background(), &dst, func(pr Progress) {
		reports = append(reports, pr)
	})
	require.NoError(t, err)

	require.NotEmpty(t, reports)
	for _, pr := range reports {
		assert.False(t, pr.TotalKnown, "length unknown, progress is cumulative bytes")
	}
}

func TestDownloadNoStream(t *testing.T) {
	p, _ := newTestPlayer(t)
	_, err := p.Download(context.Background(), &bytes.Buffer{}, nil)
	assert.ErrorIs(t, err, ErrNoStream)
}

func TestDownloadUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p, app := newTestPlayer(t)
	app.SetCurrentStreamURL(srv.URL + "/get?path=cam1")

	_, err := p.Download(context.Background(), &bytes.Buffer{}, nil)
	assert.ErrorIs(t, err, mediamtx.ErrBadStatus)
}

func TestDownloadFilename(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 30, 45, int(123*time.Millisecond), time.UTC)
	got := DownloadFilename(at)
	assert.Equal(t, "recording-2024-05-01T10-30-45-123Z.mp4", got)
	assert.NotContains(t, got[:len(got)-4], ":", "colons are not filesystem-safe")
}
