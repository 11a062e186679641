// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/mtxpanel/internal/bus"
	"github.com/ManuGH/mtxpanel/internal/calendar"
	"github.com/ManuGH/mtxpanel/internal/channels"
	"github.com/ManuGH/mtxpanel/internal/config"
	"github.com/ManuGH/mtxpanel/internal/mediamtx"
	"github.com/ManuGH/mtxpanel/internal/playback"
	"github.com/ManuGH/mtxpanel/internal/recordings"
	"github.com/ManuGH/mtxpanel/internal/state"
	"github.com/ManuGH/mtxpanel/internal/store"
)

// newTestServer wires the full service stack against a stub recording
// server and returns the API handler plus the stub's URL.
func newTestServer(t *testing.T, upstream http.HandlerFunc) (http.Handler, *state.App, string) {
	t.Helper()
	if upstream == nil {
		upstream = func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[]`))
		}
	}
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	cfg := config.Defaults()
	cfg.RateLimitEnabled = false

	b := bus.New()
	app := state.New(store.NewMemoryStore(), b)
	client := mediamtx.New(5 * time.Second)
	dir := channels.New(app, client, b, 1)
	lookup := recordings.New(app, client, b)
	dir.SetFetcher(lookup)
	nav := calendar.New(app, lookup)
	player := playback.New(app, client, b)

	s := New(cfg, Deps{App: app, Dir: dir, Lookup: lookup, Nav: nav, Player: player, Bus: b})
	return s.Handler(), app, srv.URL
}

func doJSON(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decodeSnapshot(t *testing.T, h http.Handler) snapshot {
	t.Helper()
	w := doJSON(t, h, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snap snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	return snap
}

func TestHealthz(t *testing.T) {
	h, _, _ := newTestServer(t, nil)
	w := doJSON(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestStateEmpty(t *testing.T) {
	h, _, _ := newTestServer(t, nil)
	snap := decodeSnapshot(t, h)

	assert.Empty(t, snap.Channels)
	assert.False(t, snap.Status.Connected)
	assert.Equal(t, "No channel selected", snap.Status.Display)
	assert.Equal(t, "0 Clips", snap.Recordings.Badge)
	assert.Equal(t, time.Now().Format("2006-01"), snap.Calendar.Cursor)
}

func TestChannelLifecycle(t *testing.T) {
	h, app, upstream := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"start":"2024-05-01T10:00:00Z","duration":120.5}]`))
	})

	// Create: becomes active and fetches recordings.
	w := doJSON(t, h, http.MethodPost, "/api/channels/",
		`{"name":"Front","host":"`+upstream+`","path":"cam1","useMp4":true}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created state.Channel
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	snap := decodeSnapshot(t, h)
	require.Len(t, snap.Channels, 1)
	assert.True(t, snap.Channels[0].Active)
	assert.True(t, snap.Status.Connected)
	assert.Contains(t, snap.Status.Display, "Front")
	assert.Equal(t, "1 Clips", snap.Recordings.Badge)
	require.Len(t, snap.Recordings.Items, 1)
	assert.Equal(t, "120.5s", snap.Recordings.Items[0].Duration)
	assert.NotEmpty(t, snap.Recordings.LastRefreshed)

	// Duplicate name is rejected.
	w = doJSON(t, h, http.MethodPost, "/api/channels/",
		`{"name":"Front","host":"`+upstream+`","path":"cam2"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "duplicate_name")

	// Update.
	w = doJSON(t, h, http.MethodPut, "/api/channels/"+created.ID,
		`{"name":"Gate","host":"`+upstream+`","path":"cam1","useMp4":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	ch, ok := app.Channel(created.ID)
	require.True(t, ok)
	assert.Equal(t, "Gate", ch.Name)

	// Delete without matching confirmation is refused.
	w = doJSON(t, h, http.MethodDelete, "/api/channels/"+created.ID+"?confirm=Front", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "confirm_mismatch")
	assert.Len(t, app.Channels(), 1)

	// Delete with the current name succeeds.
	w = doJSON(t, h, http.MethodDelete, "/api/channels/"+created.ID+"?confirm="+url.QueryEscape("Gate"), "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, app.Channels())
	assert.Equal(t, "", app.CurrentChannelID())
}

func TestAddChannelValidation(t *testing.T) {
	h, _, _ := newTestServer(t, nil)

	w := doJSON(t, h, http.MethodPost, "/api/channels/", `{"name":"","host":"","path":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing_field")

	w = doJSON(t, h, http.MethodPost, "/api/channels/", `{broken`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownChannelRoutes(t *testing.T) {
	h, _, _ := newTestServer(t, nil)

	assert.Equal(t, http.StatusNotFound, doJSON(t, h, http.MethodPut, "/api/channels/nope", `{"name":"X","host":"http://a","path":"p"}`).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, h, http.MethodDelete, "/api/channels/nope?confirm=X", "").Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, h, http.MethodPost, "/api/channels/nope/select", "").Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, h, http.MethodPost, "/api/channels/nope/probe", "").Code)
}

func TestTestConnection(t *testing.T) {
	h, _, upstream := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	w := doJSON(t, h, http.MethodPost, "/api/channels/test", `{"host":"`+upstream+`","path":"cam1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var res struct {
		Recordings int  `json:"recordings"`
		Empty      bool `json:"empty"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Empty)
	assert.Zero(t, res.Recordings)
}

func TestTestConnectionUpstreamDown(t *testing.T) {
	h, _, _ := newTestServer(t, nil)
	w := doJSON(t, h, http.MethodPost, "/api/channels/test", `{"host":"http://127.0.0.1:1","path":"cam1"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestPrivacyMasking(t *testing.T) {
	h, app, upstream := newTestServer(t, nil)

	w := doJSON(t, h, http.MethodPost, "/api/channels/",
		`{"name":"Front","host":"`+upstream+`","path":"cam1"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, h, http.MethodPost, "/api/privacy/toggle", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, app.PrivacyMode())

	snap := decodeSnapshot(t, h)
	require.Len(t, snap.Channels, 1)
	assert.Equal(t, maskedText, snap.Channels[0].Host)
	assert.Equal(t, maskedText, snap.Channels[0].Path)
	assert.Equal(t, "Front", snap.Channels[0].Name, "names are not sensitive")
	assert.NotContains(t, snap.Status.Display, "cam1")

	// Masking is display-only: the underlying channel keeps its host.
	ch := app.Channels()[0]
	assert.Equal(t, upstream, ch.Host)

	// Toggling back restores the display.
	doJSON(t, h, http.MethodPost, "/api/privacy/toggle", "")
	snap = decodeSnapshot(t, h)
	assert.Equal(t, upstream, snap.Channels[0].Host)
}

func TestCalendarRoutes(t *testing.T) {
	h, app, _ := newTestServer(t, nil)
	app.SetCalendarCursor(time.Date(2024, 5, 15, 0, 0, 0, 0, time.Local))

	require.Equal(t, http.StatusNoContent, doJSON(t, h, http.MethodPost, "/api/calendar/next", "").Code)
	assert.Equal(t, "2024-06", decodeSnapshot(t, h).Calendar.Cursor)

	require.Equal(t, http.StatusNoContent, doJSON(t, h, http.MethodPost, "/api/calendar/prev", "").Code)
	assert.Equal(t, "2024-05", decodeSnapshot(t, h).Calendar.Cursor)

	require.Equal(t, http.StatusNoContent, doJSON(t, h, http.MethodPost, "/api/calendar/select", `{"date":"2024-05-02"}`).Code)
	assert.Equal(t, "2024-05-02", decodeSnapshot(t, h).Calendar.Selected)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, h, http.MethodPost, "/api/calendar/select", `{"date":"May 2nd"}`).Code)
}

func TestPlaybackRoutes(t *testing.T) {
	h, app, upstream := newTestServer(t, nil)

	// No active channel yet.
	w := doJSON(t, h, http.MethodPost, "/api/playback", `{"start":"2024-05-01T10:00:00Z"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	require.Equal(t, http.StatusCreated, doJSON(t, h, http.MethodPost, "/api/channels/",
		`{"name":"Front","host":"`+upstream+`","path":"cam1"}`).Code)
	app.SetCachedRecordings([]mediamtx.Recording{{
		Start:       time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		RawStart:    "2024-05-01T10:00:00Z",
		Duration:    120.5,
		RawDuration: "120.5",
	}})

	// Unknown clip.
	w = doJSON(t, h, http.MethodPost, "/api/playback", `{"start":"2000-01-01T00:00:00Z"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Known clip selects the stream.
	w = doJSON(t, h, http.MethodPost, "/api/playback", `{"start":"2024-05-01T10:00:00Z"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var sv streamView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sv))
	assert.Contains(t, sv.URL, "/get?")
	assert.Equal(t, sv.URL, app.CurrentStreamURL())
}

func TestDownloadWithoutStream(t *testing.T) {
	h, _, _ := newTestServer(t, nil)
	w := doJSON(t, h, http.MethodGet, "/api/download", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestDownloadRelaysClip(t *testing.T) {
	h, app, _ := newTestServer(t, nil)

	clip := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("clip-bytes"))
	}))
	defer clip.Close()
	app.SetCurrentStreamURL(clip.URL + "/get?path=cam1")

	w := doJSON(t, h, http.MethodGet, "/api/download", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "clip-bytes", w.Body.String())
	assert.Equal(t, "video/mp4", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "recording-")
}

func TestRequestIDHeader(t *testing.T) {
	h, _, _ := newTestServer(t, nil)
	w := doJSON(t, h, http.MethodGet, "/healthz", "")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
