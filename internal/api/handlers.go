// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/mtxpanel/internal/bus"
	"github.com/ManuGH/mtxpanel/internal/channels"
	"github.com/ManuGH/mtxpanel/internal/log"
	"github.com/ManuGH/mtxpanel/internal/mediamtx"
	"github.com/ManuGH/mtxpanel/internal/playback"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// writeServiceError maps service errors onto HTTP responses: validation
// errors are 400 with a reason, upstream failures are 502.
func writeServiceError(w http.ResponseWriter, err error) {
	if ve, ok := channels.AsValidation(err); ok {
		writeJSON(w, http.StatusBadRequest, apiError{Error: ve.Message, Reason: string(ve.Reason)})
		return
	}
	var ue *mediamtx.UpstreamError
	if errors.As(err, &ue) {
		writeJSON(w, http.StatusBadGateway, apiError{Error: ue.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.buildSnapshot())
}

type channelRequest struct {
	Name   string `json:"name"`
	Host   string `json:"host"`
	Path   string `json:"path"`
	UseMP4 bool   `json:"useMp4"`
}

func (s *Server) handleAddChannel(w http.ResponseWriter, r *http.Request) {
	var req channelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid JSON body"})
		return
	}
	ch, err := s.dir.Add(r.Context(), req.Name, req.Host, req.Path, req.UseMP4)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ch)
}

func (s *Server) handleUpdateChannel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.app.Channel(id); !ok {
		writeJSON(w, http.StatusNotFound, apiError{Error: "unknown channel"})
		return
	}
	var req channelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid JSON body"})
		return
	}
	ch, err := s.dir.Update(r.Context(), id, req.Name, req.Host, req.Path, req.UseMP4)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

// handleDeleteChannel applies a confirmed deletion. The confirm query
// parameter must repeat the channel name: deletion is destructive and the
// confirmation proves the caller saw which channel it names.
func (s *Server) handleDeleteChannel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ch, ok := s.app.Channel(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, apiError{Error: "unknown channel"})
		return
	}
	if r.URL.Query().Get("confirm") != ch.Name {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "confirmation must name the channel", Reason: "confirm_mismatch"})
		return
	}
	s.dir.Delete(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSelectChannel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.app.Channel(id); !ok {
		writeJSON(w, http.StatusNotFound, apiError{Error: "unknown channel"})
		return
	}
	s.dir.Select(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProbeChannel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.app.Channel(id); !ok {
		writeJSON(w, http.StatusNotFound, apiError{Error: "unknown channel"})
		return
	}
	ms := s.dir.MeasureLatency(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]any{
		"latencyMs": ms,
		"text":      channels.LatencyText(ms),
		"class":     channels.Classify(ms),
	})
}

// handleProbeAll kicks off a full probe sweep. The sweep runs detached
// because it probes channels one at a time; results arrive as events.
func (s *Server) handleProbeAll(w http.ResponseWriter, r *http.Request) {
	ctx := log.ContextWithRequestID(context.Background(), log.RequestIDFromContext(r.Context()))
	go s.dir.MeasureAll(ctx)
	w.WriteHeader(http.StatusAccepted)
}

type testRequest struct {
	Host string `json:"host"`
	Path string `json:"path"`
}

func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	var req testRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid JSON body"})
		return
	}
	res, err := s.dir.TestConnection(r.Context(), req.Host, req.Path)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"recordings": res.Recordings,
		"empty":      res.Empty,
		"elapsedMs":  res.Elapsed.Milliseconds(),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.lookup.Fetch(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	s.nav.Today(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePrevMonth(w http.ResponseWriter, _ *http.Request) {
	s.nav.PrevMonth()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNextMonth(w http.ResponseWriter, _ *http.Request) {
	s.nav.NextMonth()
	w.WriteHeader(http.StatusNoContent)
}

type selectDayRequest struct {
	Date string `json:"date"` // 2006-01-02
}

func (s *Server) handleSelectDay(w http.ResponseWriter, r *http.Request) {
	var req selectDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid JSON body"})
		return
	}
	day, err := time.ParseInLocation("2006-01-02", req.Date, time.Local)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid date, want YYYY-MM-DD"})
		return
	}
	s.nav.Select(r.Context(), day)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTogglePrivacy(w http.ResponseWriter, _ *http.Request) {
	on := s.app.TogglePrivacyMode()
	writeJSON(w, http.StatusOK, map[string]bool{"privacyMode": on})
}

type playRequest struct {
	Start string `json:"start"`
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid JSON body"})
		return
	}
	streamURL, err := s.player.Play(r.Context(), req.Start)
	if err != nil {
		switch {
		case errors.Is(err, playback.ErrNoChannel):
			writeJSON(w, http.StatusConflict, apiError{Error: "no active channel"})
		case errors.Is(err, playback.ErrUnknownClip):
			writeJSON(w, http.StatusNotFound, apiError{Error: "unknown clip"})
		default:
			writeServiceError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, streamView{
		URL:     streamURL,
		Display: maskIf(s.app.PrivacyMode(), streamURL),
	})
}

// handleDownload relays the current stream URL to the client. Progress is
// published as events so the panel can show a percentage or cumulative
// megabytes while the browser saves the file. On upstream failure the
// client is told to fall back to opening the stream URL directly.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	streamURL := s.app.CurrentStreamURL()
	if streamURL == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	filename := playback.DownloadFilename(time.Now())
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	_, err := s.player.Download(r.Context(), w, func(p playback.Progress) {
		s.bus.Publish(bus.Event{Kind: bus.KindDownloadProgress, Message: p.Text()})
	})
	if err != nil && !errors.Is(err, playback.ErrNoStream) {
		// Headers are likely already sent; the fallback reaches the
		// panel through the event feed.
		log.WithComponentFromContext(r.Context(), "api").Error().
			Err(err).
			Str("event", "download.failed").
			Msg("clip download relay failed")
		s.bus.Publish(bus.Toast("Error", "Failed to download directly. Opening stream instead.", bus.SeverityError))
		s.bus.Publish(bus.Event{Kind: bus.KindDownloadFallback, Message: streamURL})
	}
}
