// SPDX-License-Identifier: MIT

// Package api exposes the panel services over HTTP: a JSON API for the
// browser presentation layer, an SSE event feed, the clip download relay
// and the static UI assets.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/mtxpanel/internal/bus"
	"github.com/ManuGH/mtxpanel/internal/calendar"
	"github.com/ManuGH/mtxpanel/internal/channels"
	"github.com/ManuGH/mtxpanel/internal/config"
	"github.com/ManuGH/mtxpanel/internal/log"
	"github.com/ManuGH/mtxpanel/internal/playback"
	"github.com/ManuGH/mtxpanel/internal/recordings"
	"github.com/ManuGH/mtxpanel/internal/state"
)

// Server wires the panel services into an HTTP handler.
type Server struct {
	cfg    config.AppConfig
	app    *state.App
	dir    *channels.Directory
	lookup *recordings.Lookup
	nav    *calendar.Navigator
	player *playback.Player
	bus    *bus.Bus
}

// Deps carries the constructed services.
type Deps struct {
	App    *state.App
	Dir    *channels.Directory
	Lookup *recordings.Lookup
	Nav    *calendar.Navigator
	Player *playback.Player
	Bus    *bus.Bus
}

func New(cfg config.AppConfig, deps Deps) *Server {
	return &Server{
		cfg:    cfg,
		app:    deps.App,
		dir:    deps.Dir,
		lookup: deps.Lookup,
		nav:    deps.Nav,
		player: deps.Player,
		bus:    deps.Bus,
	}
}

// Handler builds the router with the canonical middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(recoverer)
	r.Use(requestID)
	r.Use(cors(s.cfg.AllowedOrigins))
	r.Use(log.Middleware())
	if s.cfg.RateLimitEnabled {
		r.Use(rateLimit(s.cfg.RateLimitRPM))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/events", s.handleEvents)

		r.Route("/channels", func(r chi.Router) {
			r.Post("/", s.handleAddChannel)
			r.Post("/test", s.handleTestConnection)
			r.Post("/probe", s.handleProbeAll)
			r.Put("/{id}", s.handleUpdateChannel)
			r.Delete("/{id}", s.handleDeleteChannel)
			r.Post("/{id}/select", s.handleSelectChannel)
			r.Post("/{id}/probe", s.handleProbeChannel)
		})

		r.Post("/recordings/refresh", s.handleRefresh)

		r.Route("/calendar", func(r chi.Router) {
			r.Post("/today", s.handleToday)
			r.Post("/prev", s.handlePrevMonth)
			r.Post("/next", s.handleNextMonth)
			r.Post("/select", s.handleSelectDay)
		})

		r.Post("/privacy/toggle", s.handleTogglePrivacy)
		r.Post("/playback", s.handlePlay)
		r.Get("/download", s.handleDownload)
	})

	r.Handle("/ui/*", http.StripPrefix("/ui", s.uiHandler()))
	r.Get("/ui", redirectTo("/ui/", http.StatusMovedPermanently))
	r.Get("/", redirectTo("/ui/", http.StatusTemporaryRedirect))

	return r
}

func redirectTo(path string, code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, path, code)
	}
}
