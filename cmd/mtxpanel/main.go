// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/mtxpanel/internal/api"
	"github.com/ManuGH/mtxpanel/internal/bus"
	"github.com/ManuGH/mtxpanel/internal/calendar"
	"github.com/ManuGH/mtxpanel/internal/channels"
	"github.com/ManuGH/mtxpanel/internal/config"
	xglog "github.com/ManuGH/mtxpanel/internal/log"
	"github.com/ManuGH/mtxpanel/internal/mediamtx"
	"github.com/ManuGH/mtxpanel/internal/playback"
	"github.com/ManuGH/mtxpanel/internal/recordings"
	"github.com/ManuGH/mtxpanel/internal/state"
	"github.com/ManuGH/mtxpanel/internal/store"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Configure logger with safe defaults until config is loaded.
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "mtxpanel",
		Version: version,
	})
	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Auto-load ${MTXPANEL_DATA}/config.yaml when no explicit path given.
	effectivePath := *configPath
	if effectivePath == "" {
		autoPath := filepath.Join(config.ParseString("MTXPANEL_DATA", "data"), "config.yaml")
		if _, err := os.Stat(autoPath); err == nil {
			effectivePath = autoPath
		}
	}

	cfg, err := config.Load(effectivePath)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectivePath).
			Msg("failed to load configuration")
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", cfg.ListenAddr).
		Str("data_dir", cfg.DataDir).
		Msg("starting mtxpanel")

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.data_dir_failed").
			Str("data_dir", cfg.DataDir).
			Msg("failed to create data directory")
	}

	kv, err := store.OpenBadger(filepath.Join(cfg.DataDir, "panel"))
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.store_failed").
			Msg("failed to open state store")
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close state store")
		}
	}()

	b := bus.New()
	app := state.New(kv, b)
	client := mediamtx.New(cfg.UpstreamTimeout)

	dir := channels.New(app, client, b, cfg.ProbeLimit)
	lookup := recordings.New(app, client, b)
	dir.SetFetcher(lookup)
	nav := calendar.New(app, lookup)
	player := playback.New(app, client, b)

	srv := api.New(cfg, api.Deps{
		App:    app,
		Dir:    dir,
		Lookup: lookup,
		Nav:    nav,
		Player: player,
		Bus:    b,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Warm the latency badges for restored channels.
	go dir.MeasureAll(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("event", "http.listen").Str("addr", cfg.ListenAddr).Msg("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "daemon.failed").
			Msg("daemon failed")
	}

	logger.Info().Msg("server exiting")
}
