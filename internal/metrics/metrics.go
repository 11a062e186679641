// SPDX-License-Identifier: MIT

// Package metrics provides Prometheus metrics for the panel daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamRequestsTotal counts requests to recording servers by
	// operation (list, probe, test, fetch) and outcome (ok, empty, error).
	UpstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mtxpanel_upstream_requests_total",
		Help: "Total requests to upstream recording servers, by operation and outcome.",
	}, []string{"operation", "outcome"})

	// ProbeDuration observes latency probe round trips.
	ProbeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mtxpanel_probe_duration_seconds",
		Help:    "Latency probe round-trip time.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.3, 0.5, 1, 3, 10},
	})

	// DownloadBytesTotal counts bytes relayed through the download endpoint.
	DownloadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mtxpanel_download_bytes_total",
		Help: "Total bytes streamed through clip downloads.",
	})

	// DownloadsTotal counts download attempts by outcome (ok, error, fallback).
	DownloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mtxpanel_downloads_total",
		Help: "Total clip download attempts, by outcome.",
	}, []string{"outcome"})

	// ChannelCount tracks the size of the channel collection.
	ChannelCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mtxpanel_channels",
		Help: "Current number of configured channels.",
	})
)
