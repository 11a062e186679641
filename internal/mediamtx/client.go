// SPDX-License-Identifier: MIT

// Package mediamtx is a client for the playback API of a MediaMTX-style
// recording server: GET /list for time-ranged listings and GET /get for
// clip retrieval.
package mediamtx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuGH/mtxpanel/internal/log"
)

type Client struct {
	http *http.Client
	// stream carries no timeout: clip downloads can legitimately run for
	// minutes.
	stream *http.Client
}

func New(timeout time.Duration) *Client {
	return &Client{
		http:   &http.Client{Timeout: timeout},
		stream: &http.Client{},
	}
}

// ListURL builds the listing query for one channel and time range.
func ListURL(host, path string, start, end time.Time) string {
	return strings.TrimRight(host, "/") + "/list" +
		"?path=" + url.QueryEscape(path) +
		"&start=" + url.QueryEscape(start.UTC().Format(time.RFC3339)) +
		"&end=" + url.QueryEscape(end.UTC().Format(time.RFC3339))
}

// PlaybackURL builds the retrieval URL for one clip. rawStart and
// rawDuration are the server's own timestamp and duration text so the
// request round-trips exactly what the listing returned.
func PlaybackURL(host, path, rawStart, rawDuration string, mp4 bool) string {
	u := strings.TrimRight(host, "/") + "/get" +
		"?path=" + url.QueryEscape(path) +
		"&start=" + url.QueryEscape(rawStart) +
		"&duration=" + url.QueryEscape(rawDuration)
	if mp4 {
		u += "&format=mp4"
	}
	return u
}

// List queries recordings for the given range. A 404 response means "no
// recordings in range" and yields an empty list, not an error.
func (c *Client) List(ctx context.Context, host, path string, start, end time.Time) ([]Recording, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ListURL(host, path, start, end), nil)
	if err != nil {
		return nil, &UpstreamError{Sentinel: ErrUnreachable, Operation: "list", Err: err}
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, &UpstreamError{Sentinel: ErrUnreachable, Operation: "list", Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return []Recording{}, nil
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &UpstreamError{Sentinel: ErrBadStatus, Operation: "list", Status: res.StatusCode}
	}

	var items []Recording
	if err := json.NewDecoder(res.Body).Decode(&items); err != nil {
		logger := log.WithComponentFromContext(ctx, "mediamtx")
		logger.Error().
			Err(err).
			Str("event", "mediamtx.decode").
			Str("operation", "list").
			Msg("failed to decode listing")
		return nil, &UpstreamError{Sentinel: ErrBadPayload, Operation: "list", Status: res.StatusCode, Err: err}
	}
	if items == nil {
		items = []Recording{}
	}
	return items, nil
}

// Probe issues a lightweight listing query scoped to "now" and measures the
// round trip. Only transport failure is an error: a non-2xx response still
// yields the elapsed time, matching how operators read the latency badge.
func (c *Client) Probe(ctx context.Context, host, path string) (time.Duration, error) {
	begin := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ListURL(host, path, begin, begin), nil)
	if err != nil {
		return 0, &UpstreamError{Sentinel: ErrUnreachable, Operation: "probe", Err: err}
	}
	res, err := c.http.Do(req)
	if err != nil {
		return 0, &UpstreamError{Sentinel: ErrUnreachable, Operation: "probe", Err: err}
	}
	io.Copy(io.Discard, res.Body) //nolint:errcheck
	res.Body.Close()              //nolint:errcheck
	return time.Since(begin), nil
}

// TestResult reports a connection test against a prospective channel.
type TestResult struct {
	Recordings int
	Empty      bool // reachable but zero recordings today (HTTP 404)
	Elapsed    time.Duration
}

// Test validates host/path before a channel is saved. It queries today's
// full-day range and distinguishes three outcomes: 404 is "reachable, zero
// recordings", a 2xx JSON array is "reachable, N recordings", anything else
// is a failure.
func (c *Client) Test(ctx context.Context, host, path string) (TestResult, error) {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, int(999*time.Millisecond), now.Location())

	begin := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ListURL(host, path, start, end), nil)
	if err != nil {
		return TestResult{}, &UpstreamError{Sentinel: ErrUnreachable, Operation: "test", Err: err}
	}
	res, err := c.http.Do(req)
	if err != nil {
		return TestResult{}, &UpstreamError{Sentinel: ErrUnreachable, Operation: "test", Err: err}
	}
	defer res.Body.Close()
	elapsed := time.Since(begin)

	if res.StatusCode == http.StatusNotFound {
		return TestResult{Empty: true, Elapsed: elapsed}, nil
	}
	if res.StatusCode >= 200 && res.StatusCode <= 299 {
		var items []json.RawMessage
		if err := json.NewDecoder(res.Body).Decode(&items); err != nil {
			return TestResult{}, &UpstreamError{Sentinel: ErrBadPayload, Operation: "test", Status: res.StatusCode, Err: err}
		}
		return TestResult{Recordings: len(items), Elapsed: elapsed}, nil
	}
	return TestResult{}, &UpstreamError{Sentinel: ErrBadStatus, Operation: "test", Status: res.StatusCode}
}

// Fetch issues a streamed GET of a retrieval URL. The caller owns the
// response body.
func (c *Client) Fetch(ctx context.Context, streamURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, &UpstreamError{Sentinel: ErrUnreachable, Operation: "fetch", Err: err}
	}
	res, err := c.stream.Do(req)
	if err != nil {
		return nil, &UpstreamError{Sentinel: ErrUnreachable, Operation: "fetch", Err: err}
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		res.Body.Close() //nolint:errcheck
		return nil, &UpstreamError{Sentinel: ErrBadStatus, Operation: "fetch", Status: res.StatusCode}
	}
	return res, nil
}
