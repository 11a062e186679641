// SPDX-License-Identifier: MIT

package api

import (
	"fmt"
	"net/url"
	"time"

	"github.com/ManuGH/mtxpanel/internal/channels"
	"github.com/ManuGH/mtxpanel/internal/mediamtx"
	"github.com/ManuGH/mtxpanel/internal/state"
)

// masked replaces sensitive display text when privacy mode is on. The
// underlying data is never altered, only its rendering.
const maskedText = "••••••"

func maskIf(privacy bool, s string) string {
	if privacy {
		return maskedText
	}
	return s
}

// hostnameOf reduces a host URL to its hostname for display.
func hostnameOf(host string) string {
	u, err := url.Parse(host)
	if err != nil || u.Hostname() == "" {
		return host
	}
	return u.Hostname()
}

type channelView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Host         string `json:"host"`
	Hostname     string `json:"hostname"`
	Path         string `json:"path"`
	UseMP4       bool   `json:"useMp4"`
	Active       bool   `json:"active"`
	Latency      string `json:"latency"`
	LatencyClass string `json:"latencyClass"`
}

type recordingView struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Date     string `json:"date"`
	Duration string `json:"duration"`
	Day      bool   `json:"day"`
}

type statusView struct {
	Connected bool   `json:"connected"`
	Display   string `json:"display"`
}

type calendarView struct {
	Cursor   string `json:"cursor"`
	Selected string `json:"selected"`
}

type recordingsView struct {
	Badge         string          `json:"badge"`
	Items         []recordingView `json:"items"`
	LastRefreshed string          `json:"lastRefreshed,omitempty"`
}

type streamView struct {
	URL      string `json:"url,omitempty"`
	Display  string `json:"display,omitempty"`
	Title    string `json:"title,omitempty"`
	Duration string `json:"duration,omitempty"`
}

type snapshot struct {
	PrivacyMode      bool           `json:"privacyMode"`
	Channels         []channelView  `json:"channels"`
	CurrentChannelID string         `json:"currentChannelId,omitempty"`
	Status           statusView     `json:"status"`
	Calendar         calendarView   `json:"calendar"`
	Recordings       recordingsView `json:"recordings"`
	Stream           streamView     `json:"stream"`
}

// buildSnapshot renders the full panel state for the presentation layer,
// applying privacy masking to host, path and stream URL displays.
func (s *Server) buildSnapshot() snapshot {
	privacy := s.app.PrivacyMode()
	currentID := s.app.CurrentChannelID()

	chs := s.app.Channels()
	views := make([]channelView, 0, len(chs))
	for _, ch := range chs {
		latency := "..."
		class := "unknown"
		if ms, ok := s.app.ChannelLatency(ch.ID); ok {
			latency = channels.LatencyText(ms)
			class = channels.Classify(ms)
		}
		views = append(views, channelView{
			ID:           ch.ID,
			Name:         ch.Name,
			Host:         maskIf(privacy, ch.Host),
			Hostname:     maskIf(privacy, hostnameOf(ch.Host)),
			Path:         maskIf(privacy, ch.Path),
			UseMP4:       ch.UseMP4,
			Active:       ch.ID == currentID,
			Latency:      latency,
			LatencyClass: class,
		})
	}

	status := statusView{Display: "No channel selected"}
	if ch, ok := s.app.CurrentChannel(); ok && ch.Host != "" && ch.Path != "" {
		status.Connected = true
		status.Display = fmt.Sprintf("%s (%s @ %s)",
			ch.Name, maskIf(privacy, ch.Path), maskIf(privacy, hostnameOf(ch.Host)))
	}

	items := s.app.CachedRecordings()
	recViews := make([]recordingView, 0, len(items))
	for _, item := range items {
		recViews = append(recViews, renderRecording(item))
	}
	recs := recordingsView{
		Badge: fmt.Sprintf("%d Clips", len(items)),
		Items: recViews,
	}
	if t := s.app.LastRefreshed(); !t.IsZero() {
		recs.LastRefreshed = t.Format(time.RFC3339)
	}

	stream := streamView{}
	if u := s.app.CurrentStreamURL(); u != "" {
		stream.URL = u
		stream.Display = maskIf(privacy, u)
	}

	cursor := s.app.CalendarCursor()
	selected := s.app.SelectedDate()

	return snapshot{
		PrivacyMode:      privacy,
		Channels:         views,
		CurrentChannelID: currentID,
		Status:           status,
		Calendar: calendarView{
			Cursor:   cursor.Format("2006-01"),
			Selected: selected.Format("2006-01-02"),
		},
		Recordings: recs,
		Stream:     stream,
	}
}

// renderRecording shapes one clip for the playlist: start/end clock times,
// a one-decimal duration label and the day/night flag (06:00-18:00 local
// counts as day).
func renderRecording(item mediamtx.Recording) recordingView {
	start := item.Start.Local()
	hour := start.Hour()
	return recordingView{
		Start:    item.RawStart,
		End:      item.End().Local().Format("15:04:05"),
		Date:     start.Format("2006-01-02"),
		Duration: fmt.Sprintf("%.1fs", item.Duration),
		Day:      hour >= 6 && hour < 18,
	}
}
