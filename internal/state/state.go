// SPDX-License-Identifier: MIT

// Package state holds the shared panel state: the channel collection, the
// active channel, per-channel latencies, the calendar cursor, the render
// cache of recordings and the current stream URL. Mutators persist through
// the store before returning and publish typed change notifications.
package state

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/ManuGH/mtxpanel/internal/bus"
	"github.com/ManuGH/mtxpanel/internal/log"
	"github.com/ManuGH/mtxpanel/internal/mediamtx"
	"github.com/ManuGH/mtxpanel/internal/store"
)

// LatencyUnknown is the sentinel recorded when a probe fails.
const LatencyUnknown int64 = -1

// App is the panel state. It is constructed once and passed to every
// service explicitly.
type App struct {
	mu    sync.RWMutex
	store store.Store
	bus   *bus.Bus

	channels         []Channel
	currentChannelID string
	latencies        map[string]int64 // channel id -> ms, LatencyUnknown on probe failure

	privacyMode bool

	calendarCursor time.Time // month/year shown on the calendar grid
	selectedDate   time.Time // day whose recordings are viewed

	cachedRecordings []mediamtx.Recording
	currentStreamURL string
	lastRefreshed    time.Time
}

// New loads persisted state from st and returns a ready App. Corrupt or
// missing persisted values degrade to empty defaults; loading never fails.
func New(st store.Store, b *bus.Bus) *App {
	now := time.Now()
	a := &App{
		store:          st,
		bus:            b,
		latencies:      make(map[string]int64),
		calendarCursor: now,
		selectedDate:   now,
	}
	a.load()
	a.migrateLegacy()
	a.initCurrentChannel()
	return a
}

func (a *App) load() {
	logger := log.WithComponent("state")

	if raw, ok := a.store.Load(store.KeyChannels); ok {
		if err := json.Unmarshal([]byte(raw), &a.channels); err != nil {
			logger.Warn().
				Err(err).
				Str("event", "state.channels_corrupt").
				Msg("discarding unparsable channel collection")
			a.channels = nil
		}
	}
	if id, ok := a.store.Load(store.KeyCurrentChannel); ok {
		a.currentChannelID = id
	}
	if v, ok := a.store.Load(store.KeyPrivacyMode); ok {
		a.privacyMode = v == "true"
	}
}

// migrateLegacy synthesizes one channel from the legacy single-channel keys.
// It runs only when the channel collection is empty and never overwrites
// existing channels.
func (a *App) migrateLegacy() {
	if len(a.channels) > 0 {
		return
	}
	host, hostOK := a.store.Load(store.KeyLegacyHost)
	path, pathOK := a.store.Load(store.KeyLegacyPath)
	if !hostOK || !pathOK || host == "" || path == "" {
		return
	}
	mp4, _ := a.store.Load(store.KeyLegacyMP4)

	name := path
	if name == "" {
		name = "Default Channel"
	}
	ch := Channel{
		ID:     NewChannelID(),
		Name:   name,
		Host:   host,
		Path:   path,
		UseMP4: mp4 == "true",
	}
	a.channels = append(a.channels, ch)
	a.currentChannelID = ch.ID
	a.persistChannels()

	logger := log.WithComponent("state")
	logger.Info().
		Str("event", "state.legacy_migrated").
		Str("channel_id", ch.ID).
		Str("name", ch.Name).
		Msg("migrated legacy single-channel configuration")
}

// initCurrentChannel promotes the first channel when the persisted active
// id no longer resolves.
func (a *App) initCurrentChannel() {
	if a.findIndex(a.currentChannelID) >= 0 {
		return
	}
	if len(a.channels) > 0 {
		a.currentChannelID = a.channels[0].ID
	} else {
		a.currentChannelID = ""
	}
}

// persistChannels writes the channel collection and active id. Must be
// called with the write lock held (or during construction).
func (a *App) persistChannels() {
	logger := log.WithComponent("state")
	raw, err := json.Marshal(a.channels)
	if err != nil {
		logger.Error().Err(err).Str("event", "state.marshal_failed").Msg("failed to marshal channels")
		return
	}
	if err := a.store.Save(store.KeyChannels, string(raw)); err != nil {
		logger.Error().Err(err).Str("event", "state.save_failed").Str("key", store.KeyChannels).Msg("failed to persist channels")
	}
	if a.currentChannelID != "" {
		if err := a.store.Save(store.KeyCurrentChannel, a.currentChannelID); err != nil {
			logger.Error().Err(err).Str("event", "state.save_failed").Str("key", store.KeyCurrentChannel).Msg("failed to persist active channel")
		}
	}
}

func (a *App) findIndex(id string) int {
	if id == "" {
		return -1
	}
	for i := range a.channels {
		if a.channels[i].ID == id {
			return i
		}
	}
	return -1
}

// Channels returns a copy of the channel collection in insertion order.
func (a *App) Channels() []Channel {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Channel, len(a.channels))
	copy(out, a.channels)
	return out
}

// Channel returns the channel with the given id.
func (a *App) Channel(id string) (Channel, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if i := a.findIndex(id); i >= 0 {
		return a.channels[i], true
	}
	return Channel{}, false
}

// CurrentChannel resolves the active channel, if any.
func (a *App) CurrentChannel() (Channel, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if i := a.findIndex(a.currentChannelID); i >= 0 {
		return a.channels[i], true
	}
	return Channel{}, false
}

// CurrentChannelID returns the active channel id, or "".
func (a *App) CurrentChannelID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.currentChannelID
}

// AddChannel appends ch and persists.
func (a *App) AddChannel(ch Channel) {
	a.mu.Lock()
	a.channels = append(a.channels, ch)
	a.persistChannels()
	a.mu.Unlock()
	a.bus.Publish(bus.Event{Kind: bus.KindChannelList})
}

// UpdateChannel applies upd to the channel with the given id and persists.
// Unknown ids are a no-op.
func (a *App) UpdateChannel(id string, upd ChannelUpdate) {
	a.mu.Lock()
	i := a.findIndex(id)
	if i < 0 {
		a.mu.Unlock()
		return
	}
	ch := &a.channels[i]
	if upd.Name != nil {
		ch.Name = *upd.Name
	}
	if upd.Host != nil {
		ch.Host = *upd.Host
	}
	if upd.Path != nil {
		ch.Path = *upd.Path
	}
	if upd.UseMP4 != nil {
		ch.UseMP4 = *upd.UseMP4
	}
	a.persistChannels()
	a.mu.Unlock()
	a.bus.Publish(bus.Event{Kind: bus.KindChannelList})
}

// DeleteChannel removes the channel with the given id and persists. When
// the deleted channel was active, the first remaining channel is promoted,
// or the active id cleared if none remain. Unknown ids are a no-op.
func (a *App) DeleteChannel(id string) {
	a.mu.Lock()
	i := a.findIndex(id)
	if i < 0 {
		a.mu.Unlock()
		return
	}
	a.channels = append(a.channels[:i], a.channels[i+1:]...)
	delete(a.latencies, id)

	activeChanged := false
	if a.currentChannelID == id {
		if len(a.channels) > 0 {
			a.currentChannelID = a.channels[0].ID
		} else {
			a.currentChannelID = ""
		}
		activeChanged = true
	}
	a.persistChannels()
	a.mu.Unlock()

	a.bus.Publish(bus.Event{Kind: bus.KindChannelList})
	if activeChanged {
		a.bus.Publish(bus.Event{Kind: bus.KindActiveChannel})
	}
}

// SetCurrentChannel makes id the active channel and persists.
func (a *App) SetCurrentChannel(id string) {
	a.mu.Lock()
	a.currentChannelID = id
	a.persistChannels()
	a.mu.Unlock()
	a.bus.Publish(bus.Event{Kind: bus.KindActiveChannel})
}

// SetChannelLatency records the last measured latency in milliseconds for
// a channel. Latencies are session-local and not persisted.
func (a *App) SetChannelLatency(id string, ms int64) {
	a.mu.Lock()
	a.latencies[id] = ms
	a.mu.Unlock()
	a.bus.Publish(bus.Event{Kind: bus.KindChannelList})
}

// ChannelLatency returns the last measured latency for a channel.
func (a *App) ChannelLatency(id string) (int64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ms, ok := a.latencies[id]
	return ms, ok
}

// TogglePrivacyMode flips the display-only masking flag and persists it.
func (a *App) TogglePrivacyMode() bool {
	a.mu.Lock()
	a.privacyMode = !a.privacyMode
	v := "false"
	if a.privacyMode {
		v = "true"
	}
	if err := a.store.Save(store.KeyPrivacyMode, v); err != nil {
		logger := log.WithComponent("state")
		logger.Error().Err(err).
			Str("event", "state.save_failed").
			Str("key", store.KeyPrivacyMode).
			Msg("failed to persist privacy mode")
	}
	on := a.privacyMode
	a.mu.Unlock()

	// Masking affects every rendered surface.
	a.bus.Publish(bus.Event{Kind: bus.KindChannelList})
	a.bus.Publish(bus.Event{Kind: bus.KindRecordings})
	a.bus.Publish(bus.Event{Kind: bus.KindStreamSelect})
	return on
}

// PrivacyMode reports whether display masking is on.
func (a *App) PrivacyMode() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.privacyMode
}

// CalendarCursor returns the month/year shown on the calendar grid.
func (a *App) CalendarCursor() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.calendarCursor
}

// SetCalendarCursor moves the calendar grid month. Ephemeral.
func (a *App) SetCalendarCursor(t time.Time) {
	a.mu.Lock()
	a.calendarCursor = t
	a.mu.Unlock()
}

// SelectedDate returns the day whose recordings are viewed.
func (a *App) SelectedDate() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.selectedDate
}

// SetSelectedDate changes the viewed day. Ephemeral.
func (a *App) SetSelectedDate(t time.Time) {
	a.mu.Lock()
	a.selectedDate = t
	a.mu.Unlock()
}

// SetCachedRecordings replaces the render cache.
func (a *App) SetCachedRecordings(items []mediamtx.Recording) {
	a.mu.Lock()
	a.cachedRecordings = items
	a.mu.Unlock()
	a.bus.Publish(bus.Event{Kind: bus.KindRecordings})
}

// CachedRecordings returns a copy of the render cache.
func (a *App) CachedRecordings() []mediamtx.Recording {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]mediamtx.Recording, len(a.cachedRecordings))
	copy(out, a.cachedRecordings)
	return out
}

// SetCurrentStreamURL records the most recently selected playback URL.
func (a *App) SetCurrentStreamURL(u string) {
	a.mu.Lock()
	a.currentStreamURL = u
	a.mu.Unlock()
	a.bus.Publish(bus.Event{Kind: bus.KindStreamSelect})
}

// CurrentStreamURL returns the most recently selected playback URL, or "".
func (a *App) CurrentStreamURL() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.currentStreamURL
}

// SetLastRefreshed stamps the most recent listing attempt.
func (a *App) SetLastRefreshed(t time.Time) {
	a.mu.Lock()
	a.lastRefreshed = t
	a.mu.Unlock()
	a.bus.Publish(bus.Event{Kind: bus.KindRefreshStamp})
}

// LastRefreshed returns the most recent listing attempt time.
func (a *App) LastRefreshed() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastRefreshed
}
