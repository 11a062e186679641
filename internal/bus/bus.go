// SPDX-License-Identifier: MIT

// Package bus fans typed change notifications out to presentation
// subscribers. State mutators publish; the SSE layer subscribes.
package bus

import "sync"

// Kind identifies a presentation-facing signal.
type Kind string

const (
	KindChannelList   Kind = "channel-list-changed"
	KindActiveChannel Kind = "active-channel-changed"
	KindRecordings    Kind = "recordings-changed"
	KindStreamSelect  Kind = "stream-selected"
	KindToast         Kind = "toast"
	KindRefreshStamp  Kind = "refresh-timestamp-changed"

	// Download progress and the direct-URL fallback for failed downloads.
	KindDownloadProgress Kind = "download-progress"
	KindDownloadFallback Kind = "download-fallback"
)

// Severity classifies a toast.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

// Event is one presentation signal.
type Event struct {
	Kind     Kind     `json:"kind"`
	Title    string   `json:"title,omitempty"`
	Message  string   `json:"message,omitempty"`
	Severity Severity `json:"severity,omitempty"`
}

// Toast builds a toast event.
func Toast(title, message string, severity Severity) Event {
	return Event{Kind: KindToast, Title: title, Message: message, Severity: severity}
}

// Bus is a non-blocking publish/subscribe fan-out. Slow subscribers drop
// events rather than stall mutators.
type Bus struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func New() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called to release the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers ev to all current subscribers without blocking.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
