// SPDX-License-Identifier: MIT

package state

import (
	"strconv"
	"sync"
	"time"
)

// Channel is one saved recording source. The JSON shape matches the
// persisted channel collection of earlier panel versions.
type Channel struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Host   string `json:"host"`
	Path   string `json:"path"`
	UseMP4 bool   `json:"useMp4"`
}

// ChannelUpdate carries partial field updates; nil fields are untouched.
type ChannelUpdate struct {
	Name   *string
	Host   *string
	Path   *string
	UseMP4 *bool
}

var (
	idMu   sync.Mutex
	lastID int64
)

// NewChannelID generates a millisecond-timestamp identifier. A monotonic
// guard keeps IDs unique when channels are added within the same
// millisecond.
func NewChannelID() string {
	idMu.Lock()
	defer idMu.Unlock()
	id := time.Now().UnixMilli()
	if id <= lastID {
		id = lastID + 1
	}
	lastID = id
	return strconv.FormatInt(id, 10)
}
