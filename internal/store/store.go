// SPDX-License-Identifier: MIT

// Package store provides the durable key-value string store backing the
// panel state. Values are opaque strings; callers own serialization.
package store

// Store is the persistence contract used by the application state.
// Load reports absence rather than errors: an unavailable or corrupt
// entry must degrade to "not present" so the panel can always start.
type Store interface {
	Load(key string) (string, bool)
	Save(key, value string) error
}

// Well-known keys. The mmtx_* names predate this daemon and are kept so
// existing data directories migrate cleanly.
const (
	KeyChannels       = "mmtx_channels"
	KeyCurrentChannel = "mmtx_current_channel"
	KeyPrivacyMode    = "mmtx_privacy_mode"

	// Legacy single-channel keys, read once at startup and never written.
	KeyLegacyHost = "mmtx_host"
	KeyLegacyPath = "mmtx_path"
	KeyLegacyMP4  = "mmtx_mp4"
)
