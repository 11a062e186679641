// SPDX-License-Identifier: MIT

package mediamtx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Seconds handles JSON duration fields that can be "120.5" or 120.5.
type Seconds float64

func (s *Seconds) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return fmt.Errorf("duration: missing value")
	}

	// If it's a JSON string: "120.5"
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("duration: invalid string %q", v)
		}
		*s = Seconds(f)
		return nil
	}

	// Otherwise treat as number: 120.5
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("duration: invalid json value: %s", string(b))
	}
	*s = Seconds(f)
	return nil
}

// Recording is one server-reported clip. It is decoded strictly so that
// malformed upstream data is rejected at the boundary instead of leaking
// NaN timestamps into rendering.
type Recording struct {
	// Start is the parsed clip start.
	Start time.Time
	// RawStart preserves the server's exact timestamp text for building
	// retrieval URLs.
	RawStart string
	// Duration is the clip length in seconds.
	Duration float64
	// RawDuration preserves the server's duration text for retrieval URLs.
	RawDuration string
}

type wireRecording struct {
	Start    string          `json:"start"`
	Duration json.RawMessage `json:"duration"`
}

func (r *Recording) UnmarshalJSON(b []byte) error {
	var w wireRecording
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if w.Start == "" {
		return fmt.Errorf("recording: missing start")
	}
	start, err := time.Parse(time.RFC3339, w.Start)
	if err != nil {
		return fmt.Errorf("recording: invalid start %q: %w", w.Start, err)
	}
	var dur Seconds
	if err := dur.UnmarshalJSON(w.Duration); err != nil {
		return fmt.Errorf("recording: %w", err)
	}

	r.Start = start
	r.RawStart = w.Start
	r.Duration = float64(dur)
	r.RawDuration = rawDurationText(w.Duration)
	return nil
}

// rawDurationText strips JSON string quoting but keeps the numeric text as
// the server sent it ("120.5" and 120.5 both yield "120.5").
func rawDurationText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var v string
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	return string(raw)
}

// End returns the clip end instant.
func (r Recording) End() time.Time {
	return r.Start.Add(time.Duration(r.Duration * float64(time.Second)))
}
