// SPDX-License-Identifier: MIT

package mediamtx

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrUnreachable = errors.New("upstream: host unreachable or transport failure")
	ErrBadStatus   = errors.New("upstream: unexpected HTTP status")
	ErrBadPayload  = errors.New("upstream: invalid response format or malformed data")
)

// UpstreamError wraps the sentinel errors with request context.
type UpstreamError struct {
	Sentinel  error
	Operation string
	Status    int
	Err       error // nested lower-level error (e.g. net.Error)
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("mediamtx: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *UpstreamError) Unwrap() error {
	return e.Sentinel
}
