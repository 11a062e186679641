// SPDX-License-Identifier: MIT

package channels

import "errors"

// ValidationReason classifies a rejected channel mutation.
type ValidationReason string

const (
	MissingField  ValidationReason = "missing_field"
	DuplicateName ValidationReason = "duplicate_name"
)

// ValidationError is a recoverable user-input error. It aborts the
// operation and surfaces as a blocking toast.
type ValidationError struct {
	Reason  ValidationReason
	Message string
}

func (e *ValidationError) Error() string {
	return "channels: " + string(e.Reason) + ": " + e.Message
}

// AsValidation unwraps err into a ValidationError, if it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
