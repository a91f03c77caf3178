package camcorder

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions.
var (
	// ErrHardwareUnavailable is returned when no camera device exists or the
	// platform provider cannot be obtained.
	ErrHardwareUnavailable = errors.New("camcorder: camera hardware unavailable")

	// ErrNotInitialized is returned for operations before the capture
	// pipeline is ready.
	ErrNotInitialized = errors.New("camcorder: camera not initialized")

	// ErrAlreadyRecording is returned when a start request arrives while an
	// attempt is in flight.
	ErrAlreadyRecording = errors.New("camcorder: recording already in progress")

	// ErrNotRecording is returned when a stop request arrives with no
	// attempt in flight.
	ErrNotRecording = errors.New("camcorder: not recording")

	// ErrPermissionDenied is returned when the audio-record permission is
	// missing at recording start.
	ErrPermissionDenied = errors.New("camcorder: audio permission denied")

	// ErrStoppedBeforeFirstFrame resolves a start callback whose attempt
	// died before the first encoded frame was confirmed.
	ErrStoppedBeforeFirstFrame = errors.New("camcorder: recording stopped before first keyframe")

	// ErrFinalizeFailed is returned when the recorder finalized but the
	// output file is missing or empty.
	ErrFinalizeFailed = errors.New("camcorder: recording finalized without usable output")
)

// OpError wraps an underlying platform failure with the operation that
// triggered it.
type OpError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	return fmt.Sprintf("camcorder: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *OpError) Unwrap() error {
	return e.Err
}

// opErr wraps err with operation context. Returns nil for a nil err.
func opErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Err: err}
}
