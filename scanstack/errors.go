// Package scanstack provides a pure Go reader for multi-frame scientific
// image stacks (channel-interleaved multi-directory TIFF containers as
// written by frame-scanning acquisition software).
package scanstack

import "errors"

// Common errors
var (
	ErrNotStack        = errors.New("not a multi-frame image stack")
	ErrMalformedHeader = errors.New("malformed acquisition metadata header")
	ErrInvalidChannel  = errors.New("channel not in saved acquisition set")
	ErrFrameRange      = errors.New("frame index out of range")
	ErrClosed          = errors.New("stack is closed")
)
