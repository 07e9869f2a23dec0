package scanstack

import (
	"errors"
	"fmt"
	"os"

	"github.com/robert-malhotra/go-scanstack/internal/settings"
	"github.com/robert-malhotra/go-scanstack/internal/tiff"
)

// File represents an open multi-frame image stack.
//
// Frame dimensions and the channel count are fixed for the lifetime of
// the handle; they are derived once at open time from the first
// directory. A File is not safe for concurrent use: the underlying
// directory cursor is shared mutable state, so callers must serialize
// access or open one handle per worker.
type File struct {
	path  string
	file  *os.File
	index *tiff.Index

	width         int
	height        int
	bitsPerSample int
	sampleFormat  int

	numFrames  int
	timestamps []float64
	validated  bool

	settings *settings.Settings

	// chanSlot maps a logical channel number to its physical position
	// among each frame's interleaved directories.
	chanSlot map[int]int

	closed bool
}

// Open opens a stack file for reading.
//
// The first directory's Software tag must carry the acquisition settings
// block; frame dimensions, the channel map, the declared frame count, and
// per-frame timestamp estimates are populated from it. The file
// descriptor is held until Close.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stack: %w", err)
	}

	index, err := tiff.NewIndex(f)
	if err != nil {
		f.Close()
		if errors.Is(err, tiff.ErrNotTIFF) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotStack)
		}
		return nil, fmt.Errorf("indexing %s: %w", path, err)
	}

	first, err := index.IFD(0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("reading first directory of %s: %w", path, err)
	}
	if first.Width <= 0 || first.Height <= 0 {
		f.Close()
		return nil, fmt.Errorf("%s: %w: missing image dimensions", path, ErrMalformedHeader)
	}
	if first.Software == "" {
		f.Close()
		return nil, fmt.Errorf("%s: %w: no acquisition settings block", path, ErrMalformedHeader)
	}

	cfg, err := settings.Parse(first.Software)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w: %v", path, ErrMalformedHeader, err)
	}

	stack := &File{
		path:          path,
		file:          f,
		index:         index,
		width:         first.Width,
		height:        first.Height,
		bitsPerSample: first.BitsPerSample,
		sampleFormat:  first.SampleFormat,
		settings:      cfg,
		numFrames:     cfg.NumFrames(),
		chanSlot:      make(map[int]int, len(cfg.ChannelSave)),
	}
	for slot, ch := range cfg.ChannelSave {
		stack.chanSlot[ch] = slot
	}
	stack.timestamps = estimateTimestamps(stack.numFrames, cfg.FrameRate)

	return stack, nil
}

// estimateTimestamps places frame i (1-based) at (i-1)/rate seconds.
// Validate replaces these with values walked from the file itself.
func estimateTimestamps(n int, rate float64) []float64 {
	ts := make([]float64, n)
	if rate <= 0 {
		return ts
	}
	for i := range ts {
		ts[i] = float64(i) / rate
	}
	return ts
}

// Close releases the file descriptor. Further reads fail with ErrClosed.
// Close is idempotent.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	return f.file.Close()
}

// Path returns the stack file path.
func (f *File) Path() string {
	return f.path
}

// Width returns the frame width in pixels.
func (f *File) Width() int {
	return f.width
}

// Height returns the frame height in pixels.
func (f *File) Height() int {
	return f.height
}

// NumChannels returns the number of channels saved during acquisition.
func (f *File) NumChannels() int {
	return len(f.settings.ChannelSave)
}

// Channels returns the logical channel numbers saved during acquisition,
// in physical interleave order. The caller must not modify the slice.
func (f *File) Channels() []int {
	return f.settings.ChannelSave
}

// NumFrames returns the frame count: the header-derived estimate, or the
// walked ground truth once Validate has run.
func (f *File) NumFrames() int {
	return f.numFrames
}

// Timestamps returns per-frame timestamps in seconds: estimates derived
// from the scan frame rate, or walked values once Validate has run. The
// caller must not modify the slice.
func (f *File) Timestamps() []float64 {
	return f.timestamps
}

// FrameRate returns the scan frame rate in Hz.
func (f *File) FrameRate() float64 {
	return f.settings.FrameRate
}

// ZoomFactor returns the scan zoom factor.
func (f *File) ZoomFactor() float64 {
	return f.settings.ZoomFactor
}

// MotorPosition returns the stage position [x y z], or nil if absent.
func (f *File) MotorPosition() []float64 {
	return f.settings.MotorPosition
}

// FastZ reports whether the acquisition was volumetric.
func (f *File) FastZ() bool {
	return f.settings.FastZEnabled
}

// Validated reports whether Validate has replaced the header-derived
// frame count and timestamps with walked values.
func (f *File) Validated() bool {
	return f.validated
}

// slot translates a logical channel number to its physical directory
// position within a frame.
func (f *File) slot(channel int) (int, error) {
	s, ok := f.chanSlot[channel]
	if !ok {
		return 0, fmt.Errorf("channel %d: %w (saved: %v)", channel, ErrInvalidChannel, f.settings.ChannelSave)
	}
	return s, nil
}

// directory returns the 0-based directory index of (frame, slot), with
// frame 1-based.
func (f *File) directory(frame, slot int) int {
	return f.NumChannels()*(frame-1) + slot
}
