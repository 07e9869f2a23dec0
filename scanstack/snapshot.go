package scanstack

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Snapshot is a serializable metadata image of a stack handle: everything
// needed to describe the stack without a live file descriptor. A snapshot
// taken after Validate carries the walked frame count and timestamps, so
// they survive a save/reopen cycle.
type Snapshot struct {
	Path          string    `cbor:"path"`
	Width         int       `cbor:"width"`
	Height        int       `cbor:"height"`
	Channels      []int     `cbor:"channels"`
	NumFrames     int       `cbor:"num_frames"`
	Timestamps    []float64 `cbor:"timestamps"`
	FrameRate     float64   `cbor:"frame_rate"`
	ZoomFactor    float64   `cbor:"zoom_factor,omitempty"`
	MotorPosition []float64 `cbor:"motor_position,omitempty"`
	FastZ         bool      `cbor:"fast_z,omitempty"`
	Validated     bool      `cbor:"validated,omitempty"`
}

// Snapshot captures the handle's current metadata. The handle may be
// closed afterwards; the snapshot stays usable.
func (f *File) Snapshot() Snapshot {
	channels := make([]int, len(f.settings.ChannelSave))
	copy(channels, f.settings.ChannelSave)
	timestamps := make([]float64, len(f.timestamps))
	copy(timestamps, f.timestamps)

	return Snapshot{
		Path:          f.path,
		Width:         f.width,
		Height:        f.height,
		Channels:      channels,
		NumFrames:     f.numFrames,
		Timestamps:    timestamps,
		FrameRate:     f.settings.FrameRate,
		ZoomFactor:    f.settings.ZoomFactor,
		MotorPosition: f.settings.MotorPosition,
		FastZ:         f.settings.FastZEnabled,
		Validated:     f.validated,
	}
}

// Open reconstructs a live handle from the snapshot by reopening the
// stack at its recorded path. The reopened file's dimensions and channel
// list must match the snapshot; the snapshot's frame count and
// timestamps (which may come from a prior Validate) replace the fresh
// header estimates.
func (s Snapshot) Open() (*File, error) {
	f, err := Open(s.Path)
	if err != nil {
		return nil, err
	}
	if f.width != s.Width || f.height != s.Height {
		f.Close()
		return nil, fmt.Errorf("%w: snapshot is %dx%d, file is %dx%d",
			ErrMalformedHeader, s.Width, s.Height, f.width, f.height)
	}
	if !equalInts(f.settings.ChannelSave, s.Channels) {
		f.Close()
		return nil, fmt.Errorf("%w: snapshot channels %v, file channels %v",
			ErrMalformedHeader, s.Channels, f.settings.ChannelSave)
	}

	if s.Validated {
		f.numFrames = s.NumFrames
		f.timestamps = make([]float64, len(s.Timestamps))
		copy(f.timestamps, s.Timestamps)
		f.validated = true
	}
	return f, nil
}

// snapshotPlain mirrors Snapshot without its MarshalBinary and
// UnmarshalBinary methods, so cbor encodes the struct fields instead of
// re-entering those methods.
type snapshotPlain Snapshot

// MarshalBinary encodes the snapshot as CBOR.
func (s Snapshot) MarshalBinary() ([]byte, error) {
	return cbor.Marshal(snapshotPlain(s))
}

// UnmarshalBinary decodes a CBOR snapshot.
func (s *Snapshot) UnmarshalBinary(data []byte) error {
	return cbor.Unmarshal(data, (*snapshotPlain)(s))
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
