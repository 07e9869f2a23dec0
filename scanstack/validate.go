package scanstack

import (
	"gonum.org/v1/gonum/stat"

	"github.com/robert-malhotra/go-scanstack/internal/settings"
)

// Validate walks every directory in the file and recomputes the
// authoritative frame count and per-frame timestamps from the walked
// data, replacing the header-derived estimates on the handle.
//
// The frame count becomes the number of complete frames actually present
// (directories over channels, rounded down), so a file truncated by an
// aborted acquisition yields a corrected smaller count with no error.
// Each frame's timestamp becomes the mean of the timestamps parsed from
// its interleaved channel directories; frames whose directories carry no
// parseable timestamp keep the frame-rate estimate. Stored data is never
// mutated.
func (f *File) Validate() error {
	if f.closed {
		return ErrClosed
	}

	nc := f.NumChannels()
	var perFrame [][]float64

	parsed := 0
	for i := 0; ; i++ {
		d, err := f.index.IFD(i)
		if err != nil {
			// End of chain, or a directory cut off mid-write:
			// either way the walk stops and the count is what
			// was actually there.
			break
		}
		parsed++
		frame := i / nc
		for frame >= len(perFrame) {
			perFrame = append(perFrame, nil)
		}
		if ts, ok := settings.FrameTimestamp(d.Description); ok {
			perFrame[frame] = append(perFrame[frame], ts)
		}
	}

	numFrames := parsed / nc

	timestamps := make([]float64, numFrames)
	for i := range timestamps {
		if i < len(perFrame) && len(perFrame[i]) > 0 {
			timestamps[i] = stat.Mean(perFrame[i], nil)
		} else if i < len(f.timestamps) {
			timestamps[i] = f.timestamps[i]
		}
	}

	f.numFrames = numFrames
	f.timestamps = timestamps
	f.validated = true
	return nil
}
