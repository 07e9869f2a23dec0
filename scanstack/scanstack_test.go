package scanstack

import (
	stdbinary "encoding/binary"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-scanstack/internal/tiff"
)

// stackSpec describes a synthetic fixture stack. Pixel values encode the
// 0-based directory index: every sample of directory d is pixelBase+d,
// which makes the channel/frame interleave directly checkable.
type stackSpec struct {
	width, height  int
	channels       []int // logical channel numbers, physical order
	frames         int   // complete frames actually written
	extraDirs      int   // additional trailing directories (incomplete frame)
	declaredFrames int   // frame count the settings block declares; 0 = frames
	rate           float64
	fastZ          bool
	zoom           float64
	motor          []float64
	order          stdbinary.ByteOrder
	big            bool
	bits           int  // bits per sample; 0 = 16
	timestampSkew  bool // offset each channel's timestamp to exercise averaging
	noSoftware     bool
	software       string // overrides the generated settings block
}

const pixelBase = 1000

func (s *stackSpec) defaults() {
	if s.width == 0 {
		s.width = 4
	}
	if s.height == 0 {
		s.height = 3
	}
	if len(s.channels) == 0 {
		s.channels = []int{1, 2}
	}
	if s.frames == 0 {
		s.frames = 5
	}
	if s.declaredFrames == 0 {
		s.declaredFrames = s.frames
	}
	if s.rate == 0 {
		s.rate = 30.0
	}
}

func (s *stackSpec) settingsBlock() string {
	if s.software != "" {
		return s.software
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SI.hRoiManager.scanFrameRate = %g\n", s.rate)
	if s.zoom != 0 {
		fmt.Fprintf(&b, "SI.hRoiManager.scanZoomFactor = %g\n", s.zoom)
	}
	chans := make([]string, len(s.channels))
	for i, c := range s.channels {
		chans[i] = fmt.Sprintf("%d", c)
	}
	fmt.Fprintf(&b, "SI.hChannels.channelSave = [%s]\n", strings.Join(chans, ";"))
	if s.fastZ {
		fmt.Fprintf(&b, "SI.hFastZ.enable = true\n")
		fmt.Fprintf(&b, "SI.hFastZ.numVolumes = %d\n", s.declaredFrames)
		fmt.Fprintf(&b, "SI.hFastZ.numFramesPerVolume = 1\n")
	} else {
		fmt.Fprintf(&b, "SI.hFastZ.enable = false\n")
		fmt.Fprintf(&b, "SI.hStackManager.framesPerSlice = %d\n", s.declaredFrames)
		fmt.Fprintf(&b, "SI.hStackManager.numSlices = 1\n")
	}
	if s.motor != nil {
		fmt.Fprintf(&b, "SI.hMotors.motorPosition = [%g %g %g]\n", s.motor[0], s.motor[1], s.motor[2])
	}
	return b.String()
}

// writeStack builds the fixture and returns its path.
func writeStack(t *testing.T, spec stackSpec) string {
	t.Helper()
	spec.defaults()

	nc := len(spec.channels)
	dirs := spec.frames*nc + spec.extraDirs

	frames := make([][]int16, dirs)
	descs := make([]string, dirs)
	for d := 0; d < dirs; d++ {
		frame := make([]int16, spec.width*spec.height)
		for j := range frame {
			frame[j] = int16(pixelBase + d)
		}
		frames[d] = frame

		ts := float64(d/nc) / spec.rate
		if spec.timestampSkew {
			// Spread channel timestamps symmetrically around the
			// frame mean.
			slot := d % nc
			ts += (float64(slot) - float64(nc-1)/2) * 1e-3
		}
		descs[d] = fmt.Sprintf("frameNumbers = %d\nframeTimestamps_sec = %.9f\n", d/nc+1, ts)
	}

	software := spec.settingsBlock()
	if spec.noSoftware {
		software = ""
	}

	b := &tiff.Builder{
		Width:         spec.width,
		Height:        spec.height,
		BitsPerSample: spec.bits,
		ByteOrder:     spec.order,
		Big:           spec.big,
		Software:      software,
		Descriptions:  descs,
		Frames:        frames,
	}
	path := filepath.Join(t.TempDir(), "stack.tif")
	require.NoError(t, b.WriteFile(path))
	return path
}

// openStack builds the fixture, opens it, and closes it on cleanup.
func openStack(t *testing.T, spec stackSpec) *File {
	t.Helper()
	f, err := Open(writeStack(t, spec))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

// dirPixel returns the expected sample value for (frame, logical channel).
func dirPixel(f *File, frame, channel int) int16 {
	slot := 0
	for i, c := range f.Channels() {
		if c == channel {
			slot = i
		}
	}
	return int16(pixelBase + f.NumChannels()*(frame-1) + slot)
}
