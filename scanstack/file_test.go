package scanstack

import (
	stdbinary "encoding/binary"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMetadata(t *testing.T) {
	f := openStack(t, stackSpec{
		width:    8,
		height:   6,
		channels: []int{1, 3},
		frames:   4,
		rate:     15.5,
		zoom:     2.5,
		motor:    []float64{10, -20, 42.5},
	})

	assert.Equal(t, 8, f.Width())
	assert.Equal(t, 6, f.Height())
	assert.Equal(t, 2, f.NumChannels())
	assert.Equal(t, []int{1, 3}, f.Channels())
	assert.Equal(t, 4, f.NumFrames())
	assert.InDelta(t, 15.5, f.FrameRate(), 1e-9)
	assert.InDelta(t, 2.5, f.ZoomFactor(), 1e-9)
	assert.Equal(t, []float64{10, -20, 42.5}, f.MotorPosition())
	assert.False(t, f.FastZ())
	assert.False(t, f.Validated())

	ts := f.Timestamps()
	require.Len(t, ts, 4)
	assert.InDelta(t, 0.0, ts[0], 1e-9)
	assert.InDelta(t, 3.0/15.5, ts[3], 1e-9)
}

func TestOpenFastZFrameCount(t *testing.T) {
	f := openStack(t, stackSpec{channels: []int{2}, frames: 6, fastZ: true})
	assert.True(t, f.FastZ())
	assert.Equal(t, 6, f.NumFrames())
}

func TestOpenNotExists(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.tif"))
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestOpenNotStack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(path, []byte("not an image container"), 0o644))

	_, err := Open(path)
	require.ErrorIs(t, err, ErrNotStack)
}

func TestOpenNoSettingsBlock(t *testing.T) {
	_, err := Open(writeStack(t, stackSpec{noSoftware: true}))
	require.ErrorIs(t, err, ErrMalformedHeader)
}

func TestOpenUnparseableSettings(t *testing.T) {
	_, err := Open(writeStack(t, stackSpec{software: "SI.hRoiManager.scanFrameRate = thirty\n"}))
	require.ErrorIs(t, err, ErrMalformedHeader)
}

func TestOpenMissingRequiredKey(t *testing.T) {
	// A settings block without the channel save list.
	_, err := Open(writeStack(t, stackSpec{software: "SI.hRoiManager.scanFrameRate = 30\n"}))
	require.ErrorIs(t, err, ErrMalformedHeader)
}

func TestCloseIdempotent(t *testing.T) {
	f, err := Open(writeStack(t, stackSpec{}))
	require.NoError(t, err)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
}

func TestClosedHandleReads(t *testing.T) {
	f, err := Open(writeStack(t, stackSpec{}))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = f.Read([]int{1}, []int{1})
	require.ErrorIs(t, err, ErrClosed)

	_, err = f.ReadContiguous([]int{1}, 1, 1)
	require.ErrorIs(t, err, ErrClosed)

	require.ErrorIs(t, f.Validate(), ErrClosed)
}

func TestOpenBigEndian(t *testing.T) {
	f := openStack(t, stackSpec{order: stdbinary.BigEndian, frames: 2})
	assert.Equal(t, 2, f.NumFrames())

	block, err := f.ReadContiguous(f.Channels(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, dirPixel(f, 1, 1), block.At(0, 0, 0, 0))
	assert.Equal(t, dirPixel(f, 2, 2), block.At(0, 0, 1, 1))
}

func TestOpenBigTIFF(t *testing.T) {
	f := openStack(t, stackSpec{big: true, frames: 3})
	assert.Equal(t, 3, f.NumFrames())

	block, err := f.ReadContiguous(f.Channels(), 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, block.NumFrames())
	assert.Equal(t, dirPixel(f, 3, 1), block.At(0, 0, 0, 2))
}
