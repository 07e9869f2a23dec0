package scanstack

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	f := openStack(t, stackSpec{channels: []int{1, 3}, frames: 4, rate: 25, zoom: 1.5, motor: []float64{1, 2, 3}})

	snap := f.Snapshot()
	data, err := snap.MarshalBinary()
	require.NoError(t, err)

	var got Snapshot
	require.NoError(t, got.UnmarshalBinary(data))

	if diff := cmp.Diff(snap, got); diff != "" {
		t.Errorf("snapshot changed across CBOR round trip (-want +got):\n%s", diff)
	}
}

func TestSnapshotReopen(t *testing.T) {
	f := openStack(t, stackSpec{channels: []int{1, 2}, frames: 3})
	snap := f.Snapshot()
	require.NoError(t, f.Close())

	g, err := snap.Open()
	require.NoError(t, err)
	defer g.Close()

	assert.Equal(t, f.Width(), g.Width())
	assert.Equal(t, []int{1, 2}, g.Channels())

	block, err := g.ReadContiguous([]int{1}, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, block.NumFrames())
}

func TestSnapshotCarriesValidatedState(t *testing.T) {
	f := openStack(t, stackSpec{frames: 4, declaredFrames: 9})
	require.NoError(t, f.Validate())
	require.Equal(t, 4, f.NumFrames())

	snap := f.Snapshot()
	require.NoError(t, f.Close())

	g, err := snap.Open()
	require.NoError(t, err)
	defer g.Close()

	// The walked count survives the reopen instead of reverting to the
	// header estimate.
	assert.True(t, g.Validated())
	assert.Equal(t, 4, g.NumFrames())
	assert.Len(t, g.Timestamps(), 4)
}

func TestSnapshotDetachedFromHandle(t *testing.T) {
	f := openStack(t, stackSpec{frames: 2})
	snap := f.Snapshot()

	snap.Timestamps[0] = 99
	assert.NotEqual(t, 99.0, f.Timestamps()[0], "snapshot must not alias handle state")
}

func TestSnapshotOpenDimensionMismatch(t *testing.T) {
	f := openStack(t, stackSpec{width: 4, height: 4, frames: 2})
	snap := f.Snapshot()
	require.NoError(t, f.Close())

	snap.Width = 64
	_, err := snap.Open()
	require.ErrorIs(t, err, ErrMalformedHeader)
}

func TestSnapshotOpenChannelMismatch(t *testing.T) {
	f := openStack(t, stackSpec{channels: []int{1, 2}, frames: 2})
	snap := f.Snapshot()
	require.NoError(t, f.Close())

	snap.Channels = []int{1, 4}
	_, err := snap.Open()
	require.ErrorIs(t, err, ErrMalformedHeader)
}
