package scanstack

// FrameBlock is the decoded result of a read: a dense 4-D array of
// height × width × channels × frames, int16 samples. Ownership passes
// fully to the caller; the reader keeps no reference to returned data.
type FrameBlock struct {
	height   int
	width    int
	channels []int
	frames   int
	short    bool
	pix      []int16
}

func newFrameBlock(height, width int, channels []int, frames int) *FrameBlock {
	chans := make([]int, len(channels))
	copy(chans, channels)
	return &FrameBlock{
		height:   height,
		width:    width,
		channels: chans,
		frames:   frames,
		pix:      make([]int16, height*width*len(channels)*frames),
	}
}

// Dims returns the block shape (height, width, channels, frames).
func (b *FrameBlock) Dims() (height, width, channels, frames int) {
	return b.height, b.width, len(b.channels), b.frames
}

// NumFrames returns the number of frames actually delivered. On a short
// read this is less than requested.
func (b *FrameBlock) NumFrames() int {
	return b.frames
}

// Channels returns the logical channel numbers in the block, in the order
// they were requested.
func (b *FrameBlock) Channels() []int {
	return b.channels
}

// Short reports whether the read was truncated because the file ended
// before the requested frame count was satisfied.
func (b *FrameBlock) Short() bool {
	return b.short
}

// At returns the sample at pixel (y, x) of channel index c (position in
// Channels, not the logical number) and frame index f (0-based within
// the block).
func (b *FrameBlock) At(y, x, c, f int) int16 {
	return b.pix[b.offset(y, x, c, f)]
}

// Data returns the flat backing store. Samples are laid out frame-major,
// then channel, then row: index = ((f*C + c)*H + y)*W + x.
func (b *FrameBlock) Data() []int16 {
	return b.pix
}

func (b *FrameBlock) offset(y, x, c, f int) int {
	return ((f*len(b.channels)+c)*b.height+y)*b.width + x
}

// plane returns the backing slice for one (channel, frame) image.
func (b *FrameBlock) plane(c, f int) []int16 {
	start := b.offset(0, 0, c, f)
	return b.pix[start : start+b.height*b.width]
}

// truncate shrinks the block to n frames after a short read.
func (b *FrameBlock) truncate(n int) {
	b.frames = n
	b.short = true
	b.pix = b.pix[:b.height*b.width*len(b.channels)*n]
}
