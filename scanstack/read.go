package scanstack

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/robert-malhotra/go-scanstack/internal/tiff"
)

// Read decodes the given frames (1-based indices, any order) for the
// given logical channels and returns them as a block shaped
// height × width × len(channels) × len(frames), with channels and frames
// in the requested order.
//
// A channel outside the saved acquisition set fails with
// ErrInvalidChannel; a frame index outside [1, NumFrames()] fails with
// ErrFrameRange. Neither invalidates the handle. A contiguous strictly
// increasing frame sequence is delegated to ReadContiguous, which avoids
// re-seeking per frame.
func (f *File) Read(channels []int, frames []int) (*FrameBlock, error) {
	if f.closed {
		return nil, ErrClosed
	}
	slots, err := f.slotOrder(channels)
	if err != nil {
		return nil, err
	}
	for _, fr := range frames {
		if fr < 1 || fr > f.numFrames {
			return nil, fmt.Errorf("frame %d: %w (stack has %d)", fr, ErrFrameRange, f.numFrames)
		}
	}
	if isContiguous(frames) {
		return f.ReadContiguous(channels, frames[0], len(frames))
	}

	block := newFrameBlock(f.height, f.width, channels, len(frames))
	for bi, fr := range frames {
		if err := f.decodeFrame(fr, slots, block, bi); err != nil {
			return nil, fmt.Errorf("frame %d: %w", fr, err)
		}
	}
	return block, nil
}

// ReadContiguous decodes count frames starting at frame start (1-based)
// for the given logical channels, advancing strictly forward through the
// directory chain.
//
// If the file runs out of directories before count frames are read, or
// count extends past the declared frame count, the returned block is
// truncated to the frames actually available and its Short method
// reports true; this is a recoverable boundary condition, not an error.
// A trailing frame missing any of the requested channels is not
// delivered.
func (f *File) ReadContiguous(channels []int, start, count int) (*FrameBlock, error) {
	if f.closed {
		return nil, ErrClosed
	}
	slots, err := f.slotOrder(channels)
	if err != nil {
		return nil, err
	}
	if start < 1 || start > f.numFrames {
		return nil, fmt.Errorf("start frame %d: %w (stack has %d)", start, ErrFrameRange, f.numFrames)
	}
	if count < 0 {
		return nil, fmt.Errorf("frame count %d: %w", count, ErrFrameRange)
	}

	// Cap the allocation at the frames the stack declares past start; a
	// larger request can only ever short-read, so asking for more must
	// not size the block (or overflow the size computation).
	avail := f.numFrames - start + 1
	capped := count
	if capped > avail {
		capped = avail
	}

	block := newFrameBlock(f.height, f.width, channels, capped)
	for i := 0; i < capped; i++ {
		err := f.decodeFrame(start+i, slots, block, i)
		if err == nil {
			continue
		}
		if isTruncation(err) {
			block.truncate(i)
			return block, nil
		}
		return nil, fmt.Errorf("frame %d: %w", start+i, err)
	}
	if capped < count {
		block.short = true
	}
	return block, nil
}

// slotEntry pairs a physical channel slot with the block channel index it
// decodes into.
type slotEntry struct {
	slot int
	ci   int
}

// slotOrder translates logical channel numbers to physical slots, sorted
// ascending so each frame's directories are visited strictly forward.
func (f *File) slotOrder(channels []int) ([]slotEntry, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("%w: no channels requested", ErrInvalidChannel)
	}
	entries := make([]slotEntry, len(channels))
	for i, ch := range channels {
		s, err := f.slot(ch)
		if err != nil {
			return nil, err
		}
		entries[i] = slotEntry{slot: s, ci: i}
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].slot < entries[b].slot })
	return entries, nil
}

// decodeFrame reads one frame's requested channels into block position bi.
func (f *File) decodeFrame(frame int, slots []slotEntry, block *FrameBlock, bi int) error {
	for _, e := range slots {
		d, err := f.index.IFD(f.directory(frame, e.slot))
		if err != nil {
			return err
		}
		if err := f.decodeStrips(d, block.plane(e.ci, bi)); err != nil {
			return err
		}
	}
	return nil
}

// decodeStrips decodes a directory's pixel data into dst at native bit
// depth, cast to int16.
func (f *File) decodeStrips(d *tiff.IFD, dst []int16) error {
	if d.Width != f.width || d.Height != f.height {
		return fmt.Errorf("%w: directory dimensions %dx%d, stack is %dx%d",
			ErrMalformedHeader, d.Width, d.Height, f.width, f.height)
	}
	if d.Compression != 1 {
		return fmt.Errorf("%w: compression %d", ErrMalformedHeader, d.Compression)
	}
	if len(d.StripOffsets) == 0 || len(d.StripOffsets) != len(d.StripByteCounts) {
		return fmt.Errorf("%w: inconsistent strip layout", ErrMalformedHeader)
	}

	bits := d.BitsPerSample
	if bits != 8 && bits != 16 {
		return fmt.Errorf("%w: %d bits per sample", ErrMalformedHeader, bits)
	}
	order := f.index.Header().Order
	signed := d.SampleFormat == tiff.SampleInt

	pos := 0
	for i, off := range d.StripOffsets {
		buf, err := f.index.ReadAt(off, int(d.StripByteCounts[i]))
		if err != nil {
			return fmt.Errorf("reading strip %d: %w", i, err)
		}
		switch bits {
		case 8:
			for _, b := range buf {
				if pos >= len(dst) {
					break
				}
				if signed {
					dst[pos] = int16(int8(b))
				} else {
					dst[pos] = int16(b)
				}
				pos++
			}
		case 16:
			for j := 0; j+1 < len(buf); j += 2 {
				if pos >= len(dst) {
					break
				}
				dst[pos] = int16(order.Uint16(buf[j:]))
				pos++
			}
		}
	}
	if pos != len(dst) {
		return fmt.Errorf("%w: strip data covers %d of %d samples", ErrMalformedHeader, pos, len(dst))
	}
	return nil
}

// isContiguous reports whether frames is a non-empty strictly increasing
// run with step 1.
func isContiguous(frames []int) bool {
	if len(frames) == 0 {
		return false
	}
	for i := 1; i < len(frames); i++ {
		if frames[i] != frames[i-1]+1 {
			return false
		}
	}
	return true
}

// isTruncation reports whether err means the directory chain ended,
// either cleanly or because the file was cut mid-directory.
func isTruncation(err error) bool {
	return errors.Is(err, tiff.ErrNoDirectory) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
