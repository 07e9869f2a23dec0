// Package tiff parses the multi-directory TIFF containers produced by
// frame-scanning acquisition software.
//
// A stack file holds one image frame per Image File Directory (IFD),
// interleaved across acquisition channels: all channels of frame 1, then
// all channels of frame 2, and so on. Each IFD carries entries of 12 bytes
// (classic) or 20 bytes (BigTIFF) consisting of a tag, a data type, a
// count, and either the value itself or an offset to it. Directory 1
// additionally carries the acquisition settings text in its Software tag;
// every directory carries its per-frame timestamp text in its
// ImageDescription tag.
package tiff

import (
	stdbinary "encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/robert-malhotra/go-scanstack/internal/binary"
)

// TIFF header byte-order marks and version magics.
const (
	orderLittle = 0x4949 // "II"
	orderBig    = 0x4D4D // "MM"

	magicClassic = 42
	magicBig     = 43
)

// IFD entry data types (TIFF spec p. 14-16; Long8 is BigTIFF).
const (
	typeByte  = 1
	typeASCII = 2
	typeShort = 3
	typeLong  = 4
	typeSByte = 6
	typeSLong = 9
	typeLong8 = 16
)

// typeSizes maps a data type to the byte length of one value.
var typeSizes = [...]int64{0, 1, 1, 2, 4, 8, 1, 1, 2, 4, 8, 4, 8, 0, 0, 0, 8, 8, 8}

// Tags used by stack files (TIFF spec p. 28-41).
const (
	tagImageWidth       = 256
	tagImageLength      = 257
	tagBitsPerSample    = 258
	tagCompression      = 259
	tagImageDescription = 270
	tagStripOffsets     = 273
	tagSamplesPerPixel  = 277
	tagRowsPerStrip     = 278
	tagStripByteCounts  = 279
	tagSoftware         = 305
	tagSampleFormat     = 339
)

// Sample format values.
const (
	SampleUint = 1
	SampleInt  = 2
)

// Errors
var (
	ErrNotTIFF     = errors.New("not a TIFF container")
	ErrNoDirectory = errors.New("no such directory")
	ErrBadEntry    = errors.New("malformed directory entry")
)

// Header contains the container-level metadata parsed from the first
// 8 (classic) or 16 (BigTIFF) bytes of the file.
type Header struct {
	Order    stdbinary.ByteOrder
	Big      bool
	FirstIFD int64
}

// ReaderConfig returns the binary reader configuration implied by the header.
func (h *Header) ReaderConfig() binary.Config {
	size := 4
	if h.Big {
		size = 8
	}
	return binary.Config{ByteOrder: h.Order, OffsetSize: size}
}

// ReadHeader parses the TIFF header at the start of the file.
func ReadHeader(r io.ReaderAt) (*Header, error) {
	buf := make([]byte, 8)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotTIFF, err)
	}

	var order stdbinary.ByteOrder
	switch {
	case buf[0] == 'I' && buf[1] == 'I':
		order = stdbinary.LittleEndian
	case buf[0] == 'M' && buf[1] == 'M':
		order = stdbinary.BigEndian
	default:
		return nil, ErrNotTIFF
	}

	h := &Header{Order: order}
	switch order.Uint16(buf[2:4]) {
	case magicClassic:
		h.FirstIFD = int64(order.Uint32(buf[4:8]))
	case magicBig:
		// BigTIFF: offset size (8) and a pad word precede the first
		// directory offset.
		if order.Uint16(buf[4:6]) != 8 || order.Uint16(buf[6:8]) != 0 {
			return nil, ErrNotTIFF
		}
		off := make([]byte, 8)
		if _, err := r.ReadAt(off, 8); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotTIFF, err)
		}
		h.Big = true
		h.FirstIFD = int64(order.Uint64(off))
	default:
		return nil, ErrNotTIFF
	}

	if h.FirstIFD <= 0 {
		return nil, ErrNotTIFF
	}
	return h, nil
}
