// Package binary provides low-level binary I/O operations for TIFF stack parsing.
package binary

import (
	"encoding/binary"
	"errors"
	"io"
)

// ErrInvalidOffsetSize is returned when an invalid offset size is specified.
var ErrInvalidOffsetSize = errors.New("invalid offset size: must be 4 or 8")

// Reader provides methods for reading TIFF binary data with a configurable
// byte order and offset width. Classic TIFF uses 4-byte offsets, BigTIFF
// uses 8-byte offsets; byte order comes from the file header.
type Reader struct {
	r          io.ReaderAt
	order      binary.ByteOrder
	offsetSize int
	pos        int64
}

// Config holds reader configuration, typically derived from the file header.
type Config struct {
	ByteOrder  binary.ByteOrder
	OffsetSize int // 4 or 8 bytes
}

// DefaultConfig returns a configuration suitable for initial header probing.
// Uses little-endian byte order and 4-byte offsets.
func DefaultConfig() Config {
	return Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: 4,
	}
}

// NewReader creates a binary reader with the given configuration.
func NewReader(r io.ReaderAt, cfg Config) (*Reader, error) {
	if cfg.OffsetSize != 4 && cfg.OffsetSize != 8 {
		return nil, ErrInvalidOffsetSize
	}
	return &Reader{
		r:          r,
		order:      cfg.ByteOrder,
		offsetSize: cfg.OffsetSize,
		pos:        0,
	}, nil
}

// At returns a new reader positioned at the given offset.
// The new reader shares the underlying io.ReaderAt but has independent position.
func (r *Reader) At(offset int64) *Reader {
	return &Reader{
		r:          r.r,
		order:      r.order,
		offsetSize: r.offsetSize,
		pos:        offset,
	}
}

// Pos returns the current read position.
func (r *Reader) Pos() int64 {
	return r.pos
}

// ReadBytes reads exactly n bytes from the current position.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	_, err := r.r.ReadAt(buf, r.pos)
	if err != nil {
		return nil, err
	}
	r.pos += int64(n)
	return buf, nil
}

// ReadUint8 reads an unsigned 8-bit integer.
func (r *Reader) ReadUint8() (uint8, error) {
	buf, err := r.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadUint16 reads an unsigned 16-bit integer.
func (r *Reader) ReadUint16() (uint16, error) {
	buf, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(buf), nil
}

// ReadUint32 reads an unsigned 32-bit integer.
func (r *Reader) ReadUint32() (uint32, error) {
	buf, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(buf), nil
}

// ReadUint64 reads an unsigned 64-bit integer.
func (r *Reader) ReadUint64() (uint64, error) {
	buf, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(buf), nil
}

// ReadOffset reads a file offset using the configured offset size.
func (r *Reader) ReadOffset() (uint64, error) {
	buf, err := r.ReadBytes(r.offsetSize)
	if err != nil {
		return 0, err
	}
	return r.decodeUint(buf, r.offsetSize), nil
}

// decodeUint decodes a variable-width unsigned integer.
func (r *Reader) decodeUint(buf []byte, size int) uint64 {
	switch size {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(r.order.Uint16(buf))
	case 4:
		return uint64(r.order.Uint32(buf))
	default:
		return r.order.Uint64(buf)
	}
}

// Skip advances the position by n bytes.
func (r *Reader) Skip(n int64) {
	r.pos += n
}

// Peek reads n bytes without advancing the position.
func (r *Reader) Peek(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	_, err := r.r.ReadAt(buf, r.pos)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// OffsetSize returns the configured offset size in bytes.
func (r *Reader) OffsetSize() int {
	return r.offsetSize
}

// ByteOrder returns the configured byte order.
func (r *Reader) ByteOrder() binary.ByteOrder {
	return r.order
}
