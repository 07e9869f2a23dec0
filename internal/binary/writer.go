package binary

import (
	"encoding/binary"
	"io"
)

// Writer provides methods for writing TIFF binary data with a configurable
// byte order and offset width. It is used by the synthetic stack builder
// that test fixtures are generated with.
type Writer struct {
	w          io.WriterAt
	order      binary.ByteOrder
	offsetSize int
	pos        int64
}

// NewWriter creates a binary writer with the given configuration.
func NewWriter(w io.WriterAt, cfg Config) (*Writer, error) {
	if cfg.OffsetSize != 4 && cfg.OffsetSize != 8 {
		return nil, ErrInvalidOffsetSize
	}
	return &Writer{
		w:          w,
		order:      cfg.ByteOrder,
		offsetSize: cfg.OffsetSize,
		pos:        0,
	}, nil
}

// At returns a new writer positioned at the given offset.
// The new writer shares the underlying io.WriterAt but has independent position.
func (w *Writer) At(offset int64) *Writer {
	return &Writer{
		w:          w.w,
		order:      w.order,
		offsetSize: w.offsetSize,
		pos:        offset,
	}
}

// Pos returns the current write position.
func (w *Writer) Pos() int64 {
	return w.pos
}

// WriteBytes writes the given bytes at the current position.
func (w *Writer) WriteBytes(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	n, err := w.w.WriteAt(data, w.pos)
	w.pos += int64(n)
	return err
}

// WriteUint8 writes an unsigned 8-bit integer.
func (w *Writer) WriteUint8(v uint8) error {
	return w.WriteBytes([]byte{v})
}

// WriteUint16 writes an unsigned 16-bit integer.
func (w *Writer) WriteUint16(v uint16) error {
	buf := make([]byte, 2)
	w.order.PutUint16(buf, v)
	return w.WriteBytes(buf)
}

// WriteUint32 writes an unsigned 32-bit integer.
func (w *Writer) WriteUint32(v uint32) error {
	buf := make([]byte, 4)
	w.order.PutUint32(buf, v)
	return w.WriteBytes(buf)
}

// WriteUint64 writes an unsigned 64-bit integer.
func (w *Writer) WriteUint64(v uint64) error {
	buf := make([]byte, 8)
	w.order.PutUint64(buf, v)
	return w.WriteBytes(buf)
}

// WriteOffset writes a file offset using the configured offset size.
func (w *Writer) WriteOffset(v uint64) error {
	if w.offsetSize == 4 {
		return w.WriteUint32(uint32(v))
	}
	return w.WriteUint64(v)
}

// WriteZeros writes n zero bytes.
func (w *Writer) WriteZeros(n int) error {
	if n <= 0 {
		return nil
	}
	return w.WriteBytes(make([]byte, n))
}

// Skip advances the position by n bytes without writing.
func (w *Writer) Skip(n int64) {
	w.pos += n
}

// OffsetSize returns the configured offset size in bytes.
func (w *Writer) OffsetSize() int {
	return w.offsetSize
}

// ByteOrder returns the configured byte order.
func (w *Writer) ByteOrder() binary.ByteOrder {
	return w.order
}
