package tiff

import (
	"fmt"

	"github.com/robert-malhotra/go-scanstack/internal/binary"
)

// maxEntries bounds the per-directory entry count so a corrupt count field
// cannot drive an unbounded read.
const maxEntries = 4096

// IFD is one parsed image directory: a single frame of one channel.
type IFD struct {
	Width           int
	Height          int
	BitsPerSample   int
	SamplesPerPixel int
	Compression     int
	SampleFormat    int
	StripOffsets    []int64
	StripByteCounts []int64
	Description     string
	Software        string

	// Next is the file offset of the following directory, 0 at end of chain.
	Next int64
}

// readIFD parses the directory at the given file offset.
func readIFD(rd *binary.Reader, big bool, offset int64) (*IFD, error) {
	r := rd.At(offset)

	var count uint64
	var err error
	if big {
		count, err = r.ReadUint64()
	} else {
		var c uint16
		c, err = r.ReadUint16()
		count = uint64(c)
	}
	if err != nil {
		return nil, fmt.Errorf("reading entry count at %d: %w", offset, err)
	}
	if count == 0 || count > maxEntries {
		return nil, fmt.Errorf("%w: entry count %d at offset %d", ErrBadEntry, count, offset)
	}

	ifd := &IFD{
		SamplesPerPixel: 1,
		SampleFormat:    SampleUint,
		Compression:     1,
	}

	for i := uint64(0); i < count; i++ {
		tag, err := r.ReadUint16()
		if err != nil {
			return nil, fmt.Errorf("reading entry %d: %w", i, err)
		}
		typ, err := r.ReadUint16()
		if err != nil {
			return nil, fmt.Errorf("reading entry %d: %w", i, err)
		}
		var cnt uint64
		if big {
			cnt, err = r.ReadUint64()
		} else {
			var c uint32
			c, err = r.ReadUint32()
			cnt = uint64(c)
		}
		if err != nil {
			return nil, fmt.Errorf("reading entry %d: %w", i, err)
		}
		fieldSize := 4
		if big {
			fieldSize = 8
		}
		field, err := r.ReadBytes(fieldSize)
		if err != nil {
			return nil, fmt.Errorf("reading entry %d: %w", i, err)
		}

		if err := ifd.applyEntry(rd, tag, typ, cnt, field); err != nil {
			return nil, fmt.Errorf("tag %d: %w", tag, err)
		}
	}

	next, err := r.ReadOffset()
	if err != nil {
		return nil, fmt.Errorf("reading next-directory offset: %w", err)
	}
	ifd.Next = int64(next)
	return ifd, nil
}

// applyEntry decodes one directory entry into the IFD, ignoring tags the
// stack format does not use.
func (d *IFD) applyEntry(rd *binary.Reader, tag, typ uint16, cnt uint64, field []byte) error {
	switch tag {
	case tagImageWidth, tagImageLength, tagBitsPerSample, tagCompression,
		tagSamplesPerPixel, tagSampleFormat:
		vals, err := entryValues(rd, typ, cnt, field)
		if err != nil {
			return err
		}
		if len(vals) == 0 {
			return ErrBadEntry
		}
		v := int(vals[0])
		switch tag {
		case tagImageWidth:
			d.Width = v
		case tagImageLength:
			d.Height = v
		case tagBitsPerSample:
			d.BitsPerSample = v
		case tagCompression:
			d.Compression = v
		case tagSamplesPerPixel:
			d.SamplesPerPixel = v
		case tagSampleFormat:
			d.SampleFormat = v
		}
	case tagStripOffsets, tagStripByteCounts:
		vals, err := entryValues(rd, typ, cnt, field)
		if err != nil {
			return err
		}
		if tag == tagStripOffsets {
			d.StripOffsets = vals
		} else {
			d.StripByteCounts = vals
		}
	case tagImageDescription:
		s, err := entryString(rd, typ, cnt, field)
		if err != nil {
			return err
		}
		d.Description = s
	case tagSoftware:
		s, err := entryString(rd, typ, cnt, field)
		if err != nil {
			return err
		}
		d.Software = s
	}
	return nil
}

// entryBytes returns the raw value bytes of an entry, following the value
// offset when the data does not fit in the field.
func entryBytes(rd *binary.Reader, typ uint16, cnt uint64, field []byte) ([]byte, error) {
	if int(typ) >= len(typeSizes) || typeSizes[typ] == 0 {
		return nil, fmt.Errorf("%w: unknown data type %d", ErrBadEntry, typ)
	}
	total := typeSizes[typ] * int64(cnt)
	if total <= int64(len(field)) {
		return field[:total], nil
	}

	var off uint64
	if len(field) == 8 {
		off = rd.ByteOrder().Uint64(field)
	} else {
		off = uint64(rd.ByteOrder().Uint32(field))
	}
	return rd.At(int64(off)).ReadBytes(int(total))
}

// entryValues decodes an entry's values as integers.
func entryValues(rd *binary.Reader, typ uint16, cnt uint64, field []byte) ([]int64, error) {
	buf, err := entryBytes(rd, typ, cnt, field)
	if err != nil {
		return nil, err
	}
	order := rd.ByteOrder()
	size := typeSizes[typ]
	vals := make([]int64, cnt)
	for i := range vals {
		b := buf[int64(i)*size:]
		switch typ {
		case typeByte:
			vals[i] = int64(b[0])
		case typeSByte:
			vals[i] = int64(int8(b[0]))
		case typeShort:
			vals[i] = int64(order.Uint16(b))
		case typeLong:
			vals[i] = int64(order.Uint32(b))
		case typeSLong:
			vals[i] = int64(int32(order.Uint32(b)))
		case typeLong8:
			vals[i] = int64(order.Uint64(b))
		default:
			return nil, fmt.Errorf("%w: non-integer data type %d", ErrBadEntry, typ)
		}
	}
	return vals, nil
}

// entryString decodes an ASCII entry, trimming the trailing NUL.
func entryString(rd *binary.Reader, typ uint16, cnt uint64, field []byte) (string, error) {
	if typ != typeASCII && typ != typeByte {
		return "", fmt.Errorf("%w: expected ASCII, got type %d", ErrBadEntry, typ)
	}
	buf, err := entryBytes(rd, typ, cnt, field)
	if err != nil {
		return "", err
	}
	for len(buf) > 0 && buf[len(buf)-1] == 0 {
		buf = buf[:len(buf)-1]
	}
	return string(buf), nil
}
