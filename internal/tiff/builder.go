package tiff

import (
	stdbinary "encoding/binary"
	"fmt"
	"os"

	"github.com/robert-malhotra/go-scanstack/internal/binary"
)

// Builder writes a minimal stack container: one directory per entry in
// Frames, single uncompressed strip each, the Software text on the first
// directory and an optional per-directory Description. Tests use it to
// generate fixtures with known pixel values; it is not a general TIFF
// writer.
type Builder struct {
	Width         int
	Height        int
	BitsPerSample int                 // 8 or 16; defaults to 16
	SampleFormat  int                 // SampleUint or SampleInt; defaults to SampleInt
	ByteOrder     stdbinary.ByteOrder // defaults to little-endian
	Big           bool                // write BigTIFF offsets
	Software      string              // acquisition settings block, directory 1 only
	Descriptions  []string            // per-directory description text, optional
	Frames        [][]int16           // one slice of Width*Height samples per directory
}

// WriteFile writes the stack to path, replacing any existing file.
func (b *Builder) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := b.write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (b *Builder) write(f *os.File) error {
	order := b.ByteOrder
	if order == nil {
		order = stdbinary.LittleEndian
	}
	bits := b.BitsPerSample
	if bits == 0 {
		bits = 16
	}
	if bits != 8 && bits != 16 {
		return fmt.Errorf("unsupported bits per sample %d", bits)
	}
	format := b.SampleFormat
	if format == 0 {
		format = SampleInt
	}

	offsetSize := 4
	if b.Big {
		offsetSize = 8
	}
	w, err := binary.NewWriter(f, binary.Config{ByteOrder: order, OffsetSize: offsetSize})
	if err != nil {
		return err
	}

	if err := b.writeHeader(w, order); err != nil {
		return err
	}

	// File offset of the pointer to patch with the next directory's
	// offset: initially the header's first-IFD field.
	patchAt := int64(4)
	if b.Big {
		patchAt = 8
	}

	for i, frame := range b.Frames {
		if len(frame) != b.Width*b.Height {
			return fmt.Errorf("directory %d: have %d samples, want %d", i, len(frame), b.Width*b.Height)
		}

		stripOff := w.Pos()
		if err := b.writeStrip(w, order, frame, bits); err != nil {
			return err
		}
		stripLen := w.Pos() - stripOff

		desc := b.description(i)
		descOff, err := b.writeText(w, desc)
		if err != nil {
			return err
		}
		var soft string
		var softOff int64
		if i == 0 && b.Software != "" {
			soft = b.Software
			softOff, err = b.writeText(w, soft)
			if err != nil {
				return err
			}
		}

		// Directories begin on a word boundary.
		if w.Pos()%2 != 0 {
			if err := w.WriteZeros(1); err != nil {
				return err
			}
		}
		ifdOff := w.Pos()
		if err := w.At(patchAt).WriteOffset(uint64(ifdOff)); err != nil {
			return err
		}

		patchAt, err = b.writeIFD(w, ifdEnc{
			bits:     bits,
			format:   format,
			stripOff: stripOff,
			stripLen: stripLen,
			desc:     desc,
			descOff:  descOff,
			soft:     soft,
			softOff:  softOff,
		})
		if err != nil {
			return err
		}
	}

	// Last directory terminates the chain.
	return w.At(patchAt).WriteOffset(0)
}

func (b *Builder) writeHeader(w *binary.Writer, order stdbinary.ByteOrder) error {
	mark := uint16(orderLittle)
	if order == stdbinary.BigEndian {
		mark = orderBig
	}
	// The byte-order mark reads the same under either order.
	if err := w.WriteBytes([]byte{byte(mark >> 8), byte(mark)}); err != nil {
		return err
	}
	if b.Big {
		if err := w.WriteUint16(magicBig); err != nil {
			return err
		}
		if err := w.WriteUint16(8); err != nil {
			return err
		}
		if err := w.WriteUint16(0); err != nil {
			return err
		}
		return w.WriteUint64(0) // first-IFD placeholder
	}
	if err := w.WriteUint16(magicClassic); err != nil {
		return err
	}
	return w.WriteUint32(0) // first-IFD placeholder
}

func (b *Builder) description(i int) string {
	if i < len(b.Descriptions) {
		return b.Descriptions[i]
	}
	return ""
}

func (b *Builder) writeStrip(w *binary.Writer, order stdbinary.ByteOrder, frame []int16, bits int) error {
	if bits == 8 {
		buf := make([]byte, len(frame))
		for i, v := range frame {
			buf[i] = byte(v)
		}
		return w.WriteBytes(buf)
	}
	buf := make([]byte, 2*len(frame))
	for i, v := range frame {
		order.PutUint16(buf[2*i:], uint16(v))
	}
	return w.WriteBytes(buf)
}

// writeText writes a NUL-terminated ASCII value and returns its offset.
// Values short enough to inline into an entry's value field are not
// stored here; they get no offset.
func (b *Builder) writeText(w *binary.Writer, s string) (int64, error) {
	if s == "" || len(s)+1 <= b.fieldSize() {
		return 0, nil
	}
	off := w.Pos()
	if err := w.WriteBytes(append([]byte(s), 0)); err != nil {
		return 0, err
	}
	return off, nil
}

func (b *Builder) fieldSize() int {
	if b.Big {
		return 8
	}
	return 4
}

type ifdEnc struct {
	bits, format       int
	stripOff, stripLen int64
	desc, soft         string
	descOff, softOff   int64
}

type ifdEntry struct {
	tag, typ uint16
	count    uint64
	value    uint64
	text     string // ASCII entries carry the text for inlining
}

func asciiEntry(tag uint16, s string, off int64) ifdEntry {
	return ifdEntry{tag: tag, typ: typeASCII, count: uint64(len(s) + 1), value: uint64(off), text: s}
}

// writeIFD writes one directory and returns the file offset of its
// next-directory pointer for later patching.
func (b *Builder) writeIFD(w *binary.Writer, e ifdEnc) (int64, error) {
	longType := uint16(typeLong)
	if b.Big {
		longType = typeLong8
	}

	entries := []ifdEntry{
		{tag: tagImageWidth, typ: typeLong, count: 1, value: uint64(b.Width)},
		{tag: tagImageLength, typ: typeLong, count: 1, value: uint64(b.Height)},
		{tag: tagBitsPerSample, typ: typeShort, count: 1, value: uint64(e.bits)},
		{tag: tagCompression, typ: typeShort, count: 1, value: 1},
	}
	if e.desc != "" {
		entries = append(entries, asciiEntry(tagImageDescription, e.desc, e.descOff))
	}
	entries = append(entries,
		ifdEntry{tag: tagStripOffsets, typ: longType, count: 1, value: uint64(e.stripOff)},
		ifdEntry{tag: tagSamplesPerPixel, typ: typeShort, count: 1, value: 1},
		ifdEntry{tag: tagRowsPerStrip, typ: typeLong, count: 1, value: uint64(b.Height)},
		ifdEntry{tag: tagStripByteCounts, typ: longType, count: 1, value: uint64(e.stripLen)},
	)
	if e.soft != "" {
		entries = append(entries, asciiEntry(tagSoftware, e.soft, e.softOff))
	}
	entries = append(entries, ifdEntry{tag: tagSampleFormat, typ: typeShort, count: 1, value: uint64(e.format)})

	if b.Big {
		if err := w.WriteUint64(uint64(len(entries))); err != nil {
			return 0, err
		}
	} else {
		if err := w.WriteUint16(uint16(len(entries))); err != nil {
			return 0, err
		}
	}

	for _, en := range entries {
		if err := w.WriteUint16(en.tag); err != nil {
			return 0, err
		}
		if err := w.WriteUint16(en.typ); err != nil {
			return 0, err
		}
		if b.Big {
			if err := w.WriteUint64(en.count); err != nil {
				return 0, err
			}
		} else {
			if err := w.WriteUint32(uint32(en.count)); err != nil {
				return 0, err
			}
		}
		if err := b.writeValueField(w, en); err != nil {
			return 0, err
		}
	}

	patchAt := w.Pos()
	if err := w.WriteOffset(0); err != nil {
		return 0, err
	}
	return patchAt, nil
}

// writeValueField writes the fixed-width value field of an entry. Values
// are left-justified; ASCII values that fit the field inline the text,
// longer ones hold the offset written by writeText.
func (b *Builder) writeValueField(w *binary.Writer, en ifdEntry) error {
	fieldSize := b.fieldSize()
	switch {
	case en.typ == typeShort && en.count == 1:
		if err := w.WriteUint16(uint16(en.value)); err != nil {
			return err
		}
		return w.WriteZeros(fieldSize - 2)
	case en.typ == typeLong && en.count == 1:
		if err := w.WriteUint32(uint32(en.value)); err != nil {
			return err
		}
		return w.WriteZeros(fieldSize - 4)
	case en.typ == typeLong8 && en.count == 1:
		return w.WriteUint64(en.value)
	case en.typ == typeASCII:
		if int(en.count) <= fieldSize {
			if err := w.WriteBytes(append([]byte(en.text), 0)); err != nil {
				return err
			}
			return w.WriteZeros(fieldSize - int(en.count))
		}
		return w.WriteOffset(en.value)
	default:
		return fmt.Errorf("unsupported entry encoding: type %d count %d", en.typ, en.count)
	}
}
