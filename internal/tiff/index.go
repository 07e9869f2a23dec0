package tiff

import (
	"fmt"
	"io"

	"github.com/robert-malhotra/go-scanstack/internal/binary"
)

// Index provides lazy random access to the directory chain of a stack
// file. Directory offsets are discovered by following next-IFD pointers
// and cached as found, so opening a file costs one header read and one
// directory parse regardless of stack length.
//
// An Index is not safe for concurrent use.
type Index struct {
	r      *binary.Reader
	header *Header

	// offsets holds the file offsets of directories discovered so far.
	// offsets[0] is always the header's first-IFD pointer.
	offsets []int64
	done    bool
}

// NewIndex parses the container header and seeds the directory index.
func NewIndex(r io.ReaderAt) (*Index, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	rd, err := binary.NewReader(r, h.ReaderConfig())
	if err != nil {
		return nil, err
	}
	return &Index{
		r:       rd,
		header:  h,
		offsets: []int64{h.FirstIFD},
	}, nil
}

// Header returns the parsed container header.
func (x *Index) Header() *Header {
	return x.header
}

// Known returns the number of directory offsets discovered so far.
func (x *Index) Known() int {
	return len(x.offsets)
}

// Exhausted reports whether the end of the directory chain has been reached.
func (x *Index) Exhausted() bool {
	return x.done
}

// IFD parses and returns directory i (0-based), extending the cached
// offset chain forward as needed. Returns ErrNoDirectory once the chain
// ends before i.
func (x *Index) IFD(i int) (*IFD, error) {
	if i < 0 {
		return nil, fmt.Errorf("%w: index %d", ErrNoDirectory, i)
	}
	for i >= len(x.offsets) {
		if x.done {
			return nil, fmt.Errorf("%w: index %d of %d", ErrNoDirectory, i, len(x.offsets))
		}
		last, err := readIFD(x.r, x.header.Big, x.offsets[len(x.offsets)-1])
		if err != nil {
			return nil, fmt.Errorf("extending directory index at %d: %w", len(x.offsets)-1, err)
		}
		if last.Next == 0 {
			x.done = true
		} else {
			x.offsets = append(x.offsets, last.Next)
		}
	}

	d, err := readIFD(x.r, x.header.Big, x.offsets[i])
	if err != nil {
		return nil, fmt.Errorf("directory %d: %w", i, err)
	}
	// Record the successor while it is in hand.
	if i == len(x.offsets)-1 && !x.done {
		if d.Next == 0 {
			x.done = true
		} else {
			x.offsets = append(x.offsets, d.Next)
		}
	}
	return d, nil
}

// ReadAt reads raw bytes from the underlying file, for strip decoding.
func (x *Index) ReadAt(offset int64, n int) ([]byte, error) {
	return x.r.At(offset).ReadBytes(n)
}
