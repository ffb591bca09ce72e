// Package relation implements the heap-file / relation-scanner collaborator
// consumed by btreeidx's bulk loader: a forward-only iterator over
// fixed-width tuples, each tagged with the RecordId it lives at. It knows
// nothing about tuple schema — extracting the indexed attribute is
// btreeidx's job.
//
// Unlike bufmgr, a relation scan never keeps a page pinned across a call
// boundary (it reads sequentially and hands the caller a copy), so it reads
// directly off the underlying mmap rather than going through a pinned
// frame.
package relation

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/oda/bptreeidx/internal/mmap"
)

// ErrEndOfFile is returned by Scanner.Next once every tuple has been
// produced.
var ErrEndOfFile = errors.New("relation: end of file")

const (
	pageSize       = 4096
	pageHeaderSize = 4 // slotCount

	fileMagic   uint32 = 0x52454c4e // "RELN"
	headerSize         = 16         // magic, tupleSize, pageCount, reserved
)

// RecordId identifies a tuple's position in a heap file: the page it lives
// on and its slot within that page. The zero value (PageNumber == 0) is
// "empty" and never denotes a real tuple, since physical page 0 holds the
// heap file's own header rather than data.
type RecordId struct {
	PageNumber uint32
	SlotNumber int32
}

// Empty reports whether r is the sentinel "no record" value.
func (r RecordId) Empty() bool {
	return r.PageNumber == 0
}

// Less orders RecordIds by page number then slot number, giving a
// deterministic tiebreak for duplicate keys.
func (r RecordId) Less(o RecordId) bool {
	if r.PageNumber != o.PageNumber {
		return r.PageNumber < o.PageNumber
	}
	return r.SlotNumber < o.SlotNumber
}

// File is an append-only heap file of fixed-width tuples. Physical page 0
// holds a small file header (magic, tuple size, page count); data pages
// start at physical page 1, and RecordId.PageNumber numbers them from 1 so
// the zero RecordId can mean "empty".
type File struct {
	mm           *mmap.MMap
	tupleSize    int
	slotsPerPage int
	pageCount    uint32
}

// Create creates a new heap file at path storing tuples of tupleSize bytes.
func Create(path string, tupleSize int) (*File, error) {
	mm, err := mmap.Open(path, pageSize*2)
	if err != nil {
		return nil, errors.Wrap(err, "relation: open")
	}
	f := &File{
		mm:           mm,
		tupleSize:    tupleSize,
		slotsPerPage: (pageSize - pageHeaderSize) / tupleSize,
		pageCount:    1,
	}
	if f.slotsPerPage <= 0 {
		mm.Close()
		return nil, errors.Errorf("relation: tuple size %d too large for page", tupleSize)
	}
	f.writeHeader()
	return f, nil
}

// Open reopens an existing heap file previously built by Create, validating
// its header.
func Open(path string) (*File, error) {
	mm, err := mmap.Open(path, pageSize)
	if err != nil {
		return nil, errors.Wrap(err, "relation: open")
	}

	hdr := mm.Slice(0, headerSize)
	if hdr == nil || binary.LittleEndian.Uint32(hdr[0:4]) != fileMagic {
		mm.Close()
		return nil, errors.New("relation: bad file header")
	}
	f := &File{
		mm:        mm,
		tupleSize: int(binary.LittleEndian.Uint32(hdr[4:8])),
		pageCount: binary.LittleEndian.Uint32(hdr[8:12]),
	}
	f.slotsPerPage = (pageSize - pageHeaderSize) / f.tupleSize
	return f, nil
}

func (f *File) writeHeader() {
	hdr := f.mm.Slice(0, headerSize)
	binary.LittleEndian.PutUint32(hdr[0:4], fileMagic)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(f.tupleSize))
	binary.LittleEndian.PutUint32(hdr[8:12], f.pageCount)
}

// Close unmaps the heap file.
func (f *File) Close() error {
	return errors.Wrap(f.mm.Close(), "relation: close")
}

// physicalPage maps a 1-based RecordId.PageNumber to its physical mmap page.
func physicalPage(logicalPage uint32) uint32 {
	return logicalPage + 1
}

func (f *File) pageSlice(logicalPage uint32) []byte {
	return f.mm.Slice(int64(physicalPage(logicalPage))*pageSize, pageSize)
}

func (f *File) slotCount(logicalPage uint32) int32 {
	return int32(binary.LittleEndian.Uint32(f.pageSlice(logicalPage)[0:4]))
}

func (f *File) setSlotCount(logicalPage uint32, n int32) {
	binary.LittleEndian.PutUint32(f.pageSlice(logicalPage)[0:4], uint32(n))
}

func (f *File) slotOffset(slot int32) int {
	return pageHeaderSize + int(slot)*f.tupleSize
}

// Insert appends tuple (which must be exactly tupleSize bytes) to the heap,
// allocating a new page if the current last page is full, and returns the
// RecordId it was stored at.
func (f *File) Insert(tuple []byte) (RecordId, error) {
	if len(tuple) != f.tupleSize {
		return RecordId{}, errors.Errorf("relation: tuple is %d bytes, want %d", len(tuple), f.tupleSize)
	}

	page := f.pageCount - 1
	count := f.slotCount(page)
	if int(count) >= f.slotsPerPage {
		if err := f.growToPage(f.pageCount); err != nil {
			return RecordId{}, err
		}
		f.pageCount++
		f.writeHeader()
		page = f.pageCount - 1
		count = 0
	}

	buf := f.pageSlice(page)
	off := f.slotOffset(count)
	copy(buf[off:off+f.tupleSize], tuple)
	f.setSlotCount(page, count+1)

	return RecordId{PageNumber: page + 1, SlotNumber: count}, nil
}

func (f *File) growToPage(logicalPage uint32) error {
	required := int64(physicalPage(logicalPage)+1) * pageSize
	if required <= f.mm.Size() {
		return nil
	}
	newSize := f.mm.Size() * 2
	for newSize < required {
		newSize *= 2
	}
	return errors.Wrap(f.mm.Grow(newSize), "relation: grow")
}

// tupleAt returns a copy of the tuple bytes at rid.
func (f *File) tupleAt(rid RecordId) []byte {
	page := rid.PageNumber - 1
	off := f.slotOffset(rid.SlotNumber)
	raw := f.pageSlice(page)[off : off+f.tupleSize]
	out := make([]byte, f.tupleSize)
	copy(out, raw)
	return out
}

// Scanner is a forward-only iterator over every tuple in a heap file, in
// storage order.
type Scanner struct {
	f        *File
	page     uint32
	slot     int32
	finished bool
}

// NewScanner opens a fresh forward scan over f.
func NewScanner(f *File) *Scanner {
	return &Scanner{f: f}
}

// Next returns the next (RecordId, tuple) pair, or ErrEndOfFile once
// exhausted.
func (s *Scanner) Next() (RecordId, []byte, error) {
	if s.finished {
		return RecordId{}, nil, ErrEndOfFile
	}

	for s.page < s.f.pageCount {
		count := s.f.slotCount(s.page)
		if s.slot < count {
			rid := RecordId{PageNumber: s.page + 1, SlotNumber: s.slot}
			tuple := s.f.tupleAt(rid)
			s.slot++
			return rid, tuple, nil
		}
		s.page++
		s.slot = 0
	}

	s.finished = true
	return RecordId{}, nil, ErrEndOfFile
}
