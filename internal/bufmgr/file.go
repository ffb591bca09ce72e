package bufmgr

import (
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"

	"github.com/oda/bptreeidx/internal/mmap"
)

// initialFileSize is the initial size of a managed file (1MiB).
const initialFileSize = 1024 * 1024

// File is a growable, page-addressable blob file. FirstPageNo() always
// reports the page reserved for the caller's own meta page.
//
// File only knows about raw page storage (growth, free list, header
// persistence); pinning and the in-memory frame cache live in Manager.
type File struct {
	mu           sync.Mutex
	mm           *mmap.MMap
	hdr          fileHeader
	path         string
	growthFactor int64
}

// openFile opens or creates path and loads/initializes its header.
func openFile(path string, growthFactor int64) (*File, error) {
	mm, err := mmap.Open(path, initialFileSize)
	if err != nil {
		return nil, errors.Wrap(err, "bufmgr: open mmap")
	}

	f := &File{mm: mm, path: path, growthFactor: growthFactor}
	hdrBuf := mm.Slice(0, fileHeaderSize)
	if hdrBuf == nil {
		mm.Close()
		return nil, errors.New("bufmgr: file too small to hold header")
	}
	f.hdr.deserialize(hdrBuf)

	switch {
	case f.hdr.magic == 0:
		// Freshly created file.
		// pageCount is the next id nextPageID will hand out; firstPageNo
		// itself is reserved for the caller's meta page, so start one past it.
		f.hdr = fileHeader{magic: fileMagic, version: fileVersion, pageCount: uint32(firstPageNo) + 1}
		f.writeHeader()
	case f.hdr.magic != fileMagic:
		mm.Close()
		return nil, errors.New("bufmgr: bad magic number")
	case f.hdr.version != fileVersion:
		mm.Close()
		return nil, errors.Errorf("bufmgr: unsupported file version %d", f.hdr.version)
	}

	return f, nil
}

func (f *File) writeHeader() {
	f.hdr.serialize(f.mm.Slice(0, fileHeaderSize))
}

// FirstPageNo returns the page id reserved for this file's meta page. Stable
// for the life of the file.
func (f *File) FirstPageNo() PageId {
	return firstPageNo
}

// Path returns the path this file was opened from, for diagnostics/logging.
func (f *File) Path() string {
	return f.path
}

// nextPageID either pops the free list or grows the page count, returning a
// fresh page id. It does not touch frame state; Manager.AllocPage zeroes the
// page's in-memory frame separately.
func (f *File) nextPageID() (PageId, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.hdr.freeList != InvalidPageID {
		id := f.hdr.freeList
		next := binary.LittleEndian.Uint32(f.rawSlice(id)[0:4])
		f.hdr.freeList = PageId(next)
		f.writeHeader()
		return id, nil
	}

	id := PageId(f.hdr.pageCount)
	required := int64(id+1) * PageSize
	if required > f.mm.Size() {
		newSize := f.mm.Size() * f.growthFactor
		for newSize < required {
			newSize *= f.growthFactor
		}
		if err := f.mm.Grow(newSize); err != nil {
			return InvalidPageID, errors.Wrap(err, "bufmgr: grow file")
		}
	}
	f.hdr.pageCount++
	f.writeHeader()
	return id, nil
}

// freePageID pushes id onto the free list. The caller is responsible for
// ensuring no frame still references id.
func (f *File) freePageID(id PageId) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw := f.rawSlice(id)
	for i := range raw {
		raw[i] = 0
	}
	binary.LittleEndian.PutUint32(raw[0:4], uint32(f.hdr.freeList))
	f.hdr.freeList = id
	f.writeHeader()
}

// rawSlice returns the live mmap slice backing page id. Only Manager should
// read/write through this directly. Grow remaps the whole file, so a
// returned slice is valid only until the file next grows.
func (f *File) rawSlice(id PageId) []byte {
	return f.mm.Slice(int64(id)*PageSize, PageSize)
}

func (f *File) sync() error {
	return errors.Wrap(f.mm.Sync(), "bufmgr: sync")
}

func (f *File) close() error {
	return errors.Wrap(f.mm.Close(), "bufmgr: close")
}
