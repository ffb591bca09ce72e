package btreeidx

import (
	"encoding/binary"

	"github.com/oda/bptreeidx/internal/bufmgr"
)

// pageSize is bufmgr.PageSize, restated locally so the occupancy formulas
// below read cleanly.
const pageSize = bufmgr.PageSize

const (
	pageIdSize   = 4 // PageId, little-endian uint32
	int32Size    = 4
	recordIdSize = 4 + 4 // PageNumber uint32 + SlotNumber int32
)

// leafOccupancy (L) and nodeOccupancy (N) are the fixed fan-outs derived
// from the page size. For a 4096-byte page they land on 341 and 511
// respectively, each packing the page with zero slack.
const (
	leafOccupancy = (pageSize - pageIdSize) / (int32Size + recordIdSize)
	nodeOccupancy = (pageSize - int32Size - pageIdSize) / (int32Size + pageIdSize)
)

// ---- meta page ----

const relationNameSize = 256

// indexMeta is the content of the file's first page (FirstPageNo()).
type indexMeta struct {
	relationName   [relationNameSize]byte
	attrByteOffset int32
	attrType       Datatype
	rootPageNo     PageId
	rootIsLeaf     bool
}

const (
	metaOffRelationName   = 0
	metaOffAttrByteOffset = metaOffRelationName + relationNameSize
	metaOffAttrType       = metaOffAttrByteOffset + 4
	metaOffRootPageNo     = metaOffAttrType + 4
	metaOffRootIsLeaf     = metaOffRootPageNo + 4
)

func decodeMeta(buf []byte) indexMeta {
	var m indexMeta
	copy(m.relationName[:], buf[metaOffRelationName:metaOffRelationName+relationNameSize])
	m.attrByteOffset = int32(binary.LittleEndian.Uint32(buf[metaOffAttrByteOffset:]))
	m.attrType = Datatype(binary.LittleEndian.Uint32(buf[metaOffAttrType:]))
	m.rootPageNo = PageId(binary.LittleEndian.Uint32(buf[metaOffRootPageNo:]))
	m.rootIsLeaf = buf[metaOffRootIsLeaf] != 0
	return m
}

func encodeMeta(buf []byte, m indexMeta) {
	copy(buf[metaOffRelationName:metaOffRelationName+relationNameSize], m.relationName[:])
	binary.LittleEndian.PutUint32(buf[metaOffAttrByteOffset:], uint32(m.attrByteOffset))
	binary.LittleEndian.PutUint32(buf[metaOffAttrType:], uint32(m.attrType))
	binary.LittleEndian.PutUint32(buf[metaOffRootPageNo:], uint32(m.rootPageNo))
	if m.rootIsLeaf {
		buf[metaOffRootIsLeaf] = 1
	} else {
		buf[metaOffRootIsLeaf] = 0
	}
}

// ---- leaf node ----
//
// Layout (exactly fills a page):
//   keyArray[leafOccupancy]   int32,    offset 0
//   ridArray[leafOccupancy]   RecordId, offset leafOccupancy*4
//   rightSibPageNo            PageId,   offset leafOccupancy*12

type leafView struct {
	buf []byte
}

func newLeafView(buf []byte) leafView {
	return leafView{buf: buf}
}

func leafKeyOffset(i int) int { return i * int32Size }
func leafRidOffset(i int) int { return leafOccupancy*int32Size + i*recordIdSize }
func leafSibOffset() int      { return leafOccupancy*int32Size + leafOccupancy*recordIdSize }

func (l leafView) key(i int) int32 {
	return int32(binary.LittleEndian.Uint32(l.buf[leafKeyOffset(i):]))
}

func (l leafView) setKey(i int, key int32) {
	binary.LittleEndian.PutUint32(l.buf[leafKeyOffset(i):], uint32(key))
}

func (l leafView) rid(i int) RecordId {
	off := leafRidOffset(i)
	return RecordId{
		PageNumber: binary.LittleEndian.Uint32(l.buf[off:]),
		SlotNumber: int32(binary.LittleEndian.Uint32(l.buf[off+4:])),
	}
}

func (l leafView) setRid(i int, rid RecordId) {
	off := leafRidOffset(i)
	binary.LittleEndian.PutUint32(l.buf[off:], rid.PageNumber)
	binary.LittleEndian.PutUint32(l.buf[off+4:], uint32(rid.SlotNumber))
}

func (l leafView) clearSlot(i int) {
	l.setKey(i, 0)
	l.setRid(i, RecordId{})
}

func (l leafView) occupied(i int) bool {
	return l.rid(i).PageNumber != 0
}

// count returns the number of occupied (packed-at-front) slots.
func (l leafView) count() int {
	lo, hi := 0, leafOccupancy
	for lo < hi {
		mid := (lo + hi) / 2
		if l.occupied(mid) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func (l leafView) rightSib() PageId {
	return PageId(binary.LittleEndian.Uint32(l.buf[leafSibOffset():]))
}

func (l leafView) setRightSib(id PageId) {
	binary.LittleEndian.PutUint32(l.buf[leafSibOffset():], uint32(id))
}

func (l leafView) init() {
	for i := range l.buf {
		l.buf[i] = 0
	}
}

// insertAt shifts slots [idx, count) one to the right and writes (key, rid)
// at idx. Caller must ensure count() < leafOccupancy.
func (l leafView) insertAt(idx int, key int32, rid RecordId) {
	for i := l.count(); i > idx; i-- {
		l.setKey(i, l.key(i-1))
		l.setRid(i, l.rid(i-1))
	}
	l.setKey(idx, key)
	l.setRid(idx, rid)
}

// search returns the smallest index whose key is >= key (a leaf-local
// lower bound), which is also the correct insertion point.
func (l leafView) search(key int32) int {
	count := l.count()
	lo, hi := 0, count
	for lo < hi {
		mid := (lo + hi) / 2
		if l.key(mid) < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// deleteAt removes the slot at idx, shifting the suffix left.
func (l leafView) deleteAt(idx int) {
	count := l.count()
	for i := idx; i < count-1; i++ {
		l.setKey(i, l.key(i+1))
		l.setRid(i, l.rid(i+1))
	}
	l.clearSlot(count - 1)
}

// ---- internal node ----
//
// Layout (exactly fills a page):
//   level                         int32,               offset 0
//   keyArray[nodeOccupancy]       int32,               offset 4
//   pageNoArray[nodeOccupancy+1]  PageId,               offset 4+nodeOccupancy*4

type internalView struct {
	buf []byte
}

func newInternalView(buf []byte) internalView {
	return internalView{buf: buf}
}

func internalKeyOffset(i int) int   { return int32Size + i*int32Size }
func internalChildOffset(i int) int { return int32Size + nodeOccupancy*int32Size + i*pageIdSize }

func (n internalView) level() int32 {
	return int32(binary.LittleEndian.Uint32(n.buf[0:]))
}

func (n internalView) setLevel(lvl int32) {
	binary.LittleEndian.PutUint32(n.buf[0:], uint32(lvl))
}

func (n internalView) key(i int) int32 {
	return int32(binary.LittleEndian.Uint32(n.buf[internalKeyOffset(i):]))
}

func (n internalView) setKey(i int, key int32) {
	binary.LittleEndian.PutUint32(n.buf[internalKeyOffset(i):], uint32(key))
}

func (n internalView) child(i int) PageId {
	return PageId(binary.LittleEndian.Uint32(n.buf[internalChildOffset(i):]))
}

func (n internalView) setChild(i int, id PageId) {
	binary.LittleEndian.PutUint32(n.buf[internalChildOffset(i):], uint32(id))
}

func (n internalView) clearSlot(i int) {
	n.setKey(i, 0)
	n.setChild(i+1, InvalidPageID)
}

func (n internalView) occupied(i int) bool {
	return n.child(i+1) != InvalidPageID
}

// count returns the number of occupied separator keys.
func (n internalView) count() int {
	lo, hi := 0, nodeOccupancy
	for lo < hi {
		mid := (lo + hi) / 2
		if n.occupied(mid) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func (n internalView) init(level int32) {
	for i := range n.buf {
		n.buf[i] = 0
	}
	n.setLevel(level)
}

// insertAt shifts keys/right-children [idx, count) one to the right and
// inserts (key, rightChild) at idx. Caller must ensure count() < nodeOccupancy.
func (n internalView) insertAt(idx int, key int32, rightChild PageId) {
	count := n.count()
	for i := count; i > idx; i-- {
		n.setKey(i, n.key(i-1))
		n.setChild(i+1, n.child(i))
	}
	n.setKey(idx, key)
	n.setChild(idx+1, rightChild)
}

// searchSeparatorIndex returns the index j of the smallest occupied
// separator key strictly greater than key, or count() if none (matching the
// descent rule used by StartScan and InsertEntry, which treats an empty
// slot the same as "greater").
func (n internalView) searchSeparatorIndex(key int32) int {
	count := n.count()
	lo, hi := 0, count
	for lo < hi {
		mid := (lo + hi) / 2
		if n.key(mid) <= key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
