package btreeidx

import (
	"github.com/pkg/errors"
)

// scanState tracks an in-progress range scan's cursor position. curBuf is
// the already-pinned buffer for curPageId; the pin is held across ScanNext
// calls and released on the next page transition or in EndScan.
type scanState struct {
	lowVal  int32
	lowOp   Operator
	highVal int32
	highOp  Operator

	curPageId PageId
	curBuf    []byte
	curSlot   int
}

// StartScan begins a range scan bounded by (lowVal lowOp) on the left and
// (highVal highOp) on the right. lowOp must be GT or GTE; highOp must be LT
// or LTE. Any previous scan is ended first.
func (idx *BTreeIndex) StartScan(lowVal int32, lowOp Operator, highVal int32, highOp Operator) error {
	if (lowOp != GT && lowOp != GTE) || (highOp != LT && highOp != LTE) {
		return ErrBadOpcodes
	}
	if lowVal > highVal {
		return ErrBadScanrange
	}
	if idx.scan != nil {
		if err := idx.EndScan(); err != nil {
			return err
		}
	}

	pageID, buf, slot, err := idx.findFirstMatch(lowVal, lowOp)
	if err != nil {
		return err
	}

	idx.scan = &scanState{
		lowVal: lowVal, lowOp: lowOp,
		highVal: highVal, highOp: highOp,
		curPageId: pageID, curBuf: buf, curSlot: slot,
	}
	return nil
}

// findFirstMatch descends from the root to the leaf page and slot holding
// the first entry satisfying lowVal/lowOp, returning ErrNoSuchKeyFound if
// none exists. The matching leaf is left pinned for the caller to hold as
// the scan's cursor.
func (idx *BTreeIndex) findFirstMatch(lowVal int32, lowOp Operator) (PageId, []byte, int, error) {
	pageID := idx.rootPageNum
	isLeaf := idx.rootIsLeaf

	for !isLeaf {
		buf, err := idx.bufMgr.ReadPage(idx.file, pageID)
		if err != nil {
			return InvalidPageID, nil, 0, errors.Wrap(err, "btreeidx: read page")
		}
		node := newInternalView(buf)
		childIdx := node.searchSeparatorIndex(lowVal)
		// For GT, an exact separator match still descends right via
		// searchSeparatorIndex's strict-greater semantics, so no special
		// case is needed here versus GTE.
		next := node.child(childIdx)
		childIsLeaf := node.level() == 0
		if err := idx.bufMgr.UnpinPage(idx.file, pageID, false); err != nil {
			return InvalidPageID, nil, 0, errors.Wrap(err, "btreeidx: unpin page")
		}
		pageID = next
		isLeaf = childIsLeaf
	}

	for pageID != InvalidPageID {
		buf, err := idx.bufMgr.ReadPage(idx.file, pageID)
		if err != nil {
			return InvalidPageID, nil, 0, errors.Wrap(err, "btreeidx: read leaf")
		}
		leaf := newLeafView(buf)
		count := leaf.count()
		slot := leaf.search(lowVal)
		for slot < count {
			k := leaf.key(slot)
			if lowOp == GTE && k >= lowVal {
				break
			}
			if lowOp == GT && k > lowVal {
				break
			}
			slot++
		}
		if slot < count {
			return pageID, buf, slot, nil
		}
		next := leaf.rightSib()
		if err := idx.bufMgr.UnpinPage(idx.file, pageID, false); err != nil {
			return InvalidPageID, nil, 0, errors.Wrap(err, "btreeidx: unpin leaf")
		}
		pageID = next
	}

	return InvalidPageID, nil, 0, ErrNoSuchKeyFound
}

// ScanNext returns the RecordId of the next matching entry, walking the
// leaf sibling chain as needed, or ErrIndexScanCompleted once the high
// bound no longer holds. The cursor's leaf stays pinned between calls;
// completion (either exhausting the sibling chain or failing the high
// bound) releases it and clears the scan back to idle.
func (idx *BTreeIndex) ScanNext() (RecordId, error) {
	if idx.scan == nil {
		return RecordId{}, ErrScanNotInitialized
	}
	s := idx.scan
	leaf := newLeafView(s.curBuf)
	count := leaf.count()

	if s.curSlot >= count {
		next := leaf.rightSib()
		if err := idx.bufMgr.UnpinPage(idx.file, s.curPageId, false); err != nil {
			return RecordId{}, errors.Wrap(err, "btreeidx: unpin leaf")
		}
		if next == InvalidPageID {
			idx.scan = nil
			return RecordId{}, ErrIndexScanCompleted
		}
		buf, err := idx.bufMgr.ReadPage(idx.file, next)
		if err != nil {
			return RecordId{}, errors.Wrap(err, "btreeidx: read leaf")
		}
		s.curPageId = next
		s.curBuf = buf
		s.curSlot = 0
		return idx.ScanNext()
	}

	key := leaf.key(s.curSlot)
	if !highBoundHolds(key, s.highVal, s.highOp) {
		if err := idx.bufMgr.UnpinPage(idx.file, s.curPageId, false); err != nil {
			return RecordId{}, errors.Wrap(err, "btreeidx: unpin leaf")
		}
		idx.scan = nil
		return RecordId{}, ErrIndexScanCompleted
	}

	rid := leaf.rid(s.curSlot)
	s.curSlot++
	return rid, nil
}

func highBoundHolds(key, highVal int32, highOp Operator) bool {
	if highOp == LTE {
		return key <= highVal
	}
	return key < highVal
}

// EndScan terminates the current scan, releasing its pinned cursor leaf.
// Both ScanNext and EndScan require an active scan.
func (idx *BTreeIndex) EndScan() error {
	if idx.scan == nil {
		return ErrScanNotInitialized
	}
	s := idx.scan
	idx.scan = nil
	return errors.Wrap(idx.bufMgr.UnpinPage(idx.file, s.curPageId, false), "btreeidx: unpin leaf")
}
