package btreeidx

import (
	"github.com/pkg/errors"
)

// DeleteEntry removes the (key, rid) entry from the tree if present. It
// reports whether an entry was found and removed. Unlike InsertEntry, it
// never triggers rebalancing (no borrow or merge) and never frees a page
// even if it becomes empty, so it never disturbs the invariants InsertEntry
// and the scan rely on.
func (idx *BTreeIndex) DeleteEntry(key int32, rid RecordId) (bool, error) {
	pageID := idx.rootPageNum
	isLeaf := idx.rootIsLeaf

	for !isLeaf {
		buf, err := idx.bufMgr.ReadPage(idx.file, pageID)
		if err != nil {
			return false, errors.Wrap(err, "btreeidx: read page")
		}
		node := newInternalView(buf)
		childIdx := node.searchSeparatorIndex(key)
		next := node.child(childIdx)
		childIsLeaf := node.level() == 0
		if err := idx.bufMgr.UnpinPage(idx.file, pageID, false); err != nil {
			return false, errors.Wrap(err, "btreeidx: unpin page")
		}
		pageID = next
		isLeaf = childIsLeaf
	}

	buf, err := idx.bufMgr.ReadPage(idx.file, pageID)
	if err != nil {
		return false, errors.Wrap(err, "btreeidx: read leaf")
	}
	leaf := newLeafView(buf)
	count := leaf.count()
	slot := leaf.search(key)
	for slot < count && leaf.key(slot) == key && leaf.rid(slot) != rid {
		slot++
	}

	found := slot < count && leaf.key(slot) == key && leaf.rid(slot) == rid
	if found {
		leaf.deleteAt(slot)
	}
	if err := idx.bufMgr.UnpinPage(idx.file, pageID, found); err != nil {
		return false, errors.Wrap(err, "btreeidx: unpin leaf")
	}
	return found, nil
}
