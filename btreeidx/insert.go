package btreeidx

import (
	"github.com/pkg/errors"
)

// splitResult is the outcome of recursiveInsert at one level of the tree.
// Rather than signal a split through an out-parameter pair, this is an
// explicit sum type so the caller can switch on it instead of checking a
// sentinel page id.
type splitResult struct {
	split        bool
	newPageId    PageId
	separatorKey int32
}

var noSplit = splitResult{}

// InsertEntry adds (key, rid) to the tree, splitting nodes from the leaf
// upward as needed and promoting a new root if the existing root splits.
func (idx *BTreeIndex) InsertEntry(key int32, rid RecordId) error {
	result, err := idx.recursiveInsert(idx.rootPageNum, idx.rootIsLeaf, key, rid)
	if err != nil {
		return err
	}
	if !result.split {
		return nil
	}

	newRootID, newRootBuf, err := idx.bufMgr.AllocPage(idx.file)
	if err != nil {
		return errors.Wrap(err, "btreeidx: allocate new root")
	}
	// A level of 0 marks "my children are leaves"; the promoted root's
	// children are leaves only if the old root itself was a leaf.
	newRootLevel := int32(1)
	if idx.rootIsLeaf {
		newRootLevel = 0
	}
	newRoot := newInternalView(newRootBuf)
	newRoot.init(newRootLevel)
	newRoot.setChild(0, idx.rootPageNum)
	newRoot.insertAt(0, result.separatorKey, result.newPageId)
	if err := idx.bufMgr.UnpinPage(idx.file, newRootID, true); err != nil {
		return errors.Wrap(err, "btreeidx: unpin new root")
	}

	if err := idx.writeRootPointer(newRootID, false); err != nil {
		return err
	}
	idx.rootPageNum = newRootID
	idx.rootIsLeaf = false
	return nil
}

// recursiveInsert descends to the leaf that should hold (key, rid), inserts
// it, splitting nodes bottom-up as capacity demands, and reports whether
// pageID itself split.
func (idx *BTreeIndex) recursiveInsert(pageID PageId, isLeaf bool, key int32, rid RecordId) (splitResult, error) {
	buf, err := idx.bufMgr.ReadPage(idx.file, pageID)
	if err != nil {
		return noSplit, errors.Wrap(err, "btreeidx: read page")
	}

	if isLeaf {
		result, err := idx.insertIntoLeaf(pageID, buf, key, rid)
		if err != nil {
			idx.bufMgr.UnpinPage(idx.file, pageID, false)
			return noSplit, err
		}
		if err := idx.bufMgr.UnpinPage(idx.file, pageID, true); err != nil {
			return noSplit, errors.Wrap(err, "btreeidx: unpin leaf")
		}
		return result, nil
	}

	node := newInternalView(buf)
	childIdx := node.searchSeparatorIndex(key)
	childIsLeaf := node.level() == 0
	childID := node.child(childIdx)

	childResult, err := idx.recursiveInsert(childID, childIsLeaf, key, rid)
	if err != nil {
		idx.bufMgr.UnpinPage(idx.file, pageID, false)
		return noSplit, err
	}
	if !childResult.split {
		if err := idx.bufMgr.UnpinPage(idx.file, pageID, false); err != nil {
			return noSplit, errors.Wrap(err, "btreeidx: unpin internal")
		}
		return noSplit, nil
	}

	result, err := idx.insertIntoInternal(pageID, node, childIdx, childResult)
	if err != nil {
		idx.bufMgr.UnpinPage(idx.file, pageID, false)
		return noSplit, err
	}
	if err := idx.bufMgr.UnpinPage(idx.file, pageID, true); err != nil {
		return noSplit, errors.Wrap(err, "btreeidx: unpin internal")
	}
	return result, nil
}

// insertIntoLeaf inserts (key, rid) into the leaf at pageID, splitting it
// into two leaves linked by rightSibPageNo if it is already full.
func (idx *BTreeIndex) insertIntoLeaf(pageID PageId, buf []byte, key int32, rid RecordId) (splitResult, error) {
	leaf := newLeafView(buf)
	count := leaf.count()
	pos := leaf.search(key)
	// Among duplicate keys, order by RecordId so the scan order over ties
	// is deterministic.
	for pos < count && leaf.key(pos) == key && leaf.rid(pos).Less(rid) {
		pos++
	}

	if count < leafOccupancy {
		leaf.insertAt(pos, key, rid)
		return noSplit, nil
	}

	return idx.splitLeaf(pageID, leaf, pos, key, rid)
}

// splitLeaf splits a full leaf in half, inserting (key, rid) into whichever
// half it belongs in, and links the new right leaf into the sibling chain.
func (idx *BTreeIndex) splitLeaf(pageID PageId, leaf leafView, pos int, key int32, rid RecordId) (splitResult, error) {
	newPageID, newBuf, err := idx.bufMgr.AllocPage(idx.file)
	if err != nil {
		return noSplit, errors.Wrap(err, "btreeidx: allocate split leaf")
	}
	newLeaf := newLeafView(newBuf)
	newLeaf.init()

	// The original leaf keeps its first ceil(L/2) entries, plus the new
	// entry when it sorts among them; the rest move to the new leaf.
	mid := (leafOccupancy + 1) / 2
	if pos < mid {
		mid++
	}

	// Materialize the (leafOccupancy+1)-entry logical sequence explicitly so
	// the split point is correct regardless of which half pos falls in.
	keys := make([]int32, 0, leafOccupancy+1)
	rids := make([]RecordId, 0, leafOccupancy+1)
	inserted := false
	for i := 0; i < leafOccupancy; i++ {
		if i == pos {
			keys = append(keys, key)
			rids = append(rids, rid)
			inserted = true
		}
		keys = append(keys, leaf.key(i))
		rids = append(rids, leaf.rid(i))
	}
	if !inserted {
		keys = append(keys, key)
		rids = append(rids, rid)
	}

	for i := 0; i < leafOccupancy; i++ {
		leaf.clearSlot(i)
	}
	for i := 0; i < mid; i++ {
		leaf.setKey(i, keys[i])
		leaf.setRid(i, rids[i])
	}
	for i := mid; i < len(keys); i++ {
		newLeaf.setKey(i-mid, keys[i])
		newLeaf.setRid(i-mid, rids[i])
	}

	newLeaf.setRightSib(leaf.rightSib())
	leaf.setRightSib(newPageID)

	if err := idx.bufMgr.UnpinPage(idx.file, newPageID, true); err != nil {
		return noSplit, errors.Wrap(err, "btreeidx: unpin split leaf")
	}

	return splitResult{split: true, newPageId: newPageID, separatorKey: newLeaf.key(0)}, nil
}

// insertIntoInternal absorbs a child split into the internal node at
// pageID: inserts the child's separator, splitting pageID itself if it is
// already full.
func (idx *BTreeIndex) insertIntoInternal(pageID PageId, node internalView, childIdx int, childResult splitResult) (splitResult, error) {
	count := node.count()
	if count < nodeOccupancy {
		node.insertAt(childIdx, childResult.separatorKey, childResult.newPageId)
		return noSplit, nil
	}
	return idx.splitInternal(pageID, node, childIdx, childResult)
}

// splitInternal splits a full internal node, promoting the separator
// removed from the middle of the node up to the parent — the separator is
// the key dropped from this node, not the new right node's first key.
func (idx *BTreeIndex) splitInternal(pageID PageId, node internalView, childIdx int, childResult splitResult) (splitResult, error) {
	newPageID, newBuf, err := idx.bufMgr.AllocPage(idx.file)
	if err != nil {
		return noSplit, errors.Wrap(err, "btreeidx: allocate split internal")
	}
	newNode := newInternalView(newBuf)
	newNode.init(node.level())

	keys := make([]int32, 0, nodeOccupancy+1)
	children := make([]PageId, 0, nodeOccupancy+2)
	children = append(children, node.child(0))
	inserted := false
	for i := 0; i < nodeOccupancy; i++ {
		if i == childIdx {
			keys = append(keys, childResult.separatorKey)
			children = append(children, childResult.newPageId)
			inserted = true
		}
		keys = append(keys, node.key(i))
		children = append(children, node.child(i+1))
	}
	if !inserted {
		keys = append(keys, childResult.separatorKey)
		children = append(children, childResult.newPageId)
	}

	// nodeOccupancy is odd, so the pushed-up key is the full node's key at
	// nodeOccupancy/2; the pending separator joins whichever half it sorts
	// into, which shifts that key one place right when it sorts before it.
	mid := nodeOccupancy / 2
	if childIdx <= mid {
		mid++
	}
	promoted := keys[mid]

	for i := 0; i < nodeOccupancy; i++ {
		node.setKey(i, 0)
	}
	for i := 0; i <= nodeOccupancy; i++ {
		node.setChild(i, InvalidPageID)
	}
	node.setChild(0, children[0])
	for i := 0; i < mid; i++ {
		node.setKey(i, keys[i])
		node.setChild(i+1, children[i+1])
	}

	newNode.setChild(0, children[mid+1])
	for i := mid + 1; i < len(keys); i++ {
		newNode.setKey(i-mid-1, keys[i])
		newNode.setChild(i-mid, children[i+1])
	}

	if err := idx.bufMgr.UnpinPage(idx.file, newPageID, true); err != nil {
		return noSplit, errors.Wrap(err, "btreeidx: unpin split internal")
	}

	return splitResult{split: true, newPageId: newPageID, separatorKey: promoted}, nil
}
