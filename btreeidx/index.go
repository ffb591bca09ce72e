package btreeidx

import (
	"encoding/binary"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/oda/bptreeidx/internal/bufmgr"
	"github.com/oda/bptreeidx/internal/relation"
)

// BTreeIndex is a disk-resident B+ tree over a single int32 attribute of a
// relation's fixed-width tuples.
type BTreeIndex struct {
	bufMgr *bufmgr.Manager
	file   *bufmgr.File

	attrByteOffset int32
	attrType       Datatype

	rootPageNum PageId
	rootIsLeaf  bool

	leafOccupancy int
	nodeOccupancy int

	logger *logrus.Entry

	scan *scanState
}

// Option configures a BTreeIndex constructed by Open.
type Option func(*BTreeIndex)

// WithLogger overrides the logrus entry the index logs through. The default
// is a silent entry whose output is discarded.
func WithLogger(entry *logrus.Entry) Option {
	return func(idx *BTreeIndex) {
		idx.logger = entry
	}
}

// Open creates or reopens an index file named outIndexName over the int32
// attribute at attrByteOffset of relationName's tuples. If outIndexName
// already exists, its meta page is validated against the arguments supplied
// here (ErrBadIndexInfo on mismatch) and the existing tree is reused;
// otherwise a new index file is created and bulk-loaded from a fresh scan
// of relationName, which Open opens and closes itself.
func Open(
	relationName, outIndexName string,
	bufMgr *bufmgr.Manager,
	attrByteOffset int32,
	attrType Datatype,
	opts ...Option,
) (*BTreeIndex, error) {
	if attrType != INTEGER {
		return nil, errors.Errorf("btreeidx: attribute type %s not supported", attrType)
	}

	file, err := bufMgr.OpenFile(outIndexName)
	if err != nil {
		return nil, errors.Wrap(err, "btreeidx: open index file")
	}

	silent := logrus.New()
	silent.SetOutput(io.Discard)
	idx := &BTreeIndex{
		bufMgr:         bufMgr,
		file:           file,
		attrByteOffset: attrByteOffset,
		attrType:       attrType,
		leafOccupancy:  leafOccupancy,
		nodeOccupancy:  nodeOccupancy,
		logger:         logrus.NewEntry(silent),
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = idx.logger.WithFields(logrus.Fields{
		"component": "btreeidx",
		"index":     outIndexName,
	})

	metaBuf, err := bufMgr.ReadPage(file, file.FirstPageNo())
	if err != nil {
		return nil, errors.Wrap(err, "btreeidx: read meta page")
	}
	meta := decodeMeta(metaBuf)
	fresh := meta.rootPageNo == InvalidPageID

	if fresh {
		idx.logger.Info("building new index")
		if err := idx.bootstrap(relationName, metaBuf, meta); err != nil {
			bufMgr.UnpinPage(file, file.FirstPageNo(), false)
			return nil, err
		}
		rel, err := relation.Open(relationName)
		if err != nil {
			bufMgr.UnpinPage(file, file.FirstPageNo(), false)
			return nil, errors.Wrap(err, "btreeidx: open relation for bulk load")
		}
		err = idx.bulkLoad(rel)
		rel.Close()
		if err != nil {
			bufMgr.UnpinPage(file, file.FirstPageNo(), false)
			return nil, err
		}
	} else {
		storedName := relationNameString(meta.relationName)
		if storedName != relationName || meta.attrByteOffset != attrByteOffset || meta.attrType != attrType {
			bufMgr.UnpinPage(file, file.FirstPageNo(), false)
			return nil, ErrBadIndexInfo
		}
		idx.rootPageNum = meta.rootPageNo
		idx.rootIsLeaf = meta.rootIsLeaf
		idx.logger.Info("reopened existing index")
	}

	if err := bufMgr.UnpinPage(file, file.FirstPageNo(), fresh); err != nil {
		return nil, errors.Wrap(err, "btreeidx: unpin meta page")
	}

	return idx, nil
}

// bootstrap initializes a brand-new index's meta page and empty root leaf.
// metaBuf is the already-pinned meta page buffer; the caller unpins it.
func (idx *BTreeIndex) bootstrap(relationName string, metaBuf []byte, meta indexMeta) error {
	rootID, rootBuf, err := idx.bufMgr.AllocPage(idx.file)
	if err != nil {
		return errors.Wrap(err, "btreeidx: allocate root page")
	}
	newLeafView(rootBuf).init()
	if err := idx.bufMgr.UnpinPage(idx.file, rootID, true); err != nil {
		return errors.Wrap(err, "btreeidx: unpin root page")
	}

	meta.attrByteOffset = idx.attrByteOffset
	meta.attrType = idx.attrType
	meta.rootPageNo = rootID
	meta.rootIsLeaf = true
	copy(meta.relationName[:], relationName)
	encodeMeta(metaBuf, meta)

	idx.rootPageNum = rootID
	idx.rootIsLeaf = true
	return nil
}

func relationNameString(raw [relationNameSize]byte) string {
	return strings.TrimRight(string(raw[:]), "\x00")
}

// writeRootPointer persists a new root page id / leaf flag to the meta
// page, used on root promotion.
func (idx *BTreeIndex) writeRootPointer(rootID PageId, isLeaf bool) error {
	metaBuf, err := idx.bufMgr.ReadPage(idx.file, idx.file.FirstPageNo())
	if err != nil {
		return errors.Wrap(err, "btreeidx: read meta page")
	}
	meta := decodeMeta(metaBuf)
	meta.rootPageNo = rootID
	meta.rootIsLeaf = isLeaf
	encodeMeta(metaBuf, meta)
	return idx.bufMgr.UnpinPage(idx.file, idx.file.FirstPageNo(), true)
}

// Close ends any active scan and flushes the index file.
func (idx *BTreeIndex) Close() error {
	if idx.scan != nil {
		if err := idx.EndScan(); err != nil {
			return err
		}
	}
	if err := idx.bufMgr.FlushFile(idx.file); err != nil {
		return errors.Wrap(err, "btreeidx: flush")
	}
	return idx.bufMgr.CloseFile(idx.file)
}

// extractKey reads the int32 attribute at idx.attrByteOffset out of tuple.
func (idx *BTreeIndex) extractKey(tuple []byte) int32 {
	off := int(idx.attrByteOffset)
	return int32(binary.LittleEndian.Uint32(tuple[off : off+4]))
}
