package btreeidx

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/oda/bptreeidx/internal/bufmgr"
	"github.com/oda/bptreeidx/internal/relation"
)

const testTupleSize = 20

func testTuple(key int32) []byte {
	buf := make([]byte, testTupleSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(key))
	return buf
}

// newTestIndex opens a fresh, empty index backed by a scratch relation file
// and buffer manager rooted under t.TempDir().
func newTestIndex(t *testing.T) (*BTreeIndex, *bufmgr.Manager) {
	t.Helper()

	dir := t.TempDir()
	relPath := filepath.Join(dir, "rel.tbl")
	rel, err := relation.Create(relPath, testTupleSize)
	if err != nil {
		t.Fatalf("relation.Create failed: %v", err)
	}
	rel.Close()

	bufMgr := bufmgr.NewManager()
	idx, err := Open(relPath, filepath.Join(dir, "widgets.idx"), bufMgr, 0, INTEGER)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	return idx, bufMgr
}

// buildRelation creates a relation file at dir/name.tbl populated with one
// tuple per key in keys (in the given order) and returns its path.
func buildRelation(t *testing.T, dir, name string, keys []int32) string {
	t.Helper()

	path := filepath.Join(dir, name)
	rel, err := relation.Create(path, testTupleSize)
	if err != nil {
		t.Fatalf("relation.Create failed: %v", err)
	}
	defer rel.Close()

	for _, k := range keys {
		if _, err := rel.Insert(testTuple(k)); err != nil {
			t.Fatalf("relation Insert failed for key %d: %v", k, err)
		}
	}
	return path
}

// collectScan drains a started scan into a slice of RecordIds.
func collectScan(t *testing.T, idx *BTreeIndex) []RecordId {
	t.Helper()

	var got []RecordId
	for {
		rid, err := idx.ScanNext()
		if err == ErrIndexScanCompleted {
			break
		}
		if err != nil {
			t.Fatalf("ScanNext failed: %v", err)
		}
		got = append(got, rid)
	}
	return got
}
