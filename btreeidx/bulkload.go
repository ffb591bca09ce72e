package btreeidx

import (
	"github.com/pkg/errors"

	"github.com/oda/bptreeidx/internal/relation"
)

// bulkLoad populates a freshly bootstrapped, empty index by scanning rel
// tuple-by-tuple and inserting each one's indexed attribute. It is the only
// caller of InsertEntry during construction; after Open returns, callers
// may also insert new entries as the relation grows.
func (idx *BTreeIndex) bulkLoad(rel *relation.File) error {
	scanner := relation.NewScanner(rel)
	inserted := 0

	for {
		rid, tuple, err := scanner.Next()
		if errors.Is(err, relation.ErrEndOfFile) {
			break
		}
		if err != nil {
			return errors.Wrap(err, "btreeidx: scan relation")
		}

		key := idx.extractKey(tuple)
		if err := idx.InsertEntry(key, rid); err != nil {
			return errors.Wrap(err, "btreeidx: bulk insert")
		}

		inserted++
		if inserted%10000 == 0 {
			idx.logger.WithField("inserted", inserted).Info("bulk load progress")
		}
	}

	idx.logger.WithField("inserted", inserted).Info("bulk load complete")
	return nil
}
