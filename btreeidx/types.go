// Package btreeidx implements a disk-resident B+ tree index over a single
// int32 attribute of fixed-width tuples in a heap file (internal/relation),
// built and read back page-at-a-time through a shared buffer manager
// (internal/bufmgr).
//
// Construction either reopens a previously built index file (validating its
// meta page against the caller's arguments) or creates one and bulk-loads it
// from a relation scan. Once open, InsertEntry descends and splits as
// needed, and StartScan/ScanNext/EndScan perform the two-phase range scan:
// locate the first qualifying leaf entry, then walk the leaf sibling chain
// while the high bound holds.
package btreeidx

import (
	"github.com/oda/bptreeidx/internal/bufmgr"
	"github.com/oda/bptreeidx/internal/relation"
)

// PageId identifies a page within the index file. InvalidPageID (the zero
// value) means "no page".
type PageId = bufmgr.PageId

// InvalidPageID is the reserved PageId meaning "no page".
const InvalidPageID = bufmgr.InvalidPageID

// RecordId identifies a tuple's location in the base relation's heap file.
type RecordId = relation.RecordId

// Datatype is the type of the attribute the index is built over. Only
// INTEGER is implemented; DOUBLE and STRING are reserved layout values, and
// Open rejects them with an error before touching the index file's meta
// page.
type Datatype int32

const (
	INTEGER Datatype = iota
	DOUBLE
	STRING
)

func (d Datatype) String() string {
	switch d {
	case INTEGER:
		return "INTEGER"
	case DOUBLE:
		return "DOUBLE"
	case STRING:
		return "STRING"
	default:
		return "UNKNOWN"
	}
}

// Operator is a scan-bound comparison operator.
type Operator int

const (
	LT Operator = iota
	LTE
	GTE
	GT
)
