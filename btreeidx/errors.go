package btreeidx

import "github.com/pkg/errors"

// Sentinel errors raised at the index API boundary. Compare with
// errors.Is.
var (
	// ErrBadIndexInfo is returned by Open when a reopened index file's meta
	// page does not match the relation name / attribute offset / attribute
	// type the caller supplied.
	ErrBadIndexInfo = errors.New("btreeidx: index meta does not match constructor arguments")

	// ErrBadOpcodes is returned by StartScan when lowOp is not GT/GTE or
	// highOp is not LT/LTE.
	ErrBadOpcodes = errors.New("btreeidx: lowOp must be GT/GTE and highOp must be LT/LTE")

	// ErrBadScanrange is returned by StartScan when lowVal > highVal.
	ErrBadScanrange = errors.New("btreeidx: lowVal is greater than highVal")

	// ErrNoSuchKeyFound is returned by StartScan when no entry in the tree
	// satisfies the low bound. A scan whose first such entry already fails
	// the high bound still starts; its first ScanNext returns
	// ErrIndexScanCompleted.
	ErrNoSuchKeyFound = errors.New("btreeidx: no entry satisfies the scan range")

	// ErrScanNotInitialized is returned by ScanNext and EndScan when no scan
	// is currently active.
	ErrScanNotInitialized = errors.New("btreeidx: no scan is currently active")

	// ErrIndexScanCompleted is returned by ScanNext once the scan has
	// exhausted its range.
	ErrIndexScanCompleted = errors.New("btreeidx: scan has no more matching entries")
)
