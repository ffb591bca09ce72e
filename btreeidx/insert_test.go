package btreeidx

import (
	"math/rand"
	"testing"
)

func TestInsertAndScanForwardOrder(t *testing.T) {
	idx, _ := newTestIndex(t)

	n := int32(5000)
	for i := int32(0); i < n; i++ {
		rid := RecordId{PageNumber: uint32(i) + 1, SlotNumber: 0}
		if err := idx.InsertEntry(i, rid); err != nil {
			t.Fatalf("InsertEntry failed at %d: %v", i, err)
		}
	}

	if err := idx.StartScan(0, GTE, n-1, LTE); err != nil {
		t.Fatalf("StartScan failed: %v", err)
	}
	got := collectScan(t, idx)
	idx.EndScan()

	if len(got) != int(n) {
		t.Fatalf("expected %d entries, got %d", n, len(got))
	}
	for i, rid := range got {
		if rid.PageNumber != uint32(i)+1 {
			t.Fatalf("entry %d: expected page %d, got %d", i, i+1, rid.PageNumber)
		}
	}
}

func TestInsertBackwardOrderStillScansSorted(t *testing.T) {
	idx, _ := newTestIndex(t)

	n := int32(5000)
	for i := n - 1; i >= 0; i-- {
		rid := RecordId{PageNumber: uint32(i) + 1, SlotNumber: 0}
		if err := idx.InsertEntry(i, rid); err != nil {
			t.Fatalf("InsertEntry failed at %d: %v", i, err)
		}
	}

	if err := idx.StartScan(0, GTE, n-1, LTE); err != nil {
		t.Fatalf("StartScan failed: %v", err)
	}
	got := collectScan(t, idx)
	idx.EndScan()

	if len(got) != int(n) {
		t.Fatalf("expected %d entries, got %d", n, len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].PageNumber >= got[i].PageNumber {
			t.Fatalf("scan not sorted at index %d: %d >= %d", i, got[i-1].PageNumber, got[i].PageNumber)
		}
	}
}

func TestInsertRandomOrderStillScansSorted(t *testing.T) {
	idx, _ := newTestIndex(t)

	n := 5000
	keys := rand.New(rand.NewSource(1)).Perm(n)
	for _, k := range keys {
		rid := RecordId{PageNumber: uint32(k) + 1, SlotNumber: 0}
		if err := idx.InsertEntry(int32(k), rid); err != nil {
			t.Fatalf("InsertEntry failed for key %d: %v", k, err)
		}
	}

	if err := idx.StartScan(0, GTE, int32(n-1), LTE); err != nil {
		t.Fatalf("StartScan failed: %v", err)
	}
	got := collectScan(t, idx)
	idx.EndScan()

	if len(got) != n {
		t.Fatalf("expected %d entries, got %d", n, len(got))
	}
	for i, rid := range got {
		if rid.PageNumber != uint32(i)+1 {
			t.Fatalf("entry %d: expected page %d, got %d", i, i+1, rid.PageNumber)
		}
	}
}

func TestInsertDuplicateKeysOrderedByRecordId(t *testing.T) {
	idx, _ := newTestIndex(t)

	key := int32(100)
	rids := []RecordId{
		{PageNumber: 3, SlotNumber: 0},
		{PageNumber: 1, SlotNumber: 2},
		{PageNumber: 1, SlotNumber: 0},
		{PageNumber: 2, SlotNumber: 0},
	}
	for _, rid := range rids {
		if err := idx.InsertEntry(key, rid); err != nil {
			t.Fatalf("InsertEntry failed: %v", err)
		}
	}

	if err := idx.StartScan(key, GTE, key, LTE); err != nil {
		t.Fatalf("StartScan failed: %v", err)
	}
	got := collectScan(t, idx)
	idx.EndScan()

	want := []RecordId{
		{PageNumber: 1, SlotNumber: 0},
		{PageNumber: 1, SlotNumber: 2},
		{PageNumber: 2, SlotNumber: 0},
		{PageNumber: 3, SlotNumber: 0},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestInsertCausesRootPromotion(t *testing.T) {
	idx, _ := newTestIndex(t)

	if !idx.rootIsLeaf {
		t.Fatal("expected a fresh index to start with a leaf root")
	}

	n := leafOccupancy*2 + 10
	for i := 0; i < n; i++ {
		rid := RecordId{PageNumber: uint32(i) + 1, SlotNumber: 0}
		if err := idx.InsertEntry(int32(i), rid); err != nil {
			t.Fatalf("InsertEntry failed at %d: %v", i, err)
		}
	}

	if idx.rootIsLeaf {
		t.Error("expected root to have been promoted to an internal node")
	}
}
