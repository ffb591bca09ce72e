package btreeidx

import "testing"

func TestDeleteEntryRemovesMatch(t *testing.T) {
	idx, _ := newTestIndex(t)
	populate(t, idx, 0, 99)

	rid := RecordId{PageNumber: 51, SlotNumber: 0}
	found, err := idx.DeleteEntry(50, rid)
	if err != nil {
		t.Fatalf("DeleteEntry failed: %v", err)
	}
	if !found {
		t.Fatal("expected DeleteEntry to report found=true")
	}

	// Key 51 still satisfies the low bound, so StartScan succeeds; the high
	// bound then ends the scan before any entry is returned.
	if err := idx.StartScan(50, GTE, 50, LTE); err != nil {
		t.Fatalf("StartScan failed: %v", err)
	}
	if _, err := idx.ScanNext(); err != ErrIndexScanCompleted {
		t.Errorf("expected ErrIndexScanCompleted after delete, got %v", err)
	}
}

func TestDeleteEntryMissingReturnsFalse(t *testing.T) {
	idx, _ := newTestIndex(t)
	populate(t, idx, 0, 9)

	found, err := idx.DeleteEntry(5, RecordId{PageNumber: 999, SlotNumber: 0})
	if err != nil {
		t.Fatalf("DeleteEntry failed: %v", err)
	}
	if found {
		t.Error("expected DeleteEntry to report found=false for a non-matching RecordId")
	}

	found, err = idx.DeleteEntry(500, RecordId{PageNumber: 1, SlotNumber: 0})
	if err != nil {
		t.Fatalf("DeleteEntry failed: %v", err)
	}
	if found {
		t.Error("expected DeleteEntry to report found=false for a non-existent key")
	}
}

func TestDeleteAllEvenKeysLeavesOddOnly(t *testing.T) {
	idx, _ := newTestIndex(t)

	n := int32(1000)
	populate(t, idx, 0, n-1)

	for k := int32(0); k < n; k += 2 {
		rid := RecordId{PageNumber: uint32(k) + 1, SlotNumber: 0}
		found, err := idx.DeleteEntry(k, rid)
		if err != nil {
			t.Fatalf("DeleteEntry failed for key %d: %v", k, err)
		}
		if !found {
			t.Fatalf("expected to find and delete key %d", k)
		}
	}

	if err := idx.StartScan(0, GTE, n-1, LTE); err != nil {
		t.Fatalf("StartScan failed: %v", err)
	}
	got := collectScan(t, idx)
	idx.EndScan()

	if len(got) != int(n)/2 {
		t.Fatalf("expected %d odd keys remaining, got %d", n/2, len(got))
	}
	for i, rid := range got {
		wantKey := int32(2*i + 1)
		if int32(rid.PageNumber-1) != wantKey {
			t.Errorf("entry %d: expected key %d, got %d", i, wantKey, rid.PageNumber-1)
		}
	}
}

func TestDeleteDoesNotDisturbOtherDuplicates(t *testing.T) {
	idx, _ := newTestIndex(t)

	key := int32(7)
	ridA := RecordId{PageNumber: 1, SlotNumber: 0}
	ridB := RecordId{PageNumber: 2, SlotNumber: 0}
	idx.InsertEntry(key, ridA)
	idx.InsertEntry(key, ridB)

	found, err := idx.DeleteEntry(key, ridA)
	if err != nil || !found {
		t.Fatalf("DeleteEntry(ridA) failed: found=%v err=%v", found, err)
	}

	if err := idx.StartScan(key, GTE, key, LTE); err != nil {
		t.Fatalf("StartScan failed: %v", err)
	}
	got := collectScan(t, idx)
	idx.EndScan()

	if len(got) != 1 || got[0] != ridB {
		t.Errorf("expected only ridB to remain, got %+v", got)
	}
}
