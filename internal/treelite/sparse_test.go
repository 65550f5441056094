package treelite

import (
	"math"
	"testing"
)

var nan = float32(math.NaN())

func TestBuildSparseOmitsMissing(t *testing.T) {
	// 3x4 batch with 3 missing entries.
	data := []float32{
		1, nan, 3, 4,
		nan, nan, 7, 8,
		9, 10, 11, 12,
	}
	s := buildSparse(data, 3, 4)
	if err := s.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(s.values) != 3*4-3 {
		t.Fatalf("stored %d values, want %d", len(s.values), 3*4-3)
	}
	if len(s.rowOffsets) != 4 {
		t.Fatalf("row offsets %v, want length 4", s.rowOffsets)
	}
	for i := 1; i < len(s.rowOffsets); i++ {
		if s.rowOffsets[i] < s.rowOffsets[i-1] {
			t.Fatalf("row offsets not non-decreasing: %v", s.rowOffsets)
		}
	}
	// Per-row column indices strictly ascending.
	for r := 0; r < 3; r++ {
		row := s.colIndices[s.rowOffsets[r]:s.rowOffsets[r+1]]
		for i := 1; i < len(row); i++ {
			if row[i] <= row[i-1] {
				t.Fatalf("row %d columns not ascending: %v", r, row)
			}
		}
	}
	wantVals := []float32{1, 3, 4, 7, 8, 9, 10, 11, 12}
	wantCols := []uint32{0, 2, 3, 2, 3, 0, 1, 2, 3}
	for i := range wantVals {
		if s.values[i] != wantVals[i] || s.colIndices[i] != wantCols[i] {
			t.Fatalf("entry %d: got (%v,%d), want (%v,%d)", i, s.values[i], s.colIndices[i], wantVals[i], wantCols[i])
		}
	}
}

func TestBuildSparseAllMissingRow(t *testing.T) {
	s := buildSparse([]float32{nan, nan, 1, 2}, 2, 2)
	if err := s.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if s.rowOffsets[1] != 0 {
		t.Fatalf("all-missing row should contribute no values: %v", s.rowOffsets)
	}
	if len(s.values) != 2 {
		t.Fatalf("stored %d values, want 2", len(s.values))
	}
}

func TestBuildSparseEmptyBatch(t *testing.T) {
	s := buildSparse(nil, 0, 4)
	if err := s.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(s.rowOffsets) != 1 || s.rowOffsets[0] != 0 {
		t.Fatalf("row offsets %v, want [0]", s.rowOffsets)
	}
}

func TestValidateRejectsCorruptBatch(t *testing.T) {
	s := buildSparse([]float32{1, 2}, 1, 2)
	s.colIndices = s.colIndices[:1]
	if err := s.validate(); err == nil {
		t.Fatalf("expected validate error after corrupting column indices")
	}
}
