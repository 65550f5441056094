package treelite

import (
	"math"

	"modelrt/pkg/backend"
)

// sparseInput is the CSR form of one bound dense batch. NaN entries of the
// source are omitted, not stored as explicit zeros; within each row the
// stored column indices are strictly ascending because the builder walks
// columns in order.
type sparseInput struct {
	values     []float32
	colIndices []uint32
	rowOffsets []uint64
	rows       int64
	cols       int64 // engine-reported feature count, not the bound column count
	batch      Batch
}

// buildSparse converts a dense row-major batch into CSR form. data holds
// rows*cols float32 values; NaN is the missing-value sentinel.
func buildSparse(data []float32, rows, cols int64) *sparseInput {
	s := &sparseInput{
		rowOffsets: make([]uint64, 1, rows+1),
	}
	for i := int64(0); i < rows; i++ {
		for j := int64(0); j < cols; j++ {
			v := data[i*cols+j]
			if math.IsNaN(float64(v)) {
				continue
			}
			s.values = append(s.values, v)
			s.colIndices = append(s.colIndices, uint32(j))
		}
		s.rowOffsets = append(s.rowOffsets, uint64(len(s.values)))
	}
	s.rows = rows
	return s
}

// validate checks the CSR postconditions before the batch is handed to the
// engine.
func (s *sparseInput) validate() error {
	if len(s.values) != len(s.colIndices) {
		return backend.ErrContract("sparse batch: %d values vs %d column indices", len(s.values), len(s.colIndices))
	}
	if int64(len(s.rowOffsets)) != s.rows+1 {
		return backend.ErrContract("sparse batch: %d row offsets for %d rows", len(s.rowOffsets), s.rows)
	}
	if last := s.rowOffsets[len(s.rowOffsets)-1]; last != uint64(len(s.values)) {
		return backend.ErrContract("sparse batch: last row offset %d vs %d values", last, len(s.values))
	}
	return nil
}

// free releases the engine-side handle, if any.
func (s *sparseInput) free() error {
	if s == nil || s.batch == nil {
		return nil
	}
	err := s.batch.Free()
	s.batch = nil
	return err
}
