// Package treelite adapts compiled decision-tree ensembles to the unified
// backend contract. The prediction engine itself (tree traversal, leaf
// aggregation) is an external collaborator reached through the Engine and
// Predictor contracts; this package owns artifact loading, the dense-to-CSR
// input conversion, and output marshaling.
package treelite

// Engine loads compiled tree-ensemble predictors.
type Engine interface {
	// LoadPredictor loads the compiled model library at path.
	// workerThreads <= 0 requests the engine default (all cores).
	LoadPredictor(path string, workerThreads int) (Predictor, error)
}

// Predictor is one loaded tree-ensemble model inside the engine.
//
// NaN marks a missing feature value everywhere a dense row is accepted.
type Predictor interface {
	// NumFeature returns the feature count the model was trained with.
	NumFeature() int
	// NumClass returns the output-class count; 1 for regression and
	// binary models, >1 for multi-class.
	NumClass() int
	// PredictRow runs single-instance prediction for one dense feature
	// row and reports how many output elements were written to out.
	PredictRow(row []float32, out []float32) (int, error)
	// AssembleBatch registers a CSR batch with the engine and returns an
	// opaque handle to it. The arrays follow compressed-sparse-row
	// conventions: len(values) == len(colIndices) == rowOffsets[rows].
	AssembleBatch(values []float32, colIndices []uint32, rowOffsets []uint64, rows, cols uint64) (Batch, error)
	// PredictBatch predicts every row of an assembled batch into out and
	// reports how many output elements were written.
	PredictBatch(batch Batch, out []float32) (int, error)
	// Close releases the engine-side predictor handle.
	Close() error
}

// Batch is an opaque engine-side sparse batch registration. At most one
// batch is live per model; rebinding frees the previous one.
type Batch interface {
	// Free releases the engine-side batch handle.
	Free() error
}
