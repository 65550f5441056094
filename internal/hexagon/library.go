// Package hexagon adapts compiled DSP model images to the unified backend
// contract. A model image is a shared object whose exported symbol table
// carries a fixed set of entry points; the Library contract is that symbol
// set, resolved eagerly at load time. Tensor metadata exists only behind
// the per-index spec probes; the image ships no static manifest.
package hexagon

// TensorInfo is the raw metadata one spec probe returns. Implementations
// must hand back adapter-safe copies: the engine's own name and shape
// pointers are not guaranteed stable.
type TensorInfo struct {
	Name  string
	Dim   int
	Shape []int64
	Size  int64
	Bytes int64
}

// Graph is the engine context an init call yields. Input and Output are
// raw staging-buffer pointers owned by the engine; the adapter borrows
// them between init and close and never frees them.
type Graph struct {
	ID     int
	Input  uintptr
	Output uintptr
}

// Library is the resolved entry-point set of one model image. Non-zero
// statuses are backend-native error codes and are preserved as such; for
// the spec probes a non-zero status past the last valid index means "no
// such index".
type Library interface {
	// ModelInit builds the graph and returns the engine-owned staging
	// pointers.
	ModelInit(debugLevel int) (Graph, int)
	// ModelExec runs the graph against the staging buffers.
	ModelExec(graphID int, input, output uintptr) int
	// ModelClose tears down the graph.
	ModelClose(graphID int) int
	// ReadLog drains the engine's diagnostic log into buf.
	ReadLog(graphID int, buf []byte) int
	// InputSpec probes input tensor metadata by index.
	InputSpec(index int) (TensorInfo, int)
	// OutputSpec probes output tensor metadata by index.
	OutputSpec(index int) (TensorInfo, int)
	// Release unloads the model image. Call only after ModelClose.
	Release() error
}

// Loader opens a model image and resolves its entry points. Injected so
// tests can substitute an in-memory library.
type Loader func(path string) (Library, error)
