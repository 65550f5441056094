// Package backend defines the contract every inference backend satisfies
// and the error taxonomy shared across backends. Concrete adapters live in
// internal/treelite and internal/hexagon; callers obtain one through
// pkg/runtime and must serialize calls against a single instance.
package backend

import "modelrt/pkg/types"

// Model is the unified contract over interchangeable inference backends.
//
// The call sequence is SetInput, Run, GetOutput. Exactly one bound input
// state is live at a time; rebinding fully replaces the previous one.
// Implementations provide no internal locking.
type Model interface {
	// NumInputs returns the number of input tensors.
	NumInputs() int
	// InputName returns the name of input tensor i.
	InputName(i int) (string, error)
	// InputType returns the element type tag of input tensor i. Backends
	// without type metadata fail with an unsupported-capability error.
	InputType(i int) (string, error)
	// InputShape returns the shape of input tensor i. The batch axis is
	// types.BatchUnknown until input has been bound.
	InputShape(i int) ([]int64, error)
	// InputSize returns the element count of input tensor i.
	InputSize(i int) (int64, error)
	// InputDim returns the number of shape axes of input tensor i.
	InputDim(i int) (int, error)

	// SetInput binds a dense row-major buffer to the named input tensor.
	// The bound state replaces any previously bound input.
	SetInput(name string, shape []int64, data []float32) error
	// GetInput copies the currently bound input back into dst. Only
	// backends with a reverse path support it.
	GetInput(name string, dst []float32) error

	// NumOutputs returns the number of output tensors.
	NumOutputs() int
	// OutputType returns the element type tag of output tensor i.
	OutputType(i int) (string, error)
	// OutputShape returns the shape of output tensor i. Batch-dependent
	// axes report types.BatchUnknown before the first bind.
	OutputShape(i int) ([]int64, error)
	// OutputSize returns the element count of output tensor i.
	OutputSize(i int) (int64, error)
	// OutputDim returns the number of shape axes of output tensor i.
	OutputDim(i int) (int, error)
	// GetOutput copies output tensor i into dst.
	GetOutput(i int, dst []float32) error

	// Run executes the model against the bound input.
	Run() error

	// WeightNames lists per-tensor weight names where the backend can
	// introspect them.
	WeightNames() ([]string, error)
	// WeightName returns the name of weight tensor i.
	WeightName(i int) (string, error)

	// SetNumThreads overrides the engine worker-thread count where the
	// backend supports it.
	SetNumThreads(n int) error
	// UseCPUAffinity toggles CPU pinning where the backend supports it.
	UseCPUAffinity(use bool) error

	// Device reports the device this model runs on.
	Device() types.Device
	// Close releases all engine-owned resources. The model must not be
	// used afterwards.
	Close() error
}
