// Package types holds the plain data types shared by every backend:
// tensor descriptors, element types, and the target-device enum.
package types

// BatchUnknown is the batch-axis value reported before any input has been
// bound. Shape introspection without data is legitimate, so this is a
// defined value, not an error.
const BatchUnknown int64 = -1

// Device selects the hardware a model should run on.
type Device string

const (
	// DeviceCPU runs on the host CPU (decision-tree backend).
	DeviceCPU Device = "cpu"
	// DeviceDSP runs on the Hexagon DSP accelerator.
	DeviceDSP Device = "dsp"
)

// TensorSpec describes one input or output tensor of a backend model.
// Names are unique within the input set and within the output set.
type TensorSpec struct {
	// Name of the tensor as reported by the backend.
	Name string
	// Dim is the number of shape axes.
	Dim int
	// Shape holds per-axis extents. A value of BatchUnknown on the batch
	// axis means the extent is unknown until input is bound.
	Shape []int64
	// Size is the total element count.
	Size int64
	// Bytes is the total byte size of the tensor.
	Bytes int64
	// Type is the semantic element type tag (e.g. "float32"). Empty when
	// the backend exposes no type metadata.
	Type string
}

// Float32Bytes is the byte width of one float32 element.
const Float32Bytes = 4

// ShapeSize returns the element count implied by shape, or BatchUnknown
// if any axis is still unknown.
func ShapeSize(shape []int64) int64 {
	size := int64(1)
	for _, d := range shape {
		if d < 0 {
			return BatchUnknown
		}
		size *= d
	}
	return size
}

// Clone returns a deep copy of the spec. Adapters store copies so that
// callers and engines can never alias adapter-owned metadata.
func (t TensorSpec) Clone() TensorSpec {
	c := t
	c.Shape = append([]int64(nil), t.Shape...)
	return c
}
