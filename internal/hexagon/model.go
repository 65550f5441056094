package hexagon

import (
	"bytes"
	"strconv"
	"time"
	"unsafe"

	"github.com/rs/zerolog/log"

	"modelrt/internal/metrics"
	"modelrt/internal/registry"
	"modelrt/pkg/backend"
	"modelrt/pkg/types"
)

const backendName = "hexagon"

// logBufferSize is the fixed diagnostic log buffer drained after native
// calls.
const logBufferSize = 2 * 1024 * 1024

// Model runs a compiled DSP model image behind the unified backend
// contract.
type Model struct {
	artifact registry.HexagonArtifact
	lib      Library

	graphID int
	// input and output are engine-owned staging pointers, borrowed for
	// the graph lifetime. Never freed here.
	input  uintptr
	output uintptr

	logBuf []byte

	inputSpecs  []types.TensorSpec
	outputSpecs []types.TensorSpec

	debugLevel int
}

var _ backend.Model = (*Model)(nil)

// New discovers the model image under dir, resolves its entry points and
// initializes the graph. debugLevel is passed through to the engine and
// also gates success-path log draining.
func New(dir string, debugLevel int, load Loader) (m *Model, err error) {
	defer func() { metrics.ObserveLoad(backendName, err) }()

	artifact, err := registry.DiscoverHexagon(dir)
	if err != nil {
		return nil, err
	}

	lib, err := load(artifact.ModelFile)
	if err != nil {
		return nil, backend.ErrConfig("load model image %s: %v", artifact.ModelFile, err)
	}

	m = &Model{
		artifact:   artifact,
		lib:        lib,
		logBuf:     make([]byte, logBufferSize),
		debugLevel: debugLevel,
	}

	graph, status := lib.ModelInit(debugLevel)
	// Drain before judging the status so failure context is preserved.
	m.graphID = graph.ID
	m.drainLog()
	if status != 0 {
		_ = lib.Release()
		return nil, backend.ErrEngine("model init", "status "+strconv.Itoa(status))
	}
	m.input = graph.Input
	m.output = graph.Output

	if m.inputSpecs, err = m.probeSpecs(lib.InputSpec); err != nil {
		_ = m.Close()
		return nil, err
	}
	if m.outputSpecs, err = m.probeSpecs(lib.OutputSpec); err != nil {
		_ = m.Close()
		return nil, err
	}

	log.Debug().Str("model_file", artifact.ModelFile).
		Int("graph_id", m.graphID).
		Int("num_inputs", len(m.inputSpecs)).
		Int("num_outputs", len(m.outputSpecs)).
		Msg("hexagon model loaded")
	return m, nil
}

// probeSpecs walks the index-based spec entry point from 0 until it
// signals "no such index", copying every result into adapter-owned
// storage.
func (m *Model) probeSpecs(probe func(int) (TensorInfo, int)) ([]types.TensorSpec, error) {
	var specs []types.TensorSpec
	for i := 0; ; i++ {
		info, status := probe(i)
		if status != 0 {
			return specs, nil
		}
		if info.Bytes%types.Float32Bytes != 0 {
			return nil, backend.ErrConfig(
				"tensor %q byte size %d is not element-aligned", info.Name, info.Bytes)
		}
		spec := types.TensorSpec{
			Name:  info.Name,
			Dim:   info.Dim,
			Shape: info.Shape,
			Size:  info.Size,
			Bytes: info.Bytes,
		}
		specs = append(specs, spec.Clone())
	}
}

// drainLog empties the engine's diagnostic buffer into the logger.
func (m *Model) drainLog() {
	if m.lib.ReadLog(m.graphID, m.logBuf) != 0 {
		return
	}
	msg := m.logBuf
	if i := bytes.IndexByte(msg, 0); i >= 0 {
		msg = msg[:i]
	}
	if len(msg) > 0 {
		log.Info().Str("backend", backendName).Msg(string(msg))
	}
}

func (m *Model) Device() types.Device { return types.DeviceDSP }

func (m *Model) NumInputs() int  { return len(m.inputSpecs) }
func (m *Model) NumOutputs() int { return len(m.outputSpecs) }

func (m *Model) inputSpecAt(i int) (*types.TensorSpec, error) {
	if i < 0 || i >= len(m.inputSpecs) {
		return nil, backend.ErrContract("input index %d is out of range", i)
	}
	return &m.inputSpecs[i], nil
}

func (m *Model) outputSpecAt(i int) (*types.TensorSpec, error) {
	if i < 0 || i >= len(m.outputSpecs) {
		return nil, backend.ErrContract("output index %d is out of range", i)
	}
	return &m.outputSpecs[i], nil
}

// inputIndex finds a tensor by name. The spec list is short, a linear
// scan is fine.
func (m *Model) inputIndex(name string) (int, error) {
	for i := range m.inputSpecs {
		if m.inputSpecs[i].Name == name {
			return i, nil
		}
	}
	return 0, backend.ErrContract("input tensor not found, name: %s", name)
}

func (m *Model) InputName(i int) (string, error) {
	spec, err := m.inputSpecAt(i)
	if err != nil {
		return "", err
	}
	return spec.Name, nil
}

// InputType is unavailable: the model image carries no type metadata.
func (m *Model) InputType(i int) (string, error) {
	return "", backend.ErrUnsupported("InputType", backendName)
}

func (m *Model) InputShape(i int) ([]int64, error) {
	spec, err := m.inputSpecAt(i)
	if err != nil {
		return nil, err
	}
	return append([]int64(nil), spec.Shape...), nil
}

func (m *Model) InputSize(i int) (int64, error) {
	spec, err := m.inputSpecAt(i)
	if err != nil {
		return 0, err
	}
	return spec.Size, nil
}

func (m *Model) InputDim(i int) (int, error) {
	spec, err := m.inputSpecAt(i)
	if err != nil {
		return 0, err
	}
	return spec.Dim, nil
}

// SetInput validates the caller's shape against the discovered spec and
// stages the buffer. The staging area is fixed-size and was laid out for
// exactly the discovered shape, so any mismatch fails before a single
// byte is copied.
func (m *Model) SetInput(name string, shape []int64, data []float32) error {
	i, err := m.inputIndex(name)
	if err != nil {
		return err
	}
	spec := &m.inputSpecs[i]
	if len(shape) != spec.Dim {
		return backend.ErrContract("incorrect input dim: %d, expected %d", len(shape), spec.Dim)
	}
	for ax := range shape {
		if shape[ax] != spec.Shape[ax] {
			return backend.ErrContract(
				"incorrect input shape at axis %d: %d, expected %d", ax, shape[ax], spec.Shape[ax])
		}
	}
	if int64(len(data))*types.Float32Bytes < spec.Bytes {
		return backend.ErrContract("input buffer holds %d bytes, tensor needs %d",
			int64(len(data))*types.Float32Bytes, spec.Bytes)
	}
	copy(staging(m.input, spec.Bytes), floatBytes(data)[:spec.Bytes])
	if spec.Dim > 0 {
		metrics.SetBoundRows(backendName, int(spec.Shape[0]))
	}
	return nil
}

// GetInput copies the staged input back out; this backend has a reverse
// path because staging is a plain byte buffer.
func (m *Model) GetInput(name string, dst []float32) error {
	i, err := m.inputIndex(name)
	if err != nil {
		return err
	}
	spec := &m.inputSpecs[i]
	if int64(len(dst))*types.Float32Bytes < spec.Bytes {
		return backend.ErrContract("input buffer holds %d bytes, tensor needs %d",
			int64(len(dst))*types.Float32Bytes, spec.Bytes)
	}
	copy(floatBytes(dst)[:spec.Bytes], staging(m.input, spec.Bytes))
	return nil
}

// Run invokes the graph. On-device execution failure is never retried and
// never partially recovered; the diagnostic log is drained either way.
func (m *Model) Run() (err error) {
	start := time.Now()
	defer func() { metrics.ObserveRun(backendName, start, err) }()

	status := m.lib.ModelExec(m.graphID, m.input, m.output)
	if status != 0 {
		m.drainLog()
		return backend.ErrEngine("model exec", "status "+strconv.Itoa(status))
	}
	if m.debugLevel > 0 {
		m.drainLog()
	}
	return nil
}

// OutputType is unavailable: the model image carries no type metadata.
func (m *Model) OutputType(i int) (string, error) {
	return "", backend.ErrUnsupported("OutputType", backendName)
}

func (m *Model) OutputShape(i int) ([]int64, error) {
	spec, err := m.outputSpecAt(i)
	if err != nil {
		return nil, err
	}
	return append([]int64(nil), spec.Shape...), nil
}

func (m *Model) OutputSize(i int) (int64, error) {
	spec, err := m.outputSpecAt(i)
	if err != nil {
		return 0, err
	}
	return spec.Size, nil
}

func (m *Model) OutputDim(i int) (int, error) {
	spec, err := m.outputSpecAt(i)
	if err != nil {
		return 0, err
	}
	return spec.Dim, nil
}

// GetOutput copies the output staging buffer into dst.
func (m *Model) GetOutput(i int, dst []float32) error {
	spec, err := m.outputSpecAt(i)
	if err != nil {
		return err
	}
	if int64(len(dst))*types.Float32Bytes < spec.Bytes {
		return backend.ErrContract("output buffer holds %d bytes, tensor needs %d",
			int64(len(dst))*types.Float32Bytes, spec.Bytes)
	}
	copy(floatBytes(dst)[:spec.Bytes], staging(m.output, spec.Bytes))
	return nil
}

func (m *Model) WeightNames() ([]string, error) {
	return nil, backend.ErrUnsupported("WeightNames", backendName)
}

func (m *Model) WeightName(i int) (string, error) {
	return "", backend.ErrUnsupported("WeightName", backendName)
}

func (m *Model) SetNumThreads(n int) error {
	return backend.ErrUnsupported("SetNumThreads", backendName)
}

func (m *Model) UseCPUAffinity(use bool) error {
	return backend.ErrUnsupported("UseCPUAffinity", backendName)
}

// Close tears down in reverse acquisition order: graph first, then the
// library handle, then the log buffer. The staging pointers belong to the
// engine and die with the graph.
func (m *Model) Close() error {
	if m.lib == nil {
		return nil
	}
	if m.graphID != 0 {
		if status := m.lib.ModelClose(m.graphID); status != 0 {
			log.Warn().Int("status", status).Msg("closing hexagon graph")
		}
		m.graphID = 0
		m.input = 0
		m.output = 0
	}
	err := m.lib.Release()
	m.lib = nil
	m.logBuf = nil
	return err
}

// staging views an engine-owned buffer pointer as a byte slice.
func staging(p uintptr, n int64) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), n)
}

// floatBytes views a float32 slice as its raw bytes.
func floatBytes(f []float32) []byte {
	if len(f) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&f[0])), len(f)*types.Float32Bytes)
}
