package treelite

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"modelrt/internal/metrics"
	"modelrt/internal/registry"
	"modelrt/pkg/backend"
	"modelrt/pkg/types"
)

const backendName = "tree"

// inputName is the single synthetic input name. The engine has no concept
// of named multi-tensor inputs, so the adapter exposes exactly one.
const inputName = "data"

// ompThreadsEnv overrides the engine worker-thread count at load time.
const ompThreadsEnv = "OMP_NUM_THREADS"

// Model runs a compiled decision-tree ensemble behind the unified backend
// contract.
type Model struct {
	artifact registry.TreeArtifact
	pred     Predictor

	numFeature int
	// numClass is the engine-reported output-class count; Run allocates
	// output at this width.
	numClass int
	// outputWidth is the authoritative output width observed by the probe
	// prediction; it is <= numClass and is the copy-out stride.
	outputWidth int

	input      *sparseInput
	boundShape []int64 // shape as bound by the caller, nil pre-bind
	output     []float32
}

var _ backend.Model = (*Model)(nil)

// New discovers a tree artifact under dirs and loads it into the engine.
// Load is two-phase: engine load, then a single throwaway probe prediction
// to learn the output width actually returned: the engine may collapse a
// multi-class output into a single predicted-class column.
func New(dirs []string, eng Engine) (m *Model, err error) {
	defer func() { metrics.ObserveLoad(backendName, err) }()

	artifact, err := registry.DiscoverTree(dirs)
	if err != nil {
		return nil, err
	}

	threads := -1
	if v := os.Getenv(ompThreadsEnv); v != "" {
		n, convErr := strconv.Atoi(v)
		if convErr != nil {
			return nil, backend.ErrConfig("%s=%q: %v", ompThreadsEnv, v, convErr)
		}
		threads = n
	}

	pred, err := eng.LoadPredictor(artifact.ModelLib, threads)
	if err != nil {
		return nil, backend.ErrEngine("load predictor "+artifact.ModelLib, err.Error())
	}

	m = &Model{
		artifact:   artifact,
		pred:       pred,
		numFeature: pred.NumFeature(),
		numClass:   pred.NumClass(),
	}

	// Capability probe: one zero-filled row, buffer sized for every class.
	probeOut := make([]float32, m.numClass)
	width, err := pred.PredictRow(make([]float32, m.numFeature), probeOut)
	if err != nil {
		_ = pred.Close()
		return nil, backend.ErrEngine("probe prediction", err.Error())
	}
	if width > m.numClass {
		_ = pred.Close()
		return nil, backend.ErrEngine("probe prediction",
			"output width "+strconv.Itoa(width)+" exceeds class count "+strconv.Itoa(m.numClass))
	}
	m.outputWidth = width

	log.Debug().Str("model_lib", artifact.ModelLib).
		Int("num_feature", m.numFeature).
		Int("num_class", m.numClass).
		Int("output_width", m.outputWidth).
		Msg("tree model loaded")
	return m, nil
}

func (m *Model) Device() types.Device { return types.DeviceCPU }

func (m *Model) NumInputs() int  { return 1 }
func (m *Model) NumOutputs() int { return 1 }

func (m *Model) checkInputIndex(i int) error {
	if i < 0 || i >= m.NumInputs() {
		return backend.ErrContract("input index %d is out of range", i)
	}
	return nil
}

func (m *Model) checkOutputIndex(i int) error {
	if i < 0 || i >= m.NumOutputs() {
		return backend.ErrContract("output index %d is out of range", i)
	}
	return nil
}

func (m *Model) InputName(i int) (string, error) {
	if err := m.checkInputIndex(i); err != nil {
		return "", err
	}
	return inputName, nil
}

func (m *Model) InputType(i int) (string, error) {
	if err := m.checkInputIndex(i); err != nil {
		return "", err
	}
	return "float32", nil
}

// InputShape reports the bound shape, or [-1, numFeature] before any bind.
func (m *Model) InputShape(i int) ([]int64, error) {
	if err := m.checkInputIndex(i); err != nil {
		return nil, err
	}
	if m.boundShape != nil {
		return append([]int64(nil), m.boundShape...), nil
	}
	return []int64{types.BatchUnknown, int64(m.numFeature)}, nil
}

func (m *Model) InputSize(i int) (int64, error) {
	shape, err := m.InputShape(i)
	if err != nil {
		return 0, err
	}
	return types.ShapeSize(shape), nil
}

func (m *Model) InputDim(i int) (int, error) {
	if err := m.checkInputIndex(i); err != nil {
		return 0, err
	}
	return 2, nil
}

// SetInput converts a dense row-major batch into CSR form and registers it
// with the engine, replacing any previously bound batch. NaN entries are
// missing values and are omitted. Fewer columns than the engine's feature
// count is legal: unspecified trailing columns are treated as all-missing.
func (m *Model) SetInput(name string, shape []int64, data []float32) error {
	if len(shape) != 2 {
		return backend.ErrContract("mismatch found in input dimension; value read: %d, expected: 2", len(shape))
	}
	rows, cols := shape[0], shape[1]
	if cols > int64(m.numFeature) {
		return backend.ErrContract(
			"mismatch found in input shape at dimension 1; value read: %d, expected: %d or less", cols, m.numFeature)
	}
	if rows < 0 {
		return backend.ErrContract("negative batch size %d", rows)
	}
	if int64(len(data)) < rows*cols {
		return backend.ErrContract("input buffer holds %d elements, shape %v needs %d", len(data), shape, rows*cols)
	}

	s := buildSparse(data, rows, cols)
	// The engine sees the full feature width; absent trailing columns pad
	// themselves by never appearing in the column indices.
	s.cols = int64(m.numFeature)
	if err := s.validate(); err != nil {
		return err
	}

	batch, err := m.pred.AssembleBatch(s.values, s.colIndices, s.rowOffsets, uint64(s.rows), uint64(s.cols))
	if err != nil {
		return backend.ErrEngine("assemble sparse batch", err.Error())
	}
	s.batch = batch

	if err := m.input.free(); err != nil {
		log.Warn().Err(err).Msg("freeing previous sparse batch")
	}
	m.input = s
	m.boundShape = []int64{rows, cols}
	m.output = nil
	metrics.SetBoundRows(backendName, int(rows))
	return nil
}

// GetInput has no reverse path out of the engine's sparse registration.
func (m *Model) GetInput(name string, dst []float32) error {
	return backend.ErrUnsupported("GetInput", backendName)
}

// Run predicts the bound batch. The output buffer is allocated at the full
// class-count width; GetOutput copies at the narrower authoritative width.
func (m *Model) Run() (err error) {
	start := time.Now()
	defer func() { metrics.ObserveRun(backendName, start, err) }()

	if m.input == nil {
		return backend.ErrContract("Run called before SetInput")
	}
	m.output = make([]float32, m.input.rows*int64(m.numClass))
	if _, err := m.pred.PredictBatch(m.input.batch, m.output); err != nil {
		m.output = nil
		return backend.ErrEngine("predict batch", err.Error())
	}
	return nil
}

func (m *Model) OutputType(i int) (string, error) {
	if err := m.checkOutputIndex(i); err != nil {
		return "", err
	}
	return "float32", nil
}

// OutputShape is always rank 2: [rows or -1 pre-bind, outputWidth].
func (m *Model) OutputShape(i int) ([]int64, error) {
	if err := m.checkOutputIndex(i); err != nil {
		return nil, err
	}
	rows := types.BatchUnknown
	if m.input != nil {
		rows = m.input.rows
	}
	return []int64{rows, int64(m.outputWidth)}, nil
}

func (m *Model) OutputSize(i int) (int64, error) {
	if err := m.checkOutputIndex(i); err != nil {
		return 0, err
	}
	if m.input == nil {
		// Batch is not known yet; report the per-row width.
		return int64(m.outputWidth), nil
	}
	return m.input.rows * int64(m.outputWidth), nil
}

func (m *Model) OutputDim(i int) (int, error) {
	if err := m.checkOutputIndex(i); err != nil {
		return 0, err
	}
	return 2, nil
}

// GetOutput copies exactly rows*outputWidth elements. The internal buffer
// was allocated at the wider class-count stride; the copy never uses it.
func (m *Model) GetOutput(i int, dst []float32) error {
	if err := m.checkOutputIndex(i); err != nil {
		return err
	}
	if m.input == nil {
		return backend.ErrContract("GetOutput called before SetInput")
	}
	if m.output == nil {
		return backend.ErrContract("GetOutput called before Run")
	}
	n := m.input.rows * int64(m.outputWidth)
	if int64(len(dst)) < n {
		return backend.ErrContract("output buffer holds %d elements, need %d", len(dst), n)
	}
	copy(dst[:n], m.output[:n])
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

// Close frees the bound batch before the predictor, matching acquisition
// order in reverse.
func (m *Model) Close() error {
	if err := m.input.free(); err != nil {
		log.Warn().Err(err).Msg("freeing sparse batch on close")
	}
	m.input = nil
	m.output = nil
	if m.pred == nil {
		return nil
	}
	err := m.pred.Close()
	m.pred = nil
	return err
}
