package hexagon

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unsafe"

	"modelrt/pkg/backend"
)

type fakeLibrary struct {
	inputs  []TensorInfo
	outputs []TensorInfo

	inBuf  []byte
	outBuf []byte

	initStatus int
	execStatus int
	logMsg     string

	calls    []string
	released bool
	closed   bool
}

func (l *fakeLibrary) ModelInit(debugLevel int) (Graph, int) {
	l.calls = append(l.calls, "init")
	if l.initStatus != 0 {
		return Graph{}, l.initStatus
	}
	return Graph{
		ID:     42,
		Input:  uintptr(unsafe.Pointer(&l.inBuf[0])),
		Output: uintptr(unsafe.Pointer(&l.outBuf[0])),
	}, 0
}

// ModelExec doubles every input float into the output staging buffer.
func (l *fakeLibrary) ModelExec(graphID int, input, output uintptr) int {
	l.calls = append(l.calls, "exec")
	if l.execStatus != 0 {
		return l.execStatus
	}
	if input != uintptr(unsafe.Pointer(&l.inBuf[0])) || output != uintptr(unsafe.Pointer(&l.outBuf[0])) {
		return -99
	}
	in := unsafe.Slice((*float32)(unsafe.Pointer(&l.inBuf[0])), len(l.inBuf)/4)
	out := unsafe.Slice((*float32)(unsafe.Pointer(&l.outBuf[0])), len(l.outBuf)/4)
	for i := range out {
		if i < len(in) {
			out[i] = 2 * in[i]
		}
	}
	return 0
}

func (l *fakeLibrary) ModelClose(graphID int) int {
	l.calls = append(l.calls, "close")
	l.closed = graphID == 42
	return 0
}

func (l *fakeLibrary) ReadLog(graphID int, buf []byte) int {
	l.calls = append(l.calls, "readlog")
	n := copy(buf, l.logMsg)
	if n < len(buf) {
		buf[n] = 0
	}
	return 0
}

func (l *fakeLibrary) InputSpec(index int) (TensorInfo, int) {
	if index >= len(l.inputs) {
		return TensorInfo{}, 1
	}
	return l.inputs[index], 0
}

func (l *fakeLibrary) OutputSpec(index int) (TensorInfo, int) {
	if index >= len(l.outputs) {
		return TensorInfo{}, 1
	}
	return l.outputs[index], 0
}

func (l *fakeLibrary) Release() error {
	l.calls = append(l.calls, "release")
	l.released = true
	return nil
}

func newFakeLibrary() *fakeLibrary {
	return &fakeLibrary{
		inputs: []TensorInfo{
			{Name: "input:0", Dim: 4, Shape: []int64{1, 8, 8, 3}, Size: 192, Bytes: 768},
		},
		outputs: []TensorInfo{
			{Name: "output:0", Dim: 2, Shape: []int64{1, 10}, Size: 10, Bytes: 40},
		},
		inBuf:  make([]byte, 768),
		outBuf: make([]byte, 40),
		logMsg: "graph prepared",
	}
}

func hexagonDir(t *testing.T) string {
	t.Helper()
	d := t.TempDir()
	if err := os.WriteFile(filepath.Join(d, "mobilenet_hexagon_model.so"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write model file: %v", err)
	}
	return d
}

func newTestModel(t *testing.T, lib *fakeLibrary) *Model {
	t.Helper()
	m, err := New(hexagonDir(t), 0, func(path string) (Library, error) { return lib, nil })
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestLoadDiscoversSpecs(t *testing.T) {
	lib := newFakeLibrary()
	m := newTestModel(t, lib)

	if m.NumInputs() != 1 || m.NumOutputs() != 1 {
		t.Fatalf("got %d inputs / %d outputs, want 1/1", m.NumInputs(), m.NumOutputs())
	}
	name, err := m.InputName(0)
	if err != nil || name != "input:0" {
		t.Fatalf("input name %q err=%v", name, err)
	}
	shape, err := m.OutputShape(0)
	if err != nil {
		t.Fatalf("output shape: %v", err)
	}
	if len(shape) != 2 || shape[0] != 1 || shape[1] != 10 {
		t.Fatalf("output shape %v, want [1 10]", shape)
	}
	if size, _ := m.OutputSize(0); size != 10 {
		t.Fatalf("output size %d, want 10", size)
	}
	if dim, _ := m.InputDim(0); dim != 4 {
		t.Fatalf("input dim %d, want 4", dim)
	}
}

func TestLoadCopiesSpecStorage(t *testing.T) {
	lib := newFakeLibrary()
	m := newTestModel(t, lib)

	// The engine's arrays are not stable; mutating them after load must
	// not be observable through the adapter.
	lib.inputs[0].Shape[0] = 99
	shape, _ := m.InputShape(0)
	if shape[0] != 1 {
		t.Fatalf("adapter shape %v aliases engine storage", shape)
	}
}

func TestLoadInitFailureDrainsLogFirst(t *testing.T) {
	lib := newFakeLibrary()
	lib.initStatus = -5
	_, err := New(hexagonDir(t), 0, func(string) (Library, error) { return lib, nil })
	if err == nil || !backend.IsEngine(err) {
		t.Fatalf("expected engine error, got %v", err)
	}
	var sawLog bool
	for _, c := range lib.calls {
		if c == "readlog" {
			sawLog = true
		}
	}
	if !sawLog {
		t.Fatalf("log must be drained before init failure is reported; calls: %v", lib.calls)
	}
	if !lib.released {
		t.Fatalf("library should be released after failed init")
	}
}

func TestLoadMissingSymbolIsConfigError(t *testing.T) {
	_, err := New(hexagonDir(t), 0, func(path string) (Library, error) {
		return nil, fmt.Errorf("resolve modelrt_hexagon_model_exec: symbol not found")
	})
	if err == nil || !backend.IsConfig(err) {
		t.Fatalf("expected config error, got %v", err)
	}
	if !strings.Contains(err.Error(), "modelrt_hexagon_model_exec") {
		t.Fatalf("error %q should carry the symbol context", err)
	}
}

func TestSetInputStagesBytes(t *testing.T) {
	lib := newFakeLibrary()
	m := newTestModel(t, lib)

	data := make([]float32, 192)
	for i := range data {
		data[i] = float32(i)
	}
	if err := m.SetInput("input:0", []int64{1, 8, 8, 3}, data); err != nil {
		t.Fatalf("set input: %v", err)
	}
	staged := unsafe.Slice((*float32)(unsafe.Pointer(&lib.inBuf[0])), 192)
	if staged[0] != 0 || staged[191] != 191 {
		t.Fatalf("staging buffer not written: first=%v last=%v", staged[0], staged[191])
	}
}

func TestSetInputShapeMismatchCopiesNothing(t *testing.T) {
	lib := newFakeLibrary()
	m := newTestModel(t, lib)

	for i := range lib.inBuf {
		lib.inBuf[i] = 0xAB
	}
	err := m.SetInput("input:0", []int64{1, 8, 9, 3}, make([]float32, 192))
	if err == nil || !backend.IsContract(err) {
		t.Fatalf("expected contract error, got %v", err)
	}
	for i, b := range lib.inBuf {
		if b != 0xAB {
			t.Fatalf("staging byte %d changed despite shape mismatch", i)
		}
	}
}

func TestSetInputDimMismatch(t *testing.T) {
	lib := newFakeLibrary()
	m := newTestModel(t, lib)
	err := m.SetInput("input:0", []int64{1, 192}, make([]float32, 192))
	if err == nil || !backend.IsContract(err) {
		t.Fatalf("expected contract error, got %v", err)
	}
}

func TestSetInputUnknownName(t *testing.T) {
	lib := newFakeLibrary()
	m := newTestModel(t, lib)
	err := m.SetInput("nope", []int64{1, 8, 8, 3}, make([]float32, 192))
	if err == nil || !backend.IsContract(err) {
		t.Fatalf("expected contract error, got %v", err)
	}
	if !strings.Contains(err.Error(), "nope") {
		t.Fatalf("error %q should name the missing tensor", err)
	}
}

func TestGetInputRoundTrip(t *testing.T) {
	lib := newFakeLibrary()
	m := newTestModel(t, lib)

	data := make([]float32, 192)
	for i := range data {
		data[i] = float32(i) / 3
	}
	if err := m.SetInput("input:0", []int64{1, 8, 8, 3}, data); err != nil {
		t.Fatalf("set input: %v", err)
	}
	got := make([]float32, 192)
	if err := m.GetInput("input:0", got); err != nil {
		t.Fatalf("get input: %v", err)
	}
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("element %d: got %v, want %v", i, got[i], data[i])
		}
	}
}

func TestRunAndGetOutput(t *testing.T) {
	lib := newFakeLibrary()
	m := newTestModel(t, lib)

	data := make([]float32, 192)
	for i := range data {
		data[i] = float32(i)
	}
	if err := m.SetInput("input:0", []int64{1, 8, 8, 3}, data); err != nil {
		t.Fatalf("set input: %v", err)
	}
	if err := m.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	out := make([]float32, 10)
	if err := m.GetOutput(0, out); err != nil {
		t.Fatalf("get output: %v", err)
	}
	for i := range out {
		if out[i] != 2*float32(i) {
			t.Fatalf("output %d: got %v, want %v", i, out[i], 2*float32(i))
		}
	}
}

func TestRunExecFailure(t *testing.T) {
	lib := newFakeLibrary()
	m := newTestModel(t, lib)
	lib.execStatus = 7
	err := m.Run()
	if err == nil || !backend.IsEngine(err) {
		t.Fatalf("expected engine error, got %v", err)
	}
	if !strings.Contains(err.Error(), "7") {
		t.Fatalf("error %q should carry the native status", err)
	}
}

func TestGetOutputIndexRange(t *testing.T) {
	lib := newFakeLibrary()
	m := newTestModel(t, lib)
	err := m.GetOutput(1, make([]float32, 10))
	if err == nil || !backend.IsContract(err) {
		t.Fatalf("expected contract error, got %v", err)
	}
}

func TestUnsupportedOperations(t *testing.T) {
	lib := newFakeLibrary()
	m := newTestModel(t, lib)

	inputTypeErr := func() error { _, err := m.InputType(0); return err }()
	outputTypeErr := func() error { _, err := m.OutputType(0); return err }()
	weightErr := func() error { _, err := m.WeightNames(); return err }()
	cases := []struct {
		capability string
		err        error
	}{
		{"InputType", inputTypeErr},
		{"OutputType", outputTypeErr},
		{"WeightNames", weightErr},
		{"SetNumThreads", m.SetNumThreads(2)},
		{"UseCPUAffinity", m.UseCPUAffinity(true)},
	}
	for _, c := range cases {
		if c.err == nil || !backend.IsUnsupported(c.err) {
			t.Fatalf("%s: expected unsupported error, got %v", c.capability, c.err)
		}
		if !strings.Contains(c.err.Error(), c.capability) || !strings.Contains(c.err.Error(), "hexagon") {
			t.Fatalf("%s: message %q should name capability and backend", c.capability, c.err)
		}
	}
}

func TestCloseOrder(t *testing.T) {
	lib := newFakeLibrary()
	m, err := New(hexagonDir(t), 0, func(string) (Library, error) { return lib, nil })
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !lib.closed || !lib.released {
		t.Fatalf("close must tear down graph and release library; calls: %v", lib.calls)
	}
	// Graph close must precede library release.
	var closeAt, releaseAt int
	for i, c := range lib.calls {
		switch c {
		case "close":
			closeAt = i
		case "release":
			releaseAt = i
		}
	}
	if closeAt > releaseAt {
		t.Fatalf("graph closed after library release; calls: %v", lib.calls)
	}
	// Double close is a no-op.
	if err := m.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
