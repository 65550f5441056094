//go:build linux || darwin

package treelite

import (
	"fmt"
	"math"
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"
)

// DefaultRuntimeLib is the prediction-engine runtime shared library the
// default engine binds against.
func DefaultRuntimeLib() string {
	if runtime.GOOS == "darwin" {
		return "libtreelite_runtime.dylib"
	}
	return "libtreelite_runtime.so"
}

// nativeEngine binds the prediction engine's C runtime through purego.
// Every entry point is resolved eagerly at construction; a missing symbol
// is an immediate error, never a lazy fallback.
type nativeEngine struct {
	lib uintptr

	predictorLoad    func(path string, workerThreads int32, out unsafe.Pointer) int32
	predictorFree    func(h uintptr) int32
	queryNumFeature  func(h uintptr, out unsafe.Pointer) int32
	queryNumClass    func(h uintptr, out unsafe.Pointer) int32
	predictInst      func(h uintptr, entries unsafe.Pointer, predMargin int32, out unsafe.Pointer, outSize unsafe.Pointer) int32
	assembleSparse   func(values, colIndices, rowOffsets unsafe.Pointer, rows, cols uint64, out unsafe.Pointer) int32
	deleteSparse     func(h uintptr) int32
	predictBatch     func(h, batch uintptr, batchSparse, verbose, predMargin int32, out unsafe.Pointer, outSize unsafe.Pointer) int32
	lastError        func() uintptr
}

var _ Engine = (*nativeEngine)(nil)

// NewNativeEngine opens the engine runtime library and resolves the fixed
// prediction entry-point set.
func NewNativeEngine(runtimePath string) (Engine, error) {
	lib, err := purego.Dlopen(runtimePath, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, fmt.Errorf("open engine runtime %s: %w", runtimePath, err)
	}
	e := &nativeEngine{lib: lib}
	for _, s := range []struct {
		name string
		fptr any
	}{
		{"TreelitePredictorLoad", &e.predictorLoad},
		{"TreelitePredictorFree", &e.predictorFree},
		{"TreelitePredictorQueryNumFeature", &e.queryNumFeature},
		{"TreelitePredictorQueryNumOutputGroup", &e.queryNumClass},
		{"TreelitePredictorPredictInst", &e.predictInst},
		{"TreeliteAssembleSparseBatch", &e.assembleSparse},
		{"TreeliteDeleteSparseBatch", &e.deleteSparse},
		{"TreelitePredictorPredictBatch", &e.predictBatch},
		{"TreeliteGetLastError", &e.lastError},
	} {
		addr, err := purego.Dlsym(lib, s.name)
		if err != nil {
			_ = purego.Dlclose(lib)
			return nil, fmt.Errorf("resolve %s: %w", s.name, err)
		}
		purego.RegisterFunc(s.fptr, addr)
	}
	return e, nil
}

// errString drains the engine's last-error slot.
func (e *nativeEngine) errString() error {
	return fmt.Errorf("%s", cString(e.lastError()))
}

func (e *nativeEngine) LoadPredictor(path string, workerThreads int) (Predictor, error) {
	var h uintptr
	if e.predictorLoad(path, int32(workerThreads), unsafe.Pointer(&h)) != 0 {
		return nil, e.errString()
	}
	p := &nativePredictor{eng: e, handle: h}

	var n uint64
	if e.queryNumFeature(h, unsafe.Pointer(&n)) != 0 {
		_ = p.Close()
		return nil, e.errString()
	}
	p.numFeature = int(n)
	if e.queryNumClass(h, unsafe.Pointer(&n)) != 0 {
		_ = p.Close()
		return nil, e.errString()
	}
	p.numClass = int(n)
	return p, nil
}

type nativePredictor struct {
	eng        *nativeEngine
	handle     uintptr
	numFeature int
	numClass   int
}

func (p *nativePredictor) NumFeature() int { return p.numFeature }
func (p *nativePredictor) NumClass() int   { return p.numClass }

// entryMissing is the engine's union encoding for a missing feature.
const entryMissing = ^uint32(0)

func (p *nativePredictor) PredictRow(row []float32, out []float32) (int, error) {
	// The engine takes an entry array: a 4-byte union holding either the
	// float bits of a present value or -1 for missing.
	entries := make([]uint32, len(row))
	for i, v := range row {
		if math.IsNaN(float64(v)) {
			entries[i] = entryMissing
		} else {
			entries[i] = math.Float32bits(v)
		}
	}
	var written uint64
	if p.eng.predictInst(p.handle, unsafe.Pointer(&entries[0]), 0,
		unsafe.Pointer(&out[0]), unsafe.Pointer(&written)) != 0 {
		return 0, p.eng.errString()
	}
	return int(written), nil
}

func (p *nativePredictor) AssembleBatch(values []float32, colIndices []uint32, rowOffsets []uint64, rows, cols uint64) (Batch, error) {
	// An empty batch still has a valid one-element row-offset array; the
	// value and index arrays may be empty.
	var valPtr, colPtr unsafe.Pointer
	if len(values) > 0 {
		valPtr = unsafe.Pointer(&values[0])
		colPtr = unsafe.Pointer(&colIndices[0])
	}
	var h uintptr
	if p.eng.assembleSparse(valPtr, colPtr, unsafe.Pointer(&rowOffsets[0]), rows, cols, unsafe.Pointer(&h)) != 0 {
		return nil, p.eng.errString()
	}
	// The engine reads the arrays through the handle; keep them alive for
	// the batch lifetime.
	return &nativeBatch{eng: p.eng, handle: h, values: values, colIndices: colIndices, rowOffsets: rowOffsets}, nil
}

func (p *nativePredictor) PredictBatch(batch Batch, out []float32) (int, error) {
	nb, ok := batch.(*nativeBatch)
	if !ok || nb.handle == 0 {
		return 0, fmt.Errorf("batch is not a live native batch")
	}
	var written uint64
	if p.eng.predictBatch(p.handle, nb.handle, 1, 0, 0,
		unsafe.Pointer(&out[0]), unsafe.Pointer(&written)) != 0 {
		return 0, p.eng.errString()
	}
	return int(written), nil
}

func (p *nativePredictor) Close() error {
	if p.handle == 0 {
		return nil
	}
	h := p.handle
	p.handle = 0
	if p.eng.predictorFree(h) != 0 {
		return p.eng.errString()
	}
	return nil
}

type nativeBatch struct {
	eng    *nativeEngine
	handle uintptr

	// Backing arrays referenced by the engine-side handle.
	values     []float32
	colIndices []uint32
	rowOffsets []uint64
}

func (b *nativeBatch) Free() error {
	if b.handle == 0 {
		return nil
	}
	h := b.handle
	b.handle = 0
	b.values, b.colIndices, b.rowOffsets = nil, nil, nil
	if b.eng.deleteSparse(h) != 0 {
		return b.eng.errString()
	}
	return nil
}

// cString copies a NUL-terminated C string.
func cString(p uintptr) string {
	if p == 0 {
		return ""
	}
	var b []byte
	for {
		c := *(*byte)(unsafe.Pointer(p))
		if c == 0 {
			return string(b)
		}
		b = append(b, c)
		p++
	}
}
