//go:build linux || darwin

package hexagon

import (
	"fmt"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/rs/zerolog/log"
)

// The fixed exported-symbol set every compiled model image carries.
const (
	symModelInit  = "modelrt_hexagon_model_init"
	symModelExec  = "modelrt_hexagon_model_exec"
	symModelClose = "modelrt_hexagon_model_close"
	symGetLog     = "modelrt_hexagon_nn_getlog"
	symInputSpec  = "modelrt_hexagon_input_spec"
	symOutputSpec = "modelrt_hexagon_output_spec"
)

// nativeLibrary resolves the entry points of a dlopen'd model image. The
// image is opened with local binding so its symbols never pollute the
// process-global namespace.
type nativeLibrary struct {
	handle uintptr

	modelInit  func(graphID, input, output unsafe.Pointer, debugLevel int32) int32
	modelExec  func(graphID int32, input, output uintptr) int32
	modelClose func(graphID int32) int32
	getLog     func(graphID int32, buf unsafe.Pointer, size int32) int32
	inputSpec  func(id int32, name, dim, shape, length, bytes unsafe.Pointer) int32
	outputSpec func(id int32, name, dim, shape, length, bytes unsafe.Pointer) int32
}

var _ Library = (*nativeLibrary)(nil)

// NewNativeLibrary opens the model image and resolves every entry point.
// A missing symbol fails the whole load; there is no optional-symbol
// fallback.
func NewNativeLibrary(path string) (Library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, fmt.Errorf("model file open error: %w", err)
	}
	l := &nativeLibrary{handle: handle}
	for _, s := range []struct {
		name string
		fptr any
	}{
		{symModelInit, &l.modelInit},
		{symModelExec, &l.modelExec},
		{symModelClose, &l.modelClose},
		{symGetLog, &l.getLog},
		{symInputSpec, &l.inputSpec},
		{symOutputSpec, &l.outputSpec},
	} {
		log.Debug().Str("symbol", s.name).Msg("resolving entry point")
		addr, err := purego.Dlsym(handle, s.name)
		if err != nil {
			_ = purego.Dlclose(handle)
			return nil, fmt.Errorf("resolve %s: %w", s.name, err)
		}
		purego.RegisterFunc(s.fptr, addr)
	}
	return l, nil
}

func (l *nativeLibrary) ModelInit(debugLevel int) (Graph, int) {
	var graphID int32
	var input, output uintptr
	status := l.modelInit(unsafe.Pointer(&graphID), unsafe.Pointer(&input),
		unsafe.Pointer(&output), int32(debugLevel))
	return Graph{ID: int(graphID), Input: input, Output: output}, int(status)
}

func (l *nativeLibrary) ModelExec(graphID int, input, output uintptr) int {
	return int(l.modelExec(int32(graphID), input, output))
}

func (l *nativeLibrary) ModelClose(graphID int) int {
	return int(l.modelClose(int32(graphID)))
}

func (l *nativeLibrary) ReadLog(graphID int, buf []byte) int {
	if len(buf) == 0 {
		return -1
	}
	return int(l.getLog(int32(graphID), unsafe.Pointer(&buf[0]), int32(len(buf))))
}

func (l *nativeLibrary) InputSpec(index int) (TensorInfo, int) {
	return l.spec(l.inputSpec, index)
}

func (l *nativeLibrary) OutputSpec(index int) (TensorInfo, int) {
	return l.spec(l.outputSpec, index)
}

// spec runs one index probe and copies the engine's name and shape arrays
// into Go-owned memory before returning.
func (l *nativeLibrary) spec(fn func(int32, unsafe.Pointer, unsafe.Pointer, unsafe.Pointer, unsafe.Pointer, unsafe.Pointer) int32, index int) (TensorInfo, int) {
	var (
		name   uintptr
		dim    int32
		shape  uintptr
		length int32
		bytes  int32
	)
	status := fn(int32(index), unsafe.Pointer(&name), unsafe.Pointer(&dim),
		unsafe.Pointer(&shape), unsafe.Pointer(&length), unsafe.Pointer(&bytes))
	if status != 0 {
		return TensorInfo{}, int(status)
	}
	info := TensorInfo{
		Name:  cString(name),
		Dim:   int(dim),
		Size:  int64(length),
		Bytes: int64(bytes),
	}
	if shape != 0 && dim > 0 {
		raw := unsafe.Slice((*int32)(unsafe.Pointer(shape)), dim)
		info.Shape = make([]int64, dim)
		for i, d := range raw {
			info.Shape[i] = int64(d)
		}
	}
	return info, 0
}

func (l *nativeLibrary) Release() error {
	if l.handle == 0 {
		return nil
	}
	h := l.handle
	l.handle = 0
	return purego.Dlclose(h)
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
