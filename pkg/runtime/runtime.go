// Package runtime constructs backend models from model directories. It is
// thin selection logic: decide which backend owns the artifact, then hand
// off to that backend's loader.
package runtime

import (
	"path/filepath"
	"strings"

	"modelrt/internal/common/fsutil"
	"modelrt/internal/hexagon"
	"modelrt/internal/treelite"
	"modelrt/pkg/backend"
	"modelrt/pkg/types"
)

// Options tunes model construction.
type Options struct {
	// Device forces a backend. Empty sniffs the artifact kind.
	Device types.Device
	// DebugLevel is passed to backends with a native debug knob.
	DebugLevel int
	// EngineRuntime overrides the prediction-engine runtime library path
	// for the decision-tree backend. Empty uses the default name.
	EngineRuntime string
}

// Open loads the model stored under dirs and returns it behind the
// unified contract. The caller owns the model and must Close it.
func Open(dirs []string, opts Options) (backend.Model, error) {
	if len(dirs) == 0 {
		return nil, backend.ErrConfig("no model directories given")
	}
	for _, d := range dirs {
		if !fsutil.PathExists(d) {
			return nil, backend.ErrConfig("model directory does not exist: %s", d)
		}
	}
	device := opts.Device
	if device == "" {
		d, err := Detect(dirs)
		if err != nil {
			return nil, err
		}
		device = d
	}
	switch device {
	case types.DeviceDSP:
		if len(dirs) != 1 {
			return nil, backend.ErrConfig("hexagon models live in a single directory, got %d", len(dirs))
		}
		m, err := hexagon.New(dirs[0], opts.DebugLevel, hexagon.NewNativeLibrary)
		if err != nil {
			return nil, err
		}
		return m, nil
	case types.DeviceCPU:
		runtimeLib := opts.EngineRuntime
		if runtimeLib == "" {
			runtimeLib = treelite.DefaultRuntimeLib()
		}
		eng, err := treelite.NewNativeEngine(runtimeLib)
		if err != nil {
			return nil, backend.ErrConfig("bind prediction engine: %v", err)
		}
		m, err := treelite.New(dirs, eng)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, backend.ErrConfig("unknown device %q", device)
	}
}

// Detect sniffs which backend owns the artifact under dirs: a hexagon
// model image claims the DSP, anything else is a tree model on the CPU.
func Detect(dirs []string) (types.Device, error) {
	files, err := fsutil.ListDirs(dirs)
	if err != nil {
		return "", backend.ErrConfig("list model dirs %v: %v", dirs, err)
	}
	for _, f := range files {
		if strings.HasSuffix(filepath.Base(f), "_hexagon_model.so") {
			return types.DeviceDSP, nil
		}
	}
	return types.DeviceCPU, nil
}
