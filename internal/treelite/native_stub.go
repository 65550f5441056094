//go:build !(linux || darwin)

package treelite

import "fmt"

// DefaultRuntimeLib is the prediction-engine runtime shared library the
// default engine binds against.
func DefaultRuntimeLib() string { return "treelite_runtime.dll" }

// NewNativeEngine is unavailable on platforms without a dynamic loader
// binding.
func NewNativeEngine(runtimePath string) (Engine, error) {
	return nil, fmt.Errorf("native tree engine is not supported on this platform")
}
