//go:build !(linux || darwin)

package hexagon

import "fmt"

// NewNativeLibrary is unavailable on platforms without a dynamic loader
// binding.
func NewNativeLibrary(path string) (Library, error) {
	return nil, fmt.Errorf("hexagon model images are not supported on this platform")
}
