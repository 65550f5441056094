// Package registry discovers model artifacts on disk. An artifact is the
// set of files under one or more directories that together constitute one
// loadable compiled model for a backend. Discovery runs once at model
// construction; artifacts are immutable afterwards.
package registry

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"

	"modelrt/internal/common/fsutil"
	"modelrt/pkg/backend"
)

const (
	// reservedRuntimeName is the shared runtime library that may sit next
	// to a compiled tree model and must never be mistaken for the model.
	reservedRuntimeName = "libmodelrt"

	// hexagonModelSuffix identifies a compiled Hexagon model image.
	hexagonModelSuffix = "_hexagon_model.so"
	// hexagonSkeletonName is the DSP skeleton library the accelerator's
	// dynamic loader resolves through ADSP_LIBRARY_PATH.
	hexagonSkeletonName = "libhexagon_nn_skel.so"
	// adspLibraryPathEnv is written when a skeleton library is found next
	// to the model so the native loader can find it.
	adspLibraryPathEnv = "ADSP_LIBRARY_PATH"

	// versionMetadataName is the optional metadata file captured for tree
	// models.
	versionMetadataName = "version.json"
)

// TreeArtifact is the file set of one decision-tree model.
type TreeArtifact struct {
	// ModelLib is the compiled model shared library.
	ModelLib string
	// VersionJSON is the optional version metadata path, empty if absent.
	VersionJSON string
}

// HexagonArtifact is the file set of one Hexagon model.
type HexagonArtifact struct {
	// ModelFile is the *_hexagon_model.so image.
	ModelFile string
	// SkeletonFile is the optional DSP skeleton library, empty if absent.
	SkeletonFile string
}

// libExt returns the platform's dynamic-library extension.
func libExt() string {
	switch runtime.GOOS {
	case "darwin":
		return ".dylib"
	case "windows":
		return ".dll"
	default:
		return ".so"
	}
}

// DiscoverTree scans one or more peer directories (non-recursive) for a
// decision-tree artifact. The primary file is the unique dynamic library
// that is not the reserved runtime; version.json is captured as optional
// metadata. No primary file, or more than one, is a configuration error.
func DiscoverTree(dirs []string) (TreeArtifact, error) {
	files, err := fsutil.ListDirs(dirs)
	if err != nil {
		return TreeArtifact{}, backend.ErrConfig("list model dirs %v: %v", dirs, err)
	}
	ext := libExt()
	var artifact TreeArtifact
	for _, path := range files {
		name := filepath.Base(path)
		switch {
		case strings.HasSuffix(name, ext) && !strings.HasPrefix(name, reservedRuntimeName):
			if artifact.ModelLib != "" {
				return TreeArtifact{}, backend.ErrConfig(
					"multiple model libraries under folder(s) %v: %s, %s", dirs, artifact.ModelLib, path)
			}
			artifact.ModelLib = path
		case name == versionMetadataName:
			artifact.VersionJSON = path
		}
	}
	if artifact.ModelLib == "" {
		return TreeArtifact{}, backend.ErrConfig("no valid tree model files found under folder(s): %v", dirs)
	}
	log.Debug().Str("model_lib", artifact.ModelLib).Str("version_json", artifact.VersionJSON).
		Msg("tree artifact discovered")
	return artifact, nil
}

// DiscoverHexagon scans a single directory for a Hexagon artifact. The
// primary file is the unique *_hexagon_model.so; a skeleton library, when
// present, makes discovery point ADSP_LIBRARY_PATH at the model directory.
// Absence of the skeleton is logged, not fatal: the caller may configure
// that path externally.
func DiscoverHexagon(dir string) (HexagonArtifact, error) {
	files, err := fsutil.ListDirs([]string{dir})
	if err != nil {
		return HexagonArtifact{}, backend.ErrConfig("list model dir %s: %v", dir, err)
	}
	var artifact HexagonArtifact
	for _, path := range files {
		switch name := filepath.Base(path); {
		case strings.HasSuffix(name, hexagonModelSuffix):
			if artifact.ModelFile != "" {
				return HexagonArtifact{}, backend.ErrConfig(
					"multiple %s files under the folder: %s", hexagonModelSuffix, dir)
			}
			artifact.ModelFile = path
		case name == hexagonSkeletonName:
			artifact.SkeletonFile = path
		}
	}
	if artifact.ModelFile == "" {
		return HexagonArtifact{}, backend.ErrConfig("no %s file found under folder: %s", hexagonModelSuffix, dir)
	}
	if artifact.SkeletonFile == "" {
		log.Info().Str("dir", dir).Msgf(
			"%s not found; set %s to the folder holding it", hexagonSkeletonName, adspLibraryPathEnv)
	} else {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return HexagonArtifact{}, backend.ErrConfig("abs path for %s: %v", dir, err)
		}
		log.Info().Str(adspLibraryPathEnv, abs).Msg("skeleton library found")
		if err := os.Setenv(adspLibraryPathEnv, abs); err != nil {
			return HexagonArtifact{}, backend.ErrConfig("set %s: %v", adspLibraryPathEnv, err)
		}
	}
	return artifact, nil
}
