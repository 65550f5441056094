package registry

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"modelrt/pkg/backend"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func modelLibName(base string) string {
	switch runtime.GOOS {
	case "darwin":
		return base + ".dylib"
	case "windows":
		return base + ".dll"
	default:
		return base + ".so"
	}
}

func TestDiscoverTree(t *testing.T) {
	d := t.TempDir()
	lib := touch(t, d, modelLibName("xgboost_test"))
	ver := touch(t, d, "version.json")
	touch(t, d, "notes.txt")

	a, err := DiscoverTree([]string{d})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if a.ModelLib != lib {
		t.Fatalf("model lib %q, want %q", a.ModelLib, lib)
	}
	if a.VersionJSON != ver {
		t.Fatalf("version json %q, want %q", a.VersionJSON, ver)
	}
}

func TestDiscoverTreeSkipsReservedRuntime(t *testing.T) {
	d := t.TempDir()
	touch(t, d, modelLibName("libmodelrt"))
	lib := touch(t, d, modelLibName("model"))

	a, err := DiscoverTree([]string{d})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if a.ModelLib != lib {
		t.Fatalf("model lib %q, want %q", a.ModelLib, lib)
	}
}

func TestDiscoverTreeNoPrimary(t *testing.T) {
	d := t.TempDir()
	touch(t, d, "version.json")
	_, err := DiscoverTree([]string{d})
	if err == nil || !backend.IsConfig(err) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestDiscoverTreeAmbiguous(t *testing.T) {
	d := t.TempDir()
	touch(t, d, modelLibName("model_a"))
	touch(t, d, modelLibName("model_b"))
	_, err := DiscoverTree([]string{d})
	if err == nil || !backend.IsConfig(err) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestDiscoverTreePeerDirs(t *testing.T) {
	d1 := t.TempDir()
	d2 := t.TempDir()
	lib := touch(t, d1, modelLibName("model"))
	ver := touch(t, d2, "version.json")

	a, err := DiscoverTree([]string{d1, d2})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if a.ModelLib != lib || a.VersionJSON != ver {
		t.Fatalf("unexpected artifact: %+v", a)
	}
}

func TestDiscoverHexagon(t *testing.T) {
	d := t.TempDir()
	model := touch(t, d, "mobilenet_hexagon_model.so")

	a, err := DiscoverHexagon(d)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if a.ModelFile != model {
		t.Fatalf("model file %q, want %q", a.ModelFile, model)
	}
	if a.SkeletonFile != "" {
		t.Fatalf("expected no skeleton, got %q", a.SkeletonFile)
	}
}

func TestDiscoverHexagonSkeletonSetsEnv(t *testing.T) {
	orig, had := os.LookupEnv("ADSP_LIBRARY_PATH")
	t.Cleanup(func() {
		if had {
			_ = os.Setenv("ADSP_LIBRARY_PATH", orig)
		} else {
			_ = os.Unsetenv("ADSP_LIBRARY_PATH")
		}
	})
	d := t.TempDir()
	touch(t, d, "mobilenet_hexagon_model.so")
	skel := touch(t, d, "libhexagon_nn_skel.so")

	a, err := DiscoverHexagon(d)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if a.SkeletonFile != skel {
		t.Fatalf("skeleton %q, want %q", a.SkeletonFile, skel)
	}
	abs, _ := filepath.Abs(d)
	if got := os.Getenv("ADSP_LIBRARY_PATH"); got != abs {
		t.Fatalf("ADSP_LIBRARY_PATH=%q, want %q", got, abs)
	}
}

func TestDiscoverHexagonAmbiguous(t *testing.T) {
	d := t.TempDir()
	touch(t, d, "a_hexagon_model.so")
	touch(t, d, "b_hexagon_model.so")
	_, err := DiscoverHexagon(d)
	if err == nil || !backend.IsConfig(err) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestDiscoverHexagonMissing(t *testing.T) {
	_, err := DiscoverHexagon(t.TempDir())
	if err == nil || !backend.IsConfig(err) {
		t.Fatalf("expected config error, got %v", err)
	}
}
