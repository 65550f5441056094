package runtime

import (
	"os"
	"path/filepath"
	"testing"

	"modelrt/pkg/backend"
	"modelrt/pkg/types"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDetectHexagon(t *testing.T) {
	d := t.TempDir()
	touch(t, d, "mobilenet_hexagon_model.so")
	dev, err := Detect([]string{d})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if dev != types.DeviceDSP {
		t.Fatalf("device %q, want dsp", dev)
	}
}

func TestDetectTree(t *testing.T) {
	d := t.TempDir()
	touch(t, d, "xgboost_test.so")
	touch(t, d, "version.json")
	dev, err := Detect([]string{d})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if dev != types.DeviceCPU {
		t.Fatalf("device %q, want cpu", dev)
	}
}

func TestOpenNoDirs(t *testing.T) {
	_, err := Open(nil, Options{})
	if err == nil || !backend.IsConfig(err) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestOpenMissingDir(t *testing.T) {
	_, err := Open([]string{filepath.Join(t.TempDir(), "nope")}, Options{})
	if err == nil || !backend.IsConfig(err) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestOpenUnknownDevice(t *testing.T) {
	d := t.TempDir()
	touch(t, d, "xgboost_test.so")
	_, err := Open([]string{d}, Options{Device: "npu"})
	if err == nil || !backend.IsConfig(err) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestOpenHexagonNeedsSingleDir(t *testing.T) {
	d1 := t.TempDir()
	d2 := t.TempDir()
	touch(t, d1, "a_hexagon_model.so")
	_, err := Open([]string{d1, d2}, Options{Device: types.DeviceDSP})
	if err == nil || !backend.IsConfig(err) {
		t.Fatalf("expected config error, got %v", err)
	}
}
