//go:build cgo

package embeddings

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// onnxPathEnv is read by fastembed-go to locate the ONNX runtime library.
const onnxPathEnv = "ONNX_PATH"

var libraryNames = map[string]string{
	"linux":  "libonnxruntime.so",
	"darwin": "libonnxruntime.dylib",
}

func libraryName(goos string) string {
	if name, ok := libraryNames[goos]; ok {
		return name
	}
	return "libonnxruntime.so"
}

// onnxInstallDir is the managed location for the runtime library.
func onnxInstallDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "smartfaq", "lib")
}

// locateONNXRuntime returns $ONNX_PATH, else the managed install path if the
// library exists there, else "".
func locateONNXRuntime() string {
	if p := os.Getenv(onnxPathEnv); p != "" {
		return p
	}
	managed := filepath.Join(onnxInstallDir(), libraryName(runtime.GOOS))
	if _, err := os.Stat(managed); err == nil {
		return managed
	}
	return ""
}

// ConfigureONNXRuntime points fastembed-go at the ONNX runtime library and
// returns its path. An empty path with a nil error means the system loader
// search path will be used.
func ConfigureONNXRuntime() (string, error) {
	path := locateONNXRuntime()
	if path == "" {
		return "", nil
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: onnx runtime %s: %v", ErrInvalidConfig, path, err)
	}
	if err := os.Setenv(onnxPathEnv, path); err != nil {
		return "", fmt.Errorf("setting %s: %w", onnxPathEnv, err)
	}
	return path, nil
}
