package onnx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// RuntimeInfo describes a resolved ONNX Runtime shared library.
type RuntimeInfo struct {
	LibraryPath string
	Version     string
}

var versionPattern = regexp.MustCompile(`([0-9]+\.[0-9]+\.[0-9]+)`)

// fallbackCandidates are the CPU-only library locations probed when no
// explicit path is configured or the preferred library fails to load.
var fallbackCandidates = []string{
	"/usr/lib/libonnxruntime.so",
	"/usr/local/lib/libonnxruntime.so",
	"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
	"/opt/homebrew/lib/libonnxruntime.dylib",
	"/usr/local/lib/libonnxruntime.dylib",
	"C:/onnxruntime/lib/onnxruntime.dll",
}

// DetectRuntime resolves the preferred ONNX Runtime library path: the
// explicit argument first, then the SUPERTONE_ORT_LIB and ORT_LIBRARY_PATH
// environment variables, then common system locations.
func DetectRuntime(explicit string) (RuntimeInfo, error) {
	path := explicit
	if path == "" {
		path = os.Getenv("SUPERTONE_ORT_LIB")
	}
	if path == "" {
		path = os.Getenv("ORT_LIBRARY_PATH")
	}

	if path == "" {
		return DetectFallbackRuntime()
	}

	if _, err := os.Stat(path); err != nil {
		return RuntimeInfo{LibraryPath: path, Version: "unknown"}, fmt.Errorf("onnx runtime library path check failed: %w", err)
	}

	return RuntimeInfo{LibraryPath: path, Version: inferVersionFromPath(path)}, nil
}

// DetectFallbackRuntime probes the CPU-only candidate locations. Used once
// when the preferred library fails to initialize.
func DetectFallbackRuntime() (RuntimeInfo, error) {
	for _, c := range fallbackCandidates {
		if _, err := os.Stat(c); err == nil {
			return RuntimeInfo{LibraryPath: c, Version: inferVersionFromPath(c)}, nil
		}
	}

	return RuntimeInfo{LibraryPath: "not found", Version: "unknown"}, errors.New("unable to detect ONNX Runtime library path")
}

func inferVersionFromPath(path string) string {
	name := filepath.Base(path)
	if m := versionPattern.FindStringSubmatch(name); len(m) == 2 {
		return m[1]
	}

	return "unknown"
}
