// Package testutil provides shared skip helpers for integration tests.
//
// Each helper calls t.Skip with a clear human-readable reason when the named
// prerequisite is absent, so integration tests remain runnable in partial
// environments without failing noisily.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// RequireONNXRuntime skips the test if no ONNX Runtime shared library can be
// located. It checks (in order): the ORT_LIBRARY_PATH env var, then the
// SUPERTONE_ORT_LIB env var, then common system library paths.
func RequireONNXRuntime(tb testing.TB) {
	tb.Helper()

	for _, env := range []string{"ORT_LIBRARY_PATH", "SUPERTONE_ORT_LIB"} {
		if p := os.Getenv(env); p != "" {
			if _, err := os.Stat(p); err == nil {
				return // found
			}

			tb.Skipf("ONNX Runtime library not found at %s=%q", env, p)
		}
	}

	candidates := []string{
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return // found
		}
	}

	tb.Skip("ONNX Runtime shared library not found; set ORT_LIBRARY_PATH or SUPERTONE_ORT_LIB")
}

// RequireModelBundle skips the test unless dir contains the four pipeline
// graphs plus the config and vocabulary assets.
func RequireModelBundle(tb testing.TB, dir string) {
	tb.Helper()

	required := []string{
		"duration_predictor.onnx",
		"text_encoder.onnx",
		"vector_estimator.onnx",
		"vocoder.onnx",
		"tts.json",
		"unicode_indexer.json",
	}

	for _, name := range required {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			tb.Skipf("model bundle asset %s not found in %s", name, dir)
		}
	}
}
