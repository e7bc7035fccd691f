package onnx

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Graph names of the four models the synthesis pipeline drives.
const (
	GraphDurationPredictor = "duration_predictor"
	GraphTextEncoder       = "text_encoder"
	GraphVectorEstimator   = "vector_estimator"
	GraphVocoder           = "vocoder"
)

// RequiredGraphs lists every graph a complete model bundle must provide.
var RequiredGraphs = []string{
	GraphDurationPredictor,
	GraphTextEncoder,
	GraphVectorEstimator,
	GraphVocoder,
}

// Session describes one ONNX graph in a model bundle.
type Session struct {
	Name string
	Path string
}

type bundleManifest struct {
	Graphs []bundleGraph `json:"graphs"`
}

type bundleGraph struct {
	Name     string `json:"name"`
	Filename string `json:"filename"`
}

// LoadSessions resolves the four pipeline graphs from a model directory.
// When models.json is present it is authoritative; otherwise the fixed
// <graph name>.onnx filenames are assumed. Missing graph files fail here,
// before any ORT state is created.
func LoadSessions(modelDir string) ([]Session, error) {
	if modelDir == "" {
		return nil, errors.New("model directory is required")
	}

	manifestPath := filepath.Join(modelDir, "models.json")

	if _, err := os.Stat(manifestPath); err == nil {
		return loadManifestSessions(manifestPath)
	}

	sessions := make([]Session, 0, len(RequiredGraphs))
	for _, name := range RequiredGraphs {
		sessions = append(sessions, Session{
			Name: name,
			Path: filepath.Join(modelDir, name+".onnx"),
		})
	}

	return validateSessions(sessions)
}

func loadManifestSessions(manifestPath string) ([]Session, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read model manifest: %w", err)
	}

	var manifest bundleManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode model manifest: %w", err)
	}

	if len(manifest.Graphs) == 0 {
		return nil, errors.New("model manifest has no graphs")
	}

	baseDir := filepath.Dir(manifestPath)
	sessions := make([]Session, 0, len(manifest.Graphs))
	seen := make(map[string]struct{}, len(manifest.Graphs))

	for _, g := range manifest.Graphs {
		if g.Name == "" {
			return nil, errors.New("manifest graph has empty name")
		}
		if g.Filename == "" {
			return nil, fmt.Errorf("manifest graph %q has empty filename", g.Name)
		}
		if _, dup := seen[g.Name]; dup {
			return nil, fmt.Errorf("duplicate graph name %q in manifest", g.Name)
		}
		seen[g.Name] = struct{}{}

		path := g.Filename
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, g.Filename)
		}

		sessions = append(sessions, Session{Name: g.Name, Path: filepath.Clean(path)})
	}

	return validateSessions(sessions)
}

func validateSessions(sessions []Session) ([]Session, error) {
	byName := make(map[string]Session, len(sessions))
	for _, s := range sessions {
		if _, err := os.Stat(s.Path); err != nil {
			return nil, fmt.Errorf("graph file for %q: %w", s.Name, err)
		}

		byName[s.Name] = s
	}

	var missing []string
	for _, name := range RequiredGraphs {
		if _, ok := byName[name]; !ok {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("model bundle is missing graphs: %s", strings.Join(missing, ", "))
	}

	for _, s := range sessions {
		slog.Info("resolved ONNX graph", "name", s.Name, "path", s.Path)
	}

	return sessions, nil
}
