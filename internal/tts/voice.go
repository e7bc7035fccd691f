package tts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Voice is one entry in the voice manifest, pointing at a style JSON asset.
type Voice struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	License string `json:"license,omitempty"`
}

type voiceManifest struct {
	Voices []Voice `json:"voices"`
}

// VoiceManager resolves voice ids to style assets via a JSON manifest.
type VoiceManager struct {
	baseDir string
	voices  []Voice
	byID    map[string]Voice
}

func NewVoiceManager(manifestPath string) (*VoiceManager, error) {
	if manifestPath == "" {
		return nil, errors.New("manifest path is required")
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read voice manifest: %w", err)
	}

	var manifest voiceManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode voice manifest: %w", err)
	}

	mgr := &VoiceManager{
		baseDir: filepath.Dir(manifestPath),
		voices:  append([]Voice(nil), manifest.Voices...),
		byID:    make(map[string]Voice, len(manifest.Voices)),
	}

	for _, v := range manifest.Voices {
		if v.ID == "" {
			return nil, errors.New("voice manifest contains empty id")
		}

		if v.Path == "" {
			return nil, fmt.Errorf("voice %q has empty path", v.ID)
		}

		if _, exists := mgr.byID[v.ID]; exists {
			return nil, fmt.Errorf("duplicate voice id %q", v.ID)
		}

		mgr.byID[v.ID] = v
	}

	return mgr, nil
}

func (m *VoiceManager) ListVoices() []Voice {
	return append([]Voice(nil), m.voices...)
}

// ResolvePath returns the style asset path for a voice id, verifying the
// file exists.
func (m *VoiceManager) ResolvePath(id string) (string, error) {
	v, ok := m.byID[id]
	if !ok {
		return "", fmt.Errorf("unknown voice id %q", id)
	}

	resolved := v.Path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(m.baseDir, resolved)
	}

	resolved = filepath.Clean(resolved)

	if _, err := os.Stat(resolved); err != nil {
		return "", fmt.Errorf("style file for %q: %w", id, err)
	}

	return resolved, nil
}

// LoadVoice resolves and loads the style for a voice id in one step.
func (m *VoiceManager) LoadVoice(id string) (*Style, error) {
	path, err := m.ResolvePath(id)
	if err != nil {
		return nil, err
	}

	return LoadStyle(path)
}
