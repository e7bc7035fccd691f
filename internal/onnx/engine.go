package onnx

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
)

// GraphRunner is the minimal runner contract required by Engine methods.
// The opaque inference backend is injected through this interface, so the
// surrounding glue can be tested against deterministic fakes.
type GraphRunner interface {
	Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error)
	Name() string
	Close()
}

// EngineConfig selects the model bundle and the ORT library to load it with.
type EngineConfig struct {
	ModelDir    string
	LibraryPath string // preferred library; empty means auto-detect
	APIVersion  uint32
}

// Engine holds one loaded runner per pipeline graph. Sessions are created
// once at initialization and are not assumed safe for concurrent use: at
// most one synthesis request should be in flight per Engine.
type Engine struct {
	runners map[string]GraphRunner
	runtime RuntimeInfo
}

// NewEngine resolves the model bundle and loads all four graphs. If the
// preferred ORT library fails, whether at detection or at load, all partial
// state is discarded and exactly one retry is made with the fallback
// (CPU-only) library. The chosen library is fixed for the Engine's lifetime.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	sessions, err := LoadSessions(cfg.ModelDir)
	if err != nil {
		return nil, err
	}

	var preferredErr error
	preferred, detectErr := DetectRuntime(cfg.LibraryPath)
	if detectErr != nil {
		preferredErr = fmt.Errorf("detect onnx runtime: %w", detectErr)
	} else {
		engine, loadErr := loadEngine(sessions, preferred, cfg.APIVersion)
		if loadErr == nil {
			return engine, nil
		}
		preferredErr = loadErr
	}

	fallback, err := DetectFallbackRuntime()
	if err != nil || fallback.LibraryPath == preferred.LibraryPath {
		return nil, fmt.Errorf("initialize onnx backend: %w", preferredErr)
	}

	slog.Warn("preferred onnx backend failed, retrying with fallback",
		"preferred", preferred.LibraryPath,
		"fallback", fallback.LibraryPath,
		"error", preferredErr.Error(),
	)

	engine, fallbackErr := loadEngine(sessions, fallback, cfg.APIVersion)
	if fallbackErr != nil {
		return nil, fmt.Errorf("initialize onnx backend (fallback after %v): %w", preferredErr, fallbackErr)
	}

	return engine, nil
}

func loadEngine(sessions []Session, runtime RuntimeInfo, apiVersion uint32) (*Engine, error) {
	runnerCfg := RunnerConfig{LibraryPath: runtime.LibraryPath, APIVersion: apiVersion}
	runners := make(map[string]GraphRunner, len(sessions))

	for _, meta := range sessions {
		r, err := NewRunner(meta, runnerCfg)
		if err != nil {
			closeRunners(runners)
			return nil, err
		}

		runners[meta.Name] = r
	}

	slog.Info("onnx engine ready", "library", runtime.LibraryPath, "version", runtime.Version, "graphs", len(runners))

	return &Engine{runners: runners, runtime: runtime}, nil
}

// NewEngineWithRunners builds an Engine from externally provided graph
// runners (used by tests and alternate runtimes).
func NewEngineWithRunners(runners map[string]GraphRunner) *Engine {
	internal := make(map[string]GraphRunner, len(runners))
	maps.Copy(internal, runners)

	return &Engine{runners: internal}
}

// Runtime reports the library the engine was initialized with.
func (e *Engine) Runtime() RuntimeInfo {
	return e.runtime
}

// Close releases every runner. Safe to call multiple times.
func (e *Engine) Close() {
	closeRunners(e.runners)
	e.runners = nil
}

func closeRunners(runners map[string]GraphRunner) {
	for _, r := range runners {
		if r != nil {
			r.Close()
		}
	}
}

// PredictDuration runs the duration predictor:
//
//	(text_ids, style_dp, text_mask) → duration [batch] seconds
func (e *Engine) PredictDuration(ctx context.Context, textIDs, styleDP, textMask *Tensor) ([]float32, error) {
	out, err := e.run(ctx, GraphDurationPredictor, map[string]*Tensor{
		"text_ids":  textIDs,
		"style_dp":  styleDP,
		"text_mask": textMask,
	})
	if err != nil {
		return nil, err
	}

	dur, err := outputTensor(out, GraphDurationPredictor, "duration")
	if err != nil {
		return nil, err
	}

	return dur.Float32Data()
}

// EncodeText runs the text encoder:
//
//	(text_ids, style_ttl, text_mask) → text_emb
func (e *Engine) EncodeText(ctx context.Context, textIDs, styleTTL, textMask *Tensor) (*Tensor, error) {
	out, err := e.run(ctx, GraphTextEncoder, map[string]*Tensor{
		"text_ids":  textIDs,
		"style_ttl": styleTTL,
		"text_mask": textMask,
	})
	if err != nil {
		return nil, err
	}

	return outputTensor(out, GraphTextEncoder, "text_emb")
}

// EstimateInputs carries the full conditioning state for one denoising step.
type EstimateInputs struct {
	NoisyLatent *Tensor
	TextEmb     *Tensor
	StyleTTL    *Tensor
	LatentMask  *Tensor
	TextMask    *Tensor
	CurrentStep *Tensor
	TotalStep   *Tensor
}

// EstimateVector runs one step of the vector estimator; its output replaces
// the working latent wholesale.
func (e *Engine) EstimateVector(ctx context.Context, in EstimateInputs) (*Tensor, error) {
	out, err := e.run(ctx, GraphVectorEstimator, map[string]*Tensor{
		"noisy_latent": in.NoisyLatent,
		"text_emb":     in.TextEmb,
		"style_ttl":    in.StyleTTL,
		"latent_mask":  in.LatentMask,
		"text_mask":    in.TextMask,
		"current_step": in.CurrentStep,
		"total_step":   in.TotalStep,
	})
	if err != nil {
		return nil, err
	}

	return outputTensor(out, GraphVectorEstimator, "denoised_latent")
}

// Vocode converts a denoised latent to a raw flat waveform:
//
//	(latent) → wav_tts
func (e *Engine) Vocode(ctx context.Context, latent *Tensor) ([]float32, error) {
	out, err := e.run(ctx, GraphVocoder, map[string]*Tensor{
		"latent": latent,
	})
	if err != nil {
		return nil, err
	}

	wav, err := outputTensor(out, GraphVocoder, "wav_tts")
	if err != nil {
		return nil, err
	}

	return wav.Float32Data()
}

func (e *Engine) run(ctx context.Context, graph string, inputs map[string]*Tensor) (map[string]*Tensor, error) {
	runner, ok := e.runners[graph]
	if !ok {
		return nil, fmt.Errorf("graph %q not loaded", graph)
	}

	out, err := runner.Run(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("%s: run: %w", graph, err)
	}

	return out, nil
}

func outputTensor(out map[string]*Tensor, graph, name string) (*Tensor, error) {
	t, ok := out[name]
	if !ok {
		return nil, fmt.Errorf("%s: missing %q in output", graph, name)
	}

	return t, nil
}
