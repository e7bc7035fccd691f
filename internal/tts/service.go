package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"

	"github.com/example/go-supertone/internal/config"
	"github.com/example/go-supertone/internal/onnx"
	"github.com/example/go-supertone/internal/text"
)

// Asset filenames inside a model bundle directory.
const (
	ModelConfigAsset = "tts.json"
	VocabularyAsset  = "unicode_indexer.json"
)

// Session owns the loaded backend, vocabulary, model geometry and the
// current voice style. All per-request state (latents, masks, durations) is
// transient. A Session is not safe for concurrent Synthesize calls; the
// engine session underneath is not assumed re-entrant.
type Session struct {
	backend Backend
	vocab   *text.Vocabulary
	model   ModelConfig
	sampler *LatentSampler
	style   *Style
}

// NewSession loads the model bundle referenced by cfg and initializes the
// inference backend. Asset load failures are fatal; backend init falls back
// to the CPU-only runtime exactly once inside onnx.NewEngine.
func NewSession(cfg config.Config) (*Session, error) {
	model, err := LoadModelConfig(filepath.Join(cfg.Paths.ModelDir, ModelConfigAsset))
	if err != nil {
		return nil, err
	}

	vocab, err := text.LoadVocabulary(filepath.Join(cfg.Paths.ModelDir, VocabularyAsset))
	if err != nil {
		return nil, err
	}

	engine, err := onnx.NewEngine(onnx.EngineConfig{
		ModelDir:    cfg.Paths.ModelDir,
		LibraryPath: cfg.Runtime.ORTLibraryPath,
		APIVersion:  cfg.Runtime.ORTAPIVersion,
	})
	if err != nil {
		return nil, err
	}

	return NewSessionWithBackend(engine, model, vocab), nil
}

// NewSessionWithBackend wires a Session from preconstructed parts. Tests use
// it to inject fake backends.
func NewSessionWithBackend(backend Backend, model ModelConfig, vocab *text.Vocabulary) *Session {
	return &Session{
		backend: backend,
		vocab:   vocab,
		model:   model,
		sampler: NewLatentSampler(model),
	}
}

// SampleRate returns the output waveform sample rate in Hz.
func (s *Session) SampleRate() int {
	return s.model.AE.SampleRate
}

// SetStyle replaces the session's current voice style after validating it.
func (s *Session) SetStyle(style *Style) error {
	if err := style.Validate(); err != nil {
		return err
	}

	s.style = style

	return nil
}

// Close releases the backend. Safe to call multiple times.
func (s *Session) Close() {
	if s.backend != nil {
		s.backend.Close()
		s.backend = nil
	}
}

// SynthesisRequest holds per-call synthesis parameters.
type SynthesisRequest struct {
	Text          string
	Style         *Style // nil uses the session's current style
	TotalSteps    int
	Speed         float64
	SilenceSec    float64 // silence inserted between chunks
	MaxChunkChars int     // 0 uses text.DefaultChunkLimit
	OnProgress    ProgressFunc
}

// Synthesize converts text to a waveform. Chunks are processed strictly in
// order; the returned duration covers speech plus inter-chunk silence. On
// any inference failure the whole request fails: prior chunks are discarded
// and no partial waveform is returned.
func (s *Session) Synthesize(ctx context.Context, req SynthesisRequest) ([]float32, float64, error) {
	style := req.Style
	if style == nil {
		style = s.style
	}

	if err := style.Validate(); err != nil {
		return nil, 0, err
	}

	if req.Speed <= 0 {
		return nil, 0, fmt.Errorf("speed %g must be > 0", req.Speed)
	}

	if req.TotalSteps < 0 {
		return nil, 0, fmt.Errorf("total steps %d must be >= 0", req.TotalSteps)
	}

	chunks, err := text.ChunkText(req.Text, req.MaxChunkChars)
	if err != nil {
		return nil, 0, err
	}

	sampleRate := s.model.AE.SampleRate

	var out []float32
	var totalDuration float64

	for i, chunk := range chunks {
		wav, dur, err := s.synthesizeChunk(ctx, chunk, style, req)
		if err != nil {
			return nil, 0, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}

		slog.Debug("chunk synthesized", "index", i+1, "total", len(chunks), "duration_sec", dur, "samples", len(wav))

		if i == 0 {
			out = wav
			totalDuration = dur
			continue
		}

		silence := make([]float32, int(math.Round(req.SilenceSec*float64(sampleRate))))
		out = append(out, silence...)
		out = append(out, wav...)
		totalDuration += req.SilenceSec + dur
	}

	// Drop trailing synthesis artifacts beyond the accumulated duration.
	if maxSamples := int(float64(sampleRate) * totalDuration); len(out) > maxSamples {
		out = out[:maxSamples]
	}

	return out, totalDuration, nil
}

// synthesizeChunk runs the full per-chunk pipeline: normalize, tokenize,
// duration predict, text encode, sample, denoise, vocode, trim.
func (s *Session) synthesizeChunk(ctx context.Context, chunk string, style *Style, req SynthesisRequest) ([]float32, float64, error) {
	normalized := text.Normalize(chunk)
	if normalized == "" {
		return nil, 0, errors.New("chunk normalized to empty text")
	}

	ids, mask := s.vocab.EncodeBatch([]string{normalized})

	seqLen := int64(len(ids[0]))

	textIDs, err := onnx.NewTensor(ids[0], []int64{1, seqLen})
	if err != nil {
		return nil, 0, fmt.Errorf("text_ids tensor: %w", err)
	}

	textMask, err := onnx.NewTensor(mask[0], []int64{1, 1, seqLen})
	if err != nil {
		return nil, 0, fmt.Errorf("text_mask tensor: %w", err)
	}

	durations, err := s.backend.PredictDuration(ctx, textIDs, style.DP, textMask)
	if err != nil {
		return nil, 0, fmt.Errorf("duration predictor: %w", err)
	}

	if len(durations) == 0 {
		return nil, 0, errors.New("duration predictor returned no rows")
	}

	for i := range durations {
		durations[i] /= float32(req.Speed)
	}

	textEmb, err := s.backend.EncodeText(ctx, textIDs, style.TTL, textMask)
	if err != nil {
		return nil, 0, fmt.Errorf("text encoder: %w", err)
	}

	latent, latentMask, err := s.sampler.Sample(durations)
	if err != nil {
		return nil, 0, err
	}

	denoised, err := Denoise(ctx, s.backend, DenoiseState{
		Latent:     latent,
		LatentMask: latentMask,
		TextEmb:    textEmb,
		StyleTTL:   style.TTL,
		TextMask:   textMask,
	}, req.TotalSteps, req.OnProgress)
	if err != nil {
		return nil, 0, err
	}

	wav, err := s.backend.Vocode(ctx, denoised)
	if err != nil {
		return nil, 0, fmt.Errorf("vocoder: %w", err)
	}

	dur := float64(durations[0])

	wavLen := int(float64(s.model.AE.SampleRate) * dur)
	if wavLen > len(wav) {
		wavLen = len(wav)
	}

	return wav[:wavLen], dur, nil
}
