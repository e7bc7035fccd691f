package tts

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-supertone/internal/onnx"
	"github.com/example/go-supertone/internal/text"
)

// fakeBackend implements Backend with deterministic responses sized to the
// testModelConfig geometry (20 samples per latent timestep).
type fakeBackend struct {
	durations     []float32 // one entry per chunk; last entry repeats
	durationCalls int
	durationErr   error

	encodeCalls int

	estimateFn    func(in onnx.EstimateInputs) (*onnx.Tensor, error)
	estimateCalls int

	vocodeCalls int
	vocodeErrAt int // fail the Nth Vocode call (1-based); 0 disables

	closed bool
}

func (f *fakeBackend) PredictDuration(_ context.Context, _, _, _ *onnx.Tensor) ([]float32, error) {
	f.durationCalls++
	if f.durationErr != nil {
		return nil, f.durationErr
	}

	d := float32(1.0)
	if len(f.durations) > 0 {
		idx := f.durationCalls - 1
		if idx >= len(f.durations) {
			idx = len(f.durations) - 1
		}
		d = f.durations[idx]
	}
	return []float32{d}, nil
}

func (f *fakeBackend) EncodeText(_ context.Context, textIDs, _, _ *onnx.Tensor) (*onnx.Tensor, error) {
	f.encodeCalls++

	seqLen := textIDs.Shape()[1]
	return onnx.NewTensor(make([]float32, 2*seqLen), []int64{1, 2, seqLen})
}

func (f *fakeBackend) EstimateVector(_ context.Context, in onnx.EstimateInputs) (*onnx.Tensor, error) {
	f.estimateCalls++
	if f.estimateFn != nil {
		return f.estimateFn(in)
	}
	return in.NoisyLatent, nil
}

func (f *fakeBackend) Vocode(_ context.Context, latent *onnx.Tensor) ([]float32, error) {
	f.vocodeCalls++
	if f.vocodeErrAt > 0 && f.vocodeCalls == f.vocodeErrAt {
		return nil, errors.New("vocoder failure")
	}

	timeLen := int(latent.Shape()[2])
	wav := make([]float32, timeLen*20)
	for i := range wav {
		wav[i] = 0.25
	}
	return wav, nil
}

func (f *fakeBackend) Close() { f.closed = true }

func newTestVocabulary(t *testing.T) *text.Vocabulary {
	t.Helper()

	table := make([]int64, 128)
	for i := range table {
		table[i] = int64(i)
	}
	data, err := json.Marshal(table)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "unicode_indexer.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	vocab, err := text.LoadVocabulary(path)
	if err != nil {
		t.Fatal(err)
	}
	return vocab
}

func newTestSession(t *testing.T, backend Backend) *Session {
	t.Helper()
	return NewSessionWithBackend(backend, testModelConfig(), newTestVocabulary(t))
}

func TestSynthesizeSingleChunk(t *testing.T) {
	backend := &fakeBackend{durations: []float32{1.0}}
	session := newTestSession(t, backend)

	wav, duration, err := session.Synthesize(context.Background(), SynthesisRequest{
		Text:       "Hello there. How are you?",
		Style:      newStyle(t, 1),
		TotalSteps: 4,
		Speed:      1.0,
		SilenceSec: 0.3,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if backend.durationCalls != 1 {
		t.Errorf("duration predictor ran %d times, want 1 (single chunk)", backend.durationCalls)
	}
	if backend.estimateCalls != 4 {
		t.Errorf("estimator ran %d times, want TotalSteps=4", backend.estimateCalls)
	}
	if len(wav) != 16000 {
		t.Errorf("len(wav) = %d, want 16000 (1.0s at 16 kHz)", len(wav))
	}
	if math.Abs(duration-1.0) > 1e-6 {
		t.Errorf("duration = %g, want 1.0", duration)
	}
}

func TestSynthesizeMultiChunkSilence(t *testing.T) {
	backend := &fakeBackend{durations: []float32{1.0, 1.2}}
	session := newTestSession(t, backend)

	wav, duration, err := session.Synthesize(context.Background(), SynthesisRequest{
		Text:       "First part.\n\nSecond part.",
		Style:      newStyle(t, 1),
		TotalSteps: 2,
		Speed:      1.0,
		SilenceSec: 0.3,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if backend.durationCalls != 2 {
		t.Fatalf("duration predictor ran %d times, want 2 chunks", backend.durationCalls)
	}
	if backend.estimateCalls != 4 {
		t.Errorf("estimator ran %d times, want 2 chunks × 2 steps", backend.estimateCalls)
	}
	if math.Abs(duration-2.5) > 1e-6 {
		t.Errorf("total duration = %g, want 2.5 (1.0 + 0.3 silence + 1.2)", duration)
	}

	// 16000 speech + 4800 silence + 19200 speech.
	silenceLen := int(math.Round(0.3 * 16000))
	chunk2Dur := float32(1.2)
	wantLen := 16000 + silenceLen + int(float64(16000)*float64(chunk2Dur))
	if len(wav) != wantLen {
		t.Fatalf("len(wav) = %d, want %d", len(wav), wantLen)
	}

	for i := 16000; i < 16000+silenceLen; i++ {
		if wav[i] != 0 {
			t.Fatalf("wav[%d] = %g inside silence gap, want 0", i, wav[i])
		}
	}
	if wav[0] == 0 || wav[16000+silenceLen] == 0 {
		t.Error("speech regions should carry non-zero samples")
	}
}

func TestSynthesizeSpeedScalesDuration(t *testing.T) {
	backend := &fakeBackend{durations: []float32{1.0}}
	session := newTestSession(t, backend)

	wav, duration, err := session.Synthesize(context.Background(), SynthesisRequest{
		Text:       "Hello there.",
		Style:      newStyle(t, 1),
		TotalSteps: 1,
		Speed:      2.0,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if math.Abs(duration-0.5) > 1e-6 {
		t.Errorf("duration = %g, want 0.5 (speed 2.0 halves 1.0s)", duration)
	}
	if len(wav) != 8000 {
		t.Errorf("len(wav) = %d, want 8000", len(wav))
	}
}

func TestSynthesizeRejectsInvalidStyle(t *testing.T) {
	backend := &fakeBackend{}
	session := newTestSession(t, backend)

	_, _, err := session.Synthesize(context.Background(), SynthesisRequest{
		Text:       "Hello.",
		Style:      newStyle(t, 2),
		TotalSteps: 4,
		Speed:      1.0,
	})
	if !errors.Is(err, ErrInvalidStyle) {
		t.Fatalf("error = %v, want ErrInvalidStyle", err)
	}

	if backend.durationCalls != 0 || backend.estimateCalls != 0 || backend.vocodeCalls != 0 {
		t.Error("invalid style must be rejected before any inference")
	}
}

func TestSynthesizeUsesSessionStyle(t *testing.T) {
	backend := &fakeBackend{}
	session := newTestSession(t, backend)

	if err := session.SetStyle(newStyle(t, 1)); err != nil {
		t.Fatalf("SetStyle: %v", err)
	}

	_, _, err := session.Synthesize(context.Background(), SynthesisRequest{
		Text:       "Hello.",
		TotalSteps: 1,
		Speed:      1.0,
	})
	if err != nil {
		t.Fatalf("Synthesize with session style: %v", err)
	}
}

func TestSetStyleRejectsInvalid(t *testing.T) {
	session := newTestSession(t, &fakeBackend{})

	if err := session.SetStyle(newStyle(t, 3)); !errors.Is(err, ErrInvalidStyle) {
		t.Errorf("SetStyle error = %v, want ErrInvalidStyle", err)
	}
}

func TestSynthesizeFailureDiscardsPartialOutput(t *testing.T) {
	backend := &fakeBackend{vocodeErrAt: 2}
	session := newTestSession(t, backend)

	wav, duration, err := session.Synthesize(context.Background(), SynthesisRequest{
		Text:       "First part.\n\nSecond part.",
		Style:      newStyle(t, 1),
		TotalSteps: 1,
		Speed:      1.0,
	})
	if err == nil {
		t.Fatal("expected error from second chunk")
	}
	if wav != nil {
		t.Errorf("wav = %d samples, want nil (no partial waveform)", len(wav))
	}
	if duration != 0 {
		t.Errorf("duration = %g, want 0", duration)
	}
}

func TestSynthesizeParameterValidation(t *testing.T) {
	session := newTestSession(t, &fakeBackend{})
	style := newStyle(t, 1)

	if _, _, err := session.Synthesize(context.Background(), SynthesisRequest{
		Text: "Hi.", Style: style, TotalSteps: 1, Speed: 0,
	}); err == nil {
		t.Error("expected error for zero speed")
	}

	if _, _, err := session.Synthesize(context.Background(), SynthesisRequest{
		Text: "Hi.", Style: style, TotalSteps: -1, Speed: 1.0,
	}); err == nil {
		t.Error("expected error for negative steps")
	}

	if _, _, err := session.Synthesize(context.Background(), SynthesisRequest{
		Text: "   ", Style: style, TotalSteps: 1, Speed: 1.0,
	}); !errors.Is(err, text.ErrEmptyText) {
		t.Error("expected ErrEmptyText for whitespace-only input")
	}
}

func TestSynthesizeProgressAcrossChunks(t *testing.T) {
	backend := &fakeBackend{}
	session := newTestSession(t, backend)

	var calls int
	_, _, err := session.Synthesize(context.Background(), SynthesisRequest{
		Text:       "First part.\n\nSecond part.",
		Style:      newStyle(t, 1),
		TotalSteps: 3,
		Speed:      1.0,
		OnProgress: func(step, total int) {
			calls++
			if total != 3 {
				t.Errorf("progress total = %d, want 3", total)
			}
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 6 {
		t.Errorf("progress fired %d times, want 6 (2 chunks × 3 steps)", calls)
	}
}

func TestSessionClose(t *testing.T) {
	backend := &fakeBackend{}
	session := newTestSession(t, backend)

	session.Close()
	session.Close()

	if !backend.closed {
		t.Error("Close should release the backend")
	}
}

func TestSessionSampleRate(t *testing.T) {
	session := newTestSession(t, &fakeBackend{})

	if got := session.SampleRate(); got != 16000 {
		t.Errorf("SampleRate() = %d, want 16000", got)
	}
}
