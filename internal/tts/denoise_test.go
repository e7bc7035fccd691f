package tts

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/example/go-supertone/internal/onnx"
)

func denoiseState(t *testing.T) DenoiseState {
	t.Helper()

	latent, err := onnx.NewTensor(make([]float32, 2*8*4), []int64{2, 8, 4})
	if err != nil {
		t.Fatal(err)
	}
	latentMask, err := onnx.NewTensor(make([]float32, 2*4), []int64{2, 1, 4})
	if err != nil {
		t.Fatal(err)
	}
	emb, err := onnx.NewTensor(make([]float32, 2*2*3), []int64{2, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	style, err := onnx.NewTensor(make([]float32, 6), []int64{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	textMask, err := onnx.NewTensor(make([]float32, 2*3), []int64{2, 1, 3})
	if err != nil {
		t.Fatal(err)
	}

	return DenoiseState{
		Latent:     latent,
		LatentMask: latentMask,
		TextEmb:    emb,
		StyleTTL:   style,
		TextMask:   textMask,
	}
}

func TestDenoiseStepSequence(t *testing.T) {
	st := denoiseState(t)
	const totalSteps = 4

	var currentSteps []float32
	var totalValues []float32

	backend := &fakeBackend{
		estimateFn: func(in onnx.EstimateInputs) (*onnx.Tensor, error) {
			cur, err := in.CurrentStep.Float32Data()
			if err != nil {
				t.Fatal(err)
			}
			if len(cur) != 2 || cur[0] != cur[1] {
				t.Errorf("current_step = %v, want identical per-row values", cur)
			}
			currentSteps = append(currentSteps, cur[0])

			total, err := in.TotalStep.Float32Data()
			if err != nil {
				t.Fatal(err)
			}
			totalValues = append(totalValues, total[0])

			out, err := onnx.NewTensor(make([]float32, 2*8*4), []int64{2, 8, 4})
			if err != nil {
				t.Fatal(err)
			}
			return out, nil
		},
	}

	var progress []int
	final, err := Denoise(context.Background(), backend, st, totalSteps, func(step, total int) {
		if total != totalSteps {
			t.Errorf("progress total = %d, want %d", total, totalSteps)
		}
		progress = append(progress, step)
	})
	if err != nil {
		t.Fatalf("Denoise: %v", err)
	}

	if !reflect.DeepEqual(currentSteps, []float32{0, 1, 2, 3}) {
		t.Errorf("current_step sequence = %v, want [0 1 2 3]", currentSteps)
	}
	for i, v := range totalValues {
		if v != totalSteps {
			t.Errorf("call %d: total_step = %g, want %d", i, v, totalSteps)
		}
	}
	if !reflect.DeepEqual(progress, []int{1, 2, 3, 4}) {
		t.Errorf("progress steps = %v, want [1 2 3 4]", progress)
	}
	if final == st.Latent {
		t.Error("final latent should be the estimator output, not the initial noise")
	}
}

func TestDenoiseReplacesLatentWholesale(t *testing.T) {
	st := denoiseState(t)

	var seen []*onnx.Tensor
	outputs := make([]*onnx.Tensor, 0, 3)

	backend := &fakeBackend{
		estimateFn: func(in onnx.EstimateInputs) (*onnx.Tensor, error) {
			seen = append(seen, in.NoisyLatent)
			out, err := onnx.NewTensor(make([]float32, 2*8*4), []int64{2, 8, 4})
			if err != nil {
				t.Fatal(err)
			}
			outputs = append(outputs, out)
			return out, nil
		},
	}

	final, err := Denoise(context.Background(), backend, st, 3, nil)
	if err != nil {
		t.Fatal(err)
	}

	if seen[0] != st.Latent {
		t.Error("step 0 must consume the initial noise latent")
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] != outputs[i-1] {
			t.Errorf("step %d input is not the previous step's output", i)
		}
	}
	if final != outputs[2] {
		t.Error("final latent must be the last step's output")
	}
}

func TestDenoiseZeroStepsReturnsInitialLatent(t *testing.T) {
	st := denoiseState(t)

	backend := &fakeBackend{
		estimateFn: func(_ onnx.EstimateInputs) (*onnx.Tensor, error) {
			t.Fatal("estimator must not run with zero steps")
			return nil, nil
		},
	}

	final, err := Denoise(context.Background(), backend, st, 0, nil)
	if err != nil {
		t.Fatalf("Denoise: %v", err)
	}
	if final != st.Latent {
		t.Error("zero steps should return the initial latent untouched")
	}
}

func TestDenoiseNegativeSteps(t *testing.T) {
	st := denoiseState(t)

	if _, err := Denoise(context.Background(), &fakeBackend{}, st, -1, nil); err == nil {
		t.Fatal("expected error for negative step count")
	}
}

func TestDenoiseAbortsOnEstimatorError(t *testing.T) {
	st := denoiseState(t)
	wantErr := errors.New("estimator blew up")

	calls := 0
	backend := &fakeBackend{
		estimateFn: func(_ onnx.EstimateInputs) (*onnx.Tensor, error) {
			calls++
			if calls == 2 {
				return nil, wantErr
			}
			out, err := onnx.NewTensor(make([]float32, 2*8*4), []int64{2, 8, 4})
			if err != nil {
				t.Fatal(err)
			}
			return out, nil
		},
	}

	_, err := Denoise(context.Background(), backend, st, 5, nil)
	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want wrapped %v", err, wantErr)
	}
	if calls != 2 {
		t.Errorf("estimator ran %d times, want 2 (no retry after failure)", calls)
	}
}
