package tts

import (
	"context"
	"fmt"

	"github.com/example/go-supertone/internal/onnx"
)

// ProgressFunc receives 1-based step numbers during denoising. It is
// informational only and has no effect on the computation.
type ProgressFunc func(step, totalSteps int)

// DenoiseState carries the conditioning tensors that stay fixed across the
// refinement loop. The latent itself is loop-carried and replaced wholesale
// each iteration.
type DenoiseState struct {
	Latent     *onnx.Tensor // [batch, channels, time] initial noise
	LatentMask *onnx.Tensor
	TextEmb    *onnx.Tensor
	StyleTTL   *onnx.Tensor
	TextMask   *onnx.Tensor
}

// Denoise runs the fixed-count refinement loop against the vector estimator.
// It issues exactly totalSteps estimator calls, with current_step taking
// values 0..totalSteps-1 in order, broadcast per batch row. Any inference
// failure aborts immediately; there is no retry inside the loop. With
// totalSteps == 0 the initial noise latent is returned untouched.
func Denoise(ctx context.Context, backend Backend, st DenoiseState, totalSteps int, onProgress ProgressFunc) (*onnx.Tensor, error) {
	if totalSteps < 0 {
		return nil, fmt.Errorf("denoise: total steps %d must be >= 0", totalSteps)
	}

	bsz := st.Latent.Shape()[0]

	totalVec := make([]float32, bsz)
	for b := range totalVec {
		totalVec[b] = float32(totalSteps)
	}

	totalStepTensor, err := onnx.NewTensor(totalVec, []int64{bsz})
	if err != nil {
		return nil, fmt.Errorf("denoise: total_step tensor: %w", err)
	}

	latent := st.Latent

	for step := 0; step < totalSteps; step++ {
		currentVec := make([]float32, bsz)
		for b := range currentVec {
			currentVec[b] = float32(step)
		}

		currentStepTensor, err := onnx.NewTensor(currentVec, []int64{bsz})
		if err != nil {
			return nil, fmt.Errorf("denoise: current_step tensor: %w", err)
		}

		denoised, err := backend.EstimateVector(ctx, onnx.EstimateInputs{
			NoisyLatent: latent,
			TextEmb:     st.TextEmb,
			StyleTTL:    st.StyleTTL,
			LatentMask:  st.LatentMask,
			TextMask:    st.TextMask,
			CurrentStep: currentStepTensor,
			TotalStep:   totalStepTensor,
		})
		if err != nil {
			return nil, fmt.Errorf("denoise step %d: %w", step, err)
		}

		latent = denoised

		if onProgress != nil {
			onProgress(step+1, totalSteps)
		}
	}

	return latent, nil
}
