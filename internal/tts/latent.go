package tts

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/example/go-supertone/internal/onnx"
)

// LatentSampler draws standard-normal noise latents sized from predicted
// durations, along with the matching timestep mask.
type LatentSampler struct {
	cfg ModelConfig
	rng *rand.Rand
}

// NewLatentSampler creates a sampler using its own RNG stream.
func NewLatentSampler(cfg ModelConfig) *LatentSampler {
	return NewLatentSamplerWithRand(cfg, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
}

// NewLatentSamplerWithRand creates a sampler with an explicit RNG, making
// sampled latents reproducible in tests.
func NewLatentSamplerWithRand(cfg ModelConfig, rng *rand.Rand) *LatentSampler {
	return &LatentSampler{cfg: cfg, rng: rng}
}

// Sample generates a noise latent [batch, channels, timeLen] and its mask
// [batch, 1, timeLen] from per-row predicted durations in seconds.
//
// timeLen is ceil(floor(maxDuration·sampleRate) / latentChunkSize); each
// row's valid length uses the same formula with its own duration. Every
// element at a time index at or beyond the row's valid length is exactly 0,
// so padding carries no energy into denoising.
func (s *LatentSampler) Sample(durations []float32) (latent, mask *onnx.Tensor, err error) {
	if len(durations) == 0 {
		return nil, nil, fmt.Errorf("sample latent: no durations")
	}

	chunkSize := s.cfg.LatentChunkSize()
	channels := s.cfg.LatentChannels()

	validLens := make([]int, len(durations))
	timeLen := 0
	for i, d := range durations {
		wavLen := int(float64(d) * float64(s.cfg.AE.SampleRate))
		validLens[i] = (wavLen + chunkSize - 1) / chunkSize
		if validLens[i] > timeLen {
			timeLen = validLens[i]
		}
	}

	if timeLen == 0 {
		return nil, nil, fmt.Errorf("sample latent: predicted durations round to zero timesteps")
	}

	bsz := len(durations)
	latentData := make([]float32, bsz*channels*timeLen)
	maskData := make([]float32, bsz*timeLen)

	for b := 0; b < bsz; b++ {
		valid := validLens[b]

		for c := 0; c < channels; c++ {
			row := latentData[(b*channels+c)*timeLen:][:timeLen]
			for t := 0; t < valid; t++ {
				row[t] = s.normal()
			}
		}

		maskRow := maskData[b*timeLen:][:timeLen]
		for t := 0; t < valid; t++ {
			maskRow[t] = 1.0
		}
	}

	latent, err = onnx.NewTensor(latentData, []int64{int64(bsz), int64(channels), int64(timeLen)})
	if err != nil {
		return nil, nil, err
	}

	mask, err = onnx.NewTensor(maskData, []int64{int64(bsz), 1, int64(timeLen)})
	if err != nil {
		return nil, nil, err
	}

	return latent, mask, nil
}

// normal draws one standard-normal value via the Box–Muller transform.
// u1 is clamped away from 0 to keep the logarithm finite.
func (s *LatentSampler) normal() float32 {
	const eps = 1e-10

	u1 := math.Max(eps, s.rng.Float64())
	u2 := s.rng.Float64()

	return float32(math.Sqrt(-2.0*math.Log(u1)) * math.Cos(2.0*math.Pi*u2))
}
