package audio

// PeakNormalize scales samples so the peak amplitude reaches 1.0.
// Silent input is returned unchanged.
func PeakNormalize(samples []float32) []float32 {
	var peak float32
	for _, s := range samples {
		if s > peak {
			peak = s
		}
		if -s > peak {
			peak = -s
		}
	}

	if peak == 0 {
		return samples
	}

	out := make([]float32, len(samples))
	scale := 1.0 / peak
	for i, s := range samples {
		out[i] = s * scale
	}

	return out
}

// FadeIn applies a linear fade-in ramp over the given duration in milliseconds.
func FadeIn(samples []float32, sampleRate int, ms float64) []float32 {
	n := rampLength(sampleRate, ms, len(samples))
	if n == 0 {
		return samples
	}

	out := append([]float32(nil), samples...)
	for i := 0; i < n; i++ {
		out[i] *= float32(i) / float32(n)
	}

	return out
}

// FadeOut applies a linear fade-out ramp over the given duration in milliseconds.
func FadeOut(samples []float32, sampleRate int, ms float64) []float32 {
	n := rampLength(sampleRate, ms, len(samples))
	if n == 0 {
		return samples
	}

	out := append([]float32(nil), samples...)
	base := len(out) - n
	for i := 0; i < n; i++ {
		out[base+i] *= float32(n-1-i) / float32(n)
	}

	return out
}

func rampLength(sampleRate int, ms float64, max int) int {
	if ms <= 0 || sampleRate < 1 {
		return 0
	}

	n := int(float64(sampleRate) * ms / 1000.0)
	if n > max {
		n = max
	}

	return n
}
