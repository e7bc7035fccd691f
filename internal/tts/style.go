package tts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/example/go-supertone/internal/onnx"
)

// ErrInvalidStyle is returned when a style's batch dimension is not 1.
// Checked before any inference work, so a rejected style has zero side effects.
var ErrInvalidStyle = errors.New("voice style batch dimension must be 1")

// Style holds the two conditioning tensors of one voice: "ttl" carries
// timbre/prosody, "dp" conditions duration prediction. Both are shaped
// [1, D1, D2], immutable once loaded, and shared by every synthesis call
// until replaced.
type Style struct {
	TTL *onnx.Tensor
	DP  *onnx.Tensor
}

type styleTensorJSON struct {
	Dims []int64       `json:"dims"`
	Data [][][]float64 `json:"data"`
}

type styleFileJSON struct {
	StyleTTL styleTensorJSON `json:"style_ttl"`
	StyleDP  styleTensorJSON `json:"style_dp"`
}

// LoadStyle reads a voice-style JSON asset and builds both conditioning
// tensors. Failures are fatal to initialization; there is no retry.
func LoadStyle(path string) (*Style, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read voice style: %w", err)
	}

	var file styleFileJSON
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode voice style: %w", err)
	}

	ttl, err := styleTensor(file.StyleTTL, "style_ttl")
	if err != nil {
		return nil, err
	}

	dp, err := styleTensor(file.StyleDP, "style_dp")
	if err != nil {
		return nil, err
	}

	return &Style{TTL: ttl, DP: dp}, nil
}

// Validate enforces the single-utterance batch contract on both tensors.
func (s *Style) Validate() error {
	if s == nil || s.TTL == nil || s.DP == nil {
		return errors.New("voice style is not loaded")
	}

	for _, t := range []*onnx.Tensor{s.TTL, s.DP} {
		shape := t.Shape()
		if len(shape) != 3 || shape[0] != 1 {
			return fmt.Errorf("%w (shape %v)", ErrInvalidStyle, shape)
		}
	}

	return nil
}

func styleTensor(raw styleTensorJSON, name string) (*onnx.Tensor, error) {
	if len(raw.Dims) != 3 {
		return nil, fmt.Errorf("voice style %s: expected 3 dims, got %d", name, len(raw.Dims))
	}

	flat := make([]float32, 0, raw.Dims[0]*raw.Dims[1]*raw.Dims[2])
	for _, batch := range raw.Data {
		for _, row := range batch {
			for _, v := range row {
				flat = append(flat, float32(v))
			}
		}
	}

	t, err := onnx.NewTensor(flat, raw.Dims)
	if err != nil {
		return nil, fmt.Errorf("voice style %s: %w", name, err)
	}

	return t, nil
}
