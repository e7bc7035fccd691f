package tts

import (
	"context"

	"github.com/example/go-supertone/internal/onnx"
)

// Backend abstracts the four model graphs behind the synthesis pipeline so
// chunking, masking and concatenation logic can be tested against
// deterministic fakes. *onnx.Engine is the production implementation.
type Backend interface {
	PredictDuration(ctx context.Context, textIDs, styleDP, textMask *onnx.Tensor) ([]float32, error)
	EncodeText(ctx context.Context, textIDs, styleTTL, textMask *onnx.Tensor) (*onnx.Tensor, error)
	EstimateVector(ctx context.Context, in onnx.EstimateInputs) (*onnx.Tensor, error)
	Vocode(ctx context.Context, latent *onnx.Tensor) ([]float32, error)
	Close()
}
