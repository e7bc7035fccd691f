package tts

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-supertone/internal/onnx"
)

// newStyle builds a style with the given batch dimension on both tensors.
func newStyle(t *testing.T, batch int64) *Style {
	t.Helper()

	data := make([]float32, batch*2*3)
	ttl, err := onnx.NewTensor(data, []int64{batch, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	dp, err := onnx.NewTensor(data, []int64{batch, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	return &Style{TTL: ttl, DP: dp}
}

func TestStyleValidate(t *testing.T) {
	if err := newStyle(t, 1).Validate(); err != nil {
		t.Errorf("batch 1 style should validate, got %v", err)
	}

	err := newStyle(t, 2).Validate()
	if !errors.Is(err, ErrInvalidStyle) {
		t.Errorf("batch 2 style error = %v, want ErrInvalidStyle", err)
	}
}

func TestStyleValidateNil(t *testing.T) {
	var s *Style
	if err := s.Validate(); err == nil {
		t.Error("nil style should not validate")
	}

	if err := (&Style{}).Validate(); err == nil {
		t.Error("style with nil tensors should not validate")
	}
}

func TestStyleValidateWrongRank(t *testing.T) {
	flat, err := onnx.NewTensor(make([]float32, 6), []int64{2, 3})
	if err != nil {
		t.Fatal(err)
	}

	s := &Style{TTL: flat, DP: flat}
	if err := s.Validate(); !errors.Is(err, ErrInvalidStyle) {
		t.Errorf("2-dim style error = %v, want ErrInvalidStyle", err)
	}
}

func TestLoadStyle(t *testing.T) {
	body := `{
		"style_ttl": {"dims": [1, 2, 2], "data": [[[0.1, 0.2], [0.3, 0.4]]]},
		"style_dp": {"dims": [1, 1, 3], "data": [[[1.0, 2.0, 3.0]]]}
	}`
	path := filepath.Join(t.TempDir(), "voice.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	style, err := LoadStyle(path)
	if err != nil {
		t.Fatalf("LoadStyle: %v", err)
	}

	if err := style.Validate(); err != nil {
		t.Errorf("loaded style should validate: %v", err)
	}

	ttlData, err := style.TTL.Float32Data()
	if err != nil {
		t.Fatal(err)
	}
	want := []float32{0.1, 0.2, 0.3, 0.4}
	for i, v := range want {
		if ttlData[i] != v {
			t.Errorf("TTL data[%d] = %g, want %g", i, ttlData[i], v)
		}
	}

	dpShape := style.DP.Shape()
	if len(dpShape) != 3 || dpShape[2] != 3 {
		t.Errorf("DP shape = %v, want [1 1 3]", dpShape)
	}
}

func TestLoadStyleErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"wrong dim count", `{"style_ttl": {"dims": [2, 2], "data": []}, "style_dp": {"dims": [1, 1, 1], "data": [[[1]]]}}`},
		{"dims data mismatch", `{"style_ttl": {"dims": [1, 2, 2], "data": [[[0.1]]]}, "style_dp": {"dims": [1, 1, 1], "data": [[[1]]]}}`},
		{"malformed json", `{nope`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "voice.json")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadStyle(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}
