package tts

import (
	"encoding/json"
	"fmt"
	"os"
)

// ModelConfig holds the acoustic geometry of a model bundle, loaded from the
// bundle's tts.json asset.
type ModelConfig struct {
	AE struct {
		SampleRate    int `json:"sample_rate"`
		BaseChunkSize int `json:"base_chunk_size"`
	} `json:"ae"`
	TTL struct {
		ChunkCompressFactor int `json:"chunk_compress_factor"`
		LatentDim           int `json:"latent_dim"`
	} `json:"ttl"`
}

// LoadModelConfig reads and validates a model configuration asset.
func LoadModelConfig(path string) (ModelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ModelConfig{}, fmt.Errorf("read model config: %w", err)
	}

	var cfg ModelConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return ModelConfig{}, fmt.Errorf("decode model config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return ModelConfig{}, err
	}

	return cfg, nil
}

func (c ModelConfig) Validate() error {
	if c.AE.SampleRate < 1 {
		return fmt.Errorf("model config: sample_rate %d must be >= 1", c.AE.SampleRate)
	}
	if c.AE.BaseChunkSize < 1 {
		return fmt.Errorf("model config: base_chunk_size %d must be >= 1", c.AE.BaseChunkSize)
	}
	if c.TTL.ChunkCompressFactor < 1 {
		return fmt.Errorf("model config: chunk_compress_factor %d must be >= 1", c.TTL.ChunkCompressFactor)
	}
	if c.TTL.LatentDim < 1 {
		return fmt.Errorf("model config: latent_dim %d must be >= 1", c.TTL.LatentDim)
	}

	return nil
}

// LatentChunkSize returns the number of waveform samples covered by one
// latent timestep.
func (c ModelConfig) LatentChunkSize() int {
	return c.AE.BaseChunkSize * c.TTL.ChunkCompressFactor
}

// LatentChannels returns the channel count of the compressed latent.
func (c ModelConfig) LatentChannels() int {
	return c.TTL.LatentDim * c.TTL.ChunkCompressFactor
}
