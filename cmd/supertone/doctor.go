package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/example/go-supertone/internal/audio"
	"github.com/example/go-supertone/internal/onnx"
	"github.com/example/go-supertone/internal/text"
	"github.com/example/go-supertone/internal/tts"
	"github.com/spf13/cobra"
)

const (
	passMark = "[ok]"
	failMark = "[fail]"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local runtime and model bundle checks",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			var failures int
			report := func(name string, err error) {
				if err != nil {
					failures++
					_, _ = fmt.Fprintf(os.Stdout, "%s %s: %v\n", failMark, name, err)
					return
				}
				_, _ = fmt.Fprintf(os.Stdout, "%s %s\n", passMark, name)
			}

			rt, rtErr := onnx.DetectRuntime(cfg.Runtime.ORTLibraryPath)
			if rtErr != nil {
				rt, rtErr = onnx.DetectFallbackRuntime()
			}
			if rtErr == nil {
				_, _ = fmt.Fprintf(os.Stdout, "%s onnxruntime library: %s", passMark, rt.LibraryPath)
				if rt.Version != "" {
					_, _ = fmt.Fprintf(os.Stdout, " (version %s)", rt.Version)
				}
				_, _ = fmt.Fprintln(os.Stdout)
			} else {
				failures++
				_, _ = fmt.Fprintf(os.Stdout, "%s onnxruntime library: %v\n", failMark, rtErr)
			}

			sessions, err := onnx.LoadSessions(cfg.Paths.ModelDir)
			report(fmt.Sprintf("model graphs in %s", cfg.Paths.ModelDir), err)
			for _, s := range sessions {
				_, _ = fmt.Fprintf(os.Stdout, "  graph %s: %s\n", s.Name, s.Path)
			}

			model, err := tts.LoadModelConfig(filepath.Join(cfg.Paths.ModelDir, tts.ModelConfigAsset))
			report("model config "+tts.ModelConfigAsset, err)
			if err == nil {
				_, _ = fmt.Fprintf(
					os.Stdout,
					"  sample rate %d Hz, latent chunk %d, latent channels %d\n",
					model.AE.SampleRate, model.LatentChunkSize(), model.LatentChannels(),
				)
			}

			_, err = text.LoadVocabulary(filepath.Join(cfg.Paths.ModelDir, tts.VocabularyAsset))
			report("vocabulary "+tts.VocabularyAsset, err)

			report("wav codec round trip", checkWAVCodec())

			vm, err := tts.NewVoiceManager(cfg.Paths.VoiceManifest)
			report("voice manifest "+cfg.Paths.VoiceManifest, err)
			if err == nil {
				for _, v := range vm.ListVoices() {
					if _, resolveErr := vm.ResolvePath(v.ID); resolveErr != nil {
						failures++
						_, _ = fmt.Fprintf(os.Stdout, "%s voice %s: %v\n", failMark, v.ID, resolveErr)
						continue
					}
					_, _ = fmt.Fprintf(os.Stdout, "%s voice %s\n", passMark, v.ID)
				}
			}

			if failures > 0 {
				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(os.Stdout, "doctor checks passed")
			return nil
		},
	}

	return cmd
}

// checkWAVCodec encodes a short ramp and decodes it back, verifying the
// encode and decode paths agree before any synthesis is attempted.
func checkWAVCodec() error {
	const rate = 16000
	const tolerance = 3.0 / 32768.0

	samples := make([]float32, 64)
	for i := range samples {
		samples[i] = float32(i)/64 - 0.5
	}

	data, err := audio.EncodeWAVPCM16(samples, rate)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	decoded, err := audio.DecodeWAV(data, rate)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if len(decoded) != len(samples) {
		return fmt.Errorf("round trip returned %d samples, want %d", len(decoded), len(samples))
	}
	for i := range samples {
		if diff := float64(decoded[i] - samples[i]); diff > tolerance || diff < -tolerance {
			return fmt.Errorf("round trip sample %d off by %g", i, diff)
		}
	}
	return nil
}
