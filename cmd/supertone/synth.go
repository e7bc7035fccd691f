package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/go-supertone/internal/audio"
	"github.com/example/go-supertone/internal/config"
	"github.com/example/go-supertone/internal/tts"
	"github.com/spf13/cobra"
)

func newSynthCmd() *cobra.Command {
	var text string
	var out string
	var voice string
	var steps int
	var speed float64
	var silence float64
	var maxChunkChars int
	var progress bool
	var normalize bool
	var fadeInMS float64
	var fadeOutMS float64

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize text to WAV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			inputText, err := readSynthText(text, os.Stdin)
			if err != nil {
				return err
			}

			style, err := resolveStyle(cfg, voice)
			if err != nil {
				return err
			}

			session, err := tts.NewSession(cfg)
			if err != nil {
				return err
			}
			defer session.Close()

			req := tts.SynthesisRequest{
				Text:          inputText,
				Style:         style,
				TotalSteps:    resolveInt(steps, cfg.Synth.TotalSteps),
				Speed:         resolveFloat(speed, cfg.Synth.Speed),
				SilenceSec:    resolveSilence(cmd.Flags().Changed("silence"), silence, cfg.Synth.SilenceSec),
				MaxChunkChars: resolveInt(maxChunkChars, cfg.Synth.MaxChunkChars),
			}
			if progress {
				req.OnProgress = func(step, totalSteps int) {
					_, _ = fmt.Fprintf(os.Stderr, "\rdenoise %d/%d", step, totalSteps)
					if step == totalSteps {
						_, _ = fmt.Fprintln(os.Stderr)
					}
				}
			}

			samples, duration, err := session.Synthesize(cmd.Context(), req)
			if err != nil {
				return err
			}

			sampleRate := session.SampleRate()
			if normalize {
				samples = audio.PeakNormalize(samples)
			}
			if fadeInMS > 0 {
				samples = audio.FadeIn(samples, sampleRate, fadeInMS)
			}
			if fadeOutMS > 0 {
				samples = audio.FadeOut(samples, sampleRate, fadeOutMS)
			}

			wavData, err := audio.EncodeWAVPCM16(samples, sampleRate)
			if err != nil {
				return err
			}

			if err := writeSynthOutput(out, wavData, os.Stdout); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(os.Stderr, "synthesized %.2fs of audio\n", duration)
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to synthesize (if empty, read from stdin)")
	cmd.Flags().StringVar(&out, "out", "out.wav", "Output WAV path ('-' for stdout)")
	cmd.Flags().StringVar(&voice, "voice", "", "Voice ID from the manifest or a style JSON path (overrides config)")
	cmd.Flags().IntVar(&steps, "steps", 0, "Denoising iteration count (0 uses config)")
	cmd.Flags().Float64Var(&speed, "speed", 0, "Speech speed factor (0 uses config)")
	cmd.Flags().Float64Var(&silence, "silence", 0, "Inter-chunk silence in seconds (unset uses config; 0 disables)")
	cmd.Flags().IntVar(&maxChunkChars, "max-chunk-chars", 0, "Maximum characters per chunk (0 uses config)")
	cmd.Flags().BoolVar(&progress, "progress", false, "Print denoising progress to stderr")
	cmd.Flags().BoolVar(&normalize, "normalize", false, "Peak-normalize output audio")
	cmd.Flags().Float64Var(&fadeInMS, "fade-in-ms", 0, "Apply linear fade-in duration in milliseconds")
	cmd.Flags().Float64Var(&fadeOutMS, "fade-out-ms", 0, "Apply linear fade-out duration in milliseconds")

	return cmd
}

// resolveStyle loads the voice style selected by flag or config. A value
// containing a path separator or a .json suffix is treated as a direct style
// file; anything else is looked up in the voice manifest.
func resolveStyle(cfg config.Config, voiceFlag string) (*tts.Style, error) {
	voice := strings.TrimSpace(voiceFlag)
	if voice == "" {
		voice = strings.TrimSpace(cfg.Paths.Voice)
	}
	if voice == "" {
		return nil, fmt.Errorf("no voice selected; pass --voice or set paths.voice")
	}

	if strings.Contains(voice, string(filepath.Separator)) || strings.HasSuffix(voice, ".json") {
		return tts.LoadStyle(voice)
	}

	vm, err := tts.NewVoiceManager(cfg.Paths.VoiceManifest)
	if err != nil {
		return nil, fmt.Errorf("open voice manifest: %w", err)
	}
	return vm.LoadVoice(voice)
}

func resolveInt(flagVal, cfgVal int) int {
	if flagVal > 0 {
		return flagVal
	}
	return cfgVal
}

func resolveFloat(flagVal, cfgVal float64) float64 {
	if flagVal > 0 {
		return flagVal
	}
	return cfgVal
}

// resolveSilence keys on whether the flag was set at all, so an explicit
// zero disables inter-chunk silence instead of falling back to the config.
func resolveSilence(set bool, flagVal, cfgVal float64) float64 {
	if set {
		return flagVal
	}
	return cfgVal
}

func readSynthText(text string, stdin io.Reader) (string, error) {
	if strings.TrimSpace(text) != "" {
		return text, nil
	}

	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	input := strings.TrimSpace(string(b))
	if input == "" {
		return "", fmt.Errorf("either provide --text or pipe text on stdin")
	}
	return input, nil
}

func writeSynthOutput(outPath string, wavData []byte, stdout io.Writer) error {
	if outPath == "-" {
		if stdout == nil {
			return fmt.Errorf("stdout writer is nil")
		}
		_, err := stdout.Write(wavData)
		return err
	}
	return os.WriteFile(outPath, wavData, 0o644)
}
