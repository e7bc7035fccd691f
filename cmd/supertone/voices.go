package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/example/go-supertone/internal/tts"
	"github.com/spf13/cobra"
)

func newVoicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List voices from the manifest",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			vm, err := tts.NewVoiceManager(cfg.Paths.VoiceManifest)
			if err != nil {
				return fmt.Errorf("open voice manifest: %w", err)
			}

			voices := vm.ListVoices()
			if len(voices) == 0 {
				_, _ = fmt.Fprintln(os.Stdout, "no voices in manifest")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tPATH\tLICENSE")
			for _, v := range voices {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", v.ID, v.Path, v.License)
			}
			return w.Flush()
		},
	}

	return cmd
}
