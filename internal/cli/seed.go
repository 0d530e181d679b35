package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veigap/austral-genai-rag/internal/console"
	"github.com/veigap/austral-genai-rag/internal/seed"
	"github.com/veigap/austral-genai-rag/internal/toolsets"
)

// NewSeedCmd creates the 'seed' command that loads the demo catalogue.
func NewSeedCmd() *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:       "seed <elasticsearch|chroma>",
		Short:     "Load the demo product catalogue into a search backend",
		Long:      "Writes every product with its fixed id, so running seed twice leaves one copy of each.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"elasticsearch", "chroma"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			products, err := seed.Products()
			if err != nil {
				return err
			}
			backends, err := toolsets.NewBackends(cfg, args[0], logger)
			if err != nil {
				return err
			}
			defer backends.Close()

			var n int
			switch args[0] {
			case "elasticsearch":
				if target == "" {
					target = cfg.DefaultIndex
				}
				n, err = seed.LoadFullText(ctx, backends.FullText, target, products)
			case "chroma":
				if target == "" {
					target = cfg.DefaultCollection
				}
				n, err = seed.LoadVectors(ctx, backends.Vectors, backends.Embedder, target, products)
			default:
				return fmt.Errorf("unknown seed target %q (want elasticsearch or chroma)", args[0])
			}
			if err != nil {
				return err
			}
			console.NewPrinter(cmd.OutOrStdout()).Info(fmt.Sprintf("seeded %d products into %s %q", n, args[0], target))
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "index or collection name (default from DEFAULT_INDEX / DEFAULT_COLLECTION)")
	return cmd
}
