package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/veigap/austral-genai-rag/internal/console"
	"github.com/veigap/austral-genai-rag/internal/toolsets"
)

// NewToolsCmd creates the 'tools' command that prints a server's tool
// descriptors without contacting its backend.
func NewToolsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:       "tools <math|weather|elasticsearch|chroma>",
		Short:     "List the tools an MCP server exposes",
		Args:      cobra.ExactArgs(1),
		ValidArgs: toolsets.Servers,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			backends, err := toolsets.NewBackends(cfg, args[0], logger)
			if err != nil {
				return err
			}
			defer backends.Close()

			set, err := toolsets.Build(args[0], cfg, backends)
			if err != nil {
				return err
			}
			reg, err := set.Registry()
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(reg.Describe())
			}
			console.NewPrinter(cmd.OutOrStdout()).Tools(reg.Describe())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw tools/list descriptors")
	return cmd
}
