// Package cli implements the ragdemo command tree.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/veigap/austral-genai-rag/internal/config"
	"github.com/veigap/austral-genai-rag/internal/console"
)

// Version information (set via ldflags during build)
var (
	Version = "dev"
	Commit  = "none"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragdemo",
		Short: "Retrieval-augmented generation demos over MCP",
		Long: `ragdemo serves small MCP tool servers (math, weather, elasticsearch, chroma)
over stdio or HTTP, loads demo product data into the search backends, and runs
question-answering drivers against them.`,
		Version:       Version + " (commit: " + Commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(NewServeCmd())
	root.AddCommand(NewSeedCmd())
	root.AddCommand(NewAskCmd())
	root.AddCommand(NewToolsCmd())
	return root
}

// Execute runs the command tree and prints a one-line diagnostic on failure.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		console.NewPrinter(stderr).Error(err)
		return err
	}
	return nil
}

// setup loads configuration and builds the stderr JSON logger every
// command logs through. stdout is reserved for protocol traffic and answers.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
