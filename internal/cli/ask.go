package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/veigap/austral-genai-rag/internal/config"
	"github.com/veigap/austral-genai-rag/internal/console"
	"github.com/veigap/austral-genai-rag/internal/llm"
	"github.com/veigap/austral-genai-rag/internal/mcp"
	"github.com/veigap/austral-genai-rag/internal/rag"
	"github.com/veigap/austral-genai-rag/internal/toolsets"
)

// newModel builds the chat model the drivers use. Tests replace it.
var newModel = func(cfg *config.Config, logger *slog.Logger) (rag.Model, error) {
	return llm.New(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.MaxTokens, logger)
}

// NewAskCmd creates the 'ask' command group: the three RAG drivers.
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Answer a question with retrieval-augmented generation",
		Long: `Each subcommand answers one question and exits. Without a question the
default "` + rag.DefaultQuestion + `" is asked.`,
	}
	cmd.AddCommand(newAskDirectCmd())
	cmd.AddCommand(newAskAgentCmd())
	cmd.AddCommand(newAskMCPCmd())
	return cmd
}

type retrievalFlags struct {
	backend string
	topK    int
}

func (f *retrievalFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.backend, "backend", "elasticsearch", "retrieval backend: elasticsearch or chroma")
	cmd.Flags().IntVarP(&f.topK, "top-k", "k", 3, "number of documents to retrieve")
}

func newAskDirectCmd() *cobra.Command {
	var flags retrievalFlags
	cmd := &cobra.Command{
		Use:   "direct [question]",
		Short: "Retrieve documents, then ask the model once with them as context",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRetrieval(cmd, args, flags, rag.Direct)
		},
	}
	flags.register(cmd)
	return cmd
}

func newAskAgentCmd() *cobra.Command {
	var flags retrievalFlags
	cmd := &cobra.Command{
		Use:   "agent [question]",
		Short: "Let the model decide when to search the knowledge base",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRetrieval(cmd, args, flags, rag.ToolAgent)
		},
	}
	flags.register(cmd)
	return cmd
}

type retrievalFlow func(ctx context.Context, m rag.Model, r rag.Retriever, question string, k int) (*rag.Answer, error)

func runRetrieval(cmd *cobra.Command, args []string, flags retrievalFlags, flow retrievalFlow) error {
	if flags.topK < 1 {
		return fmt.Errorf("--top-k must be at least 1, got %d", flags.topK)
	}
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	model, err := newModel(cfg, logger)
	if err != nil {
		return err
	}
	backends, err := toolsets.NewBackends(cfg, flags.backend, logger)
	if err != nil {
		return err
	}
	defer backends.Close()
	if cfg.SeedOnStart {
		seedLocal(ctx, cfg, backends, logger)
	}

	var retriever rag.Retriever
	switch flags.backend {
	case "elasticsearch":
		retriever = &rag.FullTextRetriever{Backend: backends.FullText, Index: cfg.DefaultIndex}
	case "chroma":
		retriever = &rag.VectorRetriever{Store: backends.Vectors, Embedder: backends.Embedder, Collection: cfg.DefaultCollection}
	default:
		return fmt.Errorf("unknown backend %q (want elasticsearch or chroma)", flags.backend)
	}

	question := questionFrom(args)
	return answer(cmd, question, func() (*rag.Answer, error) {
		return flow(ctx, model, retriever, question, flags.topK)
	})
}

func newAskMCPCmd() *cobra.Command {
	var url, server string
	cmd := &cobra.Command{
		Use:   "mcp [question]",
		Short: "Let the model use the tools of an MCP server",
		Example: `  # connect to a running HTTP server
  ragdemo ask mcp --url http://localhost:3000/mcp

  # spawn a stdio server as a child process
  ragdemo ask mcp --server math "What is 12 times 7?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (url == "") == (server == "") {
				return fmt.Errorf("exactly one of --url or --server is required")
			}
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			model, err := newModel(cfg, logger)
			if err != nil {
				return err
			}
			client, err := connect(ctx, cmd, url, server, cfg.APIKey)
			if err != nil {
				return err
			}
			defer client.Close()

			info, err := client.Initialize(ctx)
			if err != nil {
				return fmt.Errorf("initialize: %w", err)
			}
			logger.Info("connected to mcp server", "server", info.ServerInfo.Name, "version", info.ServerInfo.Version)

			question := questionFrom(args)
			return answer(cmd, question, func() (*rag.Answer, error) {
				return rag.MCPAgent(ctx, model, client, info.Instructions, question)
			})
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "MCP HTTP endpoint, e.g. http://localhost:3000/mcp")
	cmd.Flags().StringVar(&server, "server", "", "spawn `ragdemo serve <server>` over stdio")
	return cmd
}

// connect opens an HTTP client for url, or spawns this binary as a stdio
// server. The child inherits the environment and logs to our stderr.
func connect(ctx context.Context, cmd *cobra.Command, url, server, apiKey string) (*mcp.Client, error) {
	if url != "" {
		return mcp.NewHTTPClient(url, apiKey), nil
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	child := exec.CommandContext(ctx, exe, "serve", server, "--transport", "stdio")
	child.Stderr = cmd.ErrOrStderr()
	return mcp.NewStdioClient(child)
}

func answer(cmd *cobra.Command, question string, run func() (*rag.Answer, error)) error {
	p := console.NewPrinter(cmd.OutOrStdout())
	p.Question(question)

	spin := console.StartSpinner(cmd.ErrOrStderr(), "Thinking...", isTerminal(cmd.ErrOrStderr()))
	ans, err := run()
	spin.Stop()
	if err != nil {
		return err
	}
	p.Answer(ans)
	return nil
}

func questionFrom(args []string) string {
	if q := strings.TrimSpace(strings.Join(args, " ")); q != "" {
		return q
	}
	return rag.DefaultQuestion
}
