package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/veigap/austral-genai-rag/internal/api"
	"github.com/veigap/austral-genai-rag/internal/config"
	"github.com/veigap/austral-genai-rag/internal/mcp"
	"github.com/veigap/austral-genai-rag/internal/seed"
	"github.com/veigap/austral-genai-rag/internal/telemetry"
	"github.com/veigap/austral-genai-rag/internal/toolsets"
)

const probeTimeout = 5 * time.Second

// NewServeCmd creates the 'serve' command for running one MCP server.
func NewServeCmd() *cobra.Command {
	var (
		transport string
		port      int
	)
	cmd := &cobra.Command{
		Use:       "serve <math|weather|elasticsearch|chroma>",
		Short:     "Run an MCP tool server over stdio or HTTP",
		Args:      cobra.ExactArgs(1),
		ValidArgs: toolsets.Servers,
		Example: `  # stdio, for an MCP host that spawns the server
  ragdemo serve elasticsearch

  # HTTP on :3000 with POST /mcp and GET /health
  ragdemo serve chroma --transport http --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("transport") {
				cfg.Transport = transport
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			return runServe(cmd, cfg, logger, args[0])
		},
	}
	cmd.Flags().StringVar(&transport, "transport", "stdio", "stdio or http (default from MCP_TRANSPORT)")
	cmd.Flags().IntVar(&port, "port", 3000, "HTTP port (default from PORT)")
	return cmd
}

func runServe(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, server string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	backends, err := toolsets.NewBackends(cfg, server, logger)
	if err != nil {
		return err
	}
	defer backends.Close()

	if cfg.SeedOnStart {
		seedLocal(ctx, cfg, backends, logger)
	}

	set, err := toolsets.Build(server, cfg, backends)
	if err != nil {
		return err
	}

	observers := mcp.MultiObserver{mcp.NewLogObserver(logger)}
	if cfg.TracesStderr {
		tp, shutdown, err := telemetry.InitTracer(set.Info().Name, cmd.ErrOrStderr())
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdown(context.Background())
		observers = append(observers, telemetry.NewTracingObserver(tp))
	}

	d, err := set.Dispatcher(mcp.WithObserver(observers), mcp.WithLogger(logger))
	if err != nil {
		return err
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	toolsets.Probe(probeCtx, set, logger)
	cancel()

	logger.Info("mcp server ready",
		"server", set.Info().Name,
		"transport", cfg.Transport,
		"tools", d.Registry().Names(),
	)

	switch cfg.Transport {
	case "http":
		var checker api.Checker
		if set.Checker != nil {
			checker = set.Checker
		}
		router := api.NewRouter(d, checker, cfg.APIKey, logger)
		return api.Serve(ctx, fmt.Sprintf(":%d", cfg.Port), router, logger)
	case "stdio":
		err := mcp.ServeStdio(ctx, d, cmd.InOrStdin(), cmd.OutOrStdout())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	default:
		return fmt.Errorf("unknown transport %q (want stdio or http)", cfg.Transport)
	}
}

// seedLocal loads the demo catalogue into the embedded backends. Remote
// backends are left alone; use `ragdemo seed` for those.
func seedLocal(ctx context.Context, cfg *config.Config, b *toolsets.Backends, logger *slog.Logger) {
	products, err := seed.Products()
	if err != nil {
		logger.Warn("seed data unreadable", "error", err)
		return
	}
	if b.FullText != nil && cfg.SearchBackend == "bleve" {
		n, err := seed.LoadFullText(ctx, b.FullText, cfg.DefaultIndex, products)
		if err != nil {
			logger.Warn("seed full-text index failed", "index", cfg.DefaultIndex, "error", err)
		} else {
			logger.Info("seeded full-text index", "index", cfg.DefaultIndex, "documents", n)
		}
	}
	if b.Vectors != nil && cfg.VectorBackend == "memory" {
		n, err := seed.LoadVectors(ctx, b.Vectors, b.Embedder, cfg.DefaultCollection, products)
		if err != nil {
			logger.Warn("seed collection failed", "collection", cfg.DefaultCollection, "error", err)
		} else {
			logger.Info("seeded collection", "collection", cfg.DefaultCollection, "documents", n)
		}
	}
}
