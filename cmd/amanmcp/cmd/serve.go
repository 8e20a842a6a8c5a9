package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/recallgraph/recallgraph/internal/config"
	"github.com/recallgraph/recallgraph/internal/embed"
	"github.com/recallgraph/recallgraph/internal/logging"
	"github.com/recallgraph/recallgraph/internal/mcp"
	"github.com/recallgraph/recallgraph/internal/store"
)

func newServeCmd() *cobra.Command {
	var transport string
	var port int
	var debug bool
	var session string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the recallgraph MCP server",
		Long: `Start the MCP server exposing search, recall, predict, reconstruct,
and project/session tools over the configured transport.

The server speaks the MCP protocol on stdout; all diagnostic output goes to
the log file instead, never to stdout or (in MCP mode) stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				cleanup, err := logging.SetupMCPModeWithLevel("debug")
				if err != nil {
					return fmt.Errorf("failed to setup logging: %w", err)
				}
				defer cleanup()
			}

			if transport == "stdio" {
				if err := verifyStdinForMCP(); err != nil {
					slog.Warn("stdin check failed", slog.String("error", err.Error()))
				}
			}

			if session != "" {
				root, err := os.Getwd()
				if err != nil {
					return err
				}
				return runServeWithSession(cmd.Context(), session, root, transport, port)
			}

			return runServe(cmd.Context(), transport, port)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type (stdio|sse)")
	cmd.Flags().IntVar(&port, "port", 8765, "Port for SSE transport")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to ~/.amanmcp/logs/")
	cmd.Flags().StringVar(&session, "session", "", "Serve a saved session instead of the current directory")

	return cmd
}

// runServe constructs the stores for the project rooted at the current
// directory and serves the MCP protocol over transport until ctx is done.
func runServe(ctx context.Context, transport string, port int) error {
	if cleanup, err := logging.SetupMCPMode(); err == nil {
		defer cleanup()
	}

	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	return runServeWithSession(ctx, "", root, transport, port)
}

// runServeWithSession builds the server dependencies for projectRoot and
// serves the MCP protocol. sessionName, when non-empty, is only used to tag
// the startup log line (spec.md's project model keys chunks by project tag,
// not by a resumed session).
func runServeWithSession(ctx context.Context, sessionName, projectRoot, transport string, port int) error {
	if cleanup, err := logging.SetupMCPMode(); err == nil {
		defer cleanup()
	}

	dataDir := filepath.Join(projectRoot, ".amanmcp")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg, err := config.Load(projectRoot)
	if err != nil {
		cfg = config.NewConfig()
	}

	metadataPath := filepath.Join(dataDir, "metadata.db")
	metadata, err := store.NewSQLiteStore(metadataPath)
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer func() { _ = metadata.Close() }()

	bm25BasePath := filepath.Join(dataDir, "bm25")
	bm25, err := store.NewBM25IndexWithBackend(bm25BasePath, store.DefaultBM25Config(), cfg.Search.BM25Backend)
	if err != nil {
		return fmt.Errorf("failed to open lexical index: %w", err)
	}
	defer func() { _ = bm25.Close() }()

	provider := embed.ParseProvider(cfg.Embeddings.Provider)
	embedCtx, embedCancel := context.WithTimeout(ctx, 15*time.Second)
	embedder, err := embed.NewEmbedder(embedCtx, provider, cfg.Embeddings.Model)
	embedCancel()
	if err != nil {
		return fmt.Errorf("embedder initialization failed: %w", err)
	}
	defer func() { _ = embedder.Close() }()

	vectorCfg := store.DefaultVectorStoreConfig(embedder.Dimensions())
	vector, err := store.NewHNSWStore(vectorCfg)
	if err != nil {
		return fmt.Errorf("failed to open vector store: %w", err)
	}
	defer func() { _ = vector.Close() }()

	vectorPath := filepath.Join(dataDir, "vectors.hnsw")
	if _, err := os.Stat(vectorPath); err == nil {
		if loadErr := vector.Load(vectorPath); loadErr != nil {
			slog.Warn("failed to load vector store", slog.String("error", loadErr.Error()))
		}
	}
	defer func() {
		if saveErr := vector.Save(vectorPath); saveErr != nil {
			slog.Warn("failed to save vector store", slog.String("error", saveErr.Error()))
		}
	}()

	defaultProject := filepath.Base(projectRoot)

	srv, err := mcp.NewServer(metadata, vector, bm25, embedder, cfg, defaultProject)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	logAttrs := []any{slog.String("project", defaultProject), slog.String("transport", transport)}
	if sessionName != "" {
		logAttrs = append(logAttrs, slog.String("session", sessionName))
	}
	slog.Info("serving recallgraph", logAttrs...)

	addr := ""
	if transport == "sse" {
		addr = fmt.Sprintf(":%d", port)
	}
	return srv.Serve(ctx, transport, addr)
}

// verifyStdinForMCP checks that stdin is a pipe, not an interactive
// terminal, since the MCP client is expected to speak JSON-RPC over stdio.
func verifyStdinForMCP() error {
	info, err := os.Stdin.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat stdin: %w", err)
	}
	if (info.Mode() & os.ModeCharDevice) != 0 {
		return fmt.Errorf("stdin is a terminal, not a pipe: recallgraph serve expects an MCP client on the other end of stdin")
	}
	return nil
}
