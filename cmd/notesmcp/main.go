// notesmcp: a personal notes MCP server with human approval for writes.
//
// Usage:
//
//	notesmcp serve   # Start the MCP server (Streamable HTTP)
//	notesmcp chat    # Chat with the notes server through an LLM
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/agent"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/approval"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/config"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/console"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/llm"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/logging"
	notesserver "github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/server"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "notesmcp",
		Short:         "Personal notes MCP server with approval-gated writes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.Version = notesserver.Version
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ./"+config.DefaultFile+")")

	rootCmd.AddCommand(serveCmd(&configPath), chatCmd(&configPath), versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over Streamable HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			logger, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return notesserver.Serve(ctx, cfg, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}

func chatCmd(configPath *string) *cobra.Command {
	var serverURL string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the notes server through the configured LLM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if serverURL != "" {
				cfg.Client.ServerURL = serverURL
			}
			if cfg.LLM.APIKey == "" {
				return fmt.Errorf("no LLM API key configured (set GROQ_API_KEY)")
			}
			// Keep the terminal for the conversation unless asked otherwise.
			if cfg.Log.Level == "info" && !cfg.Log.Development {
				cfg.Log.Level = "warn"
			}
			logger, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runChat(ctx, cfg, logger)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "MCP endpoint URL (overrides config)")
	return cmd
}

func runChat(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	c, err := client.NewStreamableHttpClient(cfg.Client.ServerURL)
	if err != nil {
		return fmt.Errorf("creating MCP client: %w", err)
	}
	defer c.Close()
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("connecting to %s: %w", cfg.Client.ServerURL, err)
	}
	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "notesmcp-chat", Version: notesserver.Version}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		return fmt.Errorf("initializing MCP session: %w", err)
	}

	// Checkpoints never leave this process, so an ephemeral key is enough.
	gate, err := approval.NewGate(nil, cfg.Approval.TTL)
	if err != nil {
		return err
	}
	temp := cfg.LLM.Temperature
	a := agent.New(
		llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Logger:  logger,
		}),
		agent.NewMCPCaller(c),
		gate,
		agent.Config{
			Model:         cfg.LLM.Model,
			System:        cfg.LLM.SystemPrompt,
			MaxIterations: cfg.LLM.MaxIterations,
			MaxTokens:     cfg.LLM.MaxTokens,
			Temperature:   &temp,
		},
		logger,
	)

	fmt.Printf("Connected to %s (model %s). Type 'exit' to quit.\n", cfg.Client.ServerURL, cfg.LLM.Model)
	return console.New(a, os.Stdin, os.Stdout, logger).Run(ctx)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("notesmcp v%s\n", notesserver.Version)
		},
	}
}
