// Package server wires all notesmcp components and creates the MCP server.
//
// This is the composition root: it opens storage, builds the concrete
// stores and gates, and mounts every catalog tool behind the session,
// role and approval checks. No tool logic lives here, only wiring and the
// boundary.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/approval"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/config"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/credentials"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/notes"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/notetools"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/registry"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/search"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/session"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/store"
)

// Version is set at build time via ldflags.
var Version = "dev"

const shutdownTimeout = 5 * time.Second

// New creates the MCP server with every catalog tool registered.
//
// The returned cleanup function closes the database and must be called on
// shutdown. It is always non-nil.
func New(cfg *config.Config, logger *zap.Logger) (*server.MCPServer, func(), error) {
	db, err := store.Open(store.Config{DataDir: cfg.Storage.DataDir})
	if err != nil {
		return nil, noop, fmt.Errorf("opening note store: %w", err)
	}
	cleanup := func() {
		if err := db.Close(); err != nil {
			logger.Warn("closing note store", zap.Error(err))
		}
	}

	if cfg.Approval.Secret == "" {
		logger.Warn("approval secret not configured; pending approvals will not survive a restart")
	}
	gate, err := approval.NewGate([]byte(cfg.Approval.Secret), cfg.Approval.TTL)
	if err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("creating approval gate: %w", err)
	}

	creds := credentials.New(db)
	sessions := session.NewManager(creds, cfg.Session.TTL)

	reg := registry.New()
	for _, e := range notetools.Catalog(notetools.Deps{
		Credentials: creds,
		Sessions:    sessions,
		Notes:       notes.New(db),
		Searcher: search.NewClient(search.Config{
			APIKey:     cfg.Search.APIKey,
			BaseURL:    cfg.Search.BaseURL,
			MaxResults: cfg.Search.MaxResults,
			Timeout:    cfg.Search.Timeout,
		}),
		Fetcher:    search.NewFetcher(cfg.Search.Timeout),
		MaxResults: cfg.Search.MaxResults,
	}) {
		reg.Register(e)
	}

	hooks := &server.Hooks{}
	hooks.AddOnRegisterSession(func(_ context.Context, cs server.ClientSession) {
		logger.Debug("session opened", zap.String("session", cs.SessionID()))
	})
	hooks.AddOnUnregisterSession(func(_ context.Context, cs server.ClientSession) {
		sessions.Forget(cs.SessionID())
		logger.Debug("session closed",
			zap.String("session", cs.SessionID()),
			zap.Int("logged_in", sessions.Active()),
		)
	})
	hooks.AddOnError(func(_ context.Context, _ any, method mcp.MCPMethod, _ any, err error) {
		logger.Warn("request failed", zap.String("method", string(method)), zap.Error(err))
	})

	s := server.NewMCPServer(
		cfg.Server.Name,
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithHooks(hooks),
		server.WithInstructions(serverInstructions()),
	)

	b := &boundary{
		registry: reg,
		sessions: sessions,
		gate:     gate,
		admin:    cfg.Admin,
		logger:   logger,
	}
	for _, e := range reg.Entries() {
		s.AddTool(e.Tool, b.handler(e))
	}

	logger.Info("notes server ready",
		zap.String("version", Version),
		zap.String("db", db.Path()),
		zap.Int("tools", len(reg.Entries())),
	)
	return s, cleanup, nil
}

// noop is the cleanup returned when construction fails.
func noop() {}

// Serve runs the server over Streamable HTTP until ctx is cancelled.
func Serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Server.Addr, err)
	}
	return serve(ctx, ln, cfg, logger)
}

func serve(ctx context.Context, ln net.Listener, cfg *config.Config, logger *zap.Logger) error {
	s, cleanup, err := New(cfg, logger)
	if err != nil {
		ln.Close()
		return err
	}
	defer cleanup()

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.Endpoint, server.NewStreamableHTTPServer(s, server.WithStateful(true)))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	logger.Info("serving MCP",
		zap.String("addr", ln.Addr().String()),
		zap.String("endpoint", cfg.Server.Endpoint),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// serverInstructions returns the system instructions sent to the AI
// client during MCP initialization.
func serverInstructions() string {
	return `You have access to a personal notes server.

## ACCOUNTS

Every note belongs to the logged-in user. Call login_user before any note
tool; register_user first if the account does not exist. get_current_user
tells you who is logged in. Notes of other users are never visible.

## SAVING NOTES

save_note requires the user's approval. The first call returns a
pending_approval result instead of saving anything. Tell the user what you
want to save and wait: once they approve, the client re-sends the call with
its approval token. Never retry save_note on your own.

## FINDING NOTES

- get_note returns every note filed under a topic
- get_all_notes lists all of the user's notes, grouped by topic
- delete_note removes every note under a topic

## WEB

search returns the top web results for a query, and read_url extracts the
readable text of a page. Use save_search_result to keep a result the user
cares about; it is tagged "search" and needs no approval.`
}
