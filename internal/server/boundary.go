package server

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/approval"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/config"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/notetools"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/protocol"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/registry"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/session"
)

// boundary runs the identity, role and approval checks shared by every
// tool before dispatching to the registry.
type boundary struct {
	registry *registry.Registry
	sessions *session.Manager
	gate     *approval.Gate
	admin    config.AdminConfig
	logger   *zap.Logger
}

func (b *boundary) handler(e registry.Entry) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		key := sessionKey(ctx)
		out := b.call(session.WithKey(ctx, key), e, req)
		b.logger.Info("tool call",
			zap.String("tool", e.Name()),
			zap.String("session", key),
			zap.String("kind", string(out.Kind)),
			zap.Duration("took", time.Since(start)),
		)
		return out.Result(), nil
	}
}

func (b *boundary) call(ctx context.Context, e registry.Entry, req mcp.CallToolRequest) protocol.Outcome {
	user, loggedIn := b.sessions.Current(session.KeyFromContext(ctx))
	if loggedIn {
		ctx = session.WithUser(ctx, user)
	}

	openListing := e.AdminOnly && b.admin.OpenListing
	if (e.Scoped || e.AdminOnly) && !openListing {
		if !loggedIn {
			return protocol.Fail(protocol.KindUnauthenticated, notetools.NotLoggedIn)
		}
		if e.AdminOnly && !b.admin.IsAdmin(user) {
			return protocol.Fail(protocol.KindForbidden,
				"Error: User %q is not allowed to call %s.", user, e.Name())
		}
	}

	if e.RequiresApproval {
		if tok := protocol.ApprovalTokenFromMeta(req.Params.Meta); tok != "" {
			pending := protocol.ToolRequest{ToolName: e.Name(), Arguments: req.GetArguments()}
			if err := b.gate.Authorize(tok, pending, user); err != nil {
				b.logger.Warn("approval token rejected", zap.String("tool", e.Name()), zap.Error(err))
				return protocol.Fail(protocol.KindApprovalRejected,
					"Approval for %s was rejected: %v", e.Name(), err)
			}
			ctx = approval.WithApproved(ctx, e.Name())
		}
	}

	d, err := b.registry.Dispatch(ctx, req)
	if errors.Is(err, registry.ErrUnknownTool) {
		return protocol.Fail(protocol.KindUnknownTool, "Unknown tool: %s", req.Params.Name)
	}
	if err != nil {
		return protocol.Fail(protocol.KindInternal, "Failed to dispatch %s: %v", req.Params.Name, err)
	}
	if d.Pending != nil {
		p, err := b.gate.Park(*d.Pending, user)
		if err != nil {
			return protocol.Fail(protocol.KindInternal, "Failed to park %s: %v", e.Name(), err)
		}
		return protocol.Pending(p)
	}
	return d.Outcome
}

// sessionKey identifies the caller: the MCP session id when the transport
// has one, otherwise the shared local key.
func sessionKey(ctx context.Context) string {
	if cs := server.ClientSessionFromContext(ctx); cs != nil && cs.SessionID() != "" {
		return cs.SessionID()
	}
	return session.LocalKey
}
