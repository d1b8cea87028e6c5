// Package registry maps tool names to handlers.
//
// The registry is pure routing. It knows whether a tool needs approval,
// needs a logged-in user or is restricted to admins, but enforcing the
// session and role checks is left to the server boundary.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/approval"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/protocol"
)

// ErrUnknownTool is returned by Dispatch for a name with no entry.
var ErrUnknownTool = errors.New("registry: unknown tool")

// Handler executes a tool call.
type Handler func(ctx context.Context, req mcp.CallToolRequest) protocol.Outcome

// Entry describes one registered tool.
type Entry struct {
	Tool             mcp.Tool
	Handler          Handler
	RequiresApproval bool
	Scoped           bool
	AdminOnly        bool
}

// Name returns the tool name.
func (e Entry) Name() string { return e.Tool.Name }

// Dispatch is the result of routing a call: either Pending is set and the
// handler did not run, or Outcome holds the handler's result.
type Dispatch struct {
	Pending *protocol.ToolRequest
	Outcome protocol.Outcome
}

// Registry is a static tool table, safe for concurrent lookups.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	order   []string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds e. It panics on a duplicate name or a missing handler,
// both of which are wiring bugs.
func (r *Registry) Register(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.Handler == nil {
		panic(fmt.Sprintf("registry: tool %q has no handler", e.Name()))
	}
	if _, dup := r.entries[e.Name()]; dup {
		panic(fmt.Sprintf("registry: tool %q registered twice", e.Name()))
	}
	r.entries[e.Name()] = e
	r.order = append(r.order, e.Name())
}

// Lookup returns the entry for name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Entries returns every entry in registration order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}

// Dispatch routes req. An approval-required tool whose approval is not
// marked on ctx is returned as pending without invoking its handler.
func (r *Registry) Dispatch(ctx context.Context, req mcp.CallToolRequest) (Dispatch, error) {
	name := req.Params.Name
	e, ok := r.Lookup(name)
	if !ok {
		return Dispatch{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if e.RequiresApproval && !approval.Approved(ctx, name) {
		return Dispatch{Pending: &protocol.ToolRequest{
			ToolName:  name,
			Arguments: req.GetArguments(),
		}}, nil
	}
	return Dispatch{Outcome: e.Handler(ctx, req)}, nil
}
