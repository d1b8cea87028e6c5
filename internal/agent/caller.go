package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/llm"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/protocol"
)

// ToolCaller lists and invokes the tools the model may use.
type ToolCaller interface {
	ListTools(ctx context.Context) ([]llm.ToolDefinition, error)
	CallTool(ctx context.Context, name string, args map[string]any, approvalToken string) (protocol.Outcome, error)
}

// MCPClient is the subset of an mcp-go client used by MCPCaller.
type MCPClient interface {
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// MCPCaller implements ToolCaller over an initialized MCP client session.
type MCPCaller struct {
	client MCPClient
}

// NewMCPCaller wraps c. c must already be started and initialized.
func NewMCPCaller(c MCPClient) *MCPCaller {
	return &MCPCaller{client: c}
}

// ListTools returns the server's tools as model tool definitions.
func (m *MCPCaller) ListTools(ctx context.Context) ([]llm.ToolDefinition, error) {
	res, err := m.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	defs := make([]llm.ToolDefinition, 0, len(res.Tools))
	for _, t := range res.Tools {
		schema, err := inputSchema(t)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", t.Name, err)
		}
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}
	return defs, nil
}

// CallTool invokes name. A non-empty approvalToken is sent in the request
// metadata so the server runs a previously parked call.
func (m *MCPCaller) CallTool(ctx context.Context, name string, args map[string]any, approvalToken string) (protocol.Outcome, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	if approvalToken != "" {
		req.Params.Meta = protocol.MetaWithApprovalToken(approvalToken)
	}
	res, err := m.client.CallTool(ctx, req)
	if err != nil {
		return protocol.Outcome{}, fmt.Errorf("call %s: %w", name, err)
	}
	return protocol.FromResult(res), nil
}

func inputSchema(t mcp.Tool) (map[string]any, error) {
	raw := t.RawInputSchema
	if len(raw) == 0 {
		var err error
		if raw, err = json.Marshal(t.InputSchema); err != nil {
			return nil, err
		}
	}
	schema := map[string]any{}
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, err
	}
	return schema, nil
}
