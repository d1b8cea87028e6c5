// Package protocol defines the values that cross the tool boundary: the
// tagged outcome every tool returns, the parked request handed back when a
// tool needs approval, and the decision a caller supplies on resumption.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// MetaApprovalToken is the request _meta key carrying an approval token.
const MetaApprovalToken = "approval_token"

// Kind classifies a tool outcome.
type Kind string

const (
	KindOK                 Kind = "ok"
	KindEmpty              Kind = "empty"
	KindPendingApproval    Kind = "pending_approval"
	KindUnauthenticated    Kind = "unauthenticated"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindForbidden          Kind = "forbidden"
	KindInvalidArguments   Kind = "invalid_arguments"
	KindUnknownTool        Kind = "unknown_tool"
	KindApprovalRejected   Kind = "approval_rejected"
	KindUpstreamFailure    Kind = "upstream_failure"
	KindInternal           Kind = "internal"
)

// IsError reports whether the kind is a failure. Empty results and
// pending approvals are not failures.
func (k Kind) IsError() bool {
	switch k {
	case KindOK, KindEmpty, KindPendingApproval:
		return false
	}
	return true
}

// ToolRequest is a tool invocation as produced by the reasoning step.
type ToolRequest struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	CallID    string         `json:"call_id,omitempty"`
}

// PendingApproval is returned instead of executing an approval-required
// tool. Token must accompany the call when it is forwarded after approval.
type PendingApproval struct {
	Request ToolRequest `json:"request"`
	Token   string      `json:"token"`
}

// ApprovalDecision carries the outcome of an approved tool call back into
// the reasoning turn that requested it.
type ApprovalDecision struct {
	ToolName string  `json:"tool_name"`
	CallID   string  `json:"call_id,omitempty"`
	Outcome  Outcome `json:"outcome"`
}

// Outcome is the tagged result of a tool call.
type Outcome struct {
	Kind    Kind             `json:"kind"`
	Message string           `json:"message"`
	Data    any              `json:"data,omitempty"`
	Pending *PendingApproval `json:"pending,omitempty"`
}

// OK returns a success outcome.
func OK(message string, data any) Outcome {
	return Outcome{Kind: KindOK, Message: message, Data: data}
}

// Empty returns an informational no-match outcome.
func Empty(message string) Outcome {
	return Outcome{Kind: KindEmpty, Message: message}
}

// Fail returns an outcome of the given error kind.
func Fail(kind Kind, format string, args ...any) Outcome {
	return Outcome{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Pending returns an outcome that parks p for approval.
func Pending(p PendingApproval) Outcome {
	return Outcome{
		Kind:    KindPendingApproval,
		Message: fmt.Sprintf("Approval required for tool %q.", p.Request.ToolName),
		Pending: &p,
	}
}

// Result encodes o as an MCP tool result: the message as text content and
// the full outcome as structured content.
func (o Outcome) Result() *mcp.CallToolResult {
	res := mcp.NewToolResultStructured(o, o.Message)
	res.IsError = o.Kind.IsError()
	return res
}

// FromResult decodes an MCP tool result. Results without structured
// content are classified by their IsError flag.
func FromResult(res *mcp.CallToolResult) Outcome {
	if res == nil {
		return Fail(KindInternal, "empty tool result")
	}
	if res.StructuredContent != nil {
		raw, err := json.Marshal(res.StructuredContent)
		if err == nil {
			var o Outcome
			if err := json.Unmarshal(raw, &o); err == nil && o.Kind != "" {
				return o
			}
		}
	}
	text := ResultText(res)
	if res.IsError {
		return Fail(KindInternal, "%s", text)
	}
	return OK(text, nil)
}

// ResultText joins the text content blocks of res.
func ResultText(res *mcp.CallToolResult) string {
	if res == nil {
		return ""
	}
	var parts []string
	for _, c := range res.Content {
		if tc, ok := mcp.AsTextContent(c); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ApprovalTokenFromMeta extracts the approval token from request metadata.
func ApprovalTokenFromMeta(meta *mcp.Meta) string {
	if meta == nil || meta.AdditionalFields == nil {
		return ""
	}
	tok, _ := meta.AdditionalFields[MetaApprovalToken].(string)
	return tok
}

// MetaWithApprovalToken builds request metadata carrying token.
func MetaWithApprovalToken(token string) *mcp.Meta {
	return &mcp.Meta{AdditionalFields: map[string]any{MetaApprovalToken: token}}
}
