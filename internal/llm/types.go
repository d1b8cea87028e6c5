// Package llm holds the provider-neutral chat types used by the agent loop
// and an OpenAI-compatible client for them.
package llm

import (
	"context"
	"strings"
)

// Role is the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentType identifies the kind of a content block.
type ContentType string

const (
	ContentTypeText       ContentType = "text"
	ContentTypeToolUse    ContentType = "tool_use"
	ContentTypeToolResult ContentType = "tool_result"
)

// StopReason says why the model stopped generating.
type StopReason string

const (
	StopReasonEndTurn   StopReason = "end_turn"
	StopReasonToolUse   StopReason = "tool_use"
	StopReasonMaxTokens StopReason = "max_tokens"
)

// Message is one conversation entry. Content is plain text; Blocks carry
// tool calls and tool results.
type Message struct {
	Role    Role           `json:"role"`
	Content string         `json:"content,omitempty"`
	Blocks  []ContentBlock `json:"blocks,omitempty"`
}

// NewUserMessage creates a user message with text content.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// NewAssistantMessage creates an assistant message with text content.
func NewAssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// NewToolResults creates the user message answering a set of tool calls.
func NewToolResults(results ...ContentBlock) Message {
	return Message{Role: RoleUser, Blocks: results}
}

// ContentBlock is a piece of message content.
type ContentBlock struct {
	Type ContentType `json:"type"`

	Text string `json:"text,omitempty"`

	// tool_use
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// ToolResult builds a tool_result block answering the tool_use with id.
func ToolResult(id, text string, isError bool) ContentBlock {
	return ContentBlock{Type: ContentTypeToolResult, ToolUseID: id, Text: text, IsError: isError}
}

// ToolDefinition describes a callable tool to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Request is the input to CreateMessage.
type Request struct {
	Model       string           `json:"model,omitempty"`
	System      string           `json:"system,omitempty"`
	Messages    []Message        `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
}

// Response is the output of CreateMessage.
type Response struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Content    []ContentBlock `json:"content"`
	StopReason StopReason     `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ToolUses returns the tool_use blocks of the response in order.
func (r *Response) ToolUses() []ContentBlock {
	var uses []ContentBlock
	for _, b := range r.Content {
		if b.Type == ContentTypeToolUse {
			uses = append(uses, b)
		}
	}
	return uses
}

// TextContent joins the text blocks of the response.
func (r *Response) TextContent() string {
	var sb strings.Builder
	for _, b := range r.Content {
		if b.Type == ContentTypeText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// Message converts the response into the assistant message to append to
// the conversation.
func (r *Response) Message() Message {
	return Message{Role: RoleAssistant, Blocks: r.Content}
}

// Client talks to a chat model.
type Client interface {
	CreateMessage(ctx context.Context, req *Request) (*Response, error)
}
