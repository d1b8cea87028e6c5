package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// DefaultBaseURL is Groq's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

// DefaultModel is used when no model is configured.
const DefaultModel = "llama-3.3-70b-versatile"

const defaultMaxTokens = 2048

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
	// Options are appended to the client options, e.g. retries in tests.
	Options []option.RequestOption
}

// OpenAIClient implements Client for any OpenAI-compatible chat
// completions API.
type OpenAIClient struct {
	client openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIClient creates a client. Empty fields fall back to Groq
// defaults.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	opts := append([]option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
	}, cfg.Options...)
	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		logger: cfg.Logger,
	}
}

// CreateMessage sends req and returns the complete response.
func (o *OpenAIClient) CreateMessage(ctx context.Context, req *Request) (*Response, error) {
	if req.Model == "" {
		req.Model = o.model
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = defaultMaxTokens
	}

	resp, err := o.client.Chat.Completions.New(ctx, convertOpenAIRequest(req))
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	return o.convertOpenAIResponse(resp), nil
}

func convertOpenAIRequest(req *Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{Model: req.Model}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleUser:
			messages = append(messages, convertUserMessage(msg)...)
		case RoleAssistant:
			messages = append(messages, convertAssistantMessage(msg))
		}
	}
	params.Messages = messages

	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, 0, len(req.Tools))
		for _, tool := range req.Tools {
			tools = append(tools, openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        tool.Name,
					Description: openai.String(tool.Description),
					Parameters:  openai.FunctionParameters(tool.InputSchema),
				},
			})
		}
		params.Tools = tools
	}
	return params
}

// convertUserMessage emits one tool message per tool result, since the
// chat completions API expects a reply for every tool call id.
func convertUserMessage(msg Message) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion
	text := msg.Content
	for _, b := range msg.Blocks {
		switch b.Type {
		case ContentTypeToolResult:
			out = append(out, openai.ToolMessage(b.Text, b.ToolUseID))
		case ContentTypeText:
			if text == "" {
				text = b.Text
			}
		}
	}
	if len(out) > 0 {
		return out
	}
	return []openai.ChatCompletionMessageParamUnion{openai.UserMessage(text)}
}

func convertAssistantMessage(msg Message) openai.ChatCompletionMessageParamUnion {
	var toolCalls []openai.ChatCompletionMessageToolCallParam
	text := msg.Content
	for _, b := range msg.Blocks {
		switch b.Type {
		case ContentTypeText:
			text += b.Text
		case ContentTypeToolUse:
			input := b.Input
			if input == nil {
				input = map[string]any{}
			}
			argsJSON, _ := json.Marshal(input)
			toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
				ID:   b.ID,
				Type: "function",
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      b.Name,
					Arguments: string(argsJSON),
				},
			})
		}
	}

	if len(toolCalls) == 0 {
		return openai.AssistantMessage(text)
	}
	m := openai.ChatCompletionAssistantMessageParam{ToolCalls: toolCalls}
	if text != "" {
		m.Content = openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(text)}
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &m}
}

func (o *OpenAIClient) convertOpenAIResponse(resp *openai.ChatCompletion) *Response {
	result := &Response{
		ID:    resp.ID,
		Model: resp.Model,
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}
	if len(resp.Choices) == 0 {
		result.StopReason = StopReasonEndTurn
		return result
	}

	choice := resp.Choices[0]
	switch choice.FinishReason {
	case "tool_calls":
		result.StopReason = StopReasonToolUse
	case "length":
		result.StopReason = StopReasonMaxTokens
	default:
		result.StopReason = StopReasonEndTurn
	}

	if choice.Message.Content != "" {
		result.Content = append(result.Content, ContentBlock{Type: ContentTypeText, Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		input := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
				o.logger.Warn("unparseable tool call arguments",
					zap.String("tool", tc.Function.Name), zap.Error(err))
				input = map[string]any{}
			}
		}
		result.Content = append(result.Content, ContentBlock{
			Type:  ContentTypeToolUse,
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: input,
		})
	}
	// Some providers report "stop" alongside tool calls.
	if len(result.ToolUses()) > 0 {
		result.StopReason = StopReasonToolUse
	}
	return result
}

var _ Client = (*OpenAIClient)(nil)
