package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/approval"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/config"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/llm"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/protocol"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/server"
)

// ─── Test helpers ────────────────────────────────────────────────────────────

// scriptedLLM replays canned responses in order and records each request.
type scriptedLLM struct {
	steps []*llm.Response
	reqs  []llm.Request
}

func (s *scriptedLLM) CreateMessage(_ context.Context, req *llm.Request) (*llm.Response, error) {
	s.reqs = append(s.reqs, *req)
	if len(s.steps) == 0 {
		return nil, errors.New("script exhausted")
	}
	r := s.steps[0]
	s.steps = s.steps[1:]
	return r, nil
}

func toolUses(uses ...llm.ContentBlock) *llm.Response {
	return &llm.Response{StopReason: llm.StopReasonToolUse, Content: uses}
}

func use(id, name string, args map[string]any) llm.ContentBlock {
	return llm.ContentBlock{Type: llm.ContentTypeToolUse, ID: id, Name: name, Input: args}
}

func text(s string) *llm.Response {
	return &llm.Response{StopReason: llm.StopReasonEndTurn, Content: []llm.ContentBlock{{Type: llm.ContentTypeText, Text: s}}}
}

// notesServer starts a real notes server in process and returns a caller
// logged in as alice.
func notesServer(t *testing.T) *MCPCaller {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.DataDir = t.TempDir()
	cfg.Approval.Secret = "server-secret"
	s, cleanup, err := server.New(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(cleanup)

	c, err := client.NewInProcessClient(s)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "agent-test", Version: "0"}
	_, err = c.Initialize(ctx, initReq)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	caller := NewMCPCaller(c)
	creds := map[string]any{"username": "alice", "password": "pw1"}
	for _, tool := range []string{"register_user", "login_user"} {
		out, err := caller.CallTool(ctx, tool, creds, "")
		require.NoError(t, err)
		require.Equal(t, protocol.KindOK, out.Kind, out.Message)
	}
	return caller
}

func newGate(t *testing.T, opts ...approval.Option) *approval.Gate {
	t.Helper()
	g, err := approval.NewGate([]byte("client-secret"), time.Minute, opts...)
	require.NoError(t, err)
	return g
}

func saveScript() *scriptedLLM {
	return &scriptedLLM{steps: []*llm.Response{
		toolUses(
			use("c0", "get_current_user", map[string]any{}),
			use("c1", "save_note", map[string]any{"topic": "go", "content": "channels"}),
		),
		text("Saved your note."),
	}}
}

// ─── Run / Approve / Resume ──────────────────────────────────────────────────

func TestRun_SuspendsThenResumesApproved(t *testing.T) {
	ctx := context.Background()
	tools := notesServer(t)
	model := saveScript()
	a := New(model, tools, newGate(t), Config{}, nil)

	res, err := a.Run(ctx, "remember channels under go", nil)
	require.NoError(t, err)
	require.NotNil(t, res.Deferred)
	assert.Empty(t, res.Output)
	assert.Empty(t, res.NewMessages)

	d := res.Deferred
	require.Len(t, d.Requests, 1)
	assert.Equal(t, "save_note", d.Requests[0].Request.ToolName)
	assert.Equal(t, "c1", d.Requests[0].Request.CallID)
	require.Len(t, d.Completed, 1)
	assert.Equal(t, "Current user: alice", d.Completed[0].Text)

	// Nothing saved while suspended.
	out, err := tools.CallTool(ctx, "get_note", map[string]any{"topic": "go"}, "")
	require.NoError(t, err)
	assert.Equal(t, protocol.KindEmpty, out.Kind)

	dec, err := a.Approve(ctx, d.Requests[0])
	require.NoError(t, err)
	assert.Equal(t, protocol.KindOK, dec.Outcome.Kind, dec.Outcome.Message)
	assert.Equal(t, "c1", dec.CallID)

	final, err := a.Resume(ctx, "remember channels under go", nil, d, []protocol.ApprovalDecision{dec})
	require.NoError(t, err)
	assert.Nil(t, final.Deferred)
	assert.Equal(t, "Saved your note.", final.Output)

	// user, assistant tool calls, tool results, assistant answer
	require.Len(t, final.NewMessages, 4)
	results := final.NewMessages[2].Blocks
	require.Len(t, results, 2)
	assert.Equal(t, "c0", results[0].ToolUseID)
	assert.Equal(t, "c1", results[1].ToolUseID)
	assert.Contains(t, results[1].Text, "saved")

	out, err = tools.CallTool(ctx, "get_note", map[string]any{"topic": "go"}, "")
	require.NoError(t, err)
	assert.Equal(t, protocol.KindOK, out.Kind)
	assert.Contains(t, out.Message, "channels")
}

func TestResume_DeniedIsRefusalNotError(t *testing.T) {
	ctx := context.Background()
	tools := notesServer(t)
	model := saveScript()
	a := New(model, tools, newGate(t), Config{}, nil)

	res, err := a.Run(ctx, "remember channels", nil)
	require.NoError(t, err)
	require.NotNil(t, res.Deferred)

	final, err := a.Resume(ctx, "remember channels", nil, res.Deferred, nil)
	require.NoError(t, err)
	assert.Equal(t, "Saved your note.", final.Output)

	results := final.NewMessages[2].Blocks
	require.Len(t, results, 2)
	assert.Equal(t, DeniedMessage, results[1].Text)
	assert.False(t, results[1].IsError)

	out, err := tools.CallTool(ctx, "get_all_notes", nil, "")
	require.NoError(t, err)
	assert.Equal(t, protocol.KindEmpty, out.Kind)
}

func TestResume_DecisionPairedByToolName(t *testing.T) {
	ctx := context.Background()
	tools := notesServer(t)
	a := New(saveScript(), tools, newGate(t), Config{}, nil)

	res, err := a.Run(ctx, "q", nil)
	require.NoError(t, err)
	dec, err := a.Approve(ctx, res.Deferred.Requests[0])
	require.NoError(t, err)
	dec.CallID = ""

	final, err := a.Resume(ctx, "q", nil, res.Deferred, []protocol.ApprovalDecision{dec})
	require.NoError(t, err)
	assert.NotEqual(t, DeniedMessage, final.NewMessages[2].Blocks[1].Text)
}

func TestResume_RejectsForeignDecision(t *testing.T) {
	ctx := context.Background()
	a := New(saveScript(), notesServer(t), newGate(t), Config{}, nil)

	res, err := a.Run(ctx, "q", nil)
	require.NoError(t, err)

	_, err = a.Resume(ctx, "q", nil, res.Deferred, []protocol.ApprovalDecision{
		{ToolName: "save_note", CallID: "someone-else", Outcome: protocol.OK("ok", nil)},
	})
	assert.ErrorIs(t, err, ErrForeignDecision)

	_, err = a.Resume(ctx, "q", nil, res.Deferred, []protocol.ApprovalDecision{
		{ToolName: "delete_note", Outcome: protocol.OK("ok", nil)},
	})
	assert.ErrorIs(t, err, ErrForeignDecision)
}

func TestResume_RejectsOtherTurn(t *testing.T) {
	ctx := context.Background()
	a := New(saveScript(), notesServer(t), newGate(t), Config{}, nil)

	res, err := a.Run(ctx, "q", nil)
	require.NoError(t, err)

	// A different query, a different history or an edited transcript all
	// break the checkpoint.
	_, err = a.Resume(ctx, "another query", nil, res.Deferred, nil)
	assert.ErrorIs(t, err, approval.ErrForeignToken)

	_, err = a.Resume(ctx, "q", []llm.Message{llm.NewUserMessage("earlier")}, res.Deferred, nil)
	assert.ErrorIs(t, err, approval.ErrForeignToken)

	tampered := *res.Deferred
	tampered.Requests = nil
	_, err = a.Resume(ctx, "q", nil, &tampered, nil)
	assert.ErrorIs(t, err, approval.ErrForeignToken)

	_, err = a.Resume(ctx, "q", nil, nil, nil)
	assert.ErrorIs(t, err, ErrNotSuspended)
}

func TestResume_StaleCheckpoint(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	gate := newGate(t, approval.WithClock(func() time.Time { return now }))
	a := New(saveScript(), notesServer(t), gate, Config{}, nil)

	res, err := a.Run(ctx, "q", nil)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = a.Resume(ctx, "q", nil, res.Deferred, nil)
	assert.ErrorIs(t, err, approval.ErrStaleToken)
}

// ─── Loop ────────────────────────────────────────────────────────────────────

func TestRun_InlineToolsAndHistory(t *testing.T) {
	ctx := context.Background()
	model := &scriptedLLM{steps: []*llm.Response{
		toolUses(use("a1", "add", map[string]any{"a": 2, "b": 40})),
		text("42"),
	}}
	a := New(model, notesServer(t), newGate(t), Config{System: "be brief", Model: "m"}, nil)

	history := []llm.Message{llm.NewUserMessage("hi"), llm.NewAssistantMessage("hello")}
	res, err := a.Run(ctx, "add 2 and 40", history)
	require.NoError(t, err)
	assert.Equal(t, "42", res.Output)
	require.Len(t, res.NewMessages, 4)
	assert.Equal(t, "42", res.NewMessages[2].Blocks[0].Text)

	require.Len(t, model.reqs, 2)
	assert.Equal(t, "be brief", model.reqs[0].System)
	assert.Len(t, model.reqs[0].Messages, 3, "history plus the new query")
	assert.NotEmpty(t, model.reqs[0].Tools)
}

func TestRun_MaxIterations(t *testing.T) {
	loop := toolUses(use("a", "add", map[string]any{"a": 1, "b": 1}))
	model := &scriptedLLM{steps: []*llm.Response{loop, loop, loop}}
	a := New(model, notesServer(t), newGate(t), Config{MaxIterations: 2}, nil)

	_, err := a.Run(context.Background(), "loop", nil)
	assert.ErrorIs(t, err, ErrMaxIterations)
}

func TestRun_LLMError(t *testing.T) {
	a := New(&scriptedLLM{}, notesServer(t), newGate(t), Config{}, nil)
	_, err := a.Run(context.Background(), "q", nil)
	assert.Error(t, err)
}

func TestMCPCaller_ListTools(t *testing.T) {
	defs, err := notesServer(t).ListTools(context.Background())
	require.NoError(t, err)

	byName := map[string]llm.ToolDefinition{}
	for _, d := range defs {
		byName[d.Name] = d
	}
	save, ok := byName["save_note"]
	require.True(t, ok)
	assert.Equal(t, "object", save.InputSchema["type"])
	props, ok := save.InputSchema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "topic")
}
