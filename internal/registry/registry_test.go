package registry_test

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/approval"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/protocol"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/registry"
)

func makeReq(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

type echoArgs struct {
	Topic string `json:"topic" validate:"required"`
	Limit int    `json:"limit" validate:"omitempty,min=1,max=10"`
}

func newRegistry(calls *int) *registry.Registry {
	r := registry.New()
	r.Register(registry.Entry{
		Tool: mcp.NewTool("echo"),
		Handler: registry.Typed(func(_ context.Context, a echoArgs) protocol.Outcome {
			*calls++
			return protocol.OK(a.Topic, nil)
		}),
	})
	r.Register(registry.Entry{
		Tool:             mcp.NewTool("save"),
		RequiresApproval: true,
		Handler: func(context.Context, mcp.CallToolRequest) protocol.Outcome {
			*calls++
			return protocol.OK("saved", nil)
		},
	})
	return r
}

func TestDispatch_UnknownTool(t *testing.T) {
	var calls int
	r := newRegistry(&calls)
	_, err := r.Dispatch(context.Background(), makeReq("nope", nil))
	assert.ErrorIs(t, err, registry.ErrUnknownTool)
}

func TestDispatch_AutoExecute(t *testing.T) {
	var calls int
	r := newRegistry(&calls)
	d, err := r.Dispatch(context.Background(), makeReq("echo", map[string]any{"topic": "hi"}))
	require.NoError(t, err)
	assert.Nil(t, d.Pending)
	assert.Equal(t, "hi", d.Outcome.Message)
	assert.Equal(t, 1, calls)
}

func TestDispatch_ApprovalRequiredParks(t *testing.T) {
	var calls int
	r := newRegistry(&calls)
	args := map[string]any{"topic": "shopping"}

	d, err := r.Dispatch(context.Background(), makeReq("save", args))
	require.NoError(t, err)
	require.NotNil(t, d.Pending)
	assert.Equal(t, "save", d.Pending.ToolName)
	assert.Equal(t, args, d.Pending.Arguments)
	assert.Equal(t, 0, calls, "handler must not run before approval")
}

func TestDispatch_ApprovedRuns(t *testing.T) {
	var calls int
	r := newRegistry(&calls)
	ctx := approval.WithApproved(context.Background(), "save")

	d, err := r.Dispatch(ctx, makeReq("save", nil))
	require.NoError(t, err)
	assert.Nil(t, d.Pending)
	assert.Equal(t, "saved", d.Outcome.Message)
	assert.Equal(t, 1, calls)
}

func TestTyped_ValidationFailure(t *testing.T) {
	var calls int
	r := newRegistry(&calls)

	d, err := r.Dispatch(context.Background(), makeReq("echo", map[string]any{}))
	require.NoError(t, err)
	assert.Equal(t, protocol.KindInvalidArguments, d.Outcome.Kind)
	assert.Contains(t, d.Outcome.Message, "'topic' is required")

	d, err = r.Dispatch(context.Background(), makeReq("echo", map[string]any{"topic": "x", "limit": 50}))
	require.NoError(t, err)
	assert.Equal(t, protocol.KindInvalidArguments, d.Outcome.Kind)
	assert.Contains(t, d.Outcome.Message, "'limit' must be at most 10")

	d, err = r.Dispatch(context.Background(), makeReq("echo", map[string]any{"topic": 42}))
	require.NoError(t, err)
	assert.Equal(t, protocol.KindInvalidArguments, d.Outcome.Kind)
	assert.Equal(t, 0, calls)
}

func TestRegister_Duplicate(t *testing.T) {
	var calls int
	r := newRegistry(&calls)
	assert.Panics(t, func() {
		r.Register(registry.Entry{Tool: mcp.NewTool("echo"), Handler: func(context.Context, mcp.CallToolRequest) protocol.Outcome {
			return protocol.OK("", nil)
		}})
	})
	assert.Panics(t, func() { r.Register(registry.Entry{Tool: mcp.NewTool("nohandler")}) })
}

func TestEntries_RegistrationOrder(t *testing.T) {
	var calls int
	r := newRegistry(&calls)
	entries := r.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "echo", entries[0].Name())
	assert.Equal(t, "save", entries[1].Name())

	e, ok := r.Lookup("save")
	require.True(t, ok)
	assert.True(t, e.RequiresApproval)
}
