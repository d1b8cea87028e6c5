package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/config"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/protocol"
)

// ─── Test helpers ────────────────────────────────────────────────────────────

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.DataDir = t.TempDir()
	cfg.Approval.Secret = "test-secret"
	cfg.Admin.Users = []string{"root"}
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *server.MCPServer {
	t.Helper()
	s, cleanup, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return s
}

func initialize(t *testing.T, c *client.Client) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "notes-test", Version: "0"}
	_, err := c.Initialize(ctx, req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
}

func connect(t *testing.T, s *server.MCPServer) *client.Client {
	t.Helper()
	c, err := client.NewInProcessClient(s)
	require.NoError(t, err)
	initialize(t, c)
	return c
}

func call(t *testing.T, c *client.Client, name string, args map[string]any, token string) protocol.Outcome {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	if token != "" {
		req.Params.Meta = protocol.MetaWithApprovalToken(token)
	}
	res, err := c.CallTool(context.Background(), req)
	require.NoError(t, err)
	return protocol.FromResult(res)
}

func login(t *testing.T, c *client.Client, user, pass string) {
	t.Helper()
	out := call(t, c, "register_user", map[string]any{"username": user, "password": pass}, "")
	require.Equal(t, protocol.KindOK, out.Kind, out.Message)
	out = call(t, c, "login_user", map[string]any{"username": user, "password": pass}, "")
	require.Equal(t, protocol.KindOK, out.Kind, out.Message)
}

// ─── Catalog ─────────────────────────────────────────────────────────────────

func TestNew_AdvertisesCatalog(t *testing.T) {
	c := connect(t, newTestServer(t, testConfig(t)))

	res, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	for _, want := range []string{
		"register_user", "login_user", "logout_user", "get_current_user",
		"save_note", "get_note", "get_all_notes", "get_all_users_notes",
		"save_search_result", "delete_note", "search", "read_url", "add",
	} {
		assert.Contains(t, names, want)
	}
}

func TestNew_BadDataDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.DataDir = "/dev/null/notes"
	_, cleanup, err := New(cfg, zap.NewNop())
	assert.Error(t, err)
	assert.NotNil(t, cleanup)
}

// ─── Approval flow ───────────────────────────────────────────────────────────

func TestSaveNote_ApprovedRoundTrip(t *testing.T) {
	c := connect(t, newTestServer(t, testConfig(t)))
	login(t, c, "alice", "pw1")

	args := map[string]any{"topic": "go", "content": "channels", "tags": "lang"}
	parked := call(t, c, "save_note", args, "")
	require.Equal(t, protocol.KindPendingApproval, parked.Kind)
	require.NotNil(t, parked.Pending)
	assert.Equal(t, "save_note", parked.Pending.Request.ToolName)
	assert.NotEmpty(t, parked.Pending.Token)

	// Nothing is written until the approved call arrives.
	out := call(t, c, "get_note", map[string]any{"topic": "go"}, "")
	assert.Equal(t, protocol.KindEmpty, out.Kind)

	out = call(t, c, "save_note", args, parked.Pending.Token)
	require.Equal(t, protocol.KindOK, out.Kind, out.Message)

	out = call(t, c, "get_note", map[string]any{"topic": "go"}, "")
	require.Equal(t, protocol.KindOK, out.Kind)
	assert.Contains(t, out.Message, "channels")
	assert.Contains(t, out.Message, "user:alice")

	out = call(t, c, "delete_note", map[string]any{"topic": "go"}, "")
	require.Equal(t, protocol.KindOK, out.Kind)
	data, ok := out.Data.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, data["removed"])

	out = call(t, c, "get_note", map[string]any{"topic": "go"}, "")
	assert.Equal(t, protocol.KindEmpty, out.Kind)
}

func TestSaveNote_TokenIsSingleUse(t *testing.T) {
	c := connect(t, newTestServer(t, testConfig(t)))
	login(t, c, "alice", "pw1")

	args := map[string]any{"topic": "shopping", "content": "milk"}
	parked := call(t, c, "save_note", args, "")
	require.Equal(t, protocol.KindPendingApproval, parked.Kind)

	out := call(t, c, "save_note", args, parked.Pending.Token)
	require.Equal(t, protocol.KindOK, out.Kind, out.Message)
	out = call(t, c, "delete_note", map[string]any{"topic": "shopping"}, "")
	require.Equal(t, protocol.KindOK, out.Kind)

	out = call(t, c, "save_note", args, parked.Pending.Token)
	assert.Equal(t, protocol.KindApprovalRejected, out.Kind)
	assert.Contains(t, out.Message, "already used")

	out = call(t, c, "get_note", map[string]any{"topic": "shopping"}, "")
	assert.Equal(t, protocol.KindEmpty, out.Kind, "a spent token must not write again")
}

func TestSaveNote_TokenBoundToArguments(t *testing.T) {
	c := connect(t, newTestServer(t, testConfig(t)))
	login(t, c, "alice", "pw1")

	parked := call(t, c, "save_note", map[string]any{"topic": "go", "content": "a"}, "")
	require.Equal(t, protocol.KindPendingApproval, parked.Kind)

	out := call(t, c, "save_note", map[string]any{"topic": "go", "content": "b"}, parked.Pending.Token)
	assert.Equal(t, protocol.KindApprovalRejected, out.Kind)

	out = call(t, c, "save_note", map[string]any{"topic": "go", "content": "a"}, "not-a-token")
	assert.Equal(t, protocol.KindApprovalRejected, out.Kind)

	out = call(t, c, "get_all_notes", nil, "")
	assert.Equal(t, protocol.KindEmpty, out.Kind, "rejected calls must not write")
}

func TestSaveNote_TokenBoundToUser(t *testing.T) {
	c := connect(t, newTestServer(t, testConfig(t)))
	login(t, c, "alice", "pw1")

	args := map[string]any{"topic": "go", "content": "a"}
	parked := call(t, c, "save_note", args, "")
	require.Equal(t, protocol.KindPendingApproval, parked.Kind)

	login(t, c, "bob", "pw2")
	out := call(t, c, "save_note", args, parked.Pending.Token)
	assert.Equal(t, protocol.KindApprovalRejected, out.Kind)
}

func TestSaveNote_UnauthenticatedIsNotParked(t *testing.T) {
	c := connect(t, newTestServer(t, testConfig(t)))

	out := call(t, c, "save_note", map[string]any{"topic": "go", "content": "a"}, "")
	assert.Equal(t, protocol.KindUnauthenticated, out.Kind)
	assert.Nil(t, out.Pending)
}

// ─── Boundary checks ─────────────────────────────────────────────────────────

func TestScopedTools_RequireLogin(t *testing.T) {
	c := connect(t, newTestServer(t, testConfig(t)))

	for _, name := range []string{"get_note", "get_all_notes", "delete_note", "save_search_result"} {
		out := call(t, c, name, map[string]any{"topic": "x", "query": "q", "content": "c"}, "")
		assert.Equal(t, protocol.KindUnauthenticated, out.Kind, name)
	}

	out := call(t, c, "add", map[string]any{"a": 2, "b": 3}, "")
	assert.Equal(t, protocol.KindOK, out.Kind)
	assert.Equal(t, "5", out.Message)
}

func TestAdminListing_RoleChecked(t *testing.T) {
	c := connect(t, newTestServer(t, testConfig(t)))

	out := call(t, c, "get_all_users_notes", nil, "")
	assert.Equal(t, protocol.KindUnauthenticated, out.Kind)

	login(t, c, "alice", "pw1")
	out = call(t, c, "get_all_users_notes", nil, "")
	assert.Equal(t, protocol.KindForbidden, out.Kind)

	login(t, c, "root", "pw0")
	out = call(t, c, "get_all_users_notes", nil, "")
	assert.Equal(t, protocol.KindEmpty, out.Kind)
	assert.Equal(t, "No notes found in the database.", out.Message)
}

func TestAdminListing_OpenListing(t *testing.T) {
	cfg := testConfig(t)
	cfg.Admin.OpenListing = true
	c := connect(t, newTestServer(t, cfg))

	out := call(t, c, "get_all_users_notes", nil, "")
	assert.Equal(t, protocol.KindEmpty, out.Kind)
}

func TestSaveSearchResult_NoApproval(t *testing.T) {
	c := connect(t, newTestServer(t, testConfig(t)))
	login(t, c, "alice", "pw1")

	out := call(t, c, "save_search_result", map[string]any{
		"topic": "go", "query": "generics", "content": "Go 1.18 added generics",
	}, "")
	require.Equal(t, protocol.KindOK, out.Kind, out.Message)

	out = call(t, c, "get_note", map[string]any{"topic": "go"}, "")
	require.Equal(t, protocol.KindOK, out.Kind)
	assert.Contains(t, out.Message, "search")
}

// ─── Streamable HTTP ─────────────────────────────────────────────────────────

func TestHTTPSessions_AreIsolated(t *testing.T) {
	ts := server.NewTestStreamableHTTPServer(newTestServer(t, testConfig(t)), server.WithStateful(true))
	t.Cleanup(ts.Close)

	dial := func() *client.Client {
		c, err := client.NewStreamableHttpClient(ts.URL)
		require.NoError(t, err)
		initialize(t, c)
		return c
	}
	alice, anon := dial(), dial()
	require.NotEqual(t, alice.GetSessionId(), anon.GetSessionId())

	login(t, alice, "alice", "pw1")

	out := call(t, alice, "get_current_user", nil, "")
	assert.Equal(t, "Current user: alice", out.Message)

	out = call(t, anon, "get_current_user", nil, "")
	assert.Equal(t, protocol.KindEmpty, out.Kind)
	out = call(t, anon, "get_all_notes", nil, "")
	assert.Equal(t, protocol.KindUnauthenticated, out.Kind)
}

func TestServe_StopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	cfg := testConfig(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, ln, cfg, zap.NewNop()) }()

	var c *client.Client
	require.Eventually(t, func() bool {
		c, err = client.NewStreamableHttpClient("http://" + ln.Addr().String() + cfg.Server.Endpoint)
		if err != nil {
			return false
		}
		if err := c.Start(context.Background()); err != nil {
			return false
		}
		req := mcp.InitializeRequest{}
		req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
		req.Params.ClientInfo = mcp.Implementation{Name: "notes-test", Version: "0"}
		_, err := c.Initialize(context.Background(), req)
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)
	_ = c.Close()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
}
