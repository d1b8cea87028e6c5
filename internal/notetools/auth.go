package notetools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/credentials"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/protocol"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/session"
)

type credentialArgs struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ─── RegisterTool ────────────────────────────────────────────────────────────

// RegisterTool handles register_user.
type RegisterTool struct {
	creds *credentials.Store
}

// NewRegisterTool creates a RegisterTool.
func NewRegisterTool(creds *credentials.Store) *RegisterTool {
	return &RegisterTool{creds: creds}
}

// Definition returns the MCP tool definition for register_user.
func (t *RegisterTool) Definition() mcp.Tool {
	return mcp.NewTool("register_user",
		mcp.WithDescription("Register a new user. Registering an existing username replaces its password."),
		mcp.WithString("username", mcp.Required(), mcp.Description("Username")),
		mcp.WithString("password", mcp.Required(), mcp.Description("Password")),
		mcp.WithIdempotentHintAnnotation(true),
	)
}

// Handle processes register_user.
func (t *RegisterTool) Handle(ctx context.Context, args credentialArgs) protocol.Outcome {
	user, err := t.creds.Register(ctx, args.Username, args.Password)
	if err != nil {
		return internalError("register user", err)
	}
	return protocol.OK(fmt.Sprintf("User %q registered successfully.", user), map[string]any{"username": user})
}

// ─── LoginTool ───────────────────────────────────────────────────────────────

// LoginTool handles login_user.
type LoginTool struct {
	sessions *session.Manager
}

// NewLoginTool creates a LoginTool.
func NewLoginTool(sessions *session.Manager) *LoginTool {
	return &LoginTool{sessions: sessions}
}

// Definition returns the MCP tool definition for login_user.
func (t *LoginTool) Definition() mcp.Tool {
	return mcp.NewTool("login_user",
		mcp.WithDescription("Log in as a registered user. A later login replaces the current user for this session."),
		mcp.WithString("username", mcp.Required(), mcp.Description("Username")),
		mcp.WithString("password", mcp.Required(), mcp.Description("Password")),
	)
}

// Handle processes login_user.
func (t *LoginTool) Handle(ctx context.Context, args credentialArgs) protocol.Outcome {
	err := t.sessions.Login(ctx, session.KeyFromContext(ctx), args.Username, args.Password)
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		return protocol.Fail(protocol.KindInvalidCredentials, "Invalid username or password.")
	case err != nil:
		return internalError("log in", err)
	}
	return protocol.OK(
		fmt.Sprintf("User %q logged in successfully. Session active.", args.Username),
		map[string]any{"username": args.Username},
	)
}

// ─── LogoutTool ──────────────────────────────────────────────────────────────

// LogoutTool handles logout_user.
type LogoutTool struct {
	sessions *session.Manager
}

// NewLogoutTool creates a LogoutTool.
func NewLogoutTool(sessions *session.Manager) *LogoutTool {
	return &LogoutTool{sessions: sessions}
}

// Definition returns the MCP tool definition for logout_user.
func (t *LogoutTool) Definition() mcp.Tool {
	return mcp.NewTool("logout_user",
		mcp.WithDescription("Log out the current user."),
	)
}

// Handle processes logout_user.
func (t *LogoutTool) Handle(ctx context.Context, _ noArgs) protocol.Outcome {
	user, ok := t.sessions.Logout(session.KeyFromContext(ctx))
	if !ok {
		return protocol.Empty("No user is currently logged in.")
	}
	return protocol.OK(fmt.Sprintf("User %q logged out successfully.", user), map[string]any{"username": user})
}

// ─── CurrentUserTool ─────────────────────────────────────────────────────────

// CurrentUserTool handles get_current_user.
type CurrentUserTool struct{}

// NewCurrentUserTool creates a CurrentUserTool.
func NewCurrentUserTool() *CurrentUserTool {
	return &CurrentUserTool{}
}

// Definition returns the MCP tool definition for get_current_user.
func (t *CurrentUserTool) Definition() mcp.Tool {
	return mcp.NewTool("get_current_user",
		mcp.WithDescription("Show which user is logged in."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

// Handle processes get_current_user.
func (t *CurrentUserTool) Handle(ctx context.Context, _ noArgs) protocol.Outcome {
	user, ok := caller(ctx)
	if !ok {
		return protocol.Empty("No user is currently logged in.")
	}
	return protocol.OK("Current user: "+user, map[string]any{"username": user})
}
