// Package notetools provides the MCP tool handlers of the notes server.
//
// Each tool follows the same pattern:
//   - a struct with its dependencies injected via constructor
//   - Definition() returns the mcp.Tool schema
//   - Handle() takes the decoded argument struct and returns a tagged outcome
//
// Session and approval checks happen before Handle is reached; a handler
// for an identity-scoped tool reads the caller from the context.
package notetools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/notes"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/protocol"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/session"
)

// NotLoggedIn is the message returned to identity-scoped calls without a session.
const NotLoggedIn = "Error: No user is logged in. Please login first."

// noArgs is the argument struct of tools that take no input.
type noArgs struct{}

// TagList accepts tags either as a JSON array or as a comma separated string.
type TagList []string

// UnmarshalJSON implements json.Unmarshaler.
func (t *TagList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("tags must be a string or an array of strings")
	}
	*t = notes.SplitTags(s)
	return nil
}

// caller returns the identity resolved at the boundary.
func caller(ctx context.Context) (string, bool) {
	return session.UserFromContext(ctx)
}

func unauthenticated() protocol.Outcome {
	return protocol.Fail(protocol.KindUnauthenticated, NotLoggedIn)
}

func internalError(action string, err error) protocol.Outcome {
	return protocol.Fail(protocol.KindInternal, "Failed to %s: %v", action, err)
}
