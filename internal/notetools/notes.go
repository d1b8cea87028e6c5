package notetools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/notes"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/protocol"
)

// ─── SaveNoteTool ────────────────────────────────────────────────────────────

type saveNoteArgs struct {
	Topic   string  `json:"topic" validate:"required"`
	Content string  `json:"content" validate:"required"`
	Tags    TagList `json:"tags"`
}

// SaveNoteTool handles save_note. Calls are parked for approval first.
type SaveNoteTool struct {
	store *notes.Store
}

// NewSaveNoteTool creates a SaveNoteTool.
func NewSaveNoteTool(store *notes.Store) *SaveNoteTool {
	return &SaveNoteTool{store: store}
}

// Definition returns the MCP tool definition for save_note.
func (t *SaveNoteTool) Definition() mcp.Tool {
	return mcp.NewTool("save_note",
		mcp.WithDescription(
			"Save a note for the logged-in user. Requires human approval: the first call returns a pending "+
				"approval instead of saving. Saving identical topic and content again overwrites the same note.",
		),
		mcp.WithString("topic", mcp.Required(), mcp.Description("Topic the note is filed under")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note text")),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Optional tags")),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
	)
}

// Handle processes an approved save_note call.
func (t *SaveNoteTool) Handle(ctx context.Context, args saveNoteArgs) protocol.Outcome {
	owner, ok := caller(ctx)
	if !ok {
		return unauthenticated()
	}
	id, err := t.store.Save(ctx, args.Topic, args.Content, args.Tags, owner)
	if err != nil {
		return internalError("save note", err)
	}
	total, err := t.store.Count(ctx, owner)
	if err != nil {
		return internalError("count notes", err)
	}
	return protocol.OK(
		fmt.Sprintf("Note on %q saved for user %q.", args.Topic, owner),
		map[string]any{"id": id, "topic": args.Topic, "owner": owner, "total": total},
	)
}

// ─── GetNoteTool ─────────────────────────────────────────────────────────────

type topicArgs struct {
	Topic string `json:"topic" validate:"required"`
}

// GetNoteTool handles get_note.
type GetNoteTool struct {
	store *notes.Store
}

// NewGetNoteTool creates a GetNoteTool.
func NewGetNoteTool(store *notes.Store) *GetNoteTool {
	return &GetNoteTool{store: store}
}

// Definition returns the MCP tool definition for get_note.
func (t *GetNoteTool) Definition() mcp.Tool {
	return mcp.NewTool("get_note",
		mcp.WithDescription("Get the logged-in user's notes for a topic."),
		mcp.WithString("topic", mcp.Required(), mcp.Description("Topic to look up")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

// Handle processes get_note.
func (t *GetNoteTool) Handle(ctx context.Context, args topicArgs) protocol.Outcome {
	owner, ok := caller(ctx)
	if !ok {
		return unauthenticated()
	}
	found, err := t.store.GetByTopic(ctx, args.Topic, owner)
	if err != nil {
		return internalError("read notes", err)
	}
	text := notes.FormatTopic(args.Topic, owner, found)
	if len(found) == 0 {
		return protocol.Empty(text)
	}
	return protocol.OK(text, found)
}

// ─── GetAllNotesTool ─────────────────────────────────────────────────────────

// GetAllNotesTool handles get_all_notes.
type GetAllNotesTool struct {
	store *notes.Store
}

// NewGetAllNotesTool creates a GetAllNotesTool.
func NewGetAllNotesTool(store *notes.Store) *GetAllNotesTool {
	return &GetAllNotesTool{store: store}
}

// Definition returns the MCP tool definition for get_all_notes.
func (t *GetAllNotesTool) Definition() mcp.Tool {
	return mcp.NewTool("get_all_notes",
		mcp.WithDescription("List every note of the logged-in user, ordered by topic."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

// Handle processes get_all_notes.
func (t *GetAllNotesTool) Handle(ctx context.Context, _ noArgs) protocol.Outcome {
	owner, ok := caller(ctx)
	if !ok {
		return unauthenticated()
	}
	all, err := t.store.GetAll(ctx, owner)
	if err != nil {
		return internalError("read notes", err)
	}
	text := notes.FormatAll(owner, all)
	if len(all) == 0 {
		return protocol.Empty(text)
	}
	return protocol.OK(text, all)
}

// ─── AllUsersNotesTool ───────────────────────────────────────────────────────

// AllUsersNotesTool handles get_all_users_notes.
type AllUsersNotesTool struct {
	store *notes.Store
}

// NewAllUsersNotesTool creates an AllUsersNotesTool.
func NewAllUsersNotesTool(store *notes.Store) *AllUsersNotesTool {
	return &AllUsersNotesTool{store: store}
}

// Definition returns the MCP tool definition for get_all_users_notes.
func (t *AllUsersNotesTool) Definition() mcp.Tool {
	return mcp.NewTool("get_all_users_notes",
		mcp.WithDescription("Admin listing of every user's notes, grouped by user."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

// Handle processes get_all_users_notes.
func (t *AllUsersNotesTool) Handle(ctx context.Context, _ noArgs) protocol.Outcome {
	groups, err := t.store.GetAllAdmin(ctx)
	if err != nil {
		return internalError("read notes", err)
	}
	text := notes.FormatAdmin(groups)
	if len(groups) == 0 {
		return protocol.Empty(text)
	}
	return protocol.OK(text, groups)
}

// ─── SaveSearchResultTool ────────────────────────────────────────────────────

type saveSearchArgs struct {
	Topic   string `json:"topic" validate:"required"`
	Query   string `json:"query" validate:"required"`
	Content string `json:"content" validate:"required_without=Result"`
	// Result is the older name of Content.
	Result string `json:"result"`
}

func (a saveSearchArgs) text() string {
	if a.Content != "" {
		return a.Content
	}
	return a.Result
}

// SaveSearchResultTool handles save_search_result.
type SaveSearchResultTool struct {
	store *notes.Store
}

// NewSaveSearchResultTool creates a SaveSearchResultTool.
func NewSaveSearchResultTool(store *notes.Store) *SaveSearchResultTool {
	return &SaveSearchResultTool{store: store}
}

// Definition returns the MCP tool definition for save_search_result.
func (t *SaveSearchResultTool) Definition() mcp.Tool {
	return mcp.NewTool("save_search_result",
		mcp.WithDescription("Save a web search result as a note for the logged-in user."),
		mcp.WithString("topic", mcp.Required(), mcp.Description("Topic to file the result under")),
		mcp.WithString("query", mcp.Required(), mcp.Description("The search query that produced the result")),
		mcp.WithString("content", mcp.Description("The search result text to store. Required unless result is given")),
		mcp.WithString("result", mcp.Description("Older name for content")),
		mcp.WithIdempotentHintAnnotation(true),
	)
}

// Handle processes save_search_result.
func (t *SaveSearchResultTool) Handle(ctx context.Context, args saveSearchArgs) protocol.Outcome {
	owner, ok := caller(ctx)
	if !ok {
		return unauthenticated()
	}
	id, err := t.store.SaveSearchResult(ctx, args.Topic, args.Query, args.text(), owner)
	if err != nil {
		return internalError("save search result", err)
	}
	return protocol.OK(
		fmt.Sprintf("Search result for %q saved under topic %q for user %q.", args.Query, args.Topic, owner),
		map[string]any{"id": id, "topic": args.Topic, "owner": owner},
	)
}

// ─── DeleteNoteTool ──────────────────────────────────────────────────────────

// DeleteNoteTool handles delete_note.
type DeleteNoteTool struct {
	store *notes.Store
}

// NewDeleteNoteTool creates a DeleteNoteTool.
func NewDeleteNoteTool(store *notes.Store) *DeleteNoteTool {
	return &DeleteNoteTool{store: store}
}

// Definition returns the MCP tool definition for delete_note.
func (t *DeleteNoteTool) Definition() mcp.Tool {
	return mcp.NewTool("delete_note",
		mcp.WithDescription("Delete every note of the logged-in user under a topic."),
		mcp.WithString("topic", mcp.Required(), mcp.Description("Topic to delete")),
		mcp.WithDestructiveHintAnnotation(true),
	)
}

// Handle processes delete_note.
func (t *DeleteNoteTool) Handle(ctx context.Context, args topicArgs) protocol.Outcome {
	owner, ok := caller(ctx)
	if !ok {
		return unauthenticated()
	}
	n, err := t.store.Delete(ctx, args.Topic, owner)
	if err != nil {
		return internalError("delete note", err)
	}
	data := map[string]any{"removed": n, "topic": args.Topic}
	if n == 0 {
		out := protocol.Empty(fmt.Sprintf("No notes found for topic: %q for user %q.", args.Topic, owner))
		out.Data = data
		return out
	}
	return protocol.OK(fmt.Sprintf("Note on %q deleted for user %q.", args.Topic, owner), data)
}
