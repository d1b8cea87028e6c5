package notetools

import (
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/credentials"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/notes"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/registry"
	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/session"
)

// Deps are the collaborators the tool handlers need.
type Deps struct {
	Credentials *credentials.Store
	Sessions    *session.Manager
	Notes       *notes.Store
	Searcher    Searcher
	Fetcher     PageFetcher
	MaxResults  int
}

// Catalog returns every tool entry in the order it is advertised.
func Catalog(d Deps) []registry.Entry {
	register := NewRegisterTool(d.Credentials)
	login := NewLoginTool(d.Sessions)
	logout := NewLogoutTool(d.Sessions)
	current := NewCurrentUserTool()
	saveNote := NewSaveNoteTool(d.Notes)
	getNote := NewGetNoteTool(d.Notes)
	getAll := NewGetAllNotesTool(d.Notes)
	allUsers := NewAllUsersNotesTool(d.Notes)
	saveSearch := NewSaveSearchResultTool(d.Notes)
	deleteNote := NewDeleteNoteTool(d.Notes)

	entries := []registry.Entry{
		{Tool: register.Definition(), Handler: registry.Typed(register.Handle)},
		{Tool: login.Definition(), Handler: registry.Typed(login.Handle)},
		{Tool: logout.Definition(), Handler: registry.Typed(logout.Handle)},
		{Tool: current.Definition(), Handler: registry.Typed(current.Handle)},
		{Tool: saveNote.Definition(), Handler: registry.Typed(saveNote.Handle), Scoped: true, RequiresApproval: true},
		{Tool: getNote.Definition(), Handler: registry.Typed(getNote.Handle), Scoped: true},
		{Tool: getAll.Definition(), Handler: registry.Typed(getAll.Handle), Scoped: true},
		{Tool: allUsers.Definition(), Handler: registry.Typed(allUsers.Handle), Scoped: true, AdminOnly: true},
		{Tool: saveSearch.Definition(), Handler: registry.Typed(saveSearch.Handle), Scoped: true},
		{Tool: deleteNote.Definition(), Handler: registry.Typed(deleteNote.Handle), Scoped: true},
	}
	if d.Searcher != nil {
		s := NewSearchTool(d.Searcher, d.MaxResults)
		entries = append(entries, registry.Entry{Tool: s.Definition(), Handler: registry.Typed(s.Handle)})
	}
	if d.Fetcher != nil {
		r := NewReadURLTool(d.Fetcher)
		entries = append(entries, registry.Entry{Tool: r.Definition(), Handler: registry.Typed(r.Handle)})
	}
	add := NewAddTool()
	return append(entries, registry.Entry{Tool: add.Definition(), Handler: registry.Typed(add.Handle)})
}
