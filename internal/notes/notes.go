// Package notes implements the content-addressed note store.
//
// A note id is a SHA-256 digest over (topic, content, owner). Saving the
// same triple twice overwrites one row; changing the content under the same
// topic produces a new row and leaves the old one in place. Rows therefore
// accumulate over time and need an external retention policy; Count
// exposes the per-owner total for that purpose.
package notes

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/RohitBind123/Adding-notes-mcp-server--mcp-client/internal/store"
)

// SearchTag marks notes created from a saved search result.
const SearchTag = "search"

// ErrNoOwner is returned when an operation is called without an owner.
var ErrNoOwner = errors.New("notes: owner is required")

// ─── Types ───────────────────────────────────────────────────────────────────

// Note is a single stored note.
type Note struct {
	ID        string   `json:"id"`
	Topic     string   `json:"topic"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags"`
	Owner     string   `json:"owner"`
	CreatedAt string   `json:"created_at,omitempty"`
}

// OwnerGroup holds one owner's notes in the admin listing.
type OwnerGroup struct {
	Owner string `json:"owner"`
	Notes []Note `json:"notes"`
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store persists notes in the shared SQLite database.
type Store struct {
	db *store.DB
}

// New returns a note store over db.
func New(db *store.DB) *Store {
	return &Store{db: db}
}

// OwnerTag returns the tag appended to every note saved for owner.
func OwnerTag(owner string) string {
	return "user:" + owner
}

// NoteID derives the content-addressed id for a note. Each field is
// length-prefixed so that shifting characters between fields changes the id.
func NoteID(topic, content, owner string) string {
	h := sha256.New()
	var n [8]byte
	for _, field := range []string{topic, content, owner} {
		binary.BigEndian.PutUint64(n[:], uint64(len(field)))
		h.Write(n[:])
		h.Write([]byte(field))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Save upserts a note keyed by NoteID(topic, content, owner) and returns the id.
func (s *Store) Save(ctx context.Context, topic, content string, tags []string, owner string) (string, error) {
	if owner == "" {
		return "", ErrNoOwner
	}
	return s.upsert(ctx, NoteID(topic, content, owner), topic, content, withOwnerTag(tags, owner), owner)
}

// SaveSearchResult stores a search result under topic. The id is keyed on
// the query so that re-saving a query under the same topic refreshes it.
func (s *Store) SaveSearchResult(ctx context.Context, topic, query, result, owner string) (string, error) {
	if owner == "" {
		return "", ErrNoOwner
	}
	tags := []string{SearchTag, OwnerTag(owner)}
	return s.upsert(ctx, NoteID(topic, query, owner), topic, result, tags, owner)
}

func (s *Store) upsert(ctx context.Context, id, topic, content string, tags []string, owner string) (string, error) {
	raw, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("notes: encode tags: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO notes (id, topic, content, tags, owner) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			topic = excluded.topic,
			content = excluded.content,
			tags = excluded.tags,
			owner = excluded.owner`,
		id, topic, content, string(raw), owner,
	)
	if err != nil {
		return "", fmt.Errorf("notes: save %q: %w", topic, err)
	}
	return id, nil
}

// GetByTopic returns every note for (topic, owner). No match is an empty slice.
func (s *Store) GetByTopic(ctx context.Context, topic, owner string) ([]Note, error) {
	return s.queryNotes(ctx,
		`SELECT id, topic, content, tags, owner, created_at FROM notes
		 WHERE topic = ? AND owner = ? ORDER BY rowid`,
		topic, owner,
	)
}

// GetAll returns every note for owner ordered by topic, then insertion order.
func (s *Store) GetAll(ctx context.Context, owner string) ([]Note, error) {
	return s.queryNotes(ctx,
		`SELECT id, topic, content, tags, owner, created_at FROM notes
		 WHERE owner = ? ORDER BY topic, rowid`,
		owner,
	)
}

// GetAllAdmin returns every note grouped by owner, ordered by owner then topic.
func (s *Store) GetAllAdmin(ctx context.Context) ([]OwnerGroup, error) {
	all, err := s.queryNotes(ctx,
		`SELECT id, topic, content, tags, owner, created_at FROM notes
		 ORDER BY owner, topic, rowid`,
	)
	if err != nil {
		return nil, err
	}
	var groups []OwnerGroup
	for _, n := range all {
		if len(groups) == 0 || groups[len(groups)-1].Owner != n.Owner {
			groups = append(groups, OwnerGroup{Owner: n.Owner})
		}
		last := &groups[len(groups)-1]
		last.Notes = append(last.Notes, n)
	}
	return groups, nil
}

// Delete removes every note with (topic, owner) and returns the count.
func (s *Store) Delete(ctx context.Context, topic, owner string) (int64, error) {
	res, err := s.db.Exec(ctx, `DELETE FROM notes WHERE topic = ? AND owner = ?`, topic, owner)
	if err != nil {
		return 0, fmt.Errorf("notes: delete %q: %w", topic, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("notes: delete %q: %w", topic, err)
	}
	return n, nil
}

// Count returns the number of rows stored for owner.
func (s *Store) Count(ctx context.Context, owner string) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM notes WHERE owner = ?`, owner).Scan(&n); err != nil {
		return 0, fmt.Errorf("notes: count: %w", err)
	}
	return n, nil
}

func (s *Store) queryNotes(ctx context.Context, query string, args ...any) ([]Note, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("notes: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := []Note{}
	for rows.Next() {
		var n Note
		var rawTags string
		if err := rows.Scan(&n.ID, &n.Topic, &n.Content, &rawTags, &n.Owner, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("notes: scan: %w", err)
		}
		n.Tags = decodeTags(rawTags)
		results = append(results, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notes: iterate: %w", err)
	}
	return results, nil
}

// withOwnerTag trims caller tags, drops empties and appends the owner tag.
func withOwnerTag(tags []string, owner string) []string {
	ownerTag := OwnerTag(owner)
	out := make([]string, 0, len(tags)+1)
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || t == ownerTag {
			continue
		}
		out = append(out, t)
	}
	return append(out, ownerTag)
}

func decodeTags(raw string) []string {
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		// Rows written by older tooling store a comma separated list.
		return SplitTags(raw)
	}
	if tags == nil {
		tags = []string{}
	}
	return tags
}

// SplitTags parses a comma separated tag string.
func SplitTags(raw string) []string {
	tags := []string{}
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
