package notes

import (
	"fmt"
	"strings"
)

// FormatTopic renders the notes for one topic.
func FormatTopic(topic, owner string, notes []Note) string {
	if len(notes) == 0 {
		return fmt.Sprintf("No notes found for topic: %q for user %q.", topic, owner)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Notes for user %q:\n\n", owner)
	for _, n := range notes {
		fmt.Fprintf(&b, "Content: %s\nTags: %s\n\n", n.Content, formatTags(n.Tags))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatAll renders every note of one owner.
func FormatAll(owner string, notes []Note) string {
	if len(notes) == 0 {
		return fmt.Sprintf("No notes found for user %q.", owner)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Total notes for user %q: %d\n\n", owner, len(notes))
	writeNotes(&b, notes)
	return strings.TrimRight(b.String(), "\n")
}

// FormatAdmin renders the notes of every owner.
func FormatAdmin(groups []OwnerGroup) string {
	total := 0
	for _, g := range groups {
		total += len(g.Notes)
	}
	if total == 0 {
		return "No notes found in the database."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Total notes in database: %d\n", total)
	for _, g := range groups {
		fmt.Fprintf(&b, "\n========== USER: %s ==========\n\n", g.Owner)
		writeNotes(&b, g.Notes)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeNotes(b *strings.Builder, notes []Note) {
	for i, n := range notes {
		fmt.Fprintf(b, "--- Note %d ---\n", i+1)
		fmt.Fprintf(b, "ID: %s\n", n.ID)
		fmt.Fprintf(b, "Topic: %s\n", n.Topic)
		fmt.Fprintf(b, "Content: %s\n", n.Content)
		fmt.Fprintf(b, "Tags: %s\n\n", formatTags(n.Tags))
	}
}

func formatTags(tags []string) string {
	if len(tags) == 0 {
		return "No tags"
	}
	return strings.Join(tags, ", ")
}
