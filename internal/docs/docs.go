package docs

import (
	"fmt"
	"io"
	"strings"
)

// Topic is one built-in article.
type Topic struct {
	Name    string // CLI argument
	Title   string
	Summary string // shown in the topic index
	Content string // plain text
}

// All returns every topic in display order.
func All() []Topic {
	return topics
}

// Get finds a topic by name, ignoring case. A unique prefix is enough, so
// "orch" finds "orchestrate".
func Get(name string) (Topic, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	var matches []Topic
	for _, t := range topics {
		if t.Name == name {
			return t, nil
		}
		if name != "" && strings.HasPrefix(t.Name, name) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return Topic{}, fmt.Errorf("unknown topic %q (run 'sdlc docs' to list available topics)", name)
	}
	names := make([]string, len(matches))
	for i, t := range matches {
		names[i] = t.Name
	}
	return Topic{}, fmt.Errorf("topic %q is ambiguous: %s", name, strings.Join(names, ", "))
}

// WriteIndex lists the topics with their summaries.
func WriteIndex(w io.Writer) {
	fmt.Fprint(w, "\nAvailable topics:\n\n")
	for _, t := range topics {
		fmt.Fprintf(w, "  %-14s %s\n", t.Name, t.Summary)
	}
	fmt.Fprintln(w, "\nRun 'sdlc docs <topic>' to read a topic.")
}
