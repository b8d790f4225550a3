// Package catalog holds the immutable set of resolvable content entries.
//
// The catalog is loaded once at process start from a YAML file and never
// mutated afterwards. Entry order in the file is significant: keyword
// resolution scans entries in catalog order and the first match wins, so
// reordering the file changes resolution behaviour.
package catalog

import (
	"fmt"
	"strings"
)

// Entry is one resolvable content item.
type Entry struct {
	// Title is the unique, human-readable key for the entry.
	Title string `yaml:"title"`
	// Link is the canonical download/landing URL.
	Link string `yaml:"link"`
	// Keywords are normalized match tokens. May be empty; never contains
	// the empty string (enforced at load time).
	Keywords []string `yaml:"keywords"`
	// Poster is an optional image URL shown alongside the entry.
	Poster string `yaml:"poster"`
}

// Catalog is an ordered, immutable collection of entries with a title index.
type Catalog struct {
	entries []Entry
	byTitle map[string]int // exact title → index into entries
}

// New builds a Catalog from the given entries, normalizing keywords and
// enforcing the structural invariants:
//   - titles are unique and non-empty
//   - links are non-empty
//   - no keyword is empty after normalization
func New(entries []Entry) (*Catalog, error) {
	c := &Catalog{
		entries: make([]Entry, 0, len(entries)),
		byTitle: make(map[string]int, len(entries)),
	}

	for i, e := range entries {
		e.Title = strings.TrimSpace(e.Title)
		if e.Title == "" {
			return nil, fmt.Errorf("catalog: entry %d has an empty title", i)
		}
		if _, dup := c.byTitle[e.Title]; dup {
			return nil, fmt.Errorf("catalog: duplicate title %q", e.Title)
		}
		if strings.TrimSpace(e.Link) == "" {
			return nil, fmt.Errorf("catalog: entry %q has an empty link", e.Title)
		}

		normalized := make([]string, 0, len(e.Keywords))
		for _, kw := range e.Keywords {
			n := Normalize(kw)
			if n == "" {
				return nil, fmt.Errorf("catalog: entry %q has a keyword that is empty after normalization (%q)", e.Title, kw)
			}
			normalized = append(normalized, n)
		}
		e.Keywords = normalized

		c.byTitle[e.Title] = len(c.entries)
		c.entries = append(c.entries, e)
	}

	return c, nil
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Entries returns the entries in catalog order. The returned slice is a copy;
// mutating it does not affect the catalog.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// ByTitle looks up an entry by exact title (after trimming surrounding
// whitespace from the argument). This is the only case-sensitive lookup in
// the resolution pipeline.
func (c *Catalog) ByTitle(title string) (Entry, bool) {
	idx, ok := c.byTitle[strings.TrimSpace(title)]
	if !ok {
		return Entry{}, false
	}
	return c.entries[idx], true
}

// PromptList renders the catalog as "title -> link" lines for inclusion in
// the generative fallback's system instruction.
func (c *Catalog) PromptList() string {
	var b strings.Builder
	for _, e := range c.entries {
		b.WriteString("- ")
		b.WriteString(e.Title)
		b.WriteString(" -> ")
		b.WriteString(e.Link)
		b.WriteString("\n")
	}
	return b.String()
}

// Titles returns every title in catalog order.
func (c *Catalog) Titles() []string {
	titles := make([]string, len(c.entries))
	for i, e := range c.entries {
		titles[i] = e.Title
	}
	return titles
}
