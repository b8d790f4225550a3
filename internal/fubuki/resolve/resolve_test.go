package resolve

import (
	"errors"
	"testing"

	"github.com/amartel/fubuki/internal/fubuki/catalog"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]Entry{
		{Title: "Moon", Link: "https://example.com/moon", Keywords: []string{"moon"}},
		{Title: "Moonlight", Link: "https://example.com/moonlight", Keywords: []string{"moonlight"}},
		{Title: "Café Society", Link: "https://example.com/cafe", Keywords: []string{"cafe society", "cafe"}},
	})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return c
}

// Entry aliases the catalog type to keep the table literals compact.
type Entry = catalog.Entry

func TestResolveExactTitle(t *testing.T) {
	r := New(testCatalog(t))

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"exact", "Moonlight", "Moonlight"},
		{"surrounding whitespace", "  Moonlight \n", "Moonlight"},
		{"diacritics preserved", "Café Society", "Café Society"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := r.Resolve(tt.input)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if result.Kind != KindMatched {
				t.Fatalf("Kind = %v, want KindMatched", result.Kind)
			}
			if result.Entry.Title != tt.want {
				t.Errorf("Entry.Title = %q, want %q", result.Entry.Title, tt.want)
			}
		})
	}
}

// Exact title equality always wins over keyword containment, even when an
// earlier entry's keywords also match the input.
func TestResolveExactBeatsKeyword(t *testing.T) {
	r := New(testCatalog(t))

	result, err := r.Resolve("Moonlight")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// Keyword stage would pick "Moon" first ("moon" ⊂ "moonlight"), but the
	// exact stage short-circuits before it runs.
	if result.Entry.Title != "Moonlight" {
		t.Errorf("Entry.Title = %q, want Moonlight", result.Entry.Title)
	}
}

// With the default first-match policy, an input matching several entries'
// keywords deterministically selects the earliest entry in catalog order.
func TestResolveKeywordFirstMatchWins(t *testing.T) {
	r := New(testCatalog(t))

	// "moon light" normalizes to contain "moon" (Moon) and is contained in
	// nothing else exactly; "moonlight" keyword does not match "moon light".
	// Use an input matching both Moon and Moonlight keywords:
	result, err := r.Resolve("that moonlight movie")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.Kind != KindMatched {
		t.Fatalf("Kind = %v, want KindMatched", result.Kind)
	}
	// Both "moon" and "moonlight" are substrings of the input; Moon comes
	// first in catalog order.
	if result.Entry.Title != "Moon" {
		t.Errorf("Entry.Title = %q, want Moon (first in catalog order)", result.Entry.Title)
	}
}

func TestResolveKeywordSymmetricContainment(t *testing.T) {
	r := New(testCatalog(t))

	// Input shorter than the keyword: "cafe" ⊂ "cafe society".
	result, err := r.Resolve("cafe")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.Kind != KindMatched || result.Entry.Title != "Café Society" {
		t.Errorf("got %+v, want Café Society", result)
	}
}

func TestResolveNormalizesInput(t *testing.T) {
	r := New(testCatalog(t))

	// Uppercase, diacritics, and extra whitespace all fold away before the
	// keyword stage.
	result, err := r.Resolve("  CAFÉ   society!! ")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.Kind != KindMatched || result.Entry.Title != "Café Society" {
		t.Errorf("got %+v, want Café Society", result)
	}
}

func TestResolveUnmatched(t *testing.T) {
	r := New(testCatalog(t))

	tests := []struct {
		name  string
		input string
	}{
		{"no match", "sunrise"},
		{"empty", ""},
		{"whitespace only", "   \t\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := r.Resolve(tt.input)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if result.Kind != KindUnmatched {
				t.Errorf("Kind = %v, want KindUnmatched", result.Kind)
			}
		})
	}
}

func TestResolveCommandSyntax(t *testing.T) {
	r := New(testCatalog(t))

	for _, input := range []string{"/start", "/help extra args", "  /broadcast hi"} {
		_, err := r.Resolve(input)
		if !errors.Is(err, ErrNotResolvable) {
			t.Errorf("Resolve(%q) err = %v, want ErrNotResolvable", input, err)
		}
	}
}

func TestResolveReportAmbiguous(t *testing.T) {
	r := New(testCatalog(t))
	r.ReportAmbiguous = true

	result, err := r.Resolve("that moonlight movie")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.Kind != KindAmbiguous {
		t.Fatalf("Kind = %v, want KindAmbiguous", result.Kind)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2", len(result.Entries))
	}
	// Catalog order is preserved in the ambiguous set.
	if result.Entries[0].Title != "Moon" || result.Entries[1].Title != "Moonlight" {
		t.Errorf("Entries = [%s, %s], want [Moon, Moonlight]",
			result.Entries[0].Title, result.Entries[1].Title)
	}

	// A single keyword match is still KindMatched even with reporting on.
	single, err := r.Resolve("cafe")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if single.Kind != KindMatched {
		t.Errorf("Kind = %v, want KindMatched for a unique match", single.Kind)
	}
}

func TestMatches(t *testing.T) {
	r := New(testCatalog(t))

	matches := r.Matches("that moonlight movie")
	if len(matches) != 2 {
		t.Fatalf("len = %d, want 2", len(matches))
	}

	if got := r.Matches(""); got != nil {
		t.Errorf("Matches(\"\") = %v, want nil", got)
	}
	if got := r.Matches("/start"); got != nil {
		t.Errorf("Matches(/start) = %v, want nil", got)
	}
}
