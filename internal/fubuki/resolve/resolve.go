// Package resolve maps free-form user input to catalog entries.
//
// Resolution follows a strict two-stage precedence: exact title equality
// first, keyword containment second. Each stage short-circuits on success.
// Keyword matching is deliberately first-match in catalog order, not
// best-match — see Resolver.ReportAmbiguous for the opt-in alternative.
package resolve

import (
	"errors"
	"strings"

	"github.com/amartel/fubuki/internal/fubuki/catalog"
)

// CommandPrefix is the reserved sentinel that marks a message as a command.
// Command-syntax input is never resolved against the catalog.
const CommandPrefix = "/"

// ErrNotResolvable is returned when the input is command syntax and therefore
// excluded from resolution. Callers should show the help/menu prompt rather
// than treating this as a failure.
var ErrNotResolvable = errors.New("resolve: command syntax is not resolvable")

// Kind discriminates the Result variants.
type Kind int

const (
	// KindUnmatched means no entry matched either stage.
	KindUnmatched Kind = iota
	// KindMatched means exactly one entry was selected.
	KindMatched
	// KindAmbiguous means multiple entries matched by keyword and the
	// resolver was configured to report them instead of picking the first.
	KindAmbiguous
)

// Result is the outcome of a single resolution attempt.
type Result struct {
	Kind Kind
	// Entry is set when Kind == KindMatched.
	Entry catalog.Entry
	// Entries is the ordered (catalog-order) match set when
	// Kind == KindAmbiguous. Always non-empty in that case.
	Entries []catalog.Entry
}

// Resolver resolves input text against a catalog.
type Resolver struct {
	catalog *catalog.Catalog

	// ReportAmbiguous switches stage two from first-match-wins to reporting
	// every keyword match as KindAmbiguous when there is more than one.
	// Off by default: the observed policy is catalog-order first-match, and
	// whether that tie-break is intended is an open question upstream, so
	// the default preserves it exactly.
	ReportAmbiguous bool
}

// New returns a Resolver over c with the default first-match policy.
func New(c *catalog.Catalog) *Resolver {
	return &Resolver{catalog: c}
}

// Resolve maps input to a Result.
//
// Precedence, each stage short-circuiting on success:
//  1. Exact title equality (whitespace-trimmed, case-sensitive). Titles are
//     unique, so at most one entry can match.
//  2. Keyword containment over normalized text, scanning entries in catalog
//     order. Containment is symmetric: a keyword matches when it is a
//     substring of the input or the input is a substring of the keyword.
//
// Empty or whitespace-only input returns KindUnmatched without scanning.
// Command-prefixed input returns ErrNotResolvable.
func (r *Resolver) Resolve(input string) (Result, error) {
	trimmed := strings.TrimSpace(input)
	if strings.HasPrefix(trimmed, CommandPrefix) {
		return Result{}, ErrNotResolvable
	}

	// Stage 1: exact title match.
	if entry, ok := r.catalog.ByTitle(trimmed); ok {
		return Result{Kind: KindMatched, Entry: entry}, nil
	}

	normalized := catalog.Normalize(input)
	if normalized == "" {
		return Result{Kind: KindUnmatched}, nil
	}

	// Stage 2: keyword containment in catalog order.
	matches := r.keywordMatches(normalized)
	switch {
	case len(matches) == 0:
		return Result{Kind: KindUnmatched}, nil
	case len(matches) == 1 || !r.ReportAmbiguous:
		return Result{Kind: KindMatched, Entry: matches[0]}, nil
	default:
		return Result{Kind: KindAmbiguous, Entries: matches}, nil
	}
}

// Matches returns every entry whose keywords match the normalized input, in
// catalog order. Used by the /find command to show all candidates regardless
// of the resolver's tie-break policy. Empty input yields no matches.
func (r *Resolver) Matches(input string) []catalog.Entry {
	normalized := catalog.Normalize(input)
	if normalized == "" || strings.HasPrefix(strings.TrimSpace(input), CommandPrefix) {
		return nil
	}
	return r.keywordMatches(normalized)
}

// keywordMatches scans entries in catalog order and collects those with at
// least one matching keyword. normalized must be non-empty; keywords are
// guaranteed non-empty by the catalog loader, so the empty string can never
// satisfy the containment test from either side.
func (r *Resolver) keywordMatches(normalized string) []catalog.Entry {
	var matches []catalog.Entry
	for _, entry := range r.catalog.Entries() {
		for _, kw := range entry.Keywords {
			if strings.Contains(normalized, kw) || strings.Contains(kw, normalized) {
				matches = append(matches, entry)
				break
			}
		}
	}
	return matches
}
