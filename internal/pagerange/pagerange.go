// Package pagerange turns user-typed page range text such as "1-3, 5" into
// ordered groups of zero-based page indices.
//
// Parsing is best effort: malformed or out-of-range tokens are skipped and
// the remaining tokens still produce groups.
package pagerange

import (
	"strconv"
	"strings"
)

// Group is an ordered, non-empty run of zero-based page indices.
// One group becomes one output file in a split.
type Group []int

// First returns the 1-based page number of the group's first element.
func (g Group) First() int { return g[0] + 1 }

// Last returns the 1-based page number of the group's last element.
func (g Group) Last() int { return g[len(g)-1] + 1 }

// SkipReason explains why a token produced no group.
type SkipReason string

const (
	SkipMalformed  SkipReason = "malformed"
	SkipOutOfRange SkipReason = "out_of_range"
	SkipEmptyRange SkipReason = "empty_range"
)

// Token is the outcome of parsing one comma separated fragment.
// Exactly one of Group and Skip is set.
type Token struct {
	Text  string
	Group Group
	Skip  SkipReason
}

// Valid reports whether the token produced a group.
func (t Token) Valid() bool { return t.Skip == "" }

// ParseTokens parses text against a document of totalPages pages and returns
// one Token per non-empty fragment, in input order.
func ParseTokens(text string, totalPages int) []Token {
	var out []Token
	for _, raw := range strings.Split(text, ",") {
		part := strings.TrimSpace(raw)
		if part == "" {
			continue
		}
		out = append(out, parseToken(part, totalPages))
	}
	return out
}

// Parse returns only the groups of the valid tokens. An empty result means
// nothing matched; it never means "all pages".
func Parse(text string, totalPages int) []Group {
	var groups []Group
	for _, tok := range ParseTokens(text, totalPages) {
		if tok.Valid() {
			groups = append(groups, tok.Group)
		}
	}
	return groups
}

// Skipped returns the tokens that produced no group.
func Skipped(tokens []Token) []Token {
	var out []Token
	for _, tok := range tokens {
		if !tok.Valid() {
			out = append(out, tok)
		}
	}
	return out
}

// Explode returns one single-page group per page, in document order.
func Explode(totalPages int) []Group {
	groups := make([]Group, 0, max(totalPages, 0))
	for i := 0; i < totalPages; i++ {
		groups = append(groups, Group{i})
	}
	return groups
}

func parseToken(part string, totalPages int) Token {
	tok := Token{Text: part}
	if !strings.Contains(part, "-") {
		page, err := strconv.Atoi(part)
		if err != nil {
			tok.Skip = SkipMalformed
			return tok
		}
		if page < 1 || page > totalPages {
			tok.Skip = SkipOutOfRange
			return tok
		}
		tok.Group = Group{page - 1}
		return tok
	}

	bounds := strings.Split(part, "-")
	if len(bounds) != 2 {
		tok.Skip = SkipMalformed
		return tok
	}
	start, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
	if err != nil {
		tok.Skip = SkipMalformed
		return tok
	}
	end, err := strconv.Atoi(strings.TrimSpace(bounds[1]))
	if err != nil {
		tok.Skip = SkipMalformed
		return tok
	}

	start = max(start, 1)
	end = min(end, totalPages)
	if start > end {
		tok.Skip = SkipEmptyRange
		return tok
	}
	g := make(Group, 0, end-start+1)
	for p := start; p <= end; p++ {
		g = append(g, p-1)
	}
	tok.Group = g
	return tok
}
