package catalog

import (
	"strings"
	"unicode/utf8"
)

const minKeywordLen = 3

// Keywords derives the search keyword set for a product. Name and description
// are split on whitespace; category, subcategory and tags are kept whole.
// Tokens are lowercased, tokens shorter than three characters are dropped and
// duplicates are removed keeping first occurrence order.
func Keywords(name, description, category, subcategory string, tags []string) []string {
	var raw []string
	raw = append(raw, strings.Fields(strings.ToLower(name))...)
	raw = append(raw, strings.Fields(strings.ToLower(description))...)
	raw = append(raw, strings.ToLower(strings.TrimSpace(category)))
	raw = append(raw, strings.ToLower(strings.TrimSpace(subcategory)))
	for _, tag := range tags {
		raw = append(raw, strings.ToLower(strings.TrimSpace(tag)))
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, kw := range raw {
		if utf8.RuneCountInString(kw) < minKeywordLen {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// SearchTerms splits a free-text search into lowercase terms for any-match lookup.
func SearchTerms(search string) []string {
	terms := strings.Fields(strings.ToLower(search))
	if len(terms) == 0 {
		return nil
	}
	return terms
}
