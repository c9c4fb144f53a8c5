// Package keywords extracts tech-relevant terms from post titles. Extraction
// is a collaborator of the publish path: the orchestrator enriches a post
// with keywords before it hits the bus, so every downstream consumer sees the
// same set.
package keywords

import (
	"context"
	"html"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Extractor yields zero or more lowercase, comma-free terms for a title.
// Order is not significant.
type Extractor interface {
	Extract(ctx context.Context, title string) ([]string, error)
}

var (
	urlRegex    = regexp.MustCompile(`https?://[^\s]+`)
	whitespace  = regexp.MustCompile(`\s+`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s.+#-]+`)
)

// Words too generic to count as tech keywords.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "to": {}, "in": {}, "for": {},
	"of": {}, "and": {}, "or": {}, "with": {}, "on": {}, "at": {},
	"is": {}, "are": {}, "was": {}, "be": {}, "it": {}, "its": {},
	"how": {}, "why": {}, "what": {}, "when": {}, "your": {}, "my": {},
	"you": {}, "we": {}, "i": {}, "this": {}, "that": {}, "from": {},
	"new": {}, "using": {}, "show": {}, "ask": {}, "hn": {}, "via": {},
	"about": {}, "into": {}, "not": {}, "no": {}, "now": {}, "just": {},
	"vs": {}, "over": {}, "under": {}, "between": {}, "after": {},
	"before": {}, "more": {}, "less": {}, "best": {}, "top": {},
	"guide": {}, "intro": {}, "introduction": {}, "part": {},
}

// Heuristic is the default in-process extractor: clean the title, drop
// stop-words and short tokens, rank by frequency.
type Heuristic struct {
	Limit  int
	MinLen int
}

// NewHeuristic builds an extractor with sane bounds.
func NewHeuristic(limit, minLen int) *Heuristic {
	if limit <= 0 {
		limit = 8
	}
	if minLen <= 0 {
		minLen = 2
	}
	return &Heuristic{Limit: limit, MinLen: minLen}
}

func (h *Heuristic) Extract(_ context.Context, title string) ([]string, error) {
	clean := strings.ToLower(Clean(title))
	if clean == "" {
		return nil, nil
	}

	freq := make(map[string]int)
	order := make(map[string]int)
	pos := 0
	for _, token := range strings.Fields(clean) {
		token = strings.TrimFunc(token, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '+' && r != '#'
		})
		if len([]rune(token)) < h.MinLen {
			continue
		}
		if _, skip := stopwords[token]; skip {
			continue
		}
		if _, seen := freq[token]; !seen {
			order[token] = pos
			pos++
		}
		freq[token]++
	}

	if len(freq) == 0 {
		return nil, nil
	}

	terms := make([]string, 0, len(freq))
	for term := range freq {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] == freq[terms[j]] {
			return order[terms[i]] < order[terms[j]]
		}
		return freq[terms[i]] > freq[terms[j]]
	})

	if len(terms) > h.Limit {
		terms = terms[:h.Limit]
	}
	return terms, nil
}

// Clean strips HTML entities, URLs and most punctuation, and squeezes
// whitespace. Dots, dashes, '+' and '#' survive so terms like "node.js",
// "c++" and "c#" stay intact.
func Clean(input string) string {
	if input == "" {
		return ""
	}
	decoded := html.UnescapeString(input)
	decoded = urlRegex.ReplaceAllString(decoded, " ")
	decoded = punctuation.ReplaceAllString(decoded, " ")
	decoded = whitespace.ReplaceAllString(decoded, " ")
	return strings.TrimSpace(decoded)
}

// Normalize lowercases and trims a keyword the way the counting path expects
// it. Returns "" for terms that normalize away entirely.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
