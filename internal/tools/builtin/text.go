package builtin

import (
	"sort"
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true, "has": true,
	"have": true, "in": true, "is": true, "it": true, "its": true, "of": true,
	"on": true, "or": true, "that": true, "the": true, "this": true, "to": true,
	"was": true, "were": true, "will": true, "with": true, "we": true, "you": true,
	"i": true, "can": true, "not": true, "they": true, "their": true, "there": true,
}

// words splits s into lower-cased alphanumeric tokens.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// sentences splits s on terminal punctuation and newlines.
func sentences(s string) []string {
	var out []string
	var b strings.Builder
	flush := func() {
		if t := strings.TrimSpace(b.String()); t != "" {
			out = append(out, t)
		}
		b.Reset()
	}
	for _, r := range s {
		switch r {
		case '\n':
			flush()
		case '.', '!', '?':
			b.WriteRune(r)
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return out
}

// termFrequencies counts content words.
func termFrequencies(s string) map[string]int {
	tf := make(map[string]int)
	for _, w := range words(s) {
		if len(w) < 3 || stopwords[w] {
			continue
		}
		tf[w]++
	}
	return tf
}

// keywords returns the n most frequent content words, ties broken
// alphabetically.
func keywords(s string, n int) []string {
	tf := termFrequencies(s)
	out := make([]string, 0, len(tf))
	for w := range tf {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if tf[out[i]] != tf[out[j]] {
			return tf[out[i]] > tf[out[j]]
		}
		return out[i] < out[j]
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
