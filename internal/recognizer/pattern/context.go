package pattern

import (
	"strings"
	"unicode"
)

const (
	// ContextBoost is added to a match score when a context keyword is near.
	ContextBoost = 0.35
	// MinScoreWithContext is the floor for a context-supported match.
	MinScoreWithContext = 0.4
	// contextPrefixWords is how many words before a match are inspected.
	contextPrefixWords = 5
	// contextSuffixWords is how many words after a match are inspected.
	contextSuffixWords = 0
)

func enhanceScore(score float64) float64 {
	score += ContextBoost
	if score > MaxScore {
		score = MaxScore
	}
	if score < MinScoreWithContext {
		score = MinScoreWithContext
	}
	return score
}

// hasContext reports whether any keyword occurs inside one of the words
// surrounding [start,end). Matching is case-insensitive substring matching
// so inflected forms ("рахунку" for "рахунк") still count.
func hasContext(text string, start, end int, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	words := lastWords(text[:start], contextPrefixWords)
	words = append(words, firstWords(text[end:], contextSuffixWords)...)
	for _, w := range words {
		lw := strings.ToLower(w)
		for _, k := range keywords {
			if k != "" && strings.Contains(lw, strings.ToLower(k)) {
				return true
			}
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '\''
}

func lastWords(s string, n int) []string {
	if n <= 0 {
		return nil
	}
	all := strings.FieldsFunc(s, func(r rune) bool { return !isWordRune(r) })
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all
}

func firstWords(s string, n int) []string {
	if n <= 0 {
		return nil
	}
	all := strings.FieldsFunc(s, func(r rune) bool { return !isWordRune(r) })
	if len(all) > n {
		all = all[:n]
	}
	return all
}
