package extract

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// bareURLPattern matches whitespace-free tokens beginning with http.
	bareURLPattern = regexp.MustCompile(`http\S+`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
)

// Normalize collapses extracted body text into clean plain text: bare URL
// tokens are removed, runs of repeated punctuation are deleted, whitespace
// runs collapse to a single space, and the result is trimmed. The function
// is pure and idempotent.
func Normalize(text string) string {
	// Symbol-run deletion can assemble a bare URL token that the URL
	// strip has already passed over ("h--ttp://x" becomes "http:x"), so
	// the two rules iterate together until neither changes the text.
	out := text
	for {
		next := stripSymbolRuns(bareURLPattern.ReplaceAllString(out, ""))
		if next == out {
			break
		}
		out = next
	}
	out = whitespaceRuns.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// stripSymbolRuns deletes every run of two or more identical symbol
// characters. Removing a run can bring two more identical symbols
// together, so the scan repeats until it reaches a fixed point; that is
// what keeps Normalize idempotent. RE2 has no backreferences, hence the
// rune scan instead of a pattern.
func stripSymbolRuns(s string) string {
	for {
		next := stripSymbolRunsOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func stripSymbolRunsOnce(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(runes); {
		j := i + 1
		for j < len(runes) && runes[j] == runes[i] {
			j++
		}
		if j-i >= 2 && isCollapsibleSymbol(runes[i]) {
			i = j
			continue
		}
		for ; i < j; i++ {
			b.WriteRune(runes[i])
		}
	}
	return b.String()
}

// isCollapsibleSymbol reports whether r belongs to the deletable class:
// anything that is not a letter, digit or whitespace. Underscore counts
// as a symbol here.
func isCollapsibleSymbol(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
}
