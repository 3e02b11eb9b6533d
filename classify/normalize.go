package classify

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold lowercases s and strips diacritics ("Météo" becomes "meteo").
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// tokenize folds s and splits it into words. Anything other than a letter,
// a digit or the wildcard "*" separates words, so "qu'il" and "est-ce"
// become two words each.
func tokenize(s string) []string {
	return strings.FieldsFunc(fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '*'
	})
}

// pattern is a compiled signal.
type pattern struct {
	text   string
	words  []string
	prefix bool
}

func compile(signal string) (pattern, bool) {
	words := tokenize(signal)
	if len(words) == 0 {
		return pattern{}, false
	}
	p := pattern{text: signal}
	last := words[len(words)-1]
	if strings.HasSuffix(last, "*") {
		p.prefix = true
		words[len(words)-1] = strings.TrimRight(last, "*")
	}
	for i, w := range words {
		words[i] = strings.ReplaceAll(w, "*", "")
	}
	if words[len(words)-1] == "" {
		return pattern{}, false
	}
	p.words = words
	return p, true
}

// count returns how many times the pattern occurs in the token stream.
func (p pattern) count(tokens []string) int {
	n := 0
	for i := 0; i+len(p.words) <= len(tokens); i++ {
		if p.matchAt(tokens, i) {
			n++
		}
	}
	return n
}

func (p pattern) matchAt(tokens []string, i int) bool {
	last := len(p.words) - 1
	for j, w := range p.words {
		tok := tokens[i+j]
		if j == last && p.prefix {
			if !strings.HasPrefix(tok, w) {
				return false
			}
			continue
		}
		if tok != w {
			return false
		}
	}
	return true
}
