package signal

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

const (
	minTokenRunes  = 3
	maxDerivedTags = 24
)

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "this": {}, "that": {},
	"new": {}, "sale": {}, "men": {}, "mens": {}, "man": {}, "women": {}, "womens": {},
	"woman": {}, "unisex": {}, "size": {}, "sizes": {}, "color": {}, "colour": {},
	"collection": {}, "product": {}, "products": {}, "item": {}, "all": {}, "our": {},
	"your": {}, "you": {}, "are": {}, "was": {}, "has": {}, "its": {}, "into": {},
	"off": {}, "per": {}, "via": {}, "pack": {}, "default": {}, "title": {},
}

// NormalizeKey folds s into the canonical bucket key form: NFKC, lower case,
// trimmed, inner whitespace collapsed. It returns "" for blank input.
func NormalizeKey(s string) string {
	if s == "" {
		return ""
	}
	if isPlainASCII(s) {
		s = strings.ToLower(s)
	} else {
		s = cases.Lower(language.Und).String(norm.NFKC.String(s))
	}
	return strings.Join(strings.Fields(s), " ")
}

func isPlainASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func validKey(k string) bool {
	return k != "" && utf8.RuneCountInString(k) <= maxKeyRunes
}

// Tokenize splits text on non-alphanumeric boundaries and keeps lower-cased
// tokens of at least three characters that are not stop words.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(NormalizeKey(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < minTokenRunes {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// DeriveTags turns free text into profile tag keys: every kept token, then
// the bigrams of adjacent kept tokens within the same text, de-duplicated and
// capped.
func DeriveTags(texts ...string) []string {
	seen := make(map[string]struct{})
	var unigrams, bigrams []string
	for _, text := range texts {
		tokens := Tokenize(text)
		for i, tok := range tokens {
			if _, dup := seen[tok]; !dup {
				seen[tok] = struct{}{}
				unigrams = append(unigrams, tok)
			}
			if i == 0 {
				continue
			}
			bg := tokens[i-1] + " " + tok
			if _, dup := seen[bg]; !dup {
				seen[bg] = struct{}{}
				bigrams = append(bigrams, bg)
			}
		}
	}
	out := append(unigrams, bigrams...)
	if len(out) > maxDerivedTags {
		out = out[:maxDerivedTags]
	}
	return out
}
