package discovery

import (
	"strings"
	"unicode"
)

// Singularize reduces plural category words to their singular form, word by
// word: "Martial Arts" -> "Martial Art", "Sports" -> "Sport". The rule is a
// trailing-s strip that leaves "ss"/"us"/"is" endings alone, which keeps it
// idempotent: Singularize(Singularize(x)) == Singularize(x).
func Singularize(phrase string) string {
	words := strings.Fields(phrase)
	for i, w := range words {
		words[i] = singularWord(w)
	}
	return strings.Join(words, " ")
}

func singularWord(w string) string {
	lower := strings.ToLower(w)
	if len(w) < 4 || !strings.HasSuffix(lower, "s") {
		return w
	}
	if strings.HasSuffix(lower, "ss") || strings.HasSuffix(lower, "us") || strings.HasSuffix(lower, "is") {
		return w
	}
	return w[:len(w)-1]
}

// CanonicalTag is the display form of a tag: singularized and title-cased.
func CanonicalTag(tag string) string {
	sing := Singularize(strings.TrimSpace(tag))
	words := strings.Fields(strings.ToLower(sing))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// ExpandTags returns the canonical tag set for a query. Expansion is
// identity-only: no implicit broadening to related topics. Duplicates under
// case-insensitive comparison collapse to the first occurrence.
func ExpandTags(tags []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		c := CanonicalTag(t)
		if c == "" {
			continue
		}
		k := strings.ToLower(c)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Related reports whether two tags are fuzzy-related: the alphabetic-only,
// lower-cased form of one is a substring of the other.
func Related(a, b string) bool {
	fa, fb := alphaLower(a), alphaLower(b)
	if fa == "" || fb == "" {
		return false
	}
	return strings.Contains(fa, fb) || strings.Contains(fb, fa)
}

// RelatedToAny reports whether tag is fuzzy-related to any member of set.
func RelatedToAny(tag string, set []string) bool {
	for _, s := range set {
		if Related(tag, s) {
			return true
		}
	}
	return false
}

func alphaLower(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
