// Package canon maps free-form track text into the comparable normal form used
// on both sides of a match.
//
// Titles lose bracketed annotations, release noise words (remastered, live,
// mono, ...) and year tokens. Artists lose standalone "the" and "and". The
// same functions are applied to import rows and catalog tracks, and every
// function is idempotent: Title(Title(x)) == Title(x).
package canon

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	bracketedPattern = regexp.MustCompile(`\([^()]*\)|\[[^\[\]]*\]|\{[^{}]*\}`)
	yearPattern      = regexp.MustCompile(`^(19|20)\d\d$`)
)

var titleNoise = map[string]struct{}{
	"remaster": {}, "remastered": {}, "mono": {}, "stereo": {}, "mix": {},
	"remix": {}, "edit": {}, "version": {}, "live": {}, "demo": {},
	"bonus": {}, "radio": {}, "single": {}, "album": {}, "explicit": {},
	"clean": {}, "deluxe": {}, "expanded": {}, "extended": {}, "original": {},
	"acoustic": {}, "instrumental": {},
}

var artistNoise = map[string]struct{}{
	"the": {},
	"and": {},
}

var quoteReplacer = strings.NewReplacer(
	"‘", "'", "’", "'", "‚", "'", "‛", "'",
	"“", `"`, "”", `"`, "„", `"`,
	"&", " and ", "＆", " and ",
)

// Title returns the canonical form of a track title.
func Title(s string) string {
	cleaned := clean(stripBrackets(s))
	if cleaned == "" {
		// Fully bracketed titles keep their annotation text.
		cleaned = clean(s)
	}
	stripped := dropTokens(cleaned, func(tok string) bool {
		if _, ok := titleNoise[tok]; ok {
			return true
		}
		return yearPattern.MatchString(tok)
	})
	if stripped == "" {
		return cleaned
	}
	return stripped
}

// Artist returns the canonical form of an artist name.
func Artist(s string) string {
	cleaned := clean(s)
	stripped := dropTokens(cleaned, func(tok string) bool {
		_, ok := artistNoise[tok]
		return ok
	})
	if stripped == "" {
		return cleaned
	}
	return stripped
}

// Tokens splits a canonical string into its sorted unique words.
func Tokens(canonical string) []string {
	fields := strings.Fields(canonical)
	if len(fields) == 0 {
		return nil
	}
	sort.Strings(fields)
	out := fields[:1]
	for _, f := range fields[1:] {
		if f != out[len(out)-1] {
			out = append(out, f)
		}
	}
	return out
}

func stripBrackets(s string) string {
	// Nested annotations need repeated passes.
	for {
		next := bracketedPattern.ReplaceAllString(s, " ")
		if next == s {
			return next
		}
		s = next
	}
}

func clean(s string) string {
	s = fold(quoteReplacer.Replace(s))
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\'' || r == '.':
			// "don't" -> "dont", "t.rex" -> "trex"
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func dropTokens(s string, drop func(string) bool) string {
	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if !drop(f) {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}
