package parser

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	videoNoise   = regexp.MustCompile(`(?i)\s*[(\[](official\s+(music\s+)?video|official\s+audio|official\s+lyric\s+video|lyric\s+video|lyrics?|visuali[sz]er|audio|video|hd|hq|4k)[)\]]`)
	featPattern  = regexp.MustCompile(`(?i)\b(feat\.?|featuring)\s`)
	spacePattern = regexp.MustCompile(`\s{2,}`)
	titleSplit   = regexp.MustCompile(`\s+[-–—|:]\s+`)
	topicSuffix  = regexp.MustCompile(`(?i)\s+-\s+topic$`)
)

// NormalizeYTTitle splits a video title into artist and title. When the
// title carries no separator the uploader stands in for the artist.
func NormalizeYTTitle(rawTitle, uploader string) (artist, title string) {
	t := videoNoise.ReplaceAllString(rawTitle, "")
	t = featPattern.ReplaceAllString(t, "ft. ")
	t = strings.TrimSpace(spacePattern.ReplaceAllString(t, " "))

	if parts := titleSplit.Split(t, 2); len(parts) == 2 {
		left, right := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if looksLikeArtist(left, right) {
			return capWords(left), capWords(right)
		}
		return capWords(right), capWords(left)
	}

	uploader = strings.TrimSpace(topicSuffix.ReplaceAllString(uploader, ""))
	return capWords(uploader), capWords(t)
}

// looksLikeArtist reports whether left is the artist half of "left - right".
func looksLikeArtist(left, right string) bool {
	lower := strings.ToLower(left)
	if strings.Contains(left, ",") || strings.Contains(lower, "ft.") || strings.Contains(lower, " & ") {
		return true
	}
	return len(strings.Fields(left)) <= 4 && len(strings.Fields(right)) >= 2
}

// capWords title-cases each word but leaves short all-caps words (AC/DC, DJ,
// ABBA) alone.
func capWords(s string) string {
	caser := cases.Title(language.Und)
	words := strings.Fields(s)
	for i, w := range words {
		if w == strings.ToUpper(w) && len(w) <= 5 {
			continue
		}
		words[i] = caser.String(w)
	}
	return strings.Join(words, " ")
}
