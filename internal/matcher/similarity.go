package matcher

import (
	"unicode/utf8"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

var bigramDice = &metrics.SorensenDice{CaseSensitive: true, NgramSize: 2}

// Similarity compares two canonical strings as the larger of their token-set
// Dice coefficient and their character-bigram Dice coefficient.
func Similarity(a, b string, aTokens, bTokens []string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	if utf8.RuneCountInString(a) < 2 || utf8.RuneCountInString(b) < 2 {
		return 0
	}
	tokens := tokenDice(aTokens, bTokens)
	chars := strutil.Similarity(a, b, bigramDice)
	if chars > tokens {
		return chars
	}
	return tokens
}

// tokenDice expects sorted unique token slices.
func tokenDice(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return 2 * float64(commonTokens(a, b)) / float64(len(a)+len(b))
}

// tokenOverlap is the share of the larger token set found in the other one.
func tokenOverlap(a, b []string) float64 {
	larger := len(a)
	if len(b) > larger {
		larger = len(b)
	}
	if larger == 0 {
		return 0
	}
	return float64(commonTokens(a, b)) / float64(larger)
}

func commonTokens(a, b []string) int {
	var i, j, n int
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			n++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return n
}
