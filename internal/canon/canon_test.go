package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Yesterday", "yesterday"},
		{"remaster annotation", "Bohemian Rhapsody (Remastered 2011)", "bohemian rhapsody"},
		{"bracketed live", "Paranoid [Live at Leeds]", "paranoid"},
		{"nested brackets", "Song (Demo (Take 2))", "song"},
		{"dash suffix noise", "Let It Be - Remastered 2009", "let it be"},
		{"year token", "1999 Single Version 1999", "1999 single version 1999"},
		{"curly apostrophe", "Don’t Stop Me Now", "dont stop me now"},
		{"ampersand", "Rock & Roll", "rock and roll"},
		{"diacritics", "Déjà Vu", "deja vu"},
		{"collapses whitespace", "  Hey    Jude  ", "hey jude"},
		{"fully bracketed", "(Untitled)", "untitled"},
		{"only noise", "Live", "live"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Title(tt.in))
		})
	}
}

func TestTitleNoiseStripping(t *testing.T) {
	assert.Equal(t, Title("Bohemian Rhapsody"), Title("Bohemian Rhapsody (Remastered 2011)"))
	assert.Equal(t, Title("Heroes"), Title("Heroes - 2017 Remaster"))
	assert.Equal(t, Title("Smile"), Title("Smile (Acoustic Version) [Explicit]"))
}

func TestArtist(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"The Beatles", "beatles"},
		{"Simon & Garfunkel", "simon garfunkel"},
		{"Earth, Wind and Fire", "earth wind fire"},
		{"Theatre of Tragedy", "theatre of tragedy"},
		{"Sandy Denny", "sandy denny"},
		{"The The", "the the"},
		{"Beyoncé", "beyonce"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Artist(tt.in))
		})
	}
}

func TestCanonicalizationIdempotent(t *testing.T) {
	inputs := []string{
		"Bohemian Rhapsody (Remastered 2011)",
		"Live",
		"The The",
		"(Untitled)",
		"Song (Demo (Take 2))",
		"  Mr. Brightside  ",
		"AC/DC",
		"Sigur Rós – Hoppípolla",
		"2000 Light Years From Home",
		"Rock & Roll (Live 1972) [Deluxe Edition]",
	}
	for _, in := range inputs {
		once := Title(in)
		assert.Equal(t, once, Title(once), "title %q", in)
		onceArtist := Artist(in)
		assert.Equal(t, onceArtist, Artist(onceArtist), "artist %q", in)
	}
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"be", "it", "let"}, Tokens("let it be"))
	assert.Equal(t, []string{"la"}, Tokens("la la la"))
	assert.Nil(t, Tokens(""))
}
