package matcher

import (
	"trackmatch-srv/internal/canon"
	"trackmatch-srv/internal/models"
)

const (
	artistWeight         = 0.28
	exactTitleBonus      = 0.12
	exactArtistBonus     = 0.08
	tokenCountGap        = 5
	tokenCountGapPenalty = 0.06

	sameArtistScore        = 0.90
	sameArtistLowOverlap   = 0.18
	sameArtistPenalty      = 0.18
	strongArtistScore      = 0.95
	strongArtistLowOverlap = 0.10
	strongArtistPenalty    = 0.08
	sameArtistHighOverlap  = 0.45
	sameArtistBonus        = 0.06
)

// Query is the canonical form of one source row.
type Query struct {
	Title        string
	Artist       string
	TitleTokens  []string
	ArtistTokens []string
}

func NewQuery(row models.SourceRow) Query {
	title := canon.Title(row.Title)
	var artist string
	if row.Artist != "" {
		artist = canon.Artist(row.Artist)
	}
	return Query{
		Title:        title,
		Artist:       artist,
		TitleTokens:  canon.Tokens(title),
		ArtistTokens: canon.Tokens(artist),
	}
}

// Score breaks down how well a catalog track fits a query. Total is in [0,1].
type Score struct {
	Total        float64
	Title        float64
	Artist       float64
	TitleOverlap float64
}

// ScoreTrack weighs title and artist similarity and applies the same-artist
// guards that keep one artist's songs from matching each other.
func ScoreTrack(q Query, t *models.CatalogTrack) Score {
	s := Score{
		Title:        Similarity(q.Title, t.CanonicalTitle, q.TitleTokens, t.TitleTokens),
		TitleOverlap: tokenOverlap(q.TitleTokens, t.TitleTokens),
	}

	weight := 0.0
	if q.Artist != "" {
		weight = artistWeight
		s.Artist = Similarity(q.Artist, t.CanonicalArtist, q.ArtistTokens, t.ArtistTokens)
	}
	total := (1-weight)*s.Title + weight*s.Artist

	if q.Title != "" && q.Title == t.CanonicalTitle {
		total += exactTitleBonus
	}
	if q.Artist != "" && q.Artist == t.CanonicalArtist {
		total += exactArtistBonus
	}
	if abs(len(q.TitleTokens)-len(t.TitleTokens)) >= tokenCountGap {
		total -= tokenCountGapPenalty
	}
	if s.Artist >= sameArtistScore && s.TitleOverlap < sameArtistLowOverlap {
		total -= sameArtistPenalty
	}
	if s.Artist >= strongArtistScore && s.TitleOverlap < strongArtistLowOverlap {
		total -= strongArtistPenalty
	}
	if s.Artist >= sameArtistScore && s.TitleOverlap >= sameArtistHighOverlap {
		total += sameArtistBonus
	}

	s.Total = clamp(total)
	return s
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
