// Package catalog turns inventory entries into canonical tracks and builds the
// lookup tables the matcher assembles candidate pools from.
package catalog

import (
	"regexp"
	"strings"

	"trackmatch-srv/internal/canon"
	"trackmatch-srv/internal/models"
)

var isrcPattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{3}[0-9]{5,7}$`)

// NewTrack derives the canonical fields of a catalog entry.
func NewTrack(e models.CatalogEntry) models.CatalogTrack {
	title := canon.Title(e.Title)
	artist := canon.Artist(e.Artist)
	return models.CatalogTrack{
		CatalogEntry:    e,
		CanonicalTitle:  title,
		CanonicalArtist: artist,
		TitleTokens:     canon.Tokens(title),
		ArtistTokens:    canon.Tokens(artist),
	}
}

// NormalizeISRC uppercases an ISRC and strips separators. It returns "" when
// the result does not look like a recording code.
func NormalizeISRC(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	code := b.String()
	if !isrcPattern.MatchString(code) {
		return ""
	}
	return code
}

// PairKey is the exact-match key of a canonical title and artist.
func PairKey(title, artist string) string {
	return title + "::" + artist
}

// Index is an immutable set of lookup tables over one catalog snapshot.
// Slices returned by its methods are shared and must not be modified.
type Index struct {
	tracks   []*models.CatalogTrack
	byKey    map[string]*models.CatalogTrack
	byISRC   map[string][]*models.CatalogTrack
	byPair   map[string][]*models.CatalogTrack
	byTitle  map[string][]*models.CatalogTrack
	byArtist map[string][]*models.CatalogTrack
	byToken  map[string][]*models.CatalogTrack
}

// NewIndex builds every lookup table in one pass. Duplicate track keys keep
// the first entry.
func NewIndex(entries []models.CatalogEntry) *Index {
	idx := &Index{
		tracks:   make([]*models.CatalogTrack, 0, len(entries)),
		byKey:    make(map[string]*models.CatalogTrack, len(entries)),
		byISRC:   make(map[string][]*models.CatalogTrack),
		byPair:   make(map[string][]*models.CatalogTrack, len(entries)),
		byTitle:  make(map[string][]*models.CatalogTrack, len(entries)),
		byArtist: make(map[string][]*models.CatalogTrack),
		byToken:  make(map[string][]*models.CatalogTrack),
	}

	for _, e := range entries {
		if e.TrackKey == "" {
			continue
		}
		if _, dup := idx.byKey[e.TrackKey]; dup {
			continue
		}
		t := NewTrack(e)
		track := &t
		idx.tracks = append(idx.tracks, track)
		idx.byKey[track.TrackKey] = track

		if isrc := NormalizeISRC(track.ISRC); isrc != "" {
			idx.byISRC[isrc] = append(idx.byISRC[isrc], track)
		}
		if track.CanonicalTitle == "" {
			continue
		}
		pair := PairKey(track.CanonicalTitle, track.CanonicalArtist)
		idx.byPair[pair] = append(idx.byPair[pair], track)
		idx.byTitle[track.CanonicalTitle] = append(idx.byTitle[track.CanonicalTitle], track)
		if track.CanonicalArtist != "" {
			idx.byArtist[track.CanonicalArtist] = append(idx.byArtist[track.CanonicalArtist], track)
		}

		seen := make(map[string]struct{}, len(track.TitleTokens)+len(track.ArtistTokens))
		for _, tokens := range [][]string{track.TitleTokens, track.ArtistTokens} {
			for _, tok := range tokens {
				if _, ok := seen[tok]; ok {
					continue
				}
				seen[tok] = struct{}{}
				idx.byToken[tok] = append(idx.byToken[tok], track)
			}
		}
	}
	return idx
}

func (idx *Index) Len() int { return len(idx.tracks) }

// Tracks returns every indexed track in catalog order.
func (idx *Index) Tracks() []*models.CatalogTrack { return idx.tracks }

func (idx *Index) ByKey(key string) (*models.CatalogTrack, bool) {
	t, ok := idx.byKey[key]
	return t, ok
}

func (idx *Index) ByISRC(isrc string) []*models.CatalogTrack { return idx.byISRC[isrc] }

func (idx *Index) ByPair(title, artist string) []*models.CatalogTrack {
	return idx.byPair[PairKey(title, artist)]
}

func (idx *Index) ByTitle(title string) []*models.CatalogTrack { return idx.byTitle[title] }

func (idx *Index) ByArtist(artist string) []*models.CatalogTrack { return idx.byArtist[artist] }

func (idx *Index) ByToken(token string) []*models.CatalogTrack { return idx.byToken[token] }

// TitlePrefix scans the whole catalog for canonical titles starting with
// prefix, stopping after limit hits.
func (idx *Index) TitlePrefix(prefix string, limit int) []*models.CatalogTrack {
	if prefix == "" || limit <= 0 {
		return nil
	}
	var out []*models.CatalogTrack
	for _, t := range idx.tracks {
		if strings.HasPrefix(t.CanonicalTitle, prefix) {
			out = append(out, t)
			if len(out) >= limit {
				break
			}
		}
	}
	return out
}
