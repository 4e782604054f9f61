// Package matcher resolves import rows to catalog tracks.
//
// Each row walks a fixed ladder of tiers and the first tier that accepts wins:
//
//  1. ISRC exact lookup
//  2. canonical title::artist exact lookup
//  3. exact canonical title, disambiguated by artist
//  4. fuzzy scoring over an index-assembled candidate pool
//  5. legacy full-text search, re-scored and merged with the fuzzy pool
//
// Rows nothing accepts come back with their ranked candidates for review.
// Accept thresholds live in per-mode Policy tables (strict, balanced,
// aggressive). A Matcher only reads its catalog index and is safe for
// concurrent use.
package matcher

import (
	"context"
	"log/slog"
	"sort"
	"unicode/utf8"

	"trackmatch-srv/internal/catalog"
	"trackmatch-srv/internal/models"
)

const (
	// MaxCandidates bounds the candidates reported for an unresolved row.
	MaxCandidates      = 10
	maxPoolSize        = 900
	titlePrefixLength  = 5
	defaultLegacyLimit = 25
)

var placeholderArtists = map[string]struct{}{
	"":                {},
	"unknown":         {},
	"unknown artist":  {},
	"various":         {},
	"various artists": {},
	"va":              {},
}

// LegacySearcher is the secondary full-text candidate search.
type LegacySearcher interface {
	Search(ctx context.Context, q models.LegacyQuery) ([]models.LegacyCandidate, error)
}

// Tier names the stage that resolved a row.
type Tier string

const (
	TierNone   Tier = ""
	TierISRC   Tier = "isrc"
	TierExact  Tier = "exact"
	TierTitle  Tier = "title"
	TierFuzzy  Tier = "fuzzy"
	TierLegacy Tier = "legacy"
)

// Outcome is the resolution of one row.
type Outcome struct {
	Index      int                     `json:"index"`
	Row        models.SourceRow        `json:"row"`
	Tier       Tier                    `json:"tier,omitempty"`
	Fuzzy      bool                    `json:"fuzzy"`
	Track      *models.CatalogTrack    `json:"-"`
	TrackKey   string                  `json:"track_key,omitempty"`
	Score      float64                 `json:"score"`
	Candidates []models.MatchCandidate `json:"candidates,omitempty"`
}

func (o Outcome) Matched() bool { return o.Track != nil }

// Options configures a Matcher.
type Options struct {
	Mode        Mode
	LegacyLimit int
	Logger      *slog.Logger
}

type Matcher struct {
	index       *catalog.Index
	legacy      LegacySearcher
	mode        Mode
	policy      Policy
	legacyLimit int
	logger      *slog.Logger
}

// New returns a matcher over idx. legacy may be nil to disable the fallback
// tier.
func New(idx *catalog.Index, legacy LegacySearcher, opts Options) *Matcher {
	mode := ParseMode(string(opts.Mode))
	limit := opts.LegacyLimit
	if limit <= 0 {
		limit = defaultLegacyLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Matcher{
		index:       idx,
		legacy:      legacy,
		mode:        mode,
		policy:      PolicyFor(mode),
		legacyLimit: limit,
		logger:      logger,
	}
}

func (m *Matcher) Mode() Mode { return m.mode }

type scoredTrack struct {
	track *models.CatalogTrack
	score Score
}

// Match resolves a single row. An unresolved row is not an error.
func (m *Matcher) Match(ctx context.Context, index int, row models.SourceRow) Outcome {
	out := m.match(ctx, row)
	out.Index = index
	out.Row = row
	if out.Track != nil {
		out.TrackKey = out.Track.TrackKey
	}
	m.logger.Debug("row resolved",
		slog.Int("row", index),
		slog.String("title", row.Title),
		slog.String("tier", string(out.Tier)),
		slog.Float64("score", out.Score),
		slog.String("track_key", out.TrackKey),
	)
	return out
}

func (m *Matcher) match(ctx context.Context, row models.SourceRow) Outcome {
	if isrc := catalog.NormalizeISRC(row.ISRC); isrc != "" {
		if hits := m.index.ByISRC(isrc); len(hits) > 0 {
			return Outcome{Tier: TierISRC, Track: hits[0], Score: 1}
		}
	}

	q := NewQuery(row)
	var pool []scoredTrack
	if q.Title != "" {
		if hits := m.index.ByPair(q.Title, q.Artist); len(hits) > 0 {
			return Outcome{Tier: TierExact, Track: hits[0], Score: 1}
		}
		if out, ok := m.matchTitle(q); ok {
			return out
		}

		pool = m.rank(q, m.candidatePool(q))
		if m.policy.acceptFuzzy(pool) {
			return Outcome{Tier: TierFuzzy, Fuzzy: true, Track: pool[0].track, Score: pool[0].score.Total}
		}
	}

	// Legacy thresholds apply only once the search added a catalog track.
	merged, contributed := m.withLegacy(ctx, row, q, pool)
	if contributed && m.policy.acceptLegacy(q, merged) {
		return Outcome{Tier: TierLegacy, Fuzzy: true, Track: merged[0].track, Score: merged[0].score.Total}
	}
	return Outcome{Candidates: toCandidates(merged, MaxCandidates)}
}

// matchTitle handles rows whose canonical title exists verbatim in the
// catalog.
func (m *Matcher) matchTitle(q Query) (Outcome, bool) {
	hits := m.index.ByTitle(q.Title)
	switch len(hits) {
	case 0:
		return Outcome{}, false
	case 1:
		t := hits[0]
		s := ScoreTrack(q, t)
		if q.Artist == "" || isPlaceholderArtist(t.CanonicalArtist) || s.Artist >= m.policy.TitleArtistMin {
			return Outcome{Tier: TierTitle, Track: t, Score: s.Total}, true
		}
		return Outcome{}, false
	}

	ranked := m.rank(q, hits)
	if m.policy.acceptFuzzy(ranked) {
		return Outcome{Tier: TierTitle, Fuzzy: true, Track: ranked[0].track, Score: ranked[0].score.Total}, true
	}
	return Outcome{}, false
}

// candidatePool merges the artist, title and token postings of a query,
// falling back to a title prefix scan when the indexes yield nothing.
func (m *Matcher) candidatePool(q Query) []*models.CatalogTrack {
	seen := make(map[string]struct{})
	var pool []*models.CatalogTrack
	add := func(tracks []*models.CatalogTrack) bool {
		for _, t := range tracks {
			if len(pool) >= maxPoolSize {
				return false
			}
			if _, ok := seen[t.TrackKey]; ok {
				continue
			}
			seen[t.TrackKey] = struct{}{}
			pool = append(pool, t)
		}
		return true
	}

	if q.Artist != "" && !add(m.index.ByArtist(q.Artist)) {
		return pool
	}
	if !add(m.index.ByTitle(q.Title)) {
		return pool
	}
	for _, tokens := range [][]string{q.TitleTokens, q.ArtistTokens} {
		for _, tok := range tokens {
			if !add(m.index.ByToken(tok)) {
				return pool
			}
		}
	}
	if len(pool) == 0 {
		add(m.index.TitlePrefix(runePrefix(q.Title, titlePrefixLength), maxPoolSize))
	}
	return pool
}

// rank scores tracks, drops those under the mode floor and sorts descending.
func (m *Matcher) rank(q Query, tracks []*models.CatalogTrack) []scoredTrack {
	out := make([]scoredTrack, 0, len(tracks))
	for _, t := range tracks {
		s := ScoreTrack(q, t)
		if s.Total < m.policy.MinCandidateScore {
			continue
		}
		out = append(out, scoredTrack{track: t, score: s})
	}
	sortScored(out)
	return out
}

// withLegacy asks the legacy search for more candidates and merges those that
// map onto known catalog tracks, keeping the higher score per track. It
// reports whether any hit mapped onto the catalog.
func (m *Matcher) withLegacy(ctx context.Context, row models.SourceRow, q Query, pool []scoredTrack) ([]scoredTrack, bool) {
	if m.legacy == nil {
		return pool, false
	}
	hits, err := m.legacy.Search(ctx, models.LegacyQuery{Title: row.Title, Artist: row.Artist, Limit: m.legacyLimit})
	if err != nil {
		m.logger.Warn("legacy search failed",
			slog.String("title", row.Title),
			slog.String("error", err.Error()),
		)
		return pool, false
	}
	if len(hits) == 0 {
		return pool, false
	}

	best := make(map[string]int, len(pool)+len(hits))
	merged := make([]scoredTrack, 0, len(pool)+len(hits))
	contributed := false
	for _, st := range pool {
		best[st.track.TrackKey] = len(merged)
		merged = append(merged, st)
	}
	for _, hit := range hits {
		t, ok := m.index.ByKey(hit.TrackKey)
		if !ok {
			continue
		}
		contributed = true
		s := ScoreTrack(q, t)
		if i, ok := best[t.TrackKey]; ok {
			if s.Total > merged[i].score.Total {
				merged[i].score = s
			}
			continue
		}
		best[t.TrackKey] = len(merged)
		merged = append(merged, scoredTrack{track: t, score: s})
	}
	if !contributed {
		return pool, false
	}
	sortScored(merged)
	return merged, true
}

func sortScored(s []scoredTrack) {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].score.Total > s[j].score.Total
	})
}

func toCandidates(scored []scoredTrack, limit int) []models.MatchCandidate {
	if len(scored) > limit {
		scored = scored[:limit]
	}
	out := make([]models.MatchCandidate, 0, len(scored))
	for _, st := range scored {
		out = append(out, models.MatchCandidate{
			TrackKey: st.track.TrackKey,
			Title:    st.track.Title,
			Artist:   st.track.Artist,
			Side:     st.track.Side,
			Position: st.track.Position,
			Score:    st.score.Total,
		})
	}
	return out
}

func isPlaceholderArtist(canonical string) bool {
	_, ok := placeholderArtists[canonical]
	return ok
}

func runePrefix(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
