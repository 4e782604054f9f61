package matcher

import "strings"

// Mode selects how willing the matcher is to accept a fuzzy match on its own.
type Mode string

const (
	ModeStrict     Mode = "strict"
	ModeBalanced   Mode = "balanced"
	ModeAggressive Mode = "aggressive"
)

// ParseMode maps a requested mode onto a known one. Anything unrecognized is
// balanced.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeStrict:
		return ModeStrict
	case ModeAggressive:
		return ModeAggressive
	default:
		return ModeBalanced
	}
}

// Policy centralizes the empirically tuned accept thresholds of one mode.
type Policy struct {
	// MinCandidateScore drops weak candidates before ranking.
	MinCandidateScore float64
	// TitleArtistMin is the artist similarity a lone exact-title hit needs.
	TitleArtistMin float64

	AcceptScore float64
	MarginScore float64
	MinMargin   float64

	// Artist rescue rules only apply in aggressive mode.
	ArtistRescue        bool
	RescueOverlapArtist float64
	RescueOverlapMin    float64
	RescueOverlapMargin float64
	RescueTitleArtist   float64
	RescueTitleScore    float64

	// Legacy thresholds are tuned independently of the primary tiers.
	LegacyExactTitleArtist float64
	LegacyAcceptScore      float64
	LegacyMarginScore      float64
	LegacyMinMargin        float64
}

var policies = map[Mode]Policy{
	ModeStrict: {
		MinCandidateScore:      0.55,
		TitleArtistMin:         0.80,
		AcceptScore:            0.95,
		MarginScore:            0.90,
		MinMargin:              0.08,
		LegacyExactTitleArtist: 0.60,
		LegacyAcceptScore:      0.93,
		LegacyMarginScore:      0.88,
		LegacyMinMargin:        0.08,
	},
	ModeBalanced: {
		MinCandidateScore:      0.45,
		TitleArtistMin:         0.70,
		AcceptScore:            0.92,
		MarginScore:            0.86,
		MinMargin:              0.06,
		LegacyExactTitleArtist: 0.50,
		LegacyAcceptScore:      0.88,
		LegacyMarginScore:      0.80,
		LegacyMinMargin:        0.06,
	},
	ModeAggressive: {
		MinCandidateScore:      0.35,
		TitleArtistMin:         0.55,
		AcceptScore:            0.82,
		MarginScore:            0.70,
		MinMargin:              0.06,
		ArtistRescue:           true,
		RescueOverlapArtist:    0.90,
		RescueOverlapMin:       0.40,
		RescueOverlapMargin:    0.02,
		RescueTitleArtist:      0.95,
		RescueTitleScore:       0.48,
		LegacyExactTitleArtist: 0.35,
		LegacyAcceptScore:      0.78,
		LegacyMarginScore:      0.66,
		LegacyMinMargin:        0.04,
	},
}

// Same-artist false positive guard shared by every mode.
const (
	guardArtistScore  = 0.95
	guardTitleOverlap = 0.16
	guardTitleScore   = 0.45
)

// PolicyFor returns the threshold table of a mode.
func PolicyFor(mode Mode) Policy {
	if p, ok := policies[mode]; ok {
		return p
	}
	return policies[ModeBalanced]
}

func (p Policy) sameArtistFalsePositive(s Score) bool {
	return s.Artist >= guardArtistScore && s.TitleOverlap < guardTitleOverlap && s.Title < guardTitleScore
}

// acceptFuzzy decides on the best of a descending candidate list.
func (p Policy) acceptFuzzy(candidates []scoredTrack) bool {
	if len(candidates) == 0 {
		return false
	}
	best := candidates[0].score
	if p.sameArtistFalsePositive(best) {
		return false
	}
	margin := marginOf(candidates)

	switch {
	case best.Total >= p.AcceptScore:
		return true
	case best.Total >= p.MarginScore && margin >= p.MinMargin:
		return true
	}
	if !p.ArtistRescue {
		return false
	}
	if best.Artist >= p.RescueOverlapArtist && best.TitleOverlap >= p.RescueOverlapMin && margin >= p.RescueOverlapMargin {
		return true
	}
	return best.Artist >= p.RescueTitleArtist && best.Title >= p.RescueTitleScore
}

// acceptLegacy decides on the merged primary and legacy candidate list.
func (p Policy) acceptLegacy(q Query, candidates []scoredTrack) bool {
	if len(candidates) == 0 {
		return false
	}
	top := candidates[0]
	if p.sameArtistFalsePositive(top.score) {
		return false
	}
	if q.Title != "" && top.track.CanonicalTitle == q.Title &&
		(q.Artist == "" || top.score.Artist >= p.LegacyExactTitleArtist) {
		return true
	}
	margin := marginOf(candidates)
	return top.score.Total >= p.LegacyAcceptScore ||
		(top.score.Total >= p.LegacyMarginScore && margin >= p.LegacyMinMargin)
}

// marginOf treats a lone candidate as unopposed.
func marginOf(candidates []scoredTrack) float64 {
	if len(candidates) < 2 {
		return candidates[0].score.Total
	}
	return candidates[0].score.Total - candidates[1].score.Total
}
