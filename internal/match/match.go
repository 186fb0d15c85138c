// Package match scores extracted candidates against the built search context
// and selects the best one deterministically.
package match

import (
	"fmt"

	"github.com/shelfmark/pricescout/internal/extract"
	"github.com/shelfmark/pricescout/internal/search"
)

// Acceptance thresholds: a candidate is accepted when its strict score or its
// required-coverage score clears the respective bar. Strict is the harder
// test, so it gets the lower threshold.
const (
	StrictThreshold   = 0.6
	RequiredThreshold = 0.8
)

// Scored pairs a candidate with its computed scores.
type Scored struct {
	Candidate     *extract.Candidate
	StrictScore   float64
	RequiredScore float64
	MatchScore    float64
	VolumeMatch   bool
}

// NoMatchError reports that no candidate cleared the acceptance gate. It
// carries the best candidate's scores for diagnostics.
type NoMatchError struct {
	Title         string
	StrictScore   float64
	RequiredScore float64
}

func (e *NoMatchError) Error() string {
	if e.Title == "" {
		return "no candidates to match"
	}
	return fmt.Sprintf("best candidate %q below threshold (strict %.2f, required %.2f)",
		e.Title, e.StrictScore, e.RequiredScore)
}

// SelectBest scores every candidate and picks the winner.
//
// When a volume number was requested and at least one candidate passes the
// volume heuristic, the pool is restricted to those candidates; when none
// pass, all candidates stay in play, preferring a low-confidence title match
// over no result. Highest match score wins, ties broken by the upstream's
// own ranking.
func SelectBest(candidates []*extract.Candidate, sctx *search.Context) (*Scored, error) {
	if len(candidates) == 0 {
		return nil, &NoMatchError{}
	}

	expected := Tokenize(sctx.ExpectedTitle)
	required := Tokenize(sctx.RequiredTitle)

	scored := make([]*Scored, 0, len(candidates))
	anyVolume := false
	for _, c := range candidates {
		actual := Tokenize(c.Title)
		s := &Scored{
			Candidate:     c,
			StrictScore:   StrictScore(expected, actual),
			RequiredScore: RequiredScore(required, actual),
		}
		s.MatchScore = s.StrictScore
		if s.RequiredScore > s.MatchScore {
			s.MatchScore = s.RequiredScore
		}
		if sctx.Volume != nil {
			s.VolumeMatch = HasVolumeMatch(c.Title, *sctx.Volume)
			anyVolume = anyVolume || s.VolumeMatch
		}
		scored = append(scored, s)
	}

	pool := scored
	if sctx.Volume != nil && anyVolume {
		pool = pool[:0:0]
		for _, s := range scored {
			if s.VolumeMatch {
				pool = append(pool, s)
			}
		}
	}

	best := pool[0]
	for _, s := range pool[1:] {
		if s.MatchScore > best.MatchScore {
			best = s
			continue
		}
		if s.MatchScore == best.MatchScore && s.Candidate.OrdinalIndex < best.Candidate.OrdinalIndex {
			best = s
		}
	}

	if best.StrictScore >= StrictThreshold || best.RequiredScore >= RequiredThreshold {
		return best, nil
	}
	return nil, &NoMatchError{
		Title:         best.Candidate.Title,
		StrictScore:   best.StrictScore,
		RequiredScore: best.RequiredScore,
	}
}
