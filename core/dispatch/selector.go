package dispatch

import (
	"sort"

	"github.com/CleanExpo/Disaster-Recovery-sub021/core/model"
)

// RankedContractor pairs a contractor snapshot with its dispatch score.
type RankedContractor struct {
	Contractor model.Contractor
	Score      float64
}

// Selector ranks eligible contractors and picks the notification set for a
// round.
type Selector struct {
	scorer *Scorer
	fanOut FanOutConfig
}

// NewSelector creates a Selector using the given scorer and fan-out policy.
func NewSelector(scorer *Scorer, fanOut FanOutConfig) *Selector {
	return &Selector{scorer: scorer, fanOut: fanOut}
}

// Rank scores every candidate and returns those with score > 0, ordered by
// score descending with ties broken by contractor ID. Contractors listed in
// exclude are skipped; escalation rounds use this to avoid re-notifying.
func (s *Selector) Rank(job model.Job, candidates []model.Contractor, exclude map[string]bool) []RankedContractor {
	ranked := make([]RankedContractor, 0, len(candidates))
	for _, c := range candidates {
		if exclude[c.ID] {
			continue
		}
		score := s.scorer.Score(job, c)
		if score <= 0 {
			continue
		}
		ranked = append(ranked, RankedContractor{Contractor: c, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Contractor.ID < ranked[j].Contractor.ID
	})
	return ranked
}

// SelectForNotification returns the top-N ranked contractors where N is the
// urgency fan-out size plus extra. The result is empty when no contractor is
// eligible; callers surface that as a no-eligible-contractors outcome rather
// than an error.
func (s *Selector) SelectForNotification(job model.Job, ranked []RankedContractor, extra int) []RankedContractor {
	n := s.fanOut.Size(job.Urgency) + extra
	if n <= 0 {
		return nil
	}
	if len(ranked) < n {
		n = len(ranked)
	}
	return ranked[:n]
}
