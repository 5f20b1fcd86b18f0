package dispatch

import (
	"sync"
	"time"

	"github.com/CleanExpo/Disaster-Recovery-sub021/core/model"
)

// FairnessHistory reports how many invitations a contractor received
// recently. Implementations must be safe for concurrent use.
type FairnessHistory interface {
	RecentNotifications(contractorID string) int
}

// Scorer computes the ranking score for an eligible (job, contractor) pair.
// The score is deterministic for identical inputs; the only mutable parts are
// the response-time cutoffs, which a tuner may adjust between dispatches.
type Scorer struct {
	weights ScoreWeights
	filter  EligibilityFilter
	history FairnessHistory

	mu             sync.RWMutex
	fastCutoff     time.Duration
	moderateCutoff time.Duration
}

// NewScorer creates a Scorer with the given weights. history may be nil to
// disable the fairness penalty.
func NewScorer(w ScoreWeights, history FairnessHistory) *Scorer {
	return &Scorer{
		weights:        w,
		history:        history,
		fastCutoff:     time.Duration(w.FastResponseMinutes) * time.Minute,
		moderateCutoff: time.Duration(w.ModerateResponseMinute) * time.Minute,
	}
}

// SetResponseCutoffs replaces the response-time bonus thresholds. Used by the
// learning tuner; fast must stay below moderate.
func (s *Scorer) SetResponseCutoffs(fast, moderate time.Duration) {
	if fast <= 0 || moderate <= fast {
		return
	}
	s.mu.Lock()
	s.fastCutoff = fast
	s.moderateCutoff = moderate
	s.mu.Unlock()
}

// ResponseCutoffs returns the current response-time thresholds.
func (s *Scorer) ResponseCutoffs() (fast, moderate time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fastCutoff, s.moderateCutoff
}

// Score returns the ranking score for the pair, or 0 when the contractor is
// ineligible. The result is never negative.
func (s *Scorer) Score(job model.Job, c model.Contractor) float64 {
	if !s.filter.IsEligible(job, c) {
		return 0
	}
	util := c.Capacity.Utilization()
	if util >= 1.0 {
		return 0
	}
	w := s.weights

	score := w.ServiceMatchBase

	// Highest location specificity wins.
	switch {
	case c.Area.CoversPostcode(job.Location.Postcode):
		score += w.PostcodeBonus
	case c.Area.CoversSuburb(job.Location.Suburb):
		score += w.SuburbBonus
	case c.Area.CoversState(job.Location.State):
		score += w.StateBonus
	}

	switch job.Urgency {
	case model.UrgencyEmergency:
		score += w.EmergencyBonus
	case model.UrgencyUrgent:
		score += w.UrgentBonus
	case model.UrgencyStandard:
		score += w.StandardBonus
	}

	perf := c.Performance
	score += perf.KPIScore*w.KPIFactor + perf.Rating*w.RatingFactor + perf.AcceptanceRate*w.AcceptanceFactor

	fast, moderate := s.ResponseCutoffs()
	if resp := time.Duration(perf.AvgResponseTime); resp > 0 {
		switch {
		case resp <= fast:
			score += w.FastResponseBonus
		case resp <= moderate:
			score += w.ModerateResponseBonus
		}
	}

	switch {
	case util < w.LowUtilizationCap:
		score += w.LowUtilizationBonus
	case util < w.MidUtilizationCap:
		score += w.MidUtilizationBonus
	}

	if job.HasInsurance && c.Preferences.InsuranceOnly {
		score += w.InsuranceBonus
	} else if !job.HasInsurance && c.Preferences.InsuranceOnly {
		score -= w.InsurancePenalty
	}

	if c.Preferences.MinJobValue > 0 && job.EstimatedValue < c.Preferences.MinJobValue {
		score -= w.LowValuePenalty
	}

	if s.history != nil && w.FairnessPenalty > 0 {
		score -= w.FairnessPenalty * float64(s.history.RecentNotifications(c.ID))
	}

	if score < 0 {
		return 0
	}
	return score
}
