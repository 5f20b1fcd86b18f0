package dispatch

import "github.com/CleanExpo/Disaster-Recovery-sub021/core/model"

// EligibilityFilter decides whether a contractor may be scored for a job at
// all. It is a pure function of the (job, contractor) snapshot.
type EligibilityFilter struct{}

// IsEligible applies the hard gates: service type, area coverage, urgency
// availability and capacity. Insurance and job-value preferences are soft and
// handled by the scorer.
func (EligibilityFilter) IsEligible(job model.Job, c model.Contractor) bool {
	if !c.OffersService(job.ServiceType) {
		return false
	}
	if !c.Area.Covers(job.Location) {
		return false
	}
	if !c.AcceptsUrgency(job.Urgency) {
		return false
	}
	if c.Capacity.AtLimit() {
		return false
	}
	return true
}
