package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/CleanExpo/Disaster-Recovery-sub021/core/events"
	"github.com/CleanExpo/Disaster-Recovery-sub021/core/logger"
	"github.com/CleanExpo/Disaster-Recovery-sub021/core/metrics"
	"github.com/CleanExpo/Disaster-Recovery-sub021/core/registry"
	"github.com/CleanExpo/Disaster-Recovery-sub021/internal/eventbus"
)

// Outcome is the result handed back to a responding contractor.
type Outcome int

const (
	// OutcomeAssigned means this contractor won the job. Repeat accepts
	// from the winner return the same outcome.
	OutcomeAssigned Outcome = iota
	// OutcomeAlreadyAssigned means another contractor won first.
	OutcomeAlreadyAssigned
	// OutcomeRejected covers stale responses: expired rounds, cancelled
	// jobs, or contractors outside the notified set.
	OutcomeRejected
	// OutcomeRecorded means a decline was noted; the round keeps waiting.
	OutcomeRecorded
)

// String returns the wire representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeAssigned:
		return "assigned"
	case OutcomeAlreadyAssigned:
		return "already_assigned"
	case OutcomeRejected:
		return "rejected"
	case OutcomeRecorded:
		return "recorded"
	default:
		return "unknown"
	}
}

// ErrAlreadyResolved is returned when a lifecycle action targets a record
// that has moved past the required state.
var ErrAlreadyResolved = errors.New("dispatch: record already resolved")

// assignmentSample reports a winning acceptance back to the manager for
// tuning and metrics.
type assignmentSample struct {
	jobID        string
	contractorID string
	round        int
	latency      time.Duration
}

// Arbiter resolves the accept/expire race for dispatch records. Every state
// transition funnels through the record store's atomic update, so exactly one
// acceptance can win regardless of how many contractors respond concurrently.
type Arbiter struct {
	store    RecordStore
	registry registry.Registry
	bus      eventbus.EventBus
	logger   logger.Logger
	sink     metrics.Sink
	now      func() time.Time

	// onResolved cancels the expiry timer once a record leaves NOTIFIED.
	onResolved func(jobID string)
	// onAssigned feeds accept samples to the manager's tuner.
	onAssigned func(assignmentSample)
	// escalate runs the next dispatch round after an expiry.
	escalate func(ctx context.Context, jobID string)
}

// NewArbiter creates an Arbiter. bus and sink may be nil.
func NewArbiter(store RecordStore, reg registry.Registry, bus eventbus.EventBus, sink metrics.Sink, log logger.Logger, now func() time.Time) *Arbiter {
	if now == nil {
		now = time.Now
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Arbiter{
		store:    store,
		registry: reg,
		bus:      bus,
		logger:   log,
		sink:     sink,
		now:      now,
	}
}

// Respond handles a contractor's accept or decline for a job. Outcomes are
// expected results of concurrent access, not errors; err is only non-nil for
// store failures or unknown jobs.
func (a *Arbiter) Respond(ctx context.Context, jobID, contractorID string, decision Decision, reason string) (Outcome, error) {
	now := a.now()
	var (
		outcome     Outcome
		freshAssign bool
		sample      assignmentSample
	)
	rec, err := a.store.Update(ctx, jobID, func(r *DispatchRecord) bool {
		// The store may re-invoke fn after a conflict retry; only the last
		// invocation's decision may drive side effects.
		outcome, freshAssign, sample = OutcomeRejected, false, assignmentSample{}
		switch r.State {
		case StateAssigned, StateInProgress, StateCompleted:
			if decision == DecisionAccept && r.AssignedContractor == contractorID {
				// Idempotent repeat from the winner.
				outcome = OutcomeAssigned
			} else if decision == DecisionAccept {
				outcome = OutcomeAlreadyAssigned
			} else {
				outcome = OutcomeRejected
			}
			return false
		case StateNotified:
		default:
			// Pending, expired, escalated, cancelled or exhausted: the
			// response belongs to no live round.
			outcome = OutcomeRejected
			return false
		}

		round := r.CurrentRound()
		if round == nil || !round.Contains(contractorID) {
			outcome = OutcomeRejected
			return false
		}

		if decision == DecisionDecline {
			outcome = OutcomeRecorded
			if r.Declined(contractorID) {
				return false
			}
			r.Responses = append(r.Responses, Response{ContractorID: contractorID, Decision: DecisionDecline, Reason: reason, At: now})
			return true
		}

		// An accept at or past the deadline loses deterministically; the
		// sweep or timer will expire the round through the same store.
		if !now.Before(round.ExpiresAt) {
			outcome = OutcomeRejected
			return false
		}

		r.Responses = append(r.Responses, Response{ContractorID: contractorID, Decision: DecisionAccept, At: now})
		r.State = StateAssigned
		r.AssignedContractor = contractorID
		r.ResolvedAt = now
		outcome = OutcomeAssigned
		freshAssign = true
		sample = assignmentSample{
			jobID:        jobID,
			contractorID: contractorID,
			round:        round.Number,
			latency:      now.Sub(round.StartedAt),
		}
		return true
	})
	if err != nil {
		return OutcomeRejected, err
	}

	respondOutcomes.WithLabelValues(outcome.String()).Inc()

	if freshAssign {
		a.finalizeAssignment(ctx, rec, sample)
		return outcome, nil
	}
	if outcome == OutcomeRecorded && rec.AllDeclined() {
		// No point waiting for the deadline once everyone declined.
		a.logger.Infof("job %s: all notified contractors declined, resolving round early", jobID)
		a.Expire(ctx, jobID, true)
	}
	return outcome, nil
}

// finalizeAssignment runs the side effects of a winning acceptance outside
// the store critical section.
func (a *Arbiter) finalizeAssignment(ctx context.Context, rec *DispatchRecord, sample assignmentSample) {
	if a.onResolved != nil {
		a.onResolved(rec.JobID)
	}
	if err := a.registry.ReserveCapacity(ctx, rec.AssignedContractor); err != nil {
		a.logger.Errorf("job %s: capacity reserve for %s: %v", rec.JobID, rec.AssignedContractor, err)
	}
	acceptLatency.WithLabelValues(rec.Job.Urgency.String()).Observe(sample.latency.Seconds())
	a.logger.Infof("job %s assigned to %s after %s (round %d)", rec.JobID, rec.AssignedContractor, sample.latency, sample.round)
	if a.bus != nil {
		a.bus.Publish(events.AssignmentEvent{JobID: rec.JobID, ContractorID: rec.AssignedContractor, Outcome: OutcomeAssigned.String()})
	}
	if err := a.sink.RecordAssignment(metrics.AssignmentResult{
		JobID:         rec.JobID,
		ContractorID:  rec.AssignedContractor,
		Urgency:       rec.Job.Urgency,
		Outcome:       OutcomeAssigned.String(),
		Round:         sample.round,
		AcceptLatency: sample.latency,
		Time:          a.now(),
	}); err != nil {
		a.logger.Errorf("job %s: assignment metrics: %v", rec.JobID, err)
	}
	if a.onAssigned != nil {
		a.onAssigned(sample)
	}
}

// Expire moves a notified record whose deadline has passed to EXPIRED and
// triggers escalation. force skips the deadline check; it is used when every
// contractor in the round has already declined. Expiry races with acceptance
// through the same atomic update, so an accept at the boundary either wins
// before the transition or is rejected after it, never both.
func (a *Arbiter) Expire(ctx context.Context, jobID string, force bool) {
	now := a.now()
	var (
		expired bool
		roundNo int
	)
	_, err := a.store.Update(ctx, jobID, func(r *DispatchRecord) bool {
		expired, roundNo = false, 0
		if r.State != StateNotified {
			return false
		}
		round := r.CurrentRound()
		if round == nil {
			return false
		}
		if !force && now.Before(round.ExpiresAt) {
			return false
		}
		r.State = StateExpired
		expired = true
		roundNo = round.Number
		return true
	})
	if err != nil {
		if !errors.Is(err, ErrRecordNotFound) {
			a.logger.Errorf("job %s: expiry: %v", jobID, err)
		}
		return
	}
	if !expired {
		return
	}
	if a.onResolved != nil {
		a.onResolved(jobID)
	}
	a.logger.Warnf("job %s: round %d expired without acceptance", jobID, roundNo)
	if a.bus != nil {
		a.bus.Publish(events.RoundExpiredEvent{JobID: jobID, Round: roundNo})
	}
	if a.escalate != nil {
		a.escalate(ctx, jobID)
	}
}

// Cancel withdraws a job before assignment. In-flight invitations become
// stale; accepts against a cancelled record are rejected like late ones.
func (a *Arbiter) Cancel(ctx context.Context, jobID string) error {
	var cancelled bool
	_, err := a.store.Update(ctx, jobID, func(r *DispatchRecord) bool {
		cancelled = false
		switch r.State {
		case StatePending, StateNotified, StateExpired, StateEscalated:
			r.State = StateCancelled
			r.ResolvedAt = a.now()
			cancelled = true
			return true
		default:
			return false
		}
	})
	if err != nil {
		return err
	}
	if !cancelled {
		return ErrAlreadyResolved
	}
	if a.onResolved != nil {
		a.onResolved(jobID)
	}
	a.logger.Infof("job %s cancelled before assignment", jobID)
	if a.bus != nil {
		a.bus.Publish(events.CancellationEvent{JobID: jobID})
	}
	return nil
}

// Start marks the assigned contractor as on the job.
func (a *Arbiter) Start(ctx context.Context, jobID, contractorID string) error {
	var started bool
	_, err := a.store.Update(ctx, jobID, func(r *DispatchRecord) bool {
		started = false
		if r.State != StateAssigned || r.AssignedContractor != contractorID {
			return false
		}
		r.State = StateInProgress
		started = true
		return true
	})
	if err != nil {
		return err
	}
	if !started {
		return ErrAlreadyResolved
	}
	return nil
}

// Complete finishes the job and releases the contractor's capacity back to
// the registry.
func (a *Arbiter) Complete(ctx context.Context, jobID, contractorID string) error {
	var completed bool
	_, err := a.store.Update(ctx, jobID, func(r *DispatchRecord) bool {
		completed = false
		if r.State != StateInProgress || r.AssignedContractor != contractorID {
			return false
		}
		r.State = StateCompleted
		r.ResolvedAt = a.now()
		completed = true
		return true
	})
	if err != nil {
		return err
	}
	if !completed {
		return ErrAlreadyResolved
	}
	if err := a.registry.ReleaseCapacity(ctx, contractorID); err != nil {
		a.logger.Errorf("job %s: capacity release for %s: %v", jobID, contractorID, err)
	}
	return nil
}
