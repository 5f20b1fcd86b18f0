package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CleanExpo/Disaster-Recovery-sub021/core/events"
	"github.com/CleanExpo/Disaster-Recovery-sub021/core/logger"
	"github.com/CleanExpo/Disaster-Recovery-sub021/core/metrics"
	"github.com/CleanExpo/Disaster-Recovery-sub021/core/model"
	"github.com/CleanExpo/Disaster-Recovery-sub021/core/notify"
	"github.com/CleanExpo/Disaster-Recovery-sub021/core/registry"
	"github.com/CleanExpo/Disaster-Recovery-sub021/internal/eventbus"
)

// ErrNoEligibleContractors is the non-retryable outcome of a dispatch attempt
// that found nobody to notify. The job itself is not lost; the caller decides
// the next step.
var ErrNoEligibleContractors = errors.New("dispatch: no eligible contractors")

// fairnessWindow bounds how far back the fairness penalty looks.
const fairnessWindow = 24 * time.Hour

// DispatchResult summarizes a completed fan-out round.
type DispatchResult struct {
	JobID     string         `json:"job_id"`
	Round     int            `json:"round"`
	Notified  []Notification `json:"notified"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Manager runs the dispatch pipeline: eligibility, scoring, selection,
// fan-out and expiry scheduling. Pipelines for distinct jobs share no mutable
// state beyond the record store, so jobs dispatch in parallel safely.
type Manager struct {
	cfg      Config
	registry registry.Registry
	notifier notify.Notifier
	store    RecordStore
	bus      eventbus.EventBus
	logger   logger.Logger
	sink     metrics.Sink
	tuner    Tuner
	now      func() time.Time

	scorer   *Scorer
	selector *Selector
	arbiter  *Arbiter
	history  *notificationHistory

	mu      sync.Mutex
	timers  map[string]*time.Timer
	samples []AcceptSample
}

// NewManager creates a dispatch manager. sink, bus and tuner may be nil.
func NewManager(cfg Config, reg registry.Registry, notifier notify.Notifier, store RecordStore, sink metrics.Sink, bus eventbus.EventBus, log logger.Logger, tuner Tuner) (*Manager, error) {
	if reg == nil || notifier == nil || store == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewManager")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if tuner == nil {
		tuner = NopTuner{}
	}

	m := &Manager{
		cfg:      cfg,
		registry: reg,
		notifier: notifier,
		store:    store,
		bus:      bus,
		logger:   log,
		sink:     sink,
		tuner:    tuner,
		now:      time.Now,
		timers:   make(map[string]*time.Timer),
	}
	m.history = newNotificationHistory(fairnessWindow, func() time.Time { return m.now() })
	m.scorer = NewScorer(cfg.Weights, m.history)
	m.selector = NewSelector(m.scorer, cfg.FanOut)
	m.arbiter = NewArbiter(store, reg, bus, sink, log, func() time.Time { return m.now() })
	m.arbiter.onResolved = m.cancelExpiryTimer
	m.arbiter.onAssigned = m.recordAcceptSample
	m.arbiter.escalate = m.escalateJob
	return m, nil
}

// SetClock replaces the time source. Intended for tests.
func (m *Manager) SetClock(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// Scorer returns the scorer so callers can attach a tuner.
func (m *Manager) Scorer() *Scorer { return m.scorer }

// SetTuner replaces the accept-latency tuner. Used when the tuner needs the
// manager's own scorer, which does not exist before construction.
func (m *Manager) SetTuner(t Tuner) {
	if t != nil {
		m.mu.Lock()
		m.tuner = t
		m.mu.Unlock()
	}
}

// Arbiter returns the response arbiter bound to this manager.
func (m *Manager) Arbiter() *Arbiter { return m.arbiter }

// Close cancels all pending expiry timers and closes the record store.
func (m *Manager) Close() error {
	m.mu.Lock()
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
	m.mu.Unlock()
	if m.bus != nil {
		m.bus.Close()
	}
	return m.store.Close()
}

// DispatchJob runs the full pipeline for a new job and returns the notified
// set. It returns ErrNoEligibleContractors when nobody can be invited; the
// record is then parked in the exhausted state for operator follow-up.
func (m *Manager) DispatchJob(ctx context.Context, job model.Job) (*DispatchResult, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	rec := NewDispatchRecord(job, m.now())
	if err := m.store.Create(ctx, rec); err != nil {
		return nil, err
	}
	jobsDispatched.WithLabelValues(job.Urgency.String()).Inc()
	m.logger.Infof("job %s entering dispatch (%s, %s)", job.ID, job.ServiceType, job.Urgency)

	res, err := m.runRound(ctx, job, 1, nil, 0)
	if errors.Is(err, ErrNoEligibleContractors) {
		m.markExhausted(ctx, job.ID)
		return nil, err
	}
	return res, err
}

// Respond forwards a contractor response to the arbiter.
func (m *Manager) Respond(ctx context.Context, jobID, contractorID string, decision Decision, reason string) (Outcome, error) {
	return m.arbiter.Respond(ctx, jobID, contractorID, decision, reason)
}

// Cancel withdraws a job before assignment.
func (m *Manager) Cancel(ctx context.Context, jobID string) error {
	return m.arbiter.Cancel(ctx, jobID)
}

// Start marks an assigned job as underway by its winning contractor.
func (m *Manager) Start(ctx context.Context, jobID, contractorID string) error {
	return m.arbiter.Start(ctx, jobID, contractorID)
}

// Complete finishes an in-progress job and releases the contractor's slot.
func (m *Manager) Complete(ctx context.Context, jobID, contractorID string) error {
	return m.arbiter.Complete(ctx, jobID, contractorID)
}

// Status returns a snapshot of the job's dispatch record.
func (m *Manager) Status(ctx context.Context, jobID string) (*DispatchRecord, error) {
	return m.store.Get(ctx, jobID)
}

// SweepExpired expires every overdue record. It backs up the per-record
// timers so deadlines persisted across restarts are still honored.
func (m *Manager) SweepExpired(ctx context.Context) error {
	due, err := m.store.DueForExpiry(ctx, m.now())
	if err != nil {
		return err
	}
	for _, jobID := range due {
		m.arbiter.Expire(ctx, jobID, false)
	}
	return nil
}

// runRound selects, notifies and records one fan-out round. exclude lists
// contractors already notified in earlier rounds.
func (m *Manager) runRound(ctx context.Context, job model.Job, roundNo int, exclude map[string]bool, extraFanOut int) (*DispatchResult, error) {
	candidates, err := m.registry.FindCandidates(ctx, job.ServiceType, job.Location)
	if err != nil {
		return nil, fmt.Errorf("dispatch: find candidates: %w", err)
	}
	ranked := m.selector.Rank(job, candidates, exclude)
	picks := m.selector.SelectForNotification(job, ranked, extraFanOut)
	if len(picks) == 0 {
		return nil, ErrNoEligibleContractors
	}

	start := m.now()
	expiresAt := start.Add(m.cfg.Expiry.Deadline(job.Urgency))
	notified := m.fanOut(ctx, job, roundNo, picks, expiresAt)
	if len(notified) == 0 {
		// Every send failed; degrade to the no-eligible outcome.
		return nil, ErrNoEligibleContractors
	}

	round := Round{Number: roundNo, Notified: notified, StartedAt: start, ExpiresAt: expiresAt}
	var appended bool
	_, err = m.store.Update(ctx, job.ID, func(r *DispatchRecord) bool {
		appended = false
		// The record may have been cancelled while sends were in flight.
		if r.State != StatePending && r.State != StateEscalated {
			return false
		}
		r.Rounds = append(r.Rounds, round)
		r.State = StateNotified
		appended = true
		return true
	})
	if err != nil {
		return nil, err
	}
	if !appended {
		return nil, ErrAlreadyResolved
	}

	ids := make([]string, len(notified))
	for i, n := range notified {
		ids[i] = n.ContractorID
	}
	m.history.Record(ids)
	m.scheduleExpiry(job.ID, expiresAt)
	m.logger.Infof("job %s: round %d notified %d contractors, expires %s", job.ID, roundNo, len(notified), expiresAt.Format(time.RFC3339))
	if m.bus != nil {
		m.bus.Publish(events.JobDispatchedEvent{
			JobID:     job.ID,
			Urgency:   job.Urgency,
			Round:     roundNo,
			Notified:  ids,
			ExpiresAt: expiresAt,
		})
	}
	return &DispatchResult{JobID: job.ID, Round: roundNo, Notified: notified, ExpiresAt: expiresAt}, nil
}

// fanOut sends all invitations concurrently and returns the successfully
// notified set. A failed send never aborts the others.
func (m *Manager) fanOut(ctx context.Context, job model.Job, roundNo int, picks []RankedContractor, expiresAt time.Time) []Notification {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		notified []Notification
		results  []metrics.InvitationResult
	)
	sendTimeout := time.Duration(m.cfg.SendTimeoutSeconds) * time.Second
	for _, pick := range picks {
		wg.Add(1)
		go func(pick RankedContractor) {
			defer wg.Done()
			token := uuid.NewString()
			inv := notify.Invitation{
				JobID:          job.ID,
				Round:          roundNo,
				Token:          token,
				AcceptURL:      fmt.Sprintf("%s/%s/respond?token=%s", m.cfg.AcceptBaseURL, job.ID, token),
				ServiceType:    job.ServiceType,
				Urgency:        job.Urgency,
				Location:       job.Location,
				EstimatedValue: job.EstimatedValue,
				HasInsurance:   job.HasInsurance,
				Description:    job.Description,
				ExpiresAt:      expiresAt,
			}
			sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
			defer cancel()
			start := time.Now()
			err := m.notifier.Send(sendCtx, pick.Contractor.ID, inv)
			latency := time.Since(start)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				invitationFailures.Inc()
				m.logger.Warnf("job %s: invitation to %s failed: %v", job.ID, pick.Contractor.ID, err)
			} else {
				invitationsSent.WithLabelValues(job.Urgency.String()).Inc()
				notified = append(notified, Notification{
					ContractorID: pick.Contractor.ID,
					Score:        pick.Score,
					Token:        token,
					NotifiedAt:   m.now(),
				})
			}
			results = append(results, metrics.InvitationResult{
				JobID:        job.ID,
				ContractorID: pick.Contractor.ID,
				ServiceType:  job.ServiceType,
				Urgency:      job.Urgency,
				Round:        roundNo,
				Score:        pick.Score,
				Delivered:    err == nil,
				Latency:      latency,
				Time:         m.now(),
			})
			if m.bus != nil {
				m.bus.Publish(events.InvitationEvent{
					JobID:        job.ID,
					ContractorID: pick.Contractor.ID,
					Round:        roundNo,
					Err:          err,
					Failed:       err != nil,
					Latency:      latency,
				})
			}
		}(pick)
	}
	wg.Wait()

	// Keep the notified list in selection order so the record mirrors the
	// ranking, not goroutine scheduling.
	ordered := make([]Notification, 0, len(notified))
	for _, pick := range picks {
		for _, n := range notified {
			if n.ContractorID == pick.Contractor.ID {
				ordered = append(ordered, n)
				break
			}
		}
	}
	if err := m.sink.RecordInvitations(results); err != nil {
		m.logger.Errorf("job %s: invitation metrics: %v", job.ID, err)
	}
	return ordered
}

// escalateJob runs after a round expires: it opens an escalation round with a
// wider fan-out, excluding everyone already notified, or parks the job as
// exhausted when nothing remains.
func (m *Manager) escalateJob(ctx context.Context, jobID string) {
	var (
		escalated bool
		exhausted bool
	)
	rec, err := m.store.Update(ctx, jobID, func(r *DispatchRecord) bool {
		escalated, exhausted = false, false
		if r.State != StateExpired {
			return false
		}
		if r.Escalations >= m.cfg.FanOut.MaxEscalations {
			r.State = StateExhausted
			r.ResolvedAt = m.now()
			exhausted = true
			return true
		}
		r.State = StateEscalated
		r.Escalations++
		escalated = true
		return true
	})
	if err != nil {
		m.logger.Errorf("job %s: escalation: %v", jobID, err)
		return
	}
	if exhausted {
		m.surfaceExhausted(jobID, len(rec.Rounds))
		return
	}
	if !escalated {
		return
	}

	escalationRounds.Inc()
	exclude := make(map[string]bool)
	for _, id := range rec.NotifiedIDs() {
		exclude[id] = true
	}
	roundNo := len(rec.Rounds) + 1
	m.logger.Warnf("job %s: escalating to round %d", jobID, roundNo)
	if m.bus != nil {
		m.bus.Publish(events.EscalationEvent{JobID: jobID, Round: roundNo})
	}

	_, err = m.runRound(ctx, rec.Job, roundNo, exclude, m.cfg.FanOut.EscalationExtra)
	if errors.Is(err, ErrNoEligibleContractors) {
		m.markExhausted(ctx, jobID)
		return
	}
	if err != nil {
		m.logger.Errorf("job %s: escalation round: %v", jobID, err)
	}
}

// markExhausted parks a record that has nobody left to notify.
func (m *Manager) markExhausted(ctx context.Context, jobID string) {
	var (
		marked bool
		rounds int
	)
	_, err := m.store.Update(ctx, jobID, func(r *DispatchRecord) bool {
		marked, rounds = false, 0
		if r.State.Terminal() || r.State == StateAssigned {
			return false
		}
		r.State = StateExhausted
		r.ResolvedAt = m.now()
		marked = true
		rounds = len(r.Rounds)
		return true
	})
	if err != nil {
		m.logger.Errorf("job %s: mark exhausted: %v", jobID, err)
		return
	}
	if !marked {
		return
	}
	m.surfaceExhausted(jobID, rounds)
}

// surfaceExhausted alerts operations; exhausted jobs are never retried
// automatically.
func (m *Manager) surfaceExhausted(jobID string, rounds int) {
	exhaustedJobs.Inc()
	m.logger.Errorf("job %s: no eligible contractors remain after %d round(s); operator action required", jobID, rounds)
	if m.bus != nil {
		m.bus.Publish(events.EscalationEvent{JobID: jobID, Round: rounds, Exhausted: true})
	}
}

// scheduleExpiry arms a timer that expires the round at its deadline.
func (m *Manager) scheduleExpiry(jobID string, expiresAt time.Time) {
	d := expiresAt.Sub(m.now())
	if d < 0 {
		d = 0
	}
	m.mu.Lock()
	if old, ok := m.timers[jobID]; ok {
		old.Stop()
	}
	m.timers[jobID] = time.AfterFunc(d, func() {
		m.cancelExpiryTimer(jobID)
		m.arbiter.Expire(context.Background(), jobID, false)
	})
	m.mu.Unlock()
}

func (m *Manager) cancelExpiryTimer(jobID string) {
	m.mu.Lock()
	if t, ok := m.timers[jobID]; ok {
		t.Stop()
		delete(m.timers, jobID)
	}
	m.mu.Unlock()
}

// maxAcceptSamples bounds the sliding window of winning accepts kept for the
// tuner.
const maxAcceptSamples = 256

func (m *Manager) recordAcceptSample(s assignmentSample) {
	m.mu.Lock()
	m.samples = append(m.samples, AcceptSample{
		JobID:        s.jobID,
		ContractorID: s.contractorID,
		Round:        s.round,
		Latency:      s.latency,
	})
	if excess := len(m.samples) - maxAcceptSamples; excess > 0 {
		m.samples = append(m.samples[:0], m.samples[excess:]...)
	}
	samples := append([]AcceptSample(nil), m.samples...)
	tuner := m.tuner
	m.mu.Unlock()
	tuner.Tune(samples)
}
