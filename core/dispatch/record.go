package dispatch

import (
	"time"

	"github.com/CleanExpo/Disaster-Recovery-sub021/core/model"
)

// State is the lifecycle state of a DispatchRecord.
type State int

const (
	// StatePending means the record exists but no fan-out has completed.
	StatePending State = iota
	// StateNotified means a round is live and awaiting responses.
	StateNotified
	// StateAssigned means exactly one contractor accepted. Terminal for
	// arbitration; the job then moves through in-progress to completed.
	StateAssigned
	// StateExpired means the current round's deadline elapsed without a
	// valid acceptance.
	StateExpired
	// StateEscalated means an escalation round is being prepared.
	StateEscalated
	// StateInProgress means the assigned contractor started work.
	StateInProgress
	// StateCompleted means the assigned contractor finished the job.
	StateCompleted
	// StateCancelled means the requester withdrew the job before assignment.
	StateCancelled
	// StateExhausted means every round expired and no eligible contractors
	// remain. Requires operator intervention.
	StateExhausted
)

// String returns the wire representation of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateNotified:
		return "notified"
	case StateAssigned:
		return "assigned"
	case StateExpired:
		return "expired"
	case StateEscalated:
		return "escalated"
	case StateInProgress:
		return "in_progress"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further arbitration can happen on the record.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateExhausted:
		return true
	default:
		return false
	}
}

// Resolved reports whether the accept/expire race has been decided.
func (s State) Resolved() bool {
	return s != StatePending && s != StateNotified && s != StateExpired && s != StateEscalated
}

// Decision is a contractor's answer to an invitation.
type Decision int

const (
	DecisionAccept Decision = iota
	DecisionDecline
)

// String returns the wire representation of the decision.
func (d Decision) String() string {
	if d == DecisionAccept {
		return "accept"
	}
	return "decline"
}

// Notification records one invitation sent during a round.
type Notification struct {
	ContractorID string    `json:"contractor_id"`
	Score        float64   `json:"score"`
	Token        string    `json:"token"`
	NotifiedAt   time.Time `json:"notified_at"`
}

// Response records a contractor's accept or decline.
type Response struct {
	ContractorID string    `json:"contractor_id"`
	Decision     Decision  `json:"decision"`
	Reason       string    `json:"reason,omitempty"`
	At           time.Time `json:"at"`
}

// Round is one completed fan-out. Its notified list is immutable once the
// round is appended; escalation appends a new round instead of mutating.
type Round struct {
	Number    int            `json:"number"`
	Notified  []Notification `json:"notified"`
	StartedAt time.Time      `json:"started_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Contains reports whether the contractor was notified in this round.
func (r Round) Contains(contractorID string) bool {
	for _, n := range r.Notified {
		if n.ContractorID == contractorID {
			return true
		}
	}
	return false
}

// DispatchRecord is the single source of truth for a job's dispatch
// lifecycle. It is created when the job enters dispatch and mutated only
// through the record store's atomic update.
type DispatchRecord struct {
	JobID              string     `json:"job_id"`
	Job                model.Job  `json:"job"`
	State              State      `json:"state"`
	Rounds             []Round    `json:"rounds"`
	Responses          []Response `json:"responses,omitempty"`
	AssignedContractor string     `json:"assigned_contractor,omitempty"`
	Escalations        int        `json:"escalations"`
	CreatedAt          time.Time  `json:"created_at"`
	ResolvedAt         time.Time  `json:"resolved_at,omitempty"`
}

// NewDispatchRecord creates a pending record for the job.
func NewDispatchRecord(job model.Job, now time.Time) *DispatchRecord {
	return &DispatchRecord{
		JobID:     job.ID,
		Job:       job,
		State:     StatePending,
		CreatedAt: now,
	}
}

// CurrentRound returns the latest round, or nil before the first fan-out.
func (r *DispatchRecord) CurrentRound() *Round {
	if len(r.Rounds) == 0 {
		return nil
	}
	return &r.Rounds[len(r.Rounds)-1]
}

// EverNotified reports whether the contractor was invited in any round.
func (r *DispatchRecord) EverNotified(contractorID string) bool {
	for _, round := range r.Rounds {
		if round.Contains(contractorID) {
			return true
		}
	}
	return false
}

// NotifiedIDs returns the contractor IDs invited across all rounds.
func (r *DispatchRecord) NotifiedIDs() []string {
	var ids []string
	seen := make(map[string]bool)
	for _, round := range r.Rounds {
		for _, n := range round.Notified {
			if !seen[n.ContractorID] {
				seen[n.ContractorID] = true
				ids = append(ids, n.ContractorID)
			}
		}
	}
	return ids
}

// Declined reports whether the contractor already declined the current round.
func (r *DispatchRecord) Declined(contractorID string) bool {
	round := r.CurrentRound()
	if round == nil {
		return false
	}
	for _, resp := range r.Responses {
		if resp.ContractorID == contractorID && resp.Decision == DecisionDecline && !resp.At.Before(round.StartedAt) {
			return true
		}
	}
	return false
}

// AllDeclined reports whether every contractor of the current round declined.
func (r *DispatchRecord) AllDeclined() bool {
	round := r.CurrentRound()
	if round == nil || len(round.Notified) == 0 {
		return false
	}
	for _, n := range round.Notified {
		if !r.Declined(n.ContractorID) {
			return false
		}
	}
	return true
}
