// Package events defines the typed events published on the internal bus
// while a job moves through its dispatch lifecycle.
package events

import (
	"time"

	"github.com/CleanExpo/Disaster-Recovery-sub021/core/model"
)

// JobDispatchedEvent is published when a fan-out round completes.
type JobDispatchedEvent struct {
	JobID     string             `json:"job_id"`
	Urgency   model.UrgencyLevel `json:"urgency"`
	Round     int                `json:"round"`
	Notified  []string           `json:"notified"`
	ExpiresAt time.Time          `json:"expires_at"`
}

// InvitationEvent is published per contractor send attempt.
type InvitationEvent struct {
	JobID        string        `json:"job_id"`
	ContractorID string        `json:"contractor_id"`
	Round        int           `json:"round"`
	Err          error         `json:"-"`
	Failed       bool          `json:"failed"`
	Latency      time.Duration `json:"latency"`
}

// AssignmentEvent is published when the accept race resolves.
type AssignmentEvent struct {
	JobID        string `json:"job_id"`
	ContractorID string `json:"contractor_id"`
	Outcome      string `json:"outcome"`
}

// RoundExpiredEvent is published when a round deadline elapses without a
// valid acceptance.
type RoundExpiredEvent struct {
	JobID string `json:"job_id"`
	Round int    `json:"round"`
}

// EscalationEvent is published when a new round starts or escalation runs
// out of contractors. Exhausted events require operator attention.
type EscalationEvent struct {
	JobID     string `json:"job_id"`
	Round     int    `json:"round"`
	Exhausted bool   `json:"exhausted"`
}

// CancellationEvent is published when a requester withdraws a job.
type CancellationEvent struct {
	JobID string `json:"job_id"`
}
