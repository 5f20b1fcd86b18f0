package notify

import (
	"context"
	"time"

	"github.com/CleanExpo/Disaster-Recovery-sub021/core/model"
)

// Invitation is the accept-or-decline offer sent to one contractor for one
// round. The token is unique per (job, contractor, round).
type Invitation struct {
	JobID          string             `json:"job_id"`
	Round          int                `json:"round"`
	Token          string             `json:"token"`
	AcceptURL      string             `json:"accept_url"`
	ServiceType    model.ServiceType  `json:"service_type"`
	Urgency        model.UrgencyLevel `json:"urgency"`
	Location       model.Location     `json:"location"`
	EstimatedValue float64            `json:"estimated_value"`
	HasInsurance   bool               `json:"has_insurance"`
	Description    string             `json:"description,omitempty"`
	ExpiresAt      time.Time          `json:"expires_at"`
}

// Notifier delivers invitations to contractors. Delivery details (SMS, email,
// push) live behind this seam; the dispatch core only needs the send result.
type Notifier interface {
	Send(ctx context.Context, contractorID string, inv Invitation) error
}
