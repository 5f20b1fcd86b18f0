package metrics

import (
	"time"

	"github.com/CleanExpo/Disaster-Recovery-sub021/core/model"
)

// InvitationResult represents one contractor invitation to be recorded.
type InvitationResult struct {
	JobID        string
	ContractorID string
	ServiceType  model.ServiceType
	Urgency      model.UrgencyLevel
	Round        int
	Score        float64
	Delivered    bool
	Latency      time.Duration
	Time         time.Time
}

// AssignmentResult captures how a job's accept race resolved.
type AssignmentResult struct {
	JobID        string
	ContractorID string
	Urgency      model.UrgencyLevel
	Outcome      string
	Round        int
	// AcceptLatency is the time from fan-out to winning acceptance. Zero
	// when the job was never assigned.
	AcceptLatency time.Duration
	Time          time.Time
}

// Sink records dispatch outcomes for observability purposes.
type Sink interface {
	RecordInvitations(results []InvitationResult) error
	RecordAssignment(res AssignmentResult) error
}

// NopSink discards everything.
type NopSink struct{}

// RecordInvitations implements Sink.
func (NopSink) RecordInvitations([]InvitationResult) error { return nil }

// RecordAssignment implements Sink.
func (NopSink) RecordAssignment(AssignmentResult) error { return nil }

// MultiSink fans records out to several sinks, returning the first error.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines the given sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// RecordInvitations implements Sink.
func (m *MultiSink) RecordInvitations(results []InvitationResult) error {
	var first error
	for _, s := range m.sinks {
		if err := s.RecordInvitations(results); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// RecordAssignment implements Sink.
func (m *MultiSink) RecordAssignment(res AssignmentResult) error {
	var first error
	for _, s := range m.sinks {
		if err := s.RecordAssignment(res); err != nil && first == nil {
			first = err
		}
	}
	return first
}
