package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/CleanExpo/Disaster-Recovery-sub021/core/model"
)

type captureSink struct {
	invitations [][]InvitationResult
	assignments []AssignmentResult
	err         error
}

func (s *captureSink) RecordInvitations(results []InvitationResult) error {
	s.invitations = append(s.invitations, results)
	return s.err
}

func (s *captureSink) RecordAssignment(res AssignmentResult) error {
	s.assignments = append(s.assignments, res)
	return s.err
}

func TestMultiSinkFansOut(t *testing.T) {
	a := &captureSink{}
	b := &captureSink{}
	m := NewMultiSink(a, b)

	results := []InvitationResult{{
		JobID:        "job-1",
		ContractorID: "c01",
		ServiceType:  model.ServiceWaterDamage,
		Urgency:      model.UrgencyEmergency,
		Round:        1,
		Score:        321,
		Delivered:    true,
		Latency:      20 * time.Millisecond,
		Time:         time.Now(),
	}}
	if err := m.RecordInvitations(results); err != nil {
		t.Fatalf("RecordInvitations: %v", err)
	}
	if err := m.RecordAssignment(AssignmentResult{JobID: "job-1", ContractorID: "c01", Outcome: "assigned"}); err != nil {
		t.Fatalf("RecordAssignment: %v", err)
	}

	for name, s := range map[string]*captureSink{"first": a, "second": b} {
		if len(s.invitations) != 1 || len(s.invitations[0]) != 1 {
			t.Fatalf("%s sink invitations = %v", name, s.invitations)
		}
		if len(s.assignments) != 1 || s.assignments[0].ContractorID != "c01" {
			t.Fatalf("%s sink assignments = %v", name, s.assignments)
		}
	}
}

func TestMultiSinkReturnsFirstError(t *testing.T) {
	errA := errors.New("sink a down")
	a := &captureSink{err: errA}
	b := &captureSink{err: errors.New("sink b down")}
	c := &captureSink{}
	m := NewMultiSink(a, b, c)

	if err := m.RecordAssignment(AssignmentResult{JobID: "job-1"}); !errors.Is(err, errA) {
		t.Fatalf("err = %v, want %v", err, errA)
	}
	// A failing sink must not stop the others from recording.
	if len(c.assignments) != 1 {
		t.Fatalf("healthy sink assignments = %d", len(c.assignments))
	}
}

func TestNopSink(t *testing.T) {
	var s Sink = NopSink{}
	if err := s.RecordInvitations(nil); err != nil {
		t.Fatalf("RecordInvitations: %v", err)
	}
	if err := s.RecordAssignment(AssignmentResult{}); err != nil {
		t.Fatalf("RecordAssignment: %v", err)
	}
}
