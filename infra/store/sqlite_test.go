package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/CleanExpo/Disaster-Recovery-sub021/core/dispatch"
	"github.com/CleanExpo/Disaster-Recovery-sub021/core/model"
)

func newTestStore(t *testing.T) *SQLiteRecordStore {
	t.Helper()
	s, err := NewSQLiteRecordStore(filepath.Join(t.TempDir(), "dispatch.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedRecord(t *testing.T, s *SQLiteRecordStore, jobID string, state dispatch.State, expiresIn time.Duration, contractorIDs ...string) {
	t.Helper()
	now := time.Now().UTC()
	job := model.Job{
		ID:          jobID,
		ServiceType: model.ServiceWaterDamage,
		Urgency:     model.UrgencyUrgent,
		Location:    model.Location{Postcode: "4000"},
		CreatedAt:   now,
	}
	rec := dispatch.NewDispatchRecord(job, now)
	rec.State = state
	if len(contractorIDs) > 0 {
		var notified []dispatch.Notification
		for _, id := range contractorIDs {
			notified = append(notified, dispatch.Notification{ContractorID: id, NotifiedAt: now})
		}
		rec.Rounds = []dispatch.Round{{Number: 1, Notified: notified, StartedAt: now, ExpiresAt: now.Add(expiresIn)}}
	}
	if err := s.Create(context.Background(), rec); err != nil {
		t.Fatalf("seed %s: %v", jobID, err)
	}
}

func TestSQLiteCreateGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedRecord(t, s, "job-1", dispatch.StateNotified, time.Hour, "a", "b")

	rec, err := s.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.JobID != "job-1" || rec.State != dispatch.StateNotified {
		t.Fatalf("record = %+v", rec)
	}
	if rec.Job.ServiceType != model.ServiceWaterDamage || rec.Job.Urgency != model.UrgencyUrgent {
		t.Fatalf("job enums lost in round trip: %+v", rec.Job)
	}
	if len(rec.Rounds) != 1 || len(rec.Rounds[0].Notified) != 2 {
		t.Fatalf("rounds = %+v", rec.Rounds)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, dispatch.ErrRecordNotFound) {
		t.Fatalf("get missing = %v", err)
	}
}

func TestSQLiteCreateDuplicate(t *testing.T) {
	s := newTestStore(t)
	seedRecord(t, s, "job-1", dispatch.StatePending, 0)

	rec := dispatch.NewDispatchRecord(model.Job{ID: "job-1", Location: model.Location{Postcode: "4000"}}, time.Now())
	if err := s.Create(context.Background(), rec); !errors.Is(err, dispatch.ErrRecordExists) {
		t.Fatalf("duplicate create = %v, want ErrRecordExists", err)
	}
}

func TestSQLiteUpdateStatePrecondition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedRecord(t, s, "job-1", dispatch.StateNotified, time.Hour, "a")

	claimed := false
	_, err := s.Update(ctx, "job-1", func(r *dispatch.DispatchRecord) bool {
		if r.State != dispatch.StateNotified {
			return false
		}
		r.State = dispatch.StateAssigned
		r.AssignedContractor = "a"
		claimed = true
		return true
	})
	if err != nil || !claimed {
		t.Fatalf("update: %v claimed=%v", err, claimed)
	}

	rec, _ := s.Get(ctx, "job-1")
	if rec.State != dispatch.StateAssigned || rec.AssignedContractor != "a" {
		t.Fatalf("record = %+v", rec)
	}
}

func TestSQLiteUpdateRejectedMutationNotPersisted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedRecord(t, s, "job-1", dispatch.StatePending, 0)

	_, err := s.Update(ctx, "job-1", func(r *dispatch.DispatchRecord) bool {
		r.State = dispatch.StateCancelled
		return false
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	rec, _ := s.Get(ctx, "job-1")
	if rec.State != dispatch.StatePending {
		t.Fatal("rejected mutation persisted")
	}
}

func TestSQLiteUpdateUnknownJob(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Update(context.Background(), "missing", func(*dispatch.DispatchRecord) bool { return false })
	if !errors.Is(err, dispatch.ErrRecordNotFound) {
		t.Fatalf("update missing = %v", err)
	}
}

func TestSQLiteConcurrentClaimsSingleWinner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ids := make([]string, 10)
	for i := range ids {
		ids[i] = fmt.Sprintf("c%02d", i)
	}
	seedRecord(t, s, "job-1", dispatch.StateNotified, time.Hour, ids...)

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			claimed := false
			_, err := s.Update(ctx, "job-1", func(r *dispatch.DispatchRecord) bool {
				if r.State != dispatch.StateNotified {
					return false
				}
				r.State = dispatch.StateAssigned
				r.AssignedContractor = id
				claimed = true
				return true
			})
			if err != nil {
				t.Errorf("update %s: %v", id, err)
				return
			}
			if claimed {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("%d winners, want exactly 1", winners)
	}
	rec, _ := s.Get(ctx, "job-1")
	if rec.State != dispatch.StateAssigned || rec.AssignedContractor == "" {
		t.Fatalf("record = %+v", rec)
	}
}

func TestSQLiteDueForExpiry(t *testing.T) {
	s := newTestStore(t)
	seedRecord(t, s, "overdue", dispatch.StateNotified, -time.Minute, "a")
	seedRecord(t, s, "live", dispatch.StateNotified, time.Hour, "a")
	seedRecord(t, s, "assigned", dispatch.StateAssigned, -time.Minute, "a")

	due, err := s.DueForExpiry(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 1 || due[0] != "overdue" {
		t.Fatalf("due = %v, want [overdue]", due)
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatch.db")
	s, err := NewSQLiteRecordStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	seedRecord(t, s, "job-1", dispatch.StateNotified, -time.Minute, "a")
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewSQLiteRecordStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	// A restart must still see the overdue round so the sweep can expire it.
	due, err := reopened.DueForExpiry(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 1 || due[0] != "job-1" {
		t.Fatalf("due after reopen = %v", due)
	}
}
