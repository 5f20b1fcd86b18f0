package dispatch

import (
	"fmt"
	"testing"

	"github.com/CleanExpo/Disaster-Recovery-sub021/core/model"
)

func defaultSelector() *Selector {
	return NewSelector(defaultScorer(), DefaultConfig().FanOut)
}

func TestRankOrdersByScoreThenID(t *testing.T) {
	sel := defaultSelector()
	job := testJob(model.UrgencyEmergency)

	postcode := testContractor("b")
	state := testContractor("a")
	state.Area = model.ServiceArea{States: []string{"QLD"}}
	twin := testContractor("c")

	ranked := sel.Rank(job, []model.Contractor{state, twin, postcode}, nil)
	if len(ranked) != 3 {
		t.Fatalf("ranked %d contractors, want 3", len(ranked))
	}
	// b and c tie on score; the lower ID comes first. a trails on coverage.
	if ranked[0].Contractor.ID != "b" || ranked[1].Contractor.ID != "c" || ranked[2].Contractor.ID != "a" {
		t.Fatalf("order = %s %s %s", ranked[0].Contractor.ID, ranked[1].Contractor.ID, ranked[2].Contractor.ID)
	}
}

func TestRankDropsIneligible(t *testing.T) {
	sel := defaultSelector()
	job := testJob(model.UrgencyEmergency)

	eligible := testContractor("a")
	busy := testContractor("b")
	busy.Capacity = model.Capacity{ActiveJobs: 5, MaxJobs: 5}

	ranked := sel.Rank(job, []model.Contractor{eligible, busy}, nil)
	if len(ranked) != 1 || ranked[0].Contractor.ID != "a" {
		t.Fatalf("ranked = %v, want only a", ranked)
	}
}

func TestRankHonorsExclude(t *testing.T) {
	sel := defaultSelector()
	job := testJob(model.UrgencyEmergency)
	ranked := sel.Rank(job, []model.Contractor{testContractor("a"), testContractor("b")}, map[string]bool{"a": true})
	if len(ranked) != 1 || ranked[0].Contractor.ID != "b" {
		t.Fatalf("exclude ignored: %v", ranked)
	}
}

func TestSelectForNotificationFanOut(t *testing.T) {
	sel := defaultSelector()

	var candidates []model.Contractor
	for i := 0; i < 10; i++ {
		candidates = append(candidates, testContractor(fmt.Sprintf("c%02d", i)))
	}

	tests := []struct {
		urgency model.UrgencyLevel
		want    int
	}{
		{model.UrgencyEmergency, 5},
		{model.UrgencyUrgent, 4},
		{model.UrgencyStandard, 3},
	}
	for _, tt := range tests {
		job := testJob(tt.urgency)
		ranked := sel.Rank(job, candidates, nil)
		picks := sel.SelectForNotification(job, ranked, 0)
		if len(picks) != tt.want {
			t.Fatalf("%s fan-out = %d, want %d", tt.urgency, len(picks), tt.want)
		}
	}
}

func TestSelectForNotificationFewerThanFanOut(t *testing.T) {
	sel := defaultSelector()
	job := testJob(model.UrgencyEmergency)
	ranked := sel.Rank(job, []model.Contractor{testContractor("a"), testContractor("b")}, nil)
	picks := sel.SelectForNotification(job, ranked, 0)
	if len(picks) != 2 {
		t.Fatalf("picks = %d, want all 2 eligible", len(picks))
	}
}

func TestSelectForNotificationExtra(t *testing.T) {
	sel := defaultSelector()
	job := testJob(model.UrgencyStandard)

	var candidates []model.Contractor
	for i := 0; i < 10; i++ {
		candidates = append(candidates, testContractor(fmt.Sprintf("c%02d", i)))
	}
	ranked := sel.Rank(job, candidates, nil)
	picks := sel.SelectForNotification(job, ranked, 2)
	if len(picks) != 5 {
		t.Fatalf("escalation picks = %d, want 3+2", len(picks))
	}
}

func TestSelectForNotificationEmpty(t *testing.T) {
	sel := defaultSelector()
	job := testJob(model.UrgencyEmergency)
	picks := sel.SelectForNotification(job, nil, 0)
	if len(picks) != 0 {
		t.Fatalf("picks from empty ranking = %v", picks)
	}
}

func TestSelectOnlyFromRanked(t *testing.T) {
	sel := defaultSelector()
	job := testJob(model.UrgencyEmergency)
	ranked := sel.Rank(job, []model.Contractor{testContractor("a"), testContractor("b"), testContractor("c")}, nil)
	picks := sel.SelectForNotification(job, ranked, 0)
	allowed := map[string]bool{"a": true, "b": true, "c": true}
	for _, p := range picks {
		if !allowed[p.Contractor.ID] {
			t.Fatalf("pick %s not in eligible set", p.Contractor.ID)
		}
	}
}
