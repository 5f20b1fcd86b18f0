package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestServiceTypeRoundTrip(t *testing.T) {
	for _, s := range []ServiceType{ServiceWaterDamage, ServiceFireDamage, ServiceMouldRemediation, ServiceStormDamage, ServiceBiohazard, ServiceOther} {
		parsed, err := ParseServiceType(s.String())
		if err != nil {
			t.Fatalf("parse %s: %v", s, err)
		}
		if parsed != s {
			t.Fatalf("round trip %s: got %s", s, parsed)
		}
	}
	if _, err := ParseServiceType("plumbing"); err == nil {
		t.Fatal("expected error for unknown service type")
	}
}

func TestUrgencyRoundTrip(t *testing.T) {
	for _, u := range []UrgencyLevel{UrgencyEmergency, UrgencyUrgent, UrgencyStandard} {
		parsed, err := ParseUrgency(u.String())
		if err != nil {
			t.Fatalf("parse %s: %v", u, err)
		}
		if parsed != u {
			t.Fatalf("round trip %s: got %s", u, parsed)
		}
	}
	if _, err := ParseUrgency("whenever"); err == nil {
		t.Fatal("expected error for unknown urgency")
	}
}

func TestJobJSONUsesWireStrings(t *testing.T) {
	job := Job{
		ID:          "job-1",
		ServiceType: ServiceMouldRemediation,
		Urgency:     UrgencyEmergency,
		Location:    Location{Postcode: "4000"},
		CreatedAt:   time.Now(),
	}
	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Job
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ServiceType != ServiceMouldRemediation || decoded.Urgency != UrgencyEmergency {
		t.Fatalf("round trip lost enums: %+v", decoded)
	}
}

func TestJobValidate(t *testing.T) {
	ok := Job{ID: "j1", Location: Location{Postcode: "4000"}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid job rejected: %v", err)
	}
	if err := (Job{Location: Location{Postcode: "4000"}}).Validate(); err == nil {
		t.Fatal("missing id accepted")
	}
	if err := (Job{ID: "j1"}).Validate(); err == nil {
		t.Fatal("missing location accepted")
	}
	if err := (Job{ID: "j1", Location: Location{State: "QLD"}, EstimatedValue: -1}).Validate(); err == nil {
		t.Fatal("negative value accepted")
	}
}

func TestServiceAreaCoverage(t *testing.T) {
	area := ServiceArea{
		Postcodes: []string{"4000"},
		Suburbs:   []string{"Brisbane"},
		States:    []string{"QLD"},
	}
	if !area.CoversPostcode("4000") {
		t.Error("postcode 4000 should be covered")
	}
	if area.CoversPostcode("4001") {
		t.Error("postcode 4001 should not be covered")
	}
	if !area.CoversSuburb("brisbane") {
		t.Error("suburb match should be case-insensitive")
	}
	if !area.CoversState("qld") {
		t.Error("state match should be case-insensitive")
	}
	if area.CoversPostcode("") || area.CoversSuburb("") || area.CoversState("") {
		t.Error("empty values should never match")
	}
	if !area.Covers(Location{State: "QLD"}) {
		t.Error("state-only location should be covered")
	}
	if area.Covers(Location{State: "VIC", Suburb: "Melbourne", Postcode: "3000"}) {
		t.Error("uncovered location matched")
	}
}

func TestServiceAreaRadiusCoverage(t *testing.T) {
	// Brisbane CBD base with a 50km radius.
	area := ServiceArea{
		States:      []string{"QLD"},
		Base:        Location{Lat: -27.4698, Lng: 153.0251},
		MaxRadiusKm: 50,
	}
	ipswich := Location{Suburb: "Ipswich", Lat: -27.6146, Lng: 152.7609}
	goldCoast := Location{Suburb: "Surfers Paradise", Lat: -28.0023, Lng: 153.4145}

	if !area.CoversRadius(ipswich) {
		t.Error("Ipswich is ~30km out and should be within the radius")
	}
	if area.CoversRadius(goldCoast) {
		t.Error("Surfers Paradise is ~70km out and should be outside the radius")
	}
	// Radius is a catch-all for Covers when no locality matches.
	if !area.Covers(ipswich) {
		t.Error("in-radius location should be covered")
	}
	if area.Covers(goldCoast) {
		t.Error("out-of-radius location without a locality match should not be covered")
	}
	// A listed state still covers a coordinate-free job.
	if !area.Covers(Location{State: "QLD"}) {
		t.Error("state listing should cover without coordinates")
	}

	if (ServiceArea{MaxRadiusKm: 50}).CoversRadius(ipswich) {
		t.Error("radius without a base must not match")
	}
	if area.CoversRadius(Location{Suburb: "Ipswich"}) {
		t.Error("radius must not match a job without coordinates")
	}
	if (ServiceArea{Base: Location{Lat: -27.4698, Lng: 153.0251}}).CoversRadius(ipswich) {
		t.Error("zero radius must not match")
	}
}

func TestCapacity(t *testing.T) {
	if u := (Capacity{ActiveJobs: 2, MaxJobs: 5}).Utilization(); u != 0.4 {
		t.Fatalf("utilization = %v, want 0.4", u)
	}
	if u := (Capacity{ActiveJobs: 3}).Utilization(); u != 1 {
		t.Fatalf("zero max should read as fully loaded, got %v", u)
	}
	if (Capacity{ActiveJobs: 4, MaxJobs: 5}).AtLimit() {
		t.Error("4/5 should not be at limit")
	}
	if !(Capacity{ActiveJobs: 5, MaxJobs: 5}).AtLimit() {
		t.Error("5/5 should be at limit")
	}
	if !(Capacity{}).AtLimit() {
		t.Error("unconfigured capacity should be at limit")
	}
}

func TestContractorAcceptsUrgency(t *testing.T) {
	c := Contractor{Availability: Availability{Emergency: true, Standard: true}}
	if !c.AcceptsUrgency(UrgencyEmergency) || c.AcceptsUrgency(UrgencyUrgent) || !c.AcceptsUrgency(UrgencyStandard) {
		t.Fatalf("availability flags not honored: %+v", c.Availability)
	}
}

func TestContractorValidate(t *testing.T) {
	ok := Contractor{ID: "c1", Services: []ServiceType{ServiceWaterDamage}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid contractor rejected: %v", err)
	}
	if err := (Contractor{Services: []ServiceType{ServiceWaterDamage}}).Validate(); err == nil {
		t.Fatal("missing id accepted")
	}
	if err := (Contractor{ID: "c1"}).Validate(); err == nil {
		t.Fatal("empty services accepted")
	}
}

func TestDurationJSON(t *testing.T) {
	var p Performance
	if err := json.Unmarshal([]byte(`{"avg_response_time":"18m"}`), &p); err != nil {
		t.Fatalf("unmarshal string duration: %v", err)
	}
	if time.Duration(p.AvgResponseTime) != 18*time.Minute {
		t.Fatalf("got %v, want 18m", time.Duration(p.AvgResponseTime))
	}
	if err := json.Unmarshal([]byte(`{"avg_response_time":60000000000}`), &p); err != nil {
		t.Fatalf("unmarshal numeric duration: %v", err)
	}
	if time.Duration(p.AvgResponseTime) != time.Minute {
		t.Fatalf("got %v, want 1m", time.Duration(p.AvgResponseTime))
	}
	data, err := json.Marshal(Performance{AvgResponseTime: Duration(30 * time.Minute)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) == "" || !json.Valid(data) {
		t.Fatalf("bad marshal output: %s", data)
	}
}
