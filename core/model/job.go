// Package model defines the domain types shared across the dispatch
// subsystem: jobs, contractors and their service metadata.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ServiceType identifies the kind of recovery work a job requires.
type ServiceType int

const (
	ServiceWaterDamage ServiceType = iota
	ServiceFireDamage
	ServiceMouldRemediation
	ServiceStormDamage
	ServiceBiohazard
	ServiceOther
)

// String returns the wire representation of the service type.
func (s ServiceType) String() string {
	switch s {
	case ServiceWaterDamage:
		return "water_damage"
	case ServiceFireDamage:
		return "fire_damage"
	case ServiceMouldRemediation:
		return "mould_remediation"
	case ServiceStormDamage:
		return "storm_damage"
	case ServiceBiohazard:
		return "biohazard"
	case ServiceOther:
		return "other"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the service type as its wire string.
func (s ServiceType) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes the wire string form.
func (s *ServiceType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseServiceType(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseServiceType parses the wire representation of a service type.
func ParseServiceType(s string) (ServiceType, error) {
	switch s {
	case "water_damage":
		return ServiceWaterDamage, nil
	case "fire_damage":
		return ServiceFireDamage, nil
	case "mould_remediation":
		return ServiceMouldRemediation, nil
	case "storm_damage":
		return ServiceStormDamage, nil
	case "biohazard":
		return ServiceBiohazard, nil
	case "other":
		return ServiceOther, nil
	default:
		return ServiceOther, fmt.Errorf("model: unknown service type %q", s)
	}
}

// UrgencyLevel orders jobs by time pressure.
type UrgencyLevel int

const (
	UrgencyEmergency UrgencyLevel = iota
	UrgencyUrgent
	UrgencyStandard
)

// String returns the wire representation of the urgency level.
func (u UrgencyLevel) String() string {
	switch u {
	case UrgencyEmergency:
		return "emergency"
	case UrgencyUrgent:
		return "urgent"
	case UrgencyStandard:
		return "standard"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the urgency as its wire string.
func (u UrgencyLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// UnmarshalJSON decodes the wire string form.
func (u *UrgencyLevel) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseUrgency(raw)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// ParseUrgency parses the wire representation of an urgency level.
func ParseUrgency(s string) (UrgencyLevel, error) {
	switch s {
	case "emergency":
		return UrgencyEmergency, nil
	case "urgent":
		return UrgencyUrgent, nil
	case "standard":
		return UrgencyStandard, nil
	default:
		return UrgencyStandard, fmt.Errorf("model: unknown urgency %q", s)
	}
}

// Location places a job. Coordinates are optional; suburb, state and
// postcode drive coverage checks.
type Location struct {
	Suburb   string  `json:"suburb"`
	State    string  `json:"state"`
	Postcode string  `json:"postcode"`
	Lat      float64 `json:"lat,omitempty"`
	Lng      float64 `json:"lng,omitempty"`
}

// HasCoordinates reports whether the location carries usable coordinates.
func (l Location) HasCoordinates() bool {
	return l.Lat != 0 || l.Lng != 0
}

// Job is a disaster-recovery work request. Jobs are immutable once created;
// the dispatch subsystem reads them but never mutates them.
type Job struct {
	ID             string       `json:"id"`
	ServiceType    ServiceType  `json:"service_type"`
	Urgency        UrgencyLevel `json:"urgency"`
	Location       Location     `json:"location"`
	EstimatedValue float64      `json:"estimated_value"`
	HasInsurance   bool         `json:"has_insurance"`
	Description    string       `json:"description,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// Validate checks the fields a job must carry before dispatch.
func (j Job) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("model: job id is required")
	}
	if j.Location.Postcode == "" && j.Location.Suburb == "" && j.Location.State == "" {
		return fmt.Errorf("model: job %s has no location", j.ID)
	}
	if j.EstimatedValue < 0 {
		return fmt.Errorf("model: job %s has negative estimated value", j.ID)
	}
	return nil
}
