package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// ServiceArea describes where a contractor takes work. A more specific match
// (postcode over suburb over state) scores higher downstream. Base and
// MaxRadiusKm add a distance catch-all for jobs that carry coordinates but
// fall outside the listed localities.
type ServiceArea struct {
	Postcodes   []string `json:"postcodes,omitempty"`
	Suburbs     []string `json:"suburbs,omitempty"`
	States      []string `json:"states,omitempty"`
	Base        Location `json:"base,omitempty"`
	MaxRadiusKm float64  `json:"max_radius_km,omitempty"`
}

// CoversPostcode reports whether the area lists the postcode.
func (a ServiceArea) CoversPostcode(postcode string) bool {
	if postcode == "" {
		return false
	}
	for _, p := range a.Postcodes {
		if p == postcode {
			return true
		}
	}
	return false
}

// CoversSuburb reports whether the area lists the suburb.
func (a ServiceArea) CoversSuburb(suburb string) bool {
	if suburb == "" {
		return false
	}
	for _, s := range a.Suburbs {
		if strings.EqualFold(s, suburb) {
			return true
		}
	}
	return false
}

// CoversState reports whether the area lists the state.
func (a ServiceArea) CoversState(state string) bool {
	if state == "" {
		return false
	}
	for _, s := range a.States {
		if strings.EqualFold(s, state) {
			return true
		}
	}
	return false
}

// CoversRadius reports whether the location falls within the area's travel
// radius. It requires coordinates on both ends and a positive radius.
func (a ServiceArea) CoversRadius(loc Location) bool {
	if a.MaxRadiusKm <= 0 || !a.Base.HasCoordinates() || !loc.HasCoordinates() {
		return false
	}
	return haversineKm(a.Base.Lat, a.Base.Lng, loc.Lat, loc.Lng) <= a.MaxRadiusKm
}

// Covers reports whether the area covers the location at any specificity.
func (a ServiceArea) Covers(loc Location) bool {
	return a.CoversPostcode(loc.Postcode) || a.CoversSuburb(loc.Suburb) ||
		a.CoversState(loc.State) || a.CoversRadius(loc)
}

const earthRadiusKm = 6371

// haversineKm returns the great-circle distance between two coordinates.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// Availability flags which urgency levels the contractor takes.
type Availability struct {
	Emergency bool `json:"emergency"`
	Urgent    bool `json:"urgent"`
	Standard  bool `json:"standard"`
}

// Duration wraps time.Duration so roster files can write "15m" instead of
// nanosecond counts.
type Duration time.Duration

// MarshalJSON encodes the duration in time.Duration string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts either a duration string or raw nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	case float64:
		*d = Duration(time.Duration(v))
		return nil
	default:
		return fmt.Errorf("model: invalid duration %s", string(data))
	}
}

// Performance carries the registry-maintained quality metrics. Rates are in
// [0,1]; Rating in [0,5]; KPIScore in [0,100].
type Performance struct {
	AcceptanceRate  float64  `json:"acceptance_rate"`
	CompletionRate  float64  `json:"completion_rate"`
	Rating          float64  `json:"rating"`
	KPIScore        float64  `json:"kpi_score"`
	AvgResponseTime Duration `json:"avg_response_time"`
}

// Capacity tracks concurrent job load.
type Capacity struct {
	ActiveJobs int `json:"active_jobs"`
	MaxJobs    int `json:"max_jobs"`
}

// Utilization returns ActiveJobs/MaxJobs. A contractor without a configured
// maximum is treated as fully loaded.
func (c Capacity) Utilization() float64 {
	if c.MaxJobs <= 0 {
		return 1
	}
	return float64(c.ActiveJobs) / float64(c.MaxJobs)
}

// AtLimit reports whether the contractor cannot take another job.
func (c Capacity) AtLimit() bool {
	return c.MaxJobs <= 0 || c.ActiveJobs >= c.MaxJobs
}

// Preferences are contractor-set dispatch filters.
type Preferences struct {
	MinJobValue   float64 `json:"min_job_value,omitempty"`
	InsuranceOnly bool    `json:"insurance_only,omitempty"`
}

// Contractor is a snapshot of a service provider taken at dispatch time. The
// external registry owns the roster; this subsystem only reads snapshots and
// reports capacity changes back.
type Contractor struct {
	ID           string        `json:"id"`
	Name         string        `json:"name,omitempty"`
	Services     []ServiceType `json:"services"`
	Area         ServiceArea   `json:"area"`
	Availability Availability  `json:"availability"`
	Performance  Performance   `json:"performance"`
	Capacity     Capacity      `json:"capacity"`
	Preferences  Preferences   `json:"preferences,omitempty"`
}

// OffersService reports whether the contractor performs the service type.
func (c Contractor) OffersService(s ServiceType) bool {
	for _, svc := range c.Services {
		if svc == s {
			return true
		}
	}
	return false
}

// AcceptsUrgency reports whether the contractor takes jobs at the urgency.
func (c Contractor) AcceptsUrgency(u UrgencyLevel) bool {
	switch u {
	case UrgencyEmergency:
		return c.Availability.Emergency
	case UrgencyUrgent:
		return c.Availability.Urgent
	case UrgencyStandard:
		return c.Availability.Standard
	default:
		return false
	}
}

// Validate checks the fields a contractor must carry to enter the roster.
func (c Contractor) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("model: contractor id is required")
	}
	if len(c.Services) == 0 {
		return fmt.Errorf("model: contractor %s offers no services", c.ID)
	}
	if c.Capacity.MaxJobs < 0 {
		return fmt.Errorf("model: contractor %s has negative capacity", c.ID)
	}
	return nil
}
