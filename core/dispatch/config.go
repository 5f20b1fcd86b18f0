package dispatch

import (
	"fmt"
	"time"

	"github.com/CleanExpo/Disaster-Recovery-sub021/core/model"
)

// FanOutConfig controls how many contractors are invited per round.
type FanOutConfig struct {
	Emergency int `json:"emergency"`
	Urgent    int `json:"urgent"`
	Standard  int `json:"standard"`
	// EscalationExtra widens the fan-out of an escalation round relative to
	// the first round.
	EscalationExtra int `json:"escalation_extra"`
	// MaxEscalations bounds how many escalation rounds may run before the
	// job is surfaced to operations. -1 disables escalation entirely, so an
	// expired round goes straight to exhausted; 0 means unset and takes the
	// default.
	MaxEscalations int `json:"max_escalations"`
}

// Size returns the fan-out size for the given urgency.
func (c FanOutConfig) Size(u model.UrgencyLevel) int {
	switch u {
	case model.UrgencyEmergency:
		return c.Emergency
	case model.UrgencyUrgent:
		return c.Urgent
	default:
		return c.Standard
	}
}

// ExpiryConfig controls how long contractors have to respond to an
// invitation. Emergency must be strictly shorter than the other levels.
type ExpiryConfig struct {
	EmergencyMinutes int `json:"emergency_minutes"`
	UrgentMinutes    int `json:"urgent_minutes"`
	StandardMinutes  int `json:"standard_minutes"`
	// SweepSeconds is the interval of the periodic expiry sweep backing up
	// the in-process timers.
	SweepSeconds int `json:"sweep_seconds"`
}

// Deadline returns the response window for the given urgency.
func (c ExpiryConfig) Deadline(u model.UrgencyLevel) time.Duration {
	switch u {
	case model.UrgencyEmergency:
		return time.Duration(c.EmergencyMinutes) * time.Minute
	case model.UrgencyUrgent:
		return time.Duration(c.UrgentMinutes) * time.Minute
	default:
		return time.Duration(c.StandardMinutes) * time.Minute
	}
}

// ScoreWeights names every constant of the scoring formula so policy can be
// tuned without touching the algorithm.
type ScoreWeights struct {
	ServiceMatchBase float64 `json:"service_match_base"`

	PostcodeBonus float64 `json:"postcode_bonus"`
	SuburbBonus   float64 `json:"suburb_bonus"`
	StateBonus    float64 `json:"state_bonus"`

	EmergencyBonus float64 `json:"emergency_bonus"`
	UrgentBonus    float64 `json:"urgent_bonus"`
	StandardBonus  float64 `json:"standard_bonus"`

	KPIFactor        float64 `json:"kpi_factor"`
	RatingFactor     float64 `json:"rating_factor"`
	AcceptanceFactor float64 `json:"acceptance_factor"`

	FastResponseBonus      float64 `json:"fast_response_bonus"`
	ModerateResponseBonus  float64 `json:"moderate_response_bonus"`
	FastResponseMinutes    int     `json:"fast_response_minutes"`
	ModerateResponseMinute int     `json:"moderate_response_minutes"`

	LowUtilizationBonus float64 `json:"low_utilization_bonus"`
	MidUtilizationBonus float64 `json:"mid_utilization_bonus"`
	LowUtilizationCap   float64 `json:"low_utilization_cap"`
	MidUtilizationCap   float64 `json:"mid_utilization_cap"`

	InsuranceBonus   float64 `json:"insurance_bonus"`
	InsurancePenalty float64 `json:"insurance_penalty"`
	LowValuePenalty  float64 `json:"low_value_penalty"`

	// FairnessPenalty is subtracted per recent notification so the same
	// contractors do not absorb every job. Zero disables fairness.
	FairnessPenalty float64 `json:"fairness_penalty"`
}

// Config defines dispatch policy settings.
type Config struct {
	FanOut             FanOutConfig `json:"fan_out"`
	Expiry             ExpiryConfig `json:"expiry"`
	Weights            ScoreWeights `json:"weights"`
	SendTimeoutSeconds int          `json:"send_timeout_seconds"`
	// AcceptBaseURL prefixes the accept link embedded in invitations.
	AcceptBaseURL string `json:"accept_base_url"`
}

// DefaultConfig returns the production policy defaults.
func DefaultConfig() Config {
	return Config{
		FanOut: FanOutConfig{
			Emergency:       5,
			Urgent:          4,
			Standard:        3,
			EscalationExtra: 2,
			MaxEscalations:  1,
		},
		Expiry: ExpiryConfig{
			EmergencyMinutes: 30,
			UrgentMinutes:    120,
			StandardMinutes:  120,
			SweepSeconds:     15,
		},
		Weights: ScoreWeights{
			ServiceMatchBase:       100,
			PostcodeBonus:          50,
			SuburbBonus:            40,
			StateBonus:             20,
			EmergencyBonus:         30,
			UrgentBonus:            20,
			StandardBonus:          10,
			KPIFactor:              0.5,
			RatingFactor:           10,
			AcceptanceFactor:       20,
			FastResponseBonus:      25,
			ModerateResponseBonus:  15,
			FastResponseMinutes:    30,
			ModerateResponseMinute: 60,
			LowUtilizationBonus:    20,
			MidUtilizationBonus:    10,
			LowUtilizationCap:      0.5,
			MidUtilizationCap:      0.8,
			InsuranceBonus:         15,
			InsurancePenalty:       30,
			LowValuePenalty:        20,
			FairnessPenalty:        2,
		},
		SendTimeoutSeconds: 10,
		AcceptBaseURL:      "https://portal.example.com/jobs",
	}
}

// SetDefaults fills zero values with the production defaults.
func (c *Config) SetDefaults() {
	def := DefaultConfig()
	if c.FanOut.Emergency == 0 {
		c.FanOut.Emergency = def.FanOut.Emergency
	}
	if c.FanOut.Urgent == 0 {
		c.FanOut.Urgent = def.FanOut.Urgent
	}
	if c.FanOut.Standard == 0 {
		c.FanOut.Standard = def.FanOut.Standard
	}
	if c.FanOut.EscalationExtra == 0 {
		c.FanOut.EscalationExtra = def.FanOut.EscalationExtra
	}
	if c.FanOut.MaxEscalations == 0 {
		c.FanOut.MaxEscalations = def.FanOut.MaxEscalations
	}
	if c.Expiry.EmergencyMinutes == 0 {
		c.Expiry.EmergencyMinutes = def.Expiry.EmergencyMinutes
	}
	if c.Expiry.UrgentMinutes == 0 {
		c.Expiry.UrgentMinutes = def.Expiry.UrgentMinutes
	}
	if c.Expiry.StandardMinutes == 0 {
		c.Expiry.StandardMinutes = def.Expiry.StandardMinutes
	}
	if c.Expiry.SweepSeconds == 0 {
		c.Expiry.SweepSeconds = def.Expiry.SweepSeconds
	}
	if c.Weights == (ScoreWeights{}) {
		c.Weights = def.Weights
	}
	if c.SendTimeoutSeconds == 0 {
		c.SendTimeoutSeconds = def.SendTimeoutSeconds
	}
	if c.AcceptBaseURL == "" {
		c.AcceptBaseURL = def.AcceptBaseURL
	}
}

// Validate checks the policy invariants.
func (c Config) Validate() error {
	if c.FanOut.Emergency <= 0 || c.FanOut.Urgent <= 0 || c.FanOut.Standard <= 0 {
		return fmt.Errorf("fan-out sizes must be positive")
	}
	if c.Expiry.EmergencyMinutes <= 0 {
		return fmt.Errorf("emergency expiry must be positive")
	}
	if c.Expiry.EmergencyMinutes >= c.Expiry.UrgentMinutes || c.Expiry.EmergencyMinutes >= c.Expiry.StandardMinutes {
		return fmt.Errorf("emergency expiry must be strictly shorter than urgent and standard")
	}
	if c.FanOut.MaxEscalations < -1 {
		return fmt.Errorf("max_escalations must be -1 (disabled) or above")
	}
	return nil
}
