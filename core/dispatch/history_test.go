package dispatch

import (
	"testing"
	"time"

	"github.com/CleanExpo/Disaster-Recovery-sub021/core/model"
)

func TestNotificationHistoryCounts(t *testing.T) {
	clock := newFakeClock()
	h := newNotificationHistory(24*time.Hour, clock.Now)

	h.Record([]string{"a", "b"})
	h.Record([]string{"a"})

	if got := h.RecentNotifications("a"); got != 2 {
		t.Fatalf("a = %d, want 2", got)
	}
	if got := h.RecentNotifications("b"); got != 1 {
		t.Fatalf("b = %d, want 1", got)
	}
	if got := h.RecentNotifications("never"); got != 0 {
		t.Fatalf("never = %d, want 0", got)
	}
}

func TestNotificationHistoryWindow(t *testing.T) {
	clock := newFakeClock()
	h := newNotificationHistory(24*time.Hour, clock.Now)

	h.Record([]string{"a"})
	clock.Advance(12 * time.Hour)
	h.Record([]string{"a"})
	clock.Advance(13 * time.Hour)

	// The first notification is 25h old and has aged out.
	if got := h.RecentNotifications("a"); got != 1 {
		t.Fatalf("a = %d, want 1 inside the window", got)
	}

	clock.Advance(24 * time.Hour)
	if got := h.RecentNotifications("a"); got != 0 {
		t.Fatalf("a = %d, want 0 after full window", got)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	bad := DefaultConfig()
	bad.FanOut.Standard = 0
	bad.SetDefaults()
	if err := bad.Validate(); err != nil {
		t.Fatalf("SetDefaults should repair zero fan-out: %v", err)
	}

	bad = DefaultConfig()
	bad.Expiry.EmergencyMinutes = 120
	if err := bad.Validate(); err == nil {
		t.Fatal("emergency expiry equal to urgent accepted")
	}

	disabled := DefaultConfig()
	disabled.FanOut.MaxEscalations = -1
	disabled.SetDefaults()
	if disabled.FanOut.MaxEscalations != -1 {
		t.Fatalf("max escalations = %d, -1 must survive SetDefaults", disabled.FanOut.MaxEscalations)
	}
	if err := disabled.Validate(); err != nil {
		t.Fatalf("escalation disabled config invalid: %v", err)
	}

	bad = DefaultConfig()
	bad.FanOut.MaxEscalations = -2
	if err := bad.Validate(); err == nil {
		t.Fatal("max_escalations below -1 accepted")
	}
}

func TestExpiryDeadline(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		urgency string
		want    time.Duration
	}{
		{"emergency", 30 * time.Minute},
		{"urgent", 120 * time.Minute},
		{"standard", 120 * time.Minute},
	}
	for _, tt := range tests {
		u, err := model.ParseUrgency(tt.urgency)
		if err != nil {
			t.Fatal(err)
		}
		if got := cfg.Expiry.Deadline(u); got != tt.want {
			t.Errorf("%s deadline = %v, want %v", tt.urgency, got, tt.want)
		}
	}
}
