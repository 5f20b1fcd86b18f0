package dispatch

import (
	"sync"
	"time"
)

// notificationHistory tracks recent invitations per contractor for the
// fairness penalty. Entries age out after the window so a busy week does not
// penalize a contractor forever.
type notificationHistory struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	sent   map[string][]time.Time
}

func newNotificationHistory(window time.Duration, now func() time.Time) *notificationHistory {
	if now == nil {
		now = time.Now
	}
	return &notificationHistory{
		window: window,
		now:    now,
		sent:   make(map[string][]time.Time),
	}
}

// Record notes that the contractors were invited now.
func (h *notificationHistory) Record(contractorIDs []string) {
	now := h.now()
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range contractorIDs {
		h.sent[id] = append(h.prune(h.sent[id], now), now)
	}
}

// RecentNotifications implements FairnessHistory.
func (h *notificationHistory) RecentNotifications(contractorID string) int {
	now := h.now()
	h.mu.Lock()
	defer h.mu.Unlock()
	pruned := h.prune(h.sent[contractorID], now)
	if len(pruned) == 0 {
		delete(h.sent, contractorID)
	} else {
		h.sent[contractorID] = pruned
	}
	return len(pruned)
}

func (h *notificationHistory) prune(ts []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-h.window)
	i := 0
	for ; i < len(ts); i++ {
		if ts[i].After(cutoff) {
			break
		}
	}
	return ts[i:]
}
