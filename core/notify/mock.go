package notify

import (
	"context"
	"fmt"
	"sync"
)

// MockNotifier records invitations in memory. Used in tests and by the
// dispatch CLI.
type MockNotifier struct {
	mu      sync.Mutex
	sent    map[string][]Invitation
	FailIDs map[string]bool
	Delay   func(contractorID string)
}

// NewMockNotifier creates an empty MockNotifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{
		sent:    make(map[string][]Invitation),
		FailIDs: make(map[string]bool),
	}
}

// Send implements Notifier. It fails for contractors listed in FailIDs.
func (m *MockNotifier) Send(_ context.Context, contractorID string, inv Invitation) error {
	if m.Delay != nil {
		m.Delay(contractorID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[contractorID] {
		return fmt.Errorf("send to %s failed", contractorID)
	}
	m.sent[contractorID] = append(m.sent[contractorID], inv)
	return nil
}

// Sent returns the invitations delivered to the contractor.
func (m *MockNotifier) Sent(contractorID string) []Invitation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Invitation(nil), m.sent[contractorID]...)
}

// SentCount returns the total number of delivered invitations.
func (m *MockNotifier) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, invs := range m.sent {
		n += len(invs)
	}
	return n
}
