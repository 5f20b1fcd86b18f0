package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/CleanExpo/Disaster-Recovery-sub021/core/model"
)

// Registry is the read contract over the contractor roster. The roster itself
// is owned by the CRM; the dispatch core only consumes snapshots and reports
// capacity changes back through Reserve/Release.
type Registry interface {
	// FindCandidates returns a snapshot of contractors offering the given
	// service type whose area covers the location. The snapshot is safe to
	// retain; later roster mutations are not reflected in it.
	FindCandidates(ctx context.Context, serviceType model.ServiceType, loc model.Location) ([]model.Contractor, error)
	// ReserveCapacity increments the contractor's active job count.
	ReserveCapacity(ctx context.Context, contractorID string) error
	// ReleaseCapacity decrements the contractor's active job count.
	ReleaseCapacity(ctx context.Context, contractorID string) error
}

// MemoryRegistry holds the roster in memory. It backs tests, the dispatch CLI
// and deployments where the roster is loaded from a fixture file.
type MemoryRegistry struct {
	mu          sync.RWMutex
	contractors map[string]model.Contractor
}

// NewMemoryRegistry creates a registry seeded with the given contractors.
func NewMemoryRegistry(contractors ...model.Contractor) (*MemoryRegistry, error) {
	r := &MemoryRegistry{contractors: make(map[string]model.Contractor, len(contractors))}
	for _, c := range contractors {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("registry: %w", err)
		}
		if _, ok := r.contractors[c.ID]; ok {
			return nil, fmt.Errorf("registry: duplicate contractor %s", c.ID)
		}
		r.contractors[c.ID] = c
	}
	return r, nil
}

// Upsert adds or replaces a contractor in the roster.
func (r *MemoryRegistry) Upsert(c model.Contractor) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	r.mu.Lock()
	r.contractors[c.ID] = c
	r.mu.Unlock()
	return nil
}

// FindCandidates implements Registry. Results are ordered by contractor ID so
// repeated calls on an unchanged roster return identical snapshots.
func (r *MemoryRegistry) FindCandidates(_ context.Context, serviceType model.ServiceType, loc model.Location) ([]model.Contractor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Contractor
	for _, c := range r.contractors {
		if c.OffersService(serviceType) && c.Area.Covers(loc) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ReserveCapacity implements Registry.
func (r *MemoryRegistry) ReserveCapacity(_ context.Context, contractorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contractors[contractorID]
	if !ok {
		return fmt.Errorf("registry: contractor %s not found", contractorID)
	}
	if c.Capacity.AtLimit() {
		return fmt.Errorf("registry: contractor %s is at capacity", contractorID)
	}
	c.Capacity.ActiveJobs++
	r.contractors[contractorID] = c
	return nil
}

// ReleaseCapacity implements Registry.
func (r *MemoryRegistry) ReleaseCapacity(_ context.Context, contractorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contractors[contractorID]
	if !ok {
		return fmt.Errorf("registry: contractor %s not found", contractorID)
	}
	if c.Capacity.ActiveJobs > 0 {
		c.Capacity.ActiveJobs--
	}
	r.contractors[contractorID] = c
	return nil
}
