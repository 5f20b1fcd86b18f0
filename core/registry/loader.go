package registry

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/CleanExpo/Disaster-Recovery-sub021/core/model"
)

// LoadRoster reads a JSON roster file and returns a seeded MemoryRegistry.
// The file holds an array of contractors in the model.Contractor wire format.
func LoadRoster(path string) (*MemoryRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read roster: %w", err)
	}
	var contractors []model.Contractor
	if err := json.Unmarshal(data, &contractors); err != nil {
		return nil, fmt.Errorf("registry: parse roster: %w", err)
	}
	return NewMemoryRegistry(contractors...)
}
