package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/powers-protocol/powers/pkg/domain"
	"github.com/powers-protocol/powers/pkg/ports"
)

// Storage implements DeploymentStore and LayoutStore using in-memory maps.
// Records are copied on the way in and out so callers never share state
// with the store.
type Storage struct {
	deployments map[string][]byte
	layouts     map[string][]byte
	mu          sync.RWMutex
}

// NewStorage creates a new in-memory storage
func NewStorage() *Storage {
	return &Storage{
		deployments: make(map[string][]byte),
		layouts:     make(map[string][]byte),
	}
}

// SaveDeployment persists a deployment record (ports.DeploymentStore interface)
func (s *Storage) SaveDeployment(ctx context.Context, state *domain.DeploymentState) error {
	if state == nil || state.DeploymentID == "" {
		return fmt.Errorf("deployment ID is required")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal deployment: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.deployments[state.DeploymentID] = data
	return nil
}

// GetDeployment retrieves a deployment record (ports.DeploymentStore interface)
func (s *Storage) GetDeployment(ctx context.Context, deploymentID string) (*domain.DeploymentState, error) {
	s.mu.RLock()
	data, ok := s.deployments[deploymentID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("deployment %s: %w", deploymentID, ports.ErrNotFound)
	}

	var state domain.DeploymentState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal deployment: %w", err)
	}
	return &state, nil
}

// DeleteDeployment removes a deployment record (ports.DeploymentStore interface)
func (s *Storage) DeleteDeployment(ctx context.Context, deploymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.deployments, deploymentID)
	return nil
}

// ListDeployments returns all stored deployment IDs in sorted order
// (ports.DeploymentStore interface)
func (s *Storage) ListDeployments(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.deployments))
	for id := range s.deployments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// GetLayout retrieves the cached layout of a contract (ports.LayoutStore interface)
func (s *Storage) GetLayout(ctx context.Context, address string) (*domain.LayoutRecord, error) {
	s.mu.RLock()
	data, ok := s.layouts[layoutKey(address)]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("layout %s: %w", address, ports.ErrNotFound)
	}

	var record domain.LayoutRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal layout: %w", err)
	}
	return &record, nil
}

// SaveLayout replaces the cached layout of a contract (ports.LayoutStore interface)
func (s *Storage) SaveLayout(ctx context.Context, record *domain.LayoutRecord) error {
	if record == nil || record.Address == "" {
		return fmt.Errorf("layout address is required")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal layout: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.layouts[layoutKey(record.Address)] = data
	return nil
}

// DeleteLayout removes the cached layout of a contract (ports.LayoutStore interface)
func (s *Storage) DeleteLayout(ctx context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.layouts, layoutKey(address))
	return nil
}

func layoutKey(address string) string {
	return strings.ToLower(address)
}
