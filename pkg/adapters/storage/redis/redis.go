package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/powers-protocol/powers/pkg/domain"
	"github.com/powers-protocol/powers/pkg/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	deploymentPrefix = "powers:deployment:"
	layoutPrefix     = "powers:layout:"
)

// Storage implements DeploymentStore and LayoutStore using Redis
type Storage struct {
	client        *redis.Client
	logger        *zap.Logger
	deploymentTTL time.Duration
	layoutTTL     time.Duration
}

// NewStorage creates a new Redis storage. A zero TTL keeps keys forever.
func NewStorage(client *redis.Client, deploymentTTL, layoutTTL time.Duration, logger *zap.Logger) *Storage {
	return &Storage{
		client:        client,
		logger:        logger,
		deploymentTTL: deploymentTTL,
		layoutTTL:     layoutTTL,
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

	if err := s.client.Set(ctx, deploymentKey(state.DeploymentID), data, s.deploymentTTL).Err(); err != nil {
		return fmt.Errorf("failed to save deployment: %w", err)
	}

	status := ""
	if state.Status != nil {
		status = string(state.Status.Status)
	}
	s.logger.Debug("deployment saved",
		zap.String("deployment_id", state.DeploymentID),
		zap.String("status", status))

	return nil
}

// GetDeployment retrieves a deployment record (ports.DeploymentStore interface)
func (s *Storage) GetDeployment(ctx context.Context, deploymentID string) (*domain.DeploymentState, error) {
	data, err := s.client.Get(ctx, deploymentKey(deploymentID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("deployment %s: %w", deploymentID, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get deployment: %w", err)
	}

	var state domain.DeploymentState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal deployment: %w", err)
	}

	return &state, nil
}

// DeleteDeployment removes a deployment record (ports.DeploymentStore interface)
func (s *Storage) DeleteDeployment(ctx context.Context, deploymentID string) error {
	if err := s.client.Del(ctx, deploymentKey(deploymentID)).Err(); err != nil {
		return fmt.Errorf("failed to delete deployment: %w", err)
	}

	s.logger.Debug("deployment deleted",
		zap.String("deployment_id", deploymentID))

	return nil
}

// ListDeployments returns all stored deployment IDs (ports.DeploymentStore interface)
func (s *Storage) ListDeployments(ctx context.Context) ([]string, error) {
	var cursor uint64
	var ids []string

	for {
		batch, next, err := s.client.Scan(ctx, cursor, deploymentPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		for _, key := range batch {
			if len(key) > len(deploymentPrefix) {
				ids = append(ids, key[len(deploymentPrefix):])
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return ids, nil
}

// GetLayout retrieves the cached layout of a contract (ports.LayoutStore interface)
func (s *Storage) GetLayout(ctx context.Context, address string) (*domain.LayoutRecord, error) {
	data, err := s.client.Get(ctx, layoutKey(address)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("layout %s: %w", address, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get layout: %w", err)
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

	if err := s.client.Set(ctx, layoutKey(record.Address), data, s.layoutTTL).Err(); err != nil {
		return fmt.Errorf("failed to save layout: %w", err)
	}

	s.logger.Debug("layout saved",
		zap.String("address", record.Address),
		zap.Int("nodes", len(record.Nodes)))

	return nil
}

// DeleteLayout removes the cached layout of a contract (ports.LayoutStore interface)
func (s *Storage) DeleteLayout(ctx context.Context, address string) error {
	if err := s.client.Del(ctx, layoutKey(address)).Err(); err != nil {
		return fmt.Errorf("failed to delete layout: %w", err)
	}
	return nil
}

// deploymentKey returns the Redis key for a deployment record
func deploymentKey(deploymentID string) string {
	return deploymentPrefix + deploymentID
}

// layoutKey returns the Redis key for a contract layout
func layoutKey(address string) string {
	return layoutPrefix + strings.ToLower(address)
}
