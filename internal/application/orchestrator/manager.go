package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/powers-protocol/powers/pkg/domain"
	"github.com/powers-protocol/powers/pkg/ports"
	"go.uber.org/zap"
)

// Manager accepts deployment requests and tracks them until they finish.
// The transactions themselves are sent by an Executor reacting to the
// requested event.
type Manager struct {
	eventBus   ports.EventBus
	storage    ports.DeploymentStore
	staticData ports.StaticDataSource
	metrics    ports.MetricsCollector
	validator  *Validator
	logger     *zap.Logger

	// Track pending deployments
	deployments sync.Map // map[string]*deploymentContext

	// queueTimeout bounds how long a deployment may wait for an executor.
	queueTimeout    time.Duration
	monitorInterval time.Duration
}

// deploymentContext holds state for a single tracked deployment
type deploymentContext struct {
	deploymentID string
	submittedAt  time.Time
	cancelFunc   context.CancelFunc
}

// NewManager creates a new deployment manager
func NewManager(
	eventBus ports.EventBus,
	storage ports.DeploymentStore,
	staticData ports.StaticDataSource,
	metrics ports.MetricsCollector,
	validator *Validator,
	logger *zap.Logger,
	queueTimeout time.Duration,
) *Manager {
	if validator == nil {
		validator = NewValidator()
	}
	return &Manager{
		eventBus:        eventBus,
		storage:         storage,
		staticData:      staticData,
		metrics:         metrics,
		validator:       validator,
		logger:          logger,
		queueTimeout:    queueTimeout,
		monitorInterval: 10 * time.Second,
	}
}

// Submit validates a deployment request against the chain's static data and
// queues it. No transaction is sent before validation passes.
func (m *Manager) Submit(ctx context.Context, req domain.DeploymentRequest) (string, error) {
	static, err := m.staticData.Fetch(ctx, req.ChainID)
	if err != nil {
		m.metrics.RecordDeploymentSubmitted(string(domain.StepStatusError))
		return "", &MissingConfigError{Kind: "static data", Name: fmt.Sprintf("chain %d", req.ChainID), Err: err}
	}

	plan, err := m.validator.Validate(req, static)
	if err != nil {
		m.logger.Error("deployment validation failed",
			zap.String("organization_id", req.OrganizationID),
			zap.Uint64("chain_id", req.ChainID),
			zap.Error(err))
		m.metrics.RecordDeploymentSubmitted(string(domain.StepStatusError))
		return "", fmt.Errorf("validation failed: %w", err)
	}

	deploymentID := uuid.New().String()

	state := &domain.DeploymentState{
		DeploymentID: deploymentID,
		Request:      req,
		StaticData:   *static,
		Status:       NewDeployStatus(plan),
		SubmittedAt:  time.Now(),
	}

	if err := m.storage.SaveDeployment(ctx, state); err != nil {
		m.logger.Error("failed to save initial state",
			zap.String("deployment_id", deploymentID),
			zap.Error(err))
		return "", fmt.Errorf("failed to save state: %w", err)
	}

	data := map[string]interface{}{
		"organizationId": req.OrganizationID,
		"chainId":        req.ChainID,
	}
	if err := publishEvent(ctx, m.eventBus, m.logger, domain.TopicRequests, domain.EventTypeDeploymentRequested, deploymentID, "", data); err != nil {
		return "", fmt.Errorf("failed to publish event: %w", err)
	}
	_ = publishEvent(ctx, m.eventBus, m.logger, domain.TopicDeployments, domain.EventTypeDeploymentRequested, deploymentID, "", data)

	monitorCtx, cancel := context.WithTimeout(context.Background(), m.queueTimeout)
	m.deployments.Store(deploymentID, &deploymentContext{
		deploymentID: deploymentID,
		submittedAt:  state.SubmittedAt,
		cancelFunc:   cancel,
	})

	m.metrics.RecordDeploymentSubmitted(string(domain.StepStatusPending))
	m.logger.Info("deployment submitted",
		zap.String("deployment_id", deploymentID),
		zap.String("organization_id", req.OrganizationID),
		zap.Uint64("chain_id", req.ChainID))

	go m.monitorDeployment(monitorCtx, deploymentID)

	return deploymentID, nil
}

// GetStatus retrieves the current state of a deployment
func (m *Manager) GetStatus(ctx context.Context, deploymentID string) (*domain.DeploymentState, error) {
	state, err := m.storage.GetDeployment(ctx, deploymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get state: %w", err)
	}
	return state, nil
}

// List returns every stored deployment, most recent first.
func (m *Manager) List(ctx context.Context) ([]*domain.DeploymentState, error) {
	ids, err := m.storage.ListDeployments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}

	states := make([]*domain.DeploymentState, 0, len(ids))
	for _, id := range ids {
		state, err := m.storage.GetDeployment(ctx, id)
		if errors.Is(err, ports.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get state %s: %w", id, err)
		}
		states = append(states, state)
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].SubmittedAt.After(states[j].SubmittedAt)
	})
	return states, nil
}

// Active returns the number of deployments still being tracked.
func (m *Manager) Active() int {
	n := 0
	m.deployments.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// monitorDeployment stops tracking a deployment once an executor picked it
// up, and fails it if none did before the queue timeout.
func (m *Manager) monitorDeployment(ctx context.Context, deploymentID string) {
	ticker := time.NewTicker(m.monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				m.handleTimeout(deploymentID)
			}
			m.deployments.Delete(deploymentID)
			return

		case <-ticker.C:
			state, err := m.storage.GetDeployment(context.Background(), deploymentID)
			if err != nil {
				m.logger.Error("failed to get state during monitoring",
					zap.String("deployment_id", deploymentID),
					zap.Error(err))
				continue
			}
			if state.StartedAt != nil || state.Terminal() {
				if val, ok := m.deployments.LoadAndDelete(deploymentID); ok {
					val.(*deploymentContext).cancelFunc()
				}
				return
			}
		}
	}
}

// handleTimeout fails a deployment no executor started in time.
func (m *Manager) handleTimeout(deploymentID string) {
	ctx := context.Background()

	state, err := m.storage.GetDeployment(ctx, deploymentID)
	if err != nil {
		m.logger.Error("failed to get state during timeout",
			zap.String("deployment_id", deploymentID),
			zap.Error(err))
		return
	}
	if state.StartedAt != nil || state.Terminal() {
		return
	}

	m.logger.Warn("deployment was not picked up in time",
		zap.String("deployment_id", deploymentID))

	now := time.Now()
	status := state.Status.Clone()
	if status == nil {
		status = &domain.DeployStatus{}
	}
	status.Status = domain.StepStatusError
	status.Error = "deployment timeout"
	state.Status = status
	state.CompletedAt = &now

	if err := m.storage.SaveDeployment(ctx, state); err != nil {
		m.logger.Error("failed to save state during timeout",
			zap.String("deployment_id", deploymentID),
			zap.Error(err))
	}

	_ = publishEvent(ctx, m.eventBus, m.logger, domain.TopicDeployments, domain.EventTypeDeploymentFailed, deploymentID, "", statusData(status))
	m.metrics.RecordDeploymentCompleted(string(domain.StepStatusError), now.Sub(state.SubmittedAt))
}

// Shutdown stops tracking every deployment.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down deployment manager")

	m.deployments.Range(func(key, value interface{}) bool {
		value.(*deploymentContext).cancelFunc()
		m.deployments.Delete(key)
		return true
	})

	m.logger.Info("deployment manager shut down complete")
	return nil
}
