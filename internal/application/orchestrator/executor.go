package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/powers-protocol/powers/pkg/domain"
	"github.com/powers-protocol/powers/pkg/ports"
	"go.uber.org/zap"
)

// ExecutorConfig holds executor dependencies and settings.
type ExecutorConfig struct {
	Storage       ports.DeploymentStore
	EventBus      ports.EventBus
	Clients       ports.ChainClientFactory
	Validator     *Validator
	Metrics       ports.MetricsCollector
	Logger        *zap.Logger
	IndexingDelay time.Duration
	// Timeout bounds one complete sequence.
	Timeout time.Duration
}

// Executor runs submitted deployments. It is what workers call.
type Executor struct {
	storage       ports.DeploymentStore
	eventBus      ports.EventBus
	clients       ports.ChainClientFactory
	validator     *Validator
	metrics       ports.MetricsCollector
	logger        *zap.Logger
	indexingDelay time.Duration
	timeout       time.Duration
}

// NewExecutor creates a new deployment executor
func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.Validator == nil {
		cfg.Validator = NewValidator()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	return &Executor{
		storage:       cfg.Storage,
		eventBus:      cfg.EventBus,
		clients:       cfg.Clients,
		validator:     cfg.Validator,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
		indexingDelay: cfg.IndexingDelay,
		timeout:       cfg.Timeout,
	}
}

// Execute runs the deployment with the given ID. Deployments that already
// started are skipped, so redelivered events never send transactions twice.
// Every status transition is persisted and published.
func (e *Executor) Execute(ctx context.Context, deploymentID string) error {
	state, err := e.storage.GetDeployment(ctx, deploymentID)
	if err != nil {
		return fmt.Errorf("failed to get deployment: %w", err)
	}
	if state.StartedAt != nil || state.Terminal() {
		e.logger.Debug("deployment already started, skipping",
			zap.String("deployment_id", deploymentID))
		return nil
	}

	// persistence outlives the run deadline
	persistCtx := context.WithoutCancel(ctx)

	now := time.Now()
	state.StartedAt = &now

	plan, err := e.validator.Validate(state.Request, &state.StaticData)
	if err != nil {
		return e.fail(persistCtx, state, err)
	}
	client, err := e.clients.Client(ctx, state.Request.ChainID)
	if err != nil {
		return e.fail(persistCtx, state, fmt.Errorf("failed to connect to chain %d: %w", state.Request.ChainID, err))
	}

	if err := e.storage.SaveDeployment(persistCtx, state); err != nil {
		return fmt.Errorf("failed to save deployment: %w", err)
	}
	_ = publishEvent(persistCtx, e.eventBus, e.logger, domain.TopicDeployments, domain.EventTypeDeploymentStarted, deploymentID, "", nil)

	e.logger.Info("deployment started",
		zap.String("deployment_id", deploymentID),
		zap.String("organization_id", state.Request.OrganizationID),
		zap.Uint64("chain_id", state.Request.ChainID))

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	seq := NewSequencer(client, SequencerConfig{
		IndexingDelay: e.indexingDelay,
		Metrics:       e.metrics,
		Logger:        e.logger.With(zap.String("deployment_id", deploymentID)),
	})
	result, runErr := seq.Run(runCtx, plan, func(p Progress) {
		state.Status = p.Status
		state.Receipts = p.Receipts
		if err := e.storage.SaveDeployment(persistCtx, state); err != nil {
			e.logger.Error("failed to save deployment progress",
				zap.String("deployment_id", deploymentID),
				zap.Error(err))
		}
		if p.Step != "" {
			data := statusData(p.Status)
			data["stepStatus"] = string(p.Status.StepStatus(p.Step))
			_ = publishEvent(persistCtx, e.eventBus, e.logger, domain.TopicSteps, domain.EventTypeStepChanged, deploymentID, p.Step, data)
		}
	})
	if result == nil {
		return e.fail(persistCtx, state, runErr)
	}

	completed := time.Now()
	state.Status = result.Status
	state.Receipts = result.Receipts
	state.CompletedAt = &completed
	if err := e.storage.SaveDeployment(persistCtx, state); err != nil {
		e.logger.Error("failed to save final deployment state",
			zap.String("deployment_id", deploymentID),
			zap.Error(err))
	}

	eventType := domain.EventTypeDeploymentSucceeded
	if runErr != nil {
		eventType = domain.EventTypeDeploymentFailed
	}
	_ = publishEvent(persistCtx, e.eventBus, e.logger, domain.TopicDeployments, eventType, deploymentID, "", statusData(state.Status))

	if e.metrics != nil {
		e.metrics.RecordDeploymentCompleted(string(state.Status.Status), completed.Sub(*state.StartedAt))
	}
	return runErr
}

// fail marks a deployment failed before or outside the sequence.
func (e *Executor) fail(ctx context.Context, state *domain.DeploymentState, cause error) error {
	now := time.Now()
	if state.Status == nil {
		state.Status = &domain.DeployStatus{}
	}
	state.Status = state.Status.Clone()
	state.Status.Status = domain.StepStatusError
	state.Status.Error = cause.Error()
	state.CompletedAt = &now

	if err := e.storage.SaveDeployment(ctx, state); err != nil {
		e.logger.Error("failed to save failed deployment",
			zap.String("deployment_id", state.DeploymentID),
			zap.Error(err))
	}
	_ = publishEvent(ctx, e.eventBus, e.logger, domain.TopicDeployments, domain.EventTypeDeploymentFailed, state.DeploymentID, "", statusData(state.Status))

	if e.metrics != nil {
		e.metrics.RecordDeploymentCompleted(string(domain.StepStatusError), 0)
	}
	e.logger.Error("deployment failed",
		zap.String("deployment_id", state.DeploymentID),
		zap.Error(cause))
	return cause
}
