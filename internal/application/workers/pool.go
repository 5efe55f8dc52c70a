package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/powers-protocol/powers/pkg/domain"
	"github.com/powers-protocol/powers/pkg/ports"
	"go.uber.org/zap"
)

// Executor runs one deployment to completion.
type Executor interface {
	Execute(ctx context.Context, deploymentID string) error
}

// Pool manages a pool of worker goroutines
type Pool struct {
	size     int
	eventBus ports.EventBus
	executor Executor
	metrics  ports.MetricsCollector
	logger   *zap.Logger
	health   *HealthMonitor

	workers []*worker
	jobs    chan string
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// worker represents a single worker goroutine
type worker struct {
	id     string
	pool   *Pool
	mu     sync.RWMutex
	status WorkerStatus
	// deployment being executed while busy, and when it was picked up
	deployment string
	since      time.Time
}

// WorkerStatus represents worker status
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// NewPool creates a new worker pool
func NewPool(
	size int,
	eventBus ports.EventBus,
	executor Executor,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	healthCheckInterval time.Duration,
) *Pool {
	if size < 1 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		size:     size,
		eventBus: eventBus,
		executor: executor,
		metrics:  metrics,
		logger:   logger,
		workers:  make([]*worker, size),
		jobs:     make(chan string),
		ctx:      ctx,
		cancel:   cancel,
	}
	for i := range pool.workers {
		pool.workers[i] = &worker{
			id:     fmt.Sprintf("worker-%d", i),
			pool:   pool,
			status: WorkerStatusStopped,
		}
	}

	pool.health = NewHealthMonitor(pool, healthCheckInterval, logger)

	return pool
}

// Start subscribes to deployment requests and starts the workers.
func (p *Pool) Start() error {
	p.logger.Info("starting worker pool", zap.Int("size", p.size))

	for _, w := range p.workers {
		w.setStatus(WorkerStatusIdle)
		p.wg.Add(1)
		go w.run(p.ctx)
	}

	if err := p.eventBus.Consume(p.ctx, domain.TopicRequests, p.dispatch); err != nil {
		p.cancel()
		p.wg.Wait()
		return fmt.Errorf("failed to subscribe to events: %w", err)
	}

	p.health.Start()

	p.logger.Info("worker pool started", zap.Int("workers", p.size))
	return nil
}

// dispatch hands requested deployments to the next free worker. It blocks
// while every worker is busy, which keeps unacknowledged events on the bus.
func (p *Pool) dispatch(ctx context.Context, event domain.Event) error {
	if event.Type != domain.EventTypeDeploymentRequested {
		return nil
	}
	if event.DeploymentID == "" {
		p.logger.Error("deployment event without deployment id",
			zap.String("event_id", event.ID))
		return nil
	}

	select {
	case p.jobs <- event.DeploymentID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Shutdown gracefully shuts down the worker pool
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down worker pool")

	p.health.Stop()
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout")
	}
}

// GetStatus returns the status of all workers
func (p *Pool) GetStatus() map[string]WorkerStatus {
	status := make(map[string]WorkerStatus, len(p.workers))
	for _, w := range p.workers {
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

// assignments lists the deployment each busy worker is running.
func (p *Pool) assignments() []Assignment {
	var out []Assignment
	for _, w := range p.workers {
		w.mu.RLock()
		if w.status == WorkerStatusBusy {
			out = append(out, Assignment{WorkerID: w.id, DeploymentID: w.deployment, Since: w.since})
		}
		w.mu.RUnlock()
	}
	return out
}

// Health returns the pool's health monitor.
func (p *Pool) Health() *HealthMonitor {
	return p.health
}

// run is the main worker loop
func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()
	defer w.setStatus(WorkerStatusStopped)

	w.pool.logger.Debug("worker started", zap.String("worker_id", w.id))

	for {
		select {
		case <-ctx.Done():
			w.pool.logger.Debug("worker stopped", zap.String("worker_id", w.id))
			return
		case id := <-w.pool.jobs:
			w.execute(ctx, id)
		}
	}
}

func (w *worker) execute(ctx context.Context, deploymentID string) {
	w.mu.Lock()
	w.status = WorkerStatusBusy
	w.deployment = deploymentID
	w.since = time.Now()
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.status = WorkerStatusIdle
		w.deployment = ""
		w.mu.Unlock()
	}()

	w.pool.logger.Info("executing deployment",
		zap.String("worker_id", w.id),
		zap.String("deployment_id", deploymentID))

	start := time.Now()
	if err := w.pool.executor.Execute(ctx, deploymentID); err != nil {
		w.pool.logger.Error("deployment execution failed",
			zap.String("worker_id", w.id),
			zap.String("deployment_id", deploymentID),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return
	}

	w.pool.logger.Info("deployment execution completed",
		zap.String("worker_id", w.id),
		zap.String("deployment_id", deploymentID),
		zap.Duration("duration", time.Since(start)))
}

func (w *worker) setStatus(s WorkerStatus) {
	w.mu.Lock()
	w.status = s
	w.mu.Unlock()
}
