package workers

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultStallAfter is how long a worker may hold one deployment before the
// pool reports it as stalled.
const DefaultStallAfter = 30 * time.Minute

// HealthMonitor periodically samples the pool, records worker gauges and
// flags deployments that have held a worker for too long.
type HealthMonitor struct {
	pool     *Pool
	interval time.Duration
	logger   *zap.Logger

	mu         sync.Mutex
	stallAfter time.Duration
	running    bool
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// Assignment is a deployment currently held by a worker.
type Assignment struct {
	WorkerID     string    `json:"workerId"`
	DeploymentID string    `json:"deploymentId"`
	Since        time.Time `json:"since"`
	Stalled      bool      `json:"stalled,omitempty"`
}

// HealthStatus is a point-in-time view of the pool.
type HealthStatus struct {
	TotalWorkers   int          `json:"totalWorkers"`
	IdleWorkers    int          `json:"idleWorkers"`
	BusyWorkers    int          `json:"busyWorkers"`
	StoppedWorkers int          `json:"stoppedWorkers"`
	Running        []Assignment `json:"running,omitempty"`
	Stalled        int          `json:"stalled"`
	Healthy        bool         `json:"healthy"`
	Timestamp      time.Time    `json:"timestamp"`
}

func NewHealthMonitor(pool *Pool, interval time.Duration, logger *zap.Logger) *HealthMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &HealthMonitor{
		pool:       pool,
		interval:   interval,
		logger:     logger,
		stallAfter: DefaultStallAfter,
	}
}

// SetStallAfter changes the stall threshold. Non-positive values disable
// stall detection.
func (h *HealthMonitor) SetStallAfter(d time.Duration) {
	h.mu.Lock()
	h.stallAfter = d
	h.mu.Unlock()
}

// Start launches the sampling loop. Calling it twice is a no-op.
func (h *HealthMonitor) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	h.stopCh = make(chan struct{})
	h.doneCh = make(chan struct{})

	go h.run(h.stopCh, h.doneCh)
}

// Stop stops the sampling loop and waits for it to exit.
func (h *HealthMonitor) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	stop, done := h.stopCh, h.doneCh
	h.mu.Unlock()

	close(stop)
	<-done
}

func (h *HealthMonitor) run(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			h.sample()
		}
	}
}

func (h *HealthMonitor) sample() {
	status := h.GetStatus()

	h.logger.Debug("worker pool health check",
		zap.Int("idle", status.IdleWorkers),
		zap.Int("busy", status.BusyWorkers),
		zap.Int("stopped", status.StoppedWorkers),
		zap.Int("stalled", status.Stalled))

	if h.pool.metrics != nil {
		h.pool.metrics.RecordWorkerPoolStatus(status.IdleWorkers, status.BusyWorkers, status.StoppedWorkers)
	}

	for _, a := range status.Running {
		if a.Stalled {
			h.logger.Warn("deployment is holding a worker past the stall threshold",
				zap.String("worker_id", a.WorkerID),
				zap.String("deployment_id", a.DeploymentID),
				zap.Duration("running", status.Timestamp.Sub(a.Since)))
		}
	}
	if status.StoppedWorkers > 0 {
		h.logger.Warn("worker pool has stopped workers",
			zap.Int("stopped", status.StoppedWorkers),
			zap.Int("total", status.TotalWorkers))
	}
	if status.TotalWorkers > 0 && status.BusyWorkers == status.TotalWorkers {
		h.logger.Info("all workers busy, new deployments wait on the bus",
			zap.Int("total", status.TotalWorkers))
	}
}

// GetStatus samples the pool. It is healthy while every worker is running
// and no deployment has stalled; busy workers are healthy.
func (h *HealthMonitor) GetStatus() *HealthStatus {
	now := time.Now()
	h.mu.Lock()
	stallAfter := h.stallAfter
	h.mu.Unlock()

	status := &HealthStatus{Timestamp: now}
	for _, s := range h.pool.GetStatus() {
		status.TotalWorkers++
		switch s {
		case WorkerStatusIdle:
			status.IdleWorkers++
		case WorkerStatusBusy:
			status.BusyWorkers++
		case WorkerStatusStopped:
			status.StoppedWorkers++
		}
	}

	status.Running = h.pool.assignments()
	for i := range status.Running {
		if stallAfter > 0 && now.Sub(status.Running[i].Since) > stallAfter {
			status.Running[i].Stalled = true
			status.Stalled++
		}
	}

	status.Healthy = status.TotalWorkers > 0 && status.StoppedWorkers == 0 && status.Stalled == 0
	return status
}

// IsHealthy reports GetStatus().Healthy.
func (h *HealthMonitor) IsHealthy() bool {
	return h.GetStatus().Healthy
}
