package ports

import "time"

// MetricsCollector records deployment and layout metrics.
type MetricsCollector interface {
	RecordDeploymentSubmitted(status string)
	RecordDeploymentCompleted(status string, duration time.Duration)
	RecordStep(kind, status string, duration time.Duration)
	RecordLayoutComputed(cached bool, nodes int)
	RecordWorkerPoolStatus(idle, busy, stopped int)
}
