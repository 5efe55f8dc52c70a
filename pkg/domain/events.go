package domain

import "time"

// EventType identifies deployment lifecycle events.
type EventType string

const (
	EventTypeDeploymentRequested EventType = "deployment.requested"
	EventTypeDeploymentStarted   EventType = "deployment.started"
	EventTypeStepChanged         EventType = "deployment.step"
	EventTypeDeploymentSucceeded EventType = "deployment.succeeded"
	EventTypeDeploymentFailed    EventType = "deployment.failed"
)

// Topics used on the event bus. TopicRequests is a work queue read by the
// worker pool; the other two are broadcast to every subscriber.
const (
	TopicRequests    = "deployment.requests"
	TopicDeployments = "deployment.events"
	TopicSteps       = "step.events"
)

// Event is a message published on the event bus.
type Event struct {
	ID           string                 `json:"id"`
	Type         EventType              `json:"type"`
	DeploymentID string                 `json:"deploymentId"`
	Step         string                 `json:"step,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
	Data         map[string]interface{} `json:"data,omitempty"`
}
