package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/powers-protocol/powers/pkg/domain"
	"github.com/powers-protocol/powers/pkg/ports"
	"go.uber.org/zap"
)

// publishEvent publishes a deployment event, logging failures.
func publishEvent(ctx context.Context, bus ports.EventBus, logger *zap.Logger, topic string, eventType domain.EventType, deploymentID, step string, data map[string]interface{}) error {
	event := domain.Event{
		ID:           uuid.New().String(),
		Type:         eventType,
		DeploymentID: deploymentID,
		Step:         step,
		Timestamp:    time.Now(),
		Data:         data,
	}

	if err := bus.Publish(ctx, topic, event); err != nil {
		logger.Error("failed to publish event",
			zap.String("deployment_id", deploymentID),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
		return err
	}
	return nil
}

func statusData(status *domain.DeployStatus) map[string]interface{} {
	if status == nil {
		return nil
	}
	data := map[string]interface{}{
		"status":       string(status.Status),
		"powersCreate": string(status.PowersCreate),
	}
	if status.Error != "" {
		data["error"] = status.Error
	}
	if status.PowersAddress != nil {
		data["powersAddress"] = status.PowersAddress.Hex()
	}
	return data
}
