package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/powers-protocol/powers/pkg/domain"
	"github.com/powers-protocol/powers/pkg/ports"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const writeWait = 10 * time.Second

// Message types sent to clients.
const (
	MessageSnapshot = "snapshot"
	MessageEvent    = "event"
)

// Message is one frame of a deployment stream.
type Message struct {
	Type  string                  `json:"type"`
	State *domain.DeploymentState `json:"state,omitempty"`
	Event *domain.Event           `json:"event,omitempty"`
}

// StateGetter loads the current state of a deployment.
type StateGetter interface {
	GetStatus(ctx context.Context, deploymentID string) (*domain.DeploymentState, error)
}

// Handler handles WebSocket connections
type Handler struct {
	eventBus ports.EventBus
	states   StateGetter
	logger   *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(eventBus ports.EventBus, states StateGetter, logger *zap.Logger) *Handler {
	return &Handler{
		eventBus: eventBus,
		states:   states,
		logger:   logger,
	}
}

// HandleDeploymentStream streams the progress of one deployment. The first
// frame is the current state; every later frame is a lifecycle or step
// event. The connection is closed once the deployment finishes.
func (h *Handler) HandleDeploymentStream(c *gin.Context) {
	deploymentID := c.Param("id")

	if _, err := h.states.GetStatus(c.Request.Context(), deploymentID); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, ports.ErrNotFound) {
			code = http.StatusNotFound
		}
		c.JSON(code, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": err.Error()}})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("deployment_id", deploymentID),
		zap.String("client", c.ClientIP()))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Subscribe before reading the snapshot so no transition falls between.
	eventChan := make(chan domain.Event, 32)
	h.subscribeToEvents(ctx, deploymentID, eventChan)

	state, err := h.states.GetStatus(ctx, deploymentID)
	if err != nil {
		h.logger.Error("failed to load deployment", zap.String("deployment_id", deploymentID), zap.Error(err))
		return
	}
	if err := h.write(conn, Message{Type: MessageSnapshot, State: state}); err != nil {
		return
	}
	if state.Terminal() {
		h.close(conn)
		return
	}

	go h.readUntilClosed(conn, cancel)

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eventChan:
			if err := h.write(conn, Message{Type: MessageEvent, Event: &event}); err != nil {
				return
			}
			if event.Type == domain.EventTypeDeploymentSucceeded || event.Type == domain.EventTypeDeploymentFailed {
				h.close(conn)
				return
			}
		}
	}
}

func (h *Handler) write(conn *websocket.Conn, msg Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Error("failed to write message", zap.Error(err))
		return err
	}
	return nil
}

func (h *Handler) close(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "deployment finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// readUntilClosed drains client frames so control messages are handled,
// and cancels the stream when the client goes away.
func (h *Handler) readUntilClosed(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// subscribeToEvents forwards the deployment's events until ctx is done.
func (h *Handler) subscribeToEvents(ctx context.Context, deploymentID string, ch chan<- domain.Event) {
	eventHandler := func(ctx context.Context, event domain.Event) error {
		if event.DeploymentID != deploymentID {
			return nil
		}
		select {
		case ch <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			h.logger.Warn("event channel full, dropping event",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)))
		}
		return nil
	}

	for _, topic := range []string{domain.TopicDeployments, domain.TopicSteps} {
		if err := h.eventBus.Subscribe(ctx, topic, eventHandler); err != nil {
			h.logger.Error("failed to subscribe to events",
				zap.String("topic", topic),
				zap.Error(err))
		}
	}
}
