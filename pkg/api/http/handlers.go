package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/powers-protocol/powers/internal/application/orchestrator"
	"github.com/powers-protocol/powers/pkg/abicodec"
	"github.com/powers-protocol/powers/pkg/domain"
	"github.com/powers-protocol/powers/pkg/organizations"
	"github.com/powers-protocol/powers/pkg/ports"
	"go.uber.org/zap"
)

// DeploymentSubmitResponse represents a deployment submission response
type DeploymentSubmitResponse struct {
	DeploymentID string    `json:"deploymentId"`
	Status       string    `json:"status"`
	SubmittedAt  time.Time `json:"submittedAt"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		},
	})
}

// writeError maps domain errors onto status codes. fallback is the code
// used for errors with no specific mapping.
func (s *Server) writeError(c *gin.Context, err error, fallback int, fallbackCode string) {
	var (
		encoding   *abicodec.EncodingError
		missing    *orchestrator.MissingConfigError
		validation *organizations.ValidationError
	)

	switch {
	case errors.As(err, &encoding):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: ErrorDetail{
				Code:    "ENCODING_ERROR",
				Message: encoding.Error(),
				Details: gin.H{"index": encoding.Index, "type": encoding.Type},
			},
		})
	case errors.As(err, &missing):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: ErrorDetail{
				Code:    "MISSING_CONFIG",
				Message: missing.Error(),
				Details: gin.H{"kind": missing.Kind, "name": missing.Name},
			},
		})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "VALIDATION_ERROR",
				Message: validation.Message,
				Details: gin.H{"field": validation.Field},
			},
		})
	case errors.Is(err, orchestrator.ErrUnknownOrganization):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "UNKNOWN_ORGANIZATION",
				Message: err.Error(),
			},
		})
	case errors.Is(err, ports.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: err.Error(),
			},
		})
	default:
		if fallback >= http.StatusInternalServerError {
			s.logger.Error("request failed",
				zap.String("path", c.FullPath()),
				zap.Error(err))
		}
		c.JSON(fallback, ErrorResponse{
			Error: ErrorDetail{
				Code:    fallbackCode,
				Message: err.Error(),
			},
		})
	}
}

// handleHealth reports the worker pool state. Without a pool the API is
// healthy as long as it answers.
func (s *Server) handleHealth(c *gin.Context) {
	checks := gin.H{"api": "ok"}
	healthy := true

	if s.health != nil {
		status := s.health.GetStatus()
		checks["workers"] = status
		healthy = status.Healthy
	}
	if s.manager != nil {
		checks["activeDeployments"] = s.manager.Active()
	}

	code := http.StatusOK
	label := "healthy"
	if !healthy {
		code = http.StatusServiceUnavailable
		label = "unhealthy"
	}
	c.JSON(code, gin.H{
		"status":    label,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

// handleListOrganizations lists the templates enabled for the requested
// environment. ?local=true includes local-only templates.
func (s *Server) handleListOrganizations(c *gin.Context) {
	local := strings.EqualFold(c.Query("local"), "true")
	orgs := organizations.Enabled(local)
	c.JSON(http.StatusOK, gin.H{
		"organizations": orgs,
		"total":         len(orgs),
	})
}

func (s *Server) handleGetOrganization(c *gin.Context) {
	org, ok := organizations.ByID(c.Param("id"))
	if !ok {
		s.writeError(c, orchestrator.ErrUnknownOrganization, http.StatusNotFound, "NOT_FOUND")
		return
	}
	c.JSON(http.StatusOK, org)
}

// handleSubmitDeployment validates and queues a deployment. Nothing is sent
// to the chain before the request passes validation.
func (s *Server) handleSubmitDeployment(c *gin.Context) {
	var req domain.DeploymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("invalid deployment request", zap.Error(err))
		badRequest(c, err)
		return
	}

	deploymentID, err := s.manager.Submit(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err, http.StatusUnprocessableEntity, "SUBMISSION_FAILED")
		return
	}

	c.JSON(http.StatusAccepted, DeploymentSubmitResponse{
		DeploymentID: deploymentID,
		Status:       "submitted",
		SubmittedAt:  time.Now().UTC(),
	})
}

func (s *Server) handleListDeployments(c *gin.Context) {
	states, err := s.manager.List(c.Request.Context())
	if err != nil {
		s.writeError(c, err, http.StatusInternalServerError, "STORAGE_ERROR")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"deployments": states,
		"total":       len(states),
	})
}

func (s *Server) handleGetDeployment(c *gin.Context) {
	state, err := s.manager.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err, http.StatusInternalServerError, "STORAGE_ERROR")
		return
	}
	c.JSON(http.StatusOK, state)
}
