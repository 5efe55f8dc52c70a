package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/powers-protocol/powers/internal/application/graph"
	"github.com/powers-protocol/powers/pkg/domain"
)

// LayoutRequest asks for the graph view of a Powers contract.
type LayoutRequest struct {
	// Address keys the saved layout; without it nothing is looked up.
	Address  string           `json:"address"`
	Mandates []domain.Mandate `json:"mandates" binding:"required"`
	Selected string           `json:"selected"`
	Action   *domain.Action   `json:"action"`
	// Positions overrides the saved layout when given.
	Positions map[string]domain.Position `json:"positions"`
}

// NodesRequest carries dragged node positions keyed by mandate id.
type NodesRequest struct {
	Nodes map[string]domain.Position `json:"nodes" binding:"required"`
}

// handleComputeLayout places the mandates and decorates the view. Layout
// never fails on graph content: dangling references and cycles are reported
// as warnings.
func (s *Server) handleComputeLayout(c *gin.Context) {
	var req LayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res := s.layouts.Compute(c.Request.Context(), req.Address, req.Mandates, graph.ViewOptions{
		Selected: req.Selected,
		Cache:    req.Positions,
		Action:   req.Action,
	})
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleMermaid(c *gin.Context) {
	var req LayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	view := graph.NewView(req.Mandates, graph.ViewOptions{Selected: req.Selected, Action: req.Action})
	diagram := graph.GenerateMermaid(view)
	if c.NegotiateFormat(gin.MIMEJSON, gin.MIMEPlain) == gin.MIMEPlain {
		c.String(http.StatusOK, diagram)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"mermaid":  diagram,
		"warnings": view.Warnings,
	})
}

func (s *Server) handleGetLayout(c *gin.Context) {
	record, err := s.layouts.Get(c.Request.Context(), c.Param("address"))
	if err != nil {
		s.writeError(c, err, http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	c.JSON(http.StatusOK, record)
}

// handleSaveNodes queues positions; they are written after the debounce
// period, so the response is 202.
func (s *Server) handleSaveNodes(c *gin.Context) {
	var req NodesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	address := c.Param("address")
	if err := s.layouts.SaveNodes(address, req.Nodes); err != nil {
		s.writeError(c, err, http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"address": address, "nodes": len(req.Nodes)})
}

func (s *Server) handleSaveViewport(c *gin.Context) {
	var viewport domain.Viewport
	if err := c.ShouldBindJSON(&viewport); err != nil {
		badRequest(c, err)
		return
	}
	address := c.Param("address")
	if err := s.layouts.SaveViewport(address, viewport); err != nil {
		s.writeError(c, err, http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"address": address, "viewport": viewport})
}

func (s *Server) handleResetLayout(c *gin.Context) {
	if err := s.layouts.Reset(c.Request.Context(), c.Param("address")); err != nil {
		s.writeError(c, err, http.StatusInternalServerError, "STORAGE_ERROR")
		return
	}
	c.Status(http.StatusNoContent)
}
