package http

import (
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/powers-protocol/powers/internal/application/session"
	"github.com/powers-protocol/powers/pkg/domain"
)

// OpenSessionRequest binds a session to a Powers contract.
type OpenSessionRequest struct {
	ChainID uint64 `json:"chainId" binding:"required"`
	Powers  string `json:"powers" binding:"required"`
}

// SessionEventRequest is one edit of the action being drafted. Type selects
// which of the other fields are read.
type SessionEventRequest struct {
	Type        string         `json:"type"`
	MandateID   uint16         `json:"mandateId"`
	Action      *domain.Action `json:"action"`
	Index       int            `json:"index"`
	Value       any            `json:"value"`
	Nonce       string         `json:"nonce"`
	Description string         `json:"description"`
}

// SessionTypesRequest carries the parameter types of the selected mandate.
// MandateID and Caller are read by prepare only; a zero MandateID means
// the selected one.
type SessionTypesRequest struct {
	Types     []string `json:"types"`
	MandateID uint16   `json:"mandateId"`
	Caller    string   `json:"caller"`
}

// SessionResponse is a session state with ABI values rendered for JSON.
type SessionResponse struct {
	ID    string        `json:"id"`
	State session.State `json:"state"`
}

func sessionResponse(id string, state session.State) SessionResponse {
	if state.Selection.ParamValues != nil {
		state.Selection.ParamValues = jsonValues(state.Selection.ParamValues)
	}
	return SessionResponse{ID: id, State: state}
}

func (s *Server) handleOpenSession(c *gin.Context) {
	var req OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	powers, err := contractAddress(req.Powers)
	if err != nil {
		badRequest(c, err)
		return
	}

	id, state := s.sessions.Create(req.ChainID, powers)
	c.JSON(http.StatusCreated, sessionResponse(id, state))
}

func (s *Server) handleGetSession(c *gin.Context) {
	id := c.Param("id")
	store, err := s.sessions.Get(id)
	if err != nil {
		s.writeError(c, err, http.StatusInternalServerError, "INTERNAL_ERROR")
		return
	}
	c.JSON(http.StatusOK, sessionResponse(id, store.State()))
}

// handleRebindSession moves a session to another contract. The draft is
// kept only when the contract does not change.
func (s *Server) handleRebindSession(c *gin.Context) {
	var req OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	powers, err := contractAddress(req.Powers)
	if err != nil {
		badRequest(c, err)
		return
	}
	id := c.Param("id")
	store, err := s.sessions.Get(id)
	if err != nil {
		s.writeError(c, err, http.StatusInternalServerError, "INTERNAL_ERROR")
		return
	}
	c.JSON(http.StatusOK, sessionResponse(id, store.Open(req.ChainID, powers)))
}

func (s *Server) handleSessionEvent(c *gin.Context) {
	var req SessionEventRequest
	if err := bindNumbers(c, &req); err != nil {
		badRequest(c, err)
		return
	}
	ev, err := sessionEvent(req)
	if err != nil {
		badRequest(c, err)
		return
	}
	id := c.Param("id")
	store, err := s.sessions.Get(id)
	if err != nil {
		s.writeError(c, err, http.StatusInternalServerError, "INTERNAL_ERROR")
		return
	}
	c.JSON(http.StatusOK, sessionResponse(id, store.Dispatch(ev)))
}

// handleDecodeSession fills the draft's parameter values from its call
// data, falling back to defaults.
func (s *Server) handleDecodeSession(c *gin.Context) {
	var req SessionTypesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id := c.Param("id")
	store, err := s.sessions.Get(id)
	if err != nil {
		s.writeError(c, err, http.StatusInternalServerError, "INTERNAL_ERROR")
		return
	}
	c.JSON(http.StatusOK, sessionResponse(id, store.Decode(req.Types)))
}

// handlePrepareSession encodes the draft into call data and an action id.
// Encoding errors leave the session unchanged.
func (s *Server) handlePrepareSession(c *gin.Context) {
	var req SessionTypesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id := c.Param("id")
	store, err := s.sessions.Get(id)
	if err != nil {
		s.writeError(c, err, http.StatusInternalServerError, "INTERNAL_ERROR")
		return
	}
	mandateID := req.MandateID
	if mandateID == 0 {
		mandateID = store.State().Selection.MandateID
	}
	state, err := store.Prepare(mandateID, req.Types, req.Caller)
	if err != nil {
		s.writeError(c, err, http.StatusUnprocessableEntity, "ENCODING_ERROR")
		return
	}
	c.JSON(http.StatusOK, sessionResponse(id, state))
}

func (s *Server) handleCloseSession(c *gin.Context) {
	if err := s.sessions.Remove(c.Param("id")); err != nil {
		s.writeError(c, err, http.StatusInternalServerError, "INTERNAL_ERROR")
		return
	}
	c.Status(http.StatusNoContent)
}

func sessionEvent(req SessionEventRequest) (session.Event, error) {
	switch req.Type {
	case "selectMandate":
		return session.MandateSelected{MandateID: req.MandateID}, nil
	case "loadAction":
		if req.Action == nil {
			return nil, fmt.Errorf("loadAction requires action")
		}
		return session.ActionLoaded{Action: *req.Action}, nil
	case "setParam":
		if req.Index < 0 {
			return nil, fmt.Errorf("invalid parameter index %d", req.Index)
		}
		return session.ParamChanged{Index: req.Index, Value: req.Value}, nil
	case "setNonce":
		return session.NonceChanged{Nonce: req.Nonce}, nil
	case "setDescription":
		return session.DescriptionChanged{Description: req.Description}, nil
	}
	return nil, fmt.Errorf("unknown session event %q", req.Type)
}

func contractAddress(s string) (string, error) {
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("invalid powers address %q", s)
	}
	return common.HexToAddress(s).Hex(), nil
}
