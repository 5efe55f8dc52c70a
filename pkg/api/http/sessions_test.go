package http

import (
	"math/big"
	"net/http"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/powers-protocol/powers/pkg/abicodec"
	"github.com/powers-protocol/powers/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionBody struct {
	ID    string `json:"id"`
	State struct {
		ChainID   uint64 `json:"chainId"`
		Powers    string `json:"powers"`
		Version   uint64 `json:"version"`
		Selection struct {
			MandateID   uint16 `json:"mandateId"`
			ActionID    string `json:"actionId"`
			ParamValues []any  `json:"paramValues"`
			CallData    string `json:"callData"`
			Nonce       string `json:"nonce"`
			UpToDate    bool   `json:"upToDate"`
		} `json:"selection"`
	} `json:"state"`
}

const (
	powersAddr = "0x00000000000000000000000000000000000000c1"
	recipient  = "0x0000000000000000000000000000000000000001"
)

func TestSessionDraftsAction(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{"chainId": domain.ChainSepolia, "powers": powersAddr})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	opened := decode[sessionBody](t, rec)
	require.NotEmpty(t, opened.ID)
	assert.Equal(t, domain.ChainSepolia, opened.State.ChainID)
	assert.Equal(t, "0x00000000000000000000000000000000000000C1", opened.State.Powers)
	base := "/api/v1/sessions/" + opened.ID

	for _, ev := range []map[string]any{
		{"type": "selectMandate", "mandateId": 3},
		{"type": "setParam", "index": 0, "value": recipient},
		{"type": "setParam", "index": 1, "value": 1000},
		{"type": "setNonce", "nonce": "7"},
	} {
		rec = s.do(t, http.MethodPost, base+"/events", ev)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	drafted := decode[sessionBody](t, rec)
	assert.Equal(t, uint16(3), drafted.State.Selection.MandateID)
	assert.False(t, drafted.State.Selection.UpToDate)

	types := []string{"address", "uint256"}
	rec = s.do(t, http.MethodPost, base+"/prepare", map[string]any{"types": types})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	prepared := decode[sessionBody](t, rec)

	calldata, err := abicodec.Encode(types, []any{recipient, 1000})
	require.NoError(t, err)
	id, err := abicodec.HashAction(3, calldata, big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, hexutil.Encode(calldata), prepared.State.Selection.CallData)
	assert.Equal(t, id.String(), prepared.State.Selection.ActionID)
	assert.True(t, prepared.State.Selection.UpToDate)

	// a bad input is reported inline and keeps the prepared call data
	rec = s.do(t, http.MethodPost, base+"/events", map[string]any{"type": "setParam", "index": 0, "value": "nope"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodPost, base+"/prepare", map[string]any{"types": types})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "ENCODING_ERROR", decode[ErrorResponse](t, rec).Error.Code)
	current := decode[sessionBody](t, s.do(t, http.MethodGet, base, nil))
	assert.Equal(t, hexutil.Encode(calldata), current.State.Selection.CallData)
}

func TestSessionLoadsAndDecodesAction(t *testing.T) {
	s := newTestServer(t)
	opened := decode[sessionBody](t, s.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{"chainId": domain.ChainFoundry, "powers": powersAddr}))
	base := "/api/v1/sessions/" + opened.ID

	types := []string{"address", "uint256"}
	calldata, err := abicodec.Encode(types, []any{recipient, 42})
	require.NoError(t, err)

	rec := s.do(t, http.MethodPost, base+"/events", map[string]any{
		"type":   "loadAction",
		"action": map[string]any{"actionId": "99", "mandateId": 5, "callData": hexutil.Encode(calldata), "nonce": "1"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, base+"/decode", map[string]any{"types": types})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decoded := decode[sessionBody](t, rec)
	assert.Equal(t, []any{recipient, "42"}, decoded.State.Selection.ParamValues)
	assert.True(t, decoded.State.Selection.UpToDate)

	// same contract keeps the draft, another chain drops it
	rec = s.do(t, http.MethodPut, base+"/contract", map[string]any{"chainId": domain.ChainFoundry, "powers": powersAddr})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint16(5), decode[sessionBody](t, rec).State.Selection.MandateID)

	rec = s.do(t, http.MethodPut, base+"/contract", map[string]any{"chainId": domain.ChainSepolia, "powers": powersAddr})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decode[sessionBody](t, rec).State.Selection.MandateID)
}

func TestSessionErrors(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{"chainId": domain.ChainFoundry, "powers": "0x01"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	opened := decode[sessionBody](t, s.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{"chainId": domain.ChainFoundry, "powers": powersAddr}))
	base := "/api/v1/sessions/" + opened.ID

	rec = s.do(t, http.MethodPost, base+"/events", map[string]any{"type": "vote"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPost, base+"/events", map[string]any{"type": "loadAction"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/v1/sessions/missing/events", map[string]any{"type": "setNonce", "nonce": "1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
