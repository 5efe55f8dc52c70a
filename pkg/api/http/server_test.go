package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/powers-protocol/powers/internal/application/layout"
	"github.com/powers-protocol/powers/internal/application/orchestrator"
	"github.com/powers-protocol/powers/pkg/abicodec"
	"github.com/powers-protocol/powers/pkg/adapters/events/memory"
	promcollector "github.com/powers-protocol/powers/pkg/adapters/metrics/prometheus"
	storage "github.com/powers-protocol/powers/pkg/adapters/storage/memory"
	"github.com/powers-protocol/powers/pkg/domain"
	"github.com/powers-protocol/powers/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticSource map[uint64]*domain.StaticData

func (s staticSource) Fetch(_ context.Context, chainID uint64) (*domain.StaticData, error) {
	data, ok := s[chainID]
	if !ok {
		return nil, fmt.Errorf("static data for chain %d: %w", chainID, ports.ErrNotFound)
	}
	return data, nil
}

func foundryStatic() *domain.StaticData {
	mandates := map[string]common.Address{}
	for i, name := range []string{"PresetSingleAction", "StatementOfIntent", "OpenAction", "SelfSelect", "BespokeActionSimple"} {
		mandates[name] = common.BigToAddress(big.NewInt(int64(0xa0 + i)))
	}
	return &domain.StaticData{Powers: "0x6080604052", Mandates: mandates}
}

type testServer struct {
	*Server
	bus     *memory.EventBus
	layouts *layout.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	bus := memory.NewEventBus(logger)
	store := storage.NewStorage()
	reg := prometheus.NewRegistry()
	metrics := promcollector.NewCollector(reg)

	manager := orchestrator.NewManager(bus, store,
		staticSource{domain.ChainFoundry: foundryStatic()},
		metrics, nil, logger, time.Minute)
	layouts := layout.NewService(layout.Config{Store: store, Metrics: metrics, Logger: logger, Debounce: time.Hour})

	t.Cleanup(func() {
		_ = manager.Shutdown(context.Background())
		_ = bus.Close()
	})

	return &testServer{
		Server: NewServer(&Config{
			Manager:  manager,
			Layouts:  layouts,
			Gatherer: reg,
			Logger:   logger,
		}),
		bus:     bus,
		layouts: layouts,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "healthy", body["status"])
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodOptions, "/api/v1/deployments", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestListOrganizations(t *testing.T) {
	s := newTestServer(t)

	type listing struct {
		Organizations []struct {
			Metadata struct {
				ID string `json:"id"`
			} `json:"metadata"`
		} `json:"organizations"`
		Total int `json:"total"`
	}
	ids := func(l listing) []string {
		var out []string
		for _, o := range l.Organizations {
			out = append(out, o.Metadata.ID)
		}
		return out
	}

	public := decode[listing](t, s.do(t, http.MethodGet, "/api/v1/organizations", nil))
	assert.Contains(t, ids(public), "powers-101")
	assert.NotContains(t, ids(public), "optimistic-execution")
	assert.Equal(t, len(public.Organizations), public.Total)

	local := decode[listing](t, s.do(t, http.MethodGet, "/api/v1/organizations?local=true", nil))
	assert.Contains(t, ids(local), "optimistic-execution")
}

func TestGetOrganization(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/organizations/powers-101", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/organizations/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitDeployment(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/deployments", domain.DeploymentRequest{
		OrganizationID: "powers-101",
		ChainID:        domain.ChainFoundry,
		Local:          true,
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	resp := decode[DeploymentSubmitResponse](t, rec)
	require.NotEmpty(t, resp.DeploymentID)

	rec = s.do(t, http.MethodGet, "/api/v1/deployments/"+resp.DeploymentID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[domain.DeploymentState](t, rec)
	assert.Equal(t, domain.StepStatusIdle, state.Status.Status)
	assert.Equal(t, domain.StepStatusIdle, state.Status.PowersCreate)

	list := decode[map[string]any](t, s.do(t, http.MethodGet, "/api/v1/deployments", nil))
	assert.EqualValues(t, 1, list["total"])
}

func TestSubmitDeploymentErrors(t *testing.T) {
	tests := []struct {
		name string
		req  any
		code int
		want string
	}{
		{
			name: "malformed",
			req:  map[string]any{"chainId": "x"},
			code: http.StatusBadRequest,
			want: "INVALID_REQUEST",
		},
		{
			name: "unknown organization",
			req:  domain.DeploymentRequest{OrganizationID: "nope", ChainID: domain.ChainFoundry, Local: true},
			code: http.StatusNotFound,
			want: "UNKNOWN_ORGANIZATION",
		},
		{
			name: "no static data for chain",
			req:  domain.DeploymentRequest{OrganizationID: "powers-101", ChainID: domain.ChainSepolia},
			code: http.StatusUnprocessableEntity,
			want: "MISSING_CONFIG",
		},
		{
			name: "chain not allowed",
			req:  domain.DeploymentRequest{OrganizationID: "powers-101", ChainID: domain.ChainFoundry},
			code: http.StatusUnprocessableEntity,
			want: "SUBMISSION_FAILED",
		},
		{
			name: "missing mandate",
			req:  domain.DeploymentRequest{OrganizationID: "token-delegates", ChainID: domain.ChainFoundry, Local: true, FormData: map[string]string{"tokenName": "T", "tokenSymbol": "T", "maxDelegates": "5", "quorum": "20"}},
			code: http.StatusUnprocessableEntity,
			want: "MISSING_CONFIG",
		},
		{
			name: "form field",
			req:  domain.DeploymentRequest{OrganizationID: "token-delegates", ChainID: domain.ChainFoundry, Local: true, FormData: map[string]string{"tokenSymbol": "T", "maxDelegates": "5", "quorum": "20"}},
			code: http.StatusBadRequest,
			want: "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			rec := s.do(t, http.MethodPost, "/api/v1/deployments", tt.req)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			assert.Equal(t, tt.want, decode[ErrorResponse](t, rec).Error.Code)
		})
	}
}

func TestGetDeploymentNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/deployments/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode[ErrorResponse](t, rec).Error.Code)
}

func chainMandates() []domain.Mandate {
	return []domain.Mandate{
		{Index: 1},
		{Index: 2, Conditions: domain.Conditions{NeedFulfilled: 1}},
		{Index: 3, Conditions: domain.Conditions{NeedFulfilled: 2, NeedNotFulfilled: 1}},
	}
}

func TestComputeLayout(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/graph/layout", LayoutRequest{
		Address:  "0xAbc",
		Mandates: chainMandates(),
		Selected: "2",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var view struct {
		Address   string `json:"address"`
		FromCache bool   `json:"fromCache"`
		Nodes     []struct {
			ID       string          `json:"id"`
			Position domain.Position `json:"position"`
		} `json:"nodes"`
		Edges []json.RawMessage `json:"edges"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "0xAbc", view.Address)
	assert.False(t, view.FromCache)
	require.Len(t, view.Nodes, 3)
	assert.Len(t, view.Edges, 3)
	positions := map[string]domain.Position{}
	for _, n := range view.Nodes {
		positions[n.ID] = n.Position
	}
	assert.Less(t, positions["1"].X, positions["2"].X)
	assert.Less(t, positions["2"].X, positions["3"].X)
}

func TestLayoutPersistence(t *testing.T) {
	s := newTestServer(t)
	const addr = "0x00000000000000000000000000000000000000A1"

	rec := s.do(t, http.MethodGet, "/api/v1/layouts/"+addr, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	nodes := map[string]domain.Position{
		"1": {X: 10, Y: 10},
		"2": {X: 20, Y: 20},
		"3": {X: 30, Y: 30},
	}
	rec = s.do(t, http.MethodPut, "/api/v1/layouts/"+addr+"/nodes", NodesRequest{Nodes: nodes})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/v1/layouts/"+addr+"/viewport", domain.Viewport{X: 1, Y: 2, Zoom: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPut, "/api/v1/layouts/"+addr+"/viewport", domain.Viewport{X: 1, Y: 2, Zoom: 1.5})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	s.layouts.Flush()

	rec = s.do(t, http.MethodGet, "/api/v1/layouts/"+addr, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	record := decode[domain.LayoutRecord](t, rec)
	assert.Equal(t, nodes, record.Nodes)
	require.NotNil(t, record.Viewport)
	assert.Equal(t, 1.5, record.Viewport.Zoom)

	rec = s.do(t, http.MethodPost, "/api/v1/graph/layout", LayoutRequest{Address: addr, Mandates: chainMandates()})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec)["fromCache"])

	rec = s.do(t, http.MethodDelete, "/api/v1/layouts/"+addr, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/v1/layouts/"+addr, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMermaid(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/graph/mermaid", LayoutRequest{Mandates: chainMandates()})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Contains(t, body["mermaid"], "graph LR")
}

func TestEncodeDecode(t *testing.T) {
	s := newTestServer(t)
	types := []string{"address", "uint256", "string"}

	rec := s.do(t, http.MethodPost, "/api/v1/calldata/encode", map[string]any{
		"types":  types,
		"values": []any{"0x00000000000000000000000000000000000000a1", json.Number("115792089237316195423570985008687907853269984665640564039457584007913129639935"), "hi"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	calldata := decode[map[string]string](t, rec)["calldata"]

	rec = s.do(t, http.MethodPost, "/api/v1/calldata/decode", DecodeRequest{Types: types, CallData: calldata})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Values  []any `json:"values"`
		Decoded bool  `json:"decoded"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.Decoded)
	require.Len(t, out.Values, 3)
	assert.True(t, strings.EqualFold("0x00000000000000000000000000000000000000a1", out.Values[0].(string)))
	assert.Equal(t, "115792089237316195423570985008687907853269984665640564039457584007913129639935", out.Values[1])
	assert.Equal(t, "hi", out.Values[2])
}

func TestEncodeErrorIsInline(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/calldata/encode", EncodeRequest{
		Types:  []string{"address"},
		Values: []any{"not-an-address"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "ENCODING_ERROR", resp.Error.Code)
	assert.EqualValues(t, 0, resp.Error.Details.(map[string]any)["index"])
}

func TestDecodeDefaults(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/calldata/decode", DecodeRequest{
		Types:    []string{"bool"},
		CallData: "0x1234",
		Defaults: true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, false, body["decoded"])
	assert.Equal(t, []any{false}, body["values"])

	rec = s.do(t, http.MethodPost, "/api/v1/calldata/decode", DecodeRequest{Types: []string{"bool"}, CallData: "0x1234"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHashAction(t *testing.T) {
	s := newTestServer(t)
	calldata, err := abicodec.Encode([]string{"uint256"}, []any{7})
	require.NoError(t, err)
	want, err := abicodec.HashAction(3, calldata, big.NewInt(42))
	require.NoError(t, err)

	rec := s.do(t, http.MethodPost, "/api/v1/actions/hash", HashRequest{
		MandateID: 3,
		CallData:  hexutil.Encode(calldata),
		Nonce:     "42",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, want.String(), decode[map[string]string](t, rec)["actionId"])

	rec = s.do(t, http.MethodPost, "/api/v1/actions/hash", HashRequest{
		MandateID: 3,
		Types:     []string{"uint256"},
		Values:    []any{7},
		Nonce:     "0x2a",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, want.String(), decode[map[string]string](t, rec)["actionId"])

	rec = s.do(t, http.MethodPost, "/api/v1/actions/hash", HashRequest{MandateID: 3, Nonce: "-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/v1/graph/layout", LayoutRequest{Mandates: chainMandates()})

	rec := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "powers_layouts_computed_total")
}
