package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/mandi/internal/auth"
	"github.com/mamadbah2/mandi/internal/domain/models"
	"github.com/mamadbah2/mandi/internal/domain/settlement"
	"github.com/mamadbah2/mandi/internal/repository/cache"
	"github.com/mamadbah2/mandi/internal/repository/memory"
	"github.com/mamadbah2/mandi/internal/server/handlers"
	"github.com/mamadbah2/mandi/internal/service/billing"
	"github.com/mamadbah2/mandi/internal/service/lots"
)

var secret = []byte("router-secret")

type harness struct {
	t      *testing.T
	engine *gin.Engine
	lots   *lots.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewStore()
	reportCache := cache.NewMemoryCache()
	rates := settlement.DefaultRates()

	lotSvc := lots.NewService(store, reportCache, nil, rates, nil)
	billingSvc := billing.NewService(store, store, reportCache, nil, rates, billing.Options{}, nil)

	engine := New(Handlers{
		Records: handlers.NewRecordsHandler(lotSvc, time.UTC, nil),
		Finance: handlers.NewFinanceHandler(lotSvc, billingSvc, nil),
	}, secret, nil)
	return &harness{t: t, engine: engine, lots: lotSvc}
}

func (h *harness) token(actor auth.Actor) string {
	h.t.Helper()
	token, err := auth.IssueJWT(actor, secret, time.Hour)
	require.NoError(h.t, err)
	return token
}

func (h *harness) do(actor *auth.Actor, method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set("Authorization", "Bearer "+h.token(*actor))
	}
	resp := httptest.NewRecorder()
	h.engine.ServeHTTP(resp, req)
	return resp
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out), resp.Body.String())
	return out
}

var (
	farmer    = auth.Actor{Subject: "u-1", Role: auth.RoleFarmer, FarmerID: "f-1"}
	neighbour = auth.Actor{Subject: "u-2", Role: auth.RoleFarmer, FarmerID: "f-2"}
	weighing  = auth.Actor{Subject: "w-1", Role: auth.RoleWeighing}
	lilav     = auth.Actor{Subject: "l-1", Role: auth.RoleLilav}
	committee = auth.Actor{Subject: "c-1", Role: auth.RoleCommittee}
)

func TestPublicEndpoints(t *testing.T) {
	h := newHarness(t)

	resp := h.do(nil, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = h.do(nil, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = h.do(nil, http.MethodGet, "/api/records", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestLotLifecycle(t *testing.T) {
	h := newHarness(t)

	resp := h.do(&farmer, http.MethodPost, "/api/records", map[string]any{"crop": "Tomato", "quantity": 500, "farmer_phone": "9876543210"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	lot := decode[models.Lot](t, resp)
	base := "/api/records/" + lot.ID

	resp = h.do(&farmer, http.MethodPost, "/api/records", map[string]any{"crop": "Tomato", "quantity": 5, "carat": 2})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = h.do(&neighbour, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = h.do(&lilav, http.MethodPost, base+"/splits", map[string]any{"qty": 100, "rate": 40, "trader_id": "t-1"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code, "weight pending")

	resp = h.do(&farmer, http.MethodPost, base+"/weight", map[string]any{"official_qty": 500})
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = h.do(&weighing, http.MethodPost, base+"/weight", map[string]any{"official_qty": 500})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = h.do(&lilav, http.MethodPost, base+"/splits", map[string]any{"qty": 300, "rate": 40, "trader_id": "t-1", "trader_name": "Shah Traders"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	resp = h.do(&lilav, http.MethodPost, base+"/splits", map[string]any{"qty": 250, "rate": 40, "trader_id": "t-2"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code, "oversold")

	resp = h.do(&farmer, http.MethodPut, base, map[string]any{"crop": "Tomato", "quantity": 450})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code, "locked after a sale")

	resp = h.do(&farmer, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = h.do(&farmer, http.MethodGet, base+"/invoice", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	inv := decode[settlement.Invoice](t, resp)
	assert.Equal(t, 300.0, inv.SoldQuantity)
	assert.Equal(t, 200.0, inv.AwaitingQuantity)
	assert.Equal(t, settlement.DisplayPartial, inv.Status)
	assert.Equal(t, 11520.0, inv.FinalAmount)

	resp = h.do(&farmer, http.MethodGet, base+"/invoice.pdf", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/pdf", resp.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(resp.Body.String(), "%PDF"))

	resp = h.do(&lilav, http.MethodPost, base+"/splits", map[string]any{"qty": 200, "rate": 45, "trader_id": "t-2"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	lot = decode[models.Lot](t, resp)
	require.Len(t, lot.Splits, 2)

	resp = h.do(&lilav, http.MethodPost, "/api/finance/records/"+lot.ID+"/farmer-payment", nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = h.do(&committee, http.MethodPost, "/api/finance/records/"+lot.ID+"/farmer-payment", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	inv = decode[settlement.Invoice](t, resp)
	assert.Equal(t, settlement.DisplayFull, inv.Status)
	assert.Equal(t, 21000.0, inv.BaseAmount)
	assert.Equal(t, 840.0, inv.Commission)

	resp = h.do(&committee, http.MethodPost, "/api/finance/records/"+lot.ID+"/splits/"+lot.Splits[1].ID+"/trader-payment", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	charge := decode[settlement.TraderCharge](t, resp)
	assert.Equal(t, 9810.0, charge.TotalPayable)

	resp = h.do(&committee, http.MethodPost, "/api/finance/records/"+lot.ID+"/splits/"+lot.Splits[1].ID+"/trader-payment", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = h.do(&committee, http.MethodPost, "/api/finance/records/missing/farmer-payment", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestListScopesFarmers(t *testing.T) {
	h := newHarness(t)
	for _, actor := range []auth.Actor{farmer, neighbour} {
		resp := h.do(&actor, http.MethodPost, "/api/records", map[string]any{"crop": "Onion", "carat": 10})
		require.Equal(t, http.StatusCreated, resp.Code)
	}

	resp := h.do(&farmer, http.MethodGet, "/api/records", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	body := decode[struct {
		Records []models.Lot `json:"records"`
	}](t, resp)
	require.Len(t, body.Records, 1)
	assert.Equal(t, "f-1", body.Records[0].FarmerID)

	resp = h.do(&committee, http.MethodGet, "/api/records", nil)
	body = decode[struct {
		Records []models.Lot `json:"records"`
	}](t, resp)
	assert.Len(t, body.Records, 2)

	resp = h.do(&committee, http.MethodGet, "/api/records?from=22-01-2026", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestBillingEndpoints(t *testing.T) {
	h := newHarness(t)

	resp := h.do(&farmer, http.MethodPost, "/api/records", map[string]any{"crop": "Tomato", "quantity": 100})
	require.Equal(t, http.StatusCreated, resp.Code)
	lot := decode[models.Lot](t, resp)
	require.Equal(t, http.StatusOK, h.do(&weighing, http.MethodPost, "/api/records/"+lot.ID+"/weight", map[string]any{"official_qty": 100}).Code)
	require.Equal(t, http.StatusCreated, h.do(&lilav, http.MethodPost, "/api/records/"+lot.ID+"/splits", map[string]any{"qty": 100, "rate": 30, "trader_id": "t-9"}).Code)

	today := time.Now().UTC()
	window := "?from=" + today.AddDate(0, 0, -1).Format("2006-01-02") + "&to=" + today.AddDate(0, 0, 1).Format("2006-01-02")

	resp = h.do(&farmer, http.MethodGet, "/api/finance/billing"+window, nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = h.do(&lilav, http.MethodGet, "/api/finance/billing"+window, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	report := decode[billing.Report](t, resp)
	assert.Equal(t, 3000.0, report.Totals.BaseAmount)
	assert.Equal(t, 120.0, report.Totals.FarmerCommission)
	assert.Equal(t, 270.0, report.Totals.TraderCommission)
	assert.Equal(t, 390.0, report.Totals.CommitteeIncome)

	resp = h.do(&committee, http.MethodGet, "/api/finance/billing.csv"+window, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, resp.Body.String(), "2880.00")

	resp = h.do(&committee, http.MethodGet, "/api/finance/billing.xlsx"+window, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, strings.HasPrefix(resp.Body.String(), "PK"))

	resp = h.do(&committee, http.MethodPost, "/api/finance/billing/sheet"+window, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)

	resp = h.do(&lilav, http.MethodGet, "/api/finance/traders/t-9/statement", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	stmt := decode[billing.TraderStatement](t, resp)
	assert.Equal(t, 3270.0, stmt.Totals.Outstanding)

	resp = h.do(&committee, http.MethodGet, "/api/finance/billing?from=2026-02-02&to=2026-02-01", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
