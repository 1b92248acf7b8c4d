package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/carteraops/cartera/internal/balance"
	"github.com/carteraops/cartera/internal/config"
	"github.com/carteraops/cartera/internal/kpi"
	"github.com/carteraops/cartera/internal/pipeline"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*Server, *Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := NewStore()
	srv := NewServer(Params{
		Store:  store,
		Config: config.Default(),
		Log:    zap.NewNop(),
	})
	return srv, store
}

func testResult() *pipeline.Result {
	return &pipeline.Result{
		RunAt: time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC),
		KPIs: []kpi.Record{
			{KPI: "DSO (Days Sales Outstanding)", Value: 42.5, Unit: "dias"},
		},
		Balances: balance.Set{
			Invoices: []balance.InvoiceBalance{
				{ChargeID: 1, Client: "Norte", Currency: "MXN", Balance: 100},
			},
		},
	}
}

func get(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestEndpointsBeforeFirstRun(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	for _, path := range []string{"/v1/kpis", "/v1/balances", "/v1/tables", "/v1/tables/kpis"} {
		w := get(t, router, path)
		if w.Code != http.StatusNotFound {
			t.Fatalf("GET %s before first run = %d, want 404", path, w.Code)
		}
	}
}

func TestGetKPIs(t *testing.T) {
	srv, store := newTestServer(t)
	store.Set(testResult())

	w := get(t, srv.Router(), "/v1/kpis")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		KPIs []kpi.Record `json:"kpis"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.KPIs) != 1 || body.KPIs[0].Value != 42.5 {
		t.Fatalf("body = %+v", body)
	}
}

func TestGetBalances(t *testing.T) {
	srv, store := newTestServer(t)
	store.Set(testResult())

	w := get(t, srv.Router(), "/v1/balances")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Degraded bool                     `json:"degraded"`
		Invoices []balance.InvoiceBalance `json:"invoices"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Invoices) != 1 || body.Invoices[0].Client != "Norte" {
		t.Fatalf("body = %+v", body)
	}
}

func TestGetTable(t *testing.T) {
	srv, store := newTestServer(t)
	store.Set(testResult())
	router := srv.Router()

	w := get(t, router, "/v1/tables/"+pipeline.TableKPIs)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Name   string     `json:"name"`
		Header []string   `json:"header"`
		Rows   [][]string `json:"rows"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Name != pipeline.TableKPIs || len(body.Rows) != 1 {
		t.Fatalf("body = %+v", body)
	}

	// Second read hits the cache and must agree.
	again := get(t, router, "/v1/tables/"+pipeline.TableKPIs)
	if again.Code != http.StatusOK || again.Body.String() != w.Body.String() {
		t.Fatalf("cached read differs")
	}

	if w := get(t, router, "/v1/tables/no_such_table"); w.Code != http.StatusNotFound {
		t.Fatalf("unknown table = %d, want 404", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	if w := get(t, srv.Router(), "/healthz"); w.Code != http.StatusOK {
		t.Fatalf("healthz = %d", w.Code)
	}
}

func TestStoreLatest(t *testing.T) {
	store := NewStore()
	if _, ok := store.Latest(); ok {
		t.Fatalf("fresh store must be empty")
	}
	res := testResult()
	store.Set(res)
	got, ok := store.Latest()
	if !ok || got != res {
		t.Fatalf("Latest = %v, %v", got, ok)
	}
}
