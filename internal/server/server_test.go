package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebunops/opsreport/internal/model"
	"github.com/kebunops/opsreport/internal/opsapi"
	"github.com/kebunops/opsreport/internal/report"
	"github.com/kebunops/opsreport/internal/server"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// ─── Fake fetcher ─────────────────────────────────────────────────────────────

type fakeFetcher struct {
	payload    *opsapi.ReportPayload
	err        error
	lastParams opsapi.ReportParams
}

func (f *fakeFetcher) Locations(context.Context) ([]model.LocationRecord, error) {
	return []model.LocationRecord{{ID: "5", Name: "GH 1"}, {ID: "7", Name: "GH 2"}}, nil
}

func (f *fakeFetcher) respond(p opsapi.ReportParams) (*opsapi.ReportPayload, error) {
	f.lastParams = p
	return f.payload, f.err
}

func (f *fakeFetcher) HPT(_ context.Context, p opsapi.ReportParams) (*opsapi.ReportPayload, error) {
	return f.respond(p)
}

func (f *fakeFetcher) Production(_ context.Context, p opsapi.ReportParams) (*opsapi.ReportPayload, error) {
	return f.respond(p)
}

func (f *fakeFetcher) Productivity(_ context.Context, p opsapi.ReportParams) (*opsapi.ReportPayload, error) {
	return f.respond(p)
}

func fp(v float64) *float64 { return &v }

func newServer(f *fakeFetcher, opts server.Options) http.Handler {
	return server.New(report.NewService(f, report.Options{}), opts).Handler()
}

func get(t *testing.T, h http.Handler, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// ─── Tests ────────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	w := get(t, newServer(&fakeFetcher{}, server.Options{Version: "1.2.3"}), "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","version":"1.2.3"}`, w.Body.String())
}

func TestLocationsSelection(t *testing.T) {
	w := get(t, newServer(&fakeFetcher{}, server.Options{}), "/api/v1/locations?select=GH%202", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var v report.LocationsView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, []string{"GH 1", "GH 2"}, v.Names)
	assert.Equal(t, []string{"GH 2"}, v.Selection)
	assert.Equal(t, "7", v.IDQuery)
}

func TestProductionReport(t *testing.T) {
	f := &fakeFetcher{payload: &opsapi.ReportPayload{KPI: &model.KPIBlock{
		Actual: fp(30), LastActual: fp(20),
		Detail: []model.KPIDetail{{Location: "GH 1", Actual: fp(10)}, {Location: "GH 2", Actual: fp(20)}},
	}}}
	h := newServer(f, server.Options{})
	w := get(t, h, "/api/v1/reports/production?locations=GH%201,GH%202&start=2025-01-01&end=2025-01-31", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var v report.ProductionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, 30.0, v.Summary.Current)
	assert.Equal(t, 50.0, v.Summary.ChangePercent)
	assert.Len(t, v.Detail, 2)
	assert.Equal(t, "5,7", f.lastParams.LocationIDs)
	assert.Equal(t, "2025-01-01", f.lastParams.Start)
	assert.Equal(t, "2025-01-31", f.lastParams.End)
}

func TestReportFetchFailureIsAlert(t *testing.T) {
	f := &fakeFetcher{err: opsapi.ErrEmpty}
	w := get(t, newServer(f, server.Options{}), "/api/v1/reports/hpt?start=2025-01-01&end=2025-01-31&pest=1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var v report.HPTView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	require.Len(t, v.Alerts, 1)
	assert.Equal(t, report.AlertEmpty, v.Alerts[0].Kind)
	assert.Equal(t, "1", f.lastParams.PestID)
}

func TestBadRangeIs400(t *testing.T) {
	h := newServer(&fakeFetcher{}, server.Options{})
	for _, q := range []string{
		"start=2025-02-01&end=2025-01-01",
		"start=2025-02-30",
		"start=01/02/2025",
	} {
		w := get(t, h, "/api/v1/reports/productivity?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	h := newServer(&fakeFetcher{}, server.Options{APIKey: "secret"})

	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/api/v1/locations", nil).Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/api/v1/locations", map[string]string{"X-API-KEY": "secret"}).Code)
	// health stays open
	assert.Equal(t, http.StatusOK, get(t, h, "/health", nil).Code)
}
