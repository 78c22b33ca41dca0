package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/co2atlas/internal/dashboard"
	"github.com/KaramelBytes/co2atlas/internal/dataset"
	"github.com/KaramelBytes/co2atlas/internal/emissions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	td := filepath.Join("..", "..", "testdata")
	set, err := dataset.LoadAll(context.Background(), map[dataset.Kind]string{
		dataset.KindEmissions:  filepath.Join(td, "emissions.csv"),
		dataset.KindPopulation: filepath.Join(td, "population.csv"),
		dataset.KindBoundaries: filepath.Join(td, "countries.geojson"),
	}, nil)
	require.NoError(t, err)
	bundle, err := emissions.BuildBundle(set, emissions.DefaultOptions())
	require.NoError(t, err)
	b := dashboard.NewBuilder(bundle, dashboard.DefaultOptions(), nil)
	ts := httptest.NewServer(New(b, Options{Format: "svg"}, nil).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string) (int, string, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, resp.Header.Get("Content-Type"), string(body)
}

func TestIndexAndHealth(t *testing.T) {
	ts := newTestServer(t)
	code, ct, body := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, ct, "text/html")
	assert.Contains(t, body, `href="/pages/overview"`)
	assert.Contains(t, body, "data not loaded")

	code, _, body = get(t, ts.URL+"/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"ok"`)

	code, _, _ = get(t, ts.URL+"/nothing-here")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPageRoutes(t *testing.T) {
	ts := newTestServer(t)
	code, _, body := get(t, ts.URL+"/pages/by-country")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "/charts/by-country/average-all.svg")

	code, _, body = get(t, ts.URL+"/pages/visualization?year=2020")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "/charts/visualization/total-map.svg?year=2020")

	code, _, _ = get(t, ts.URL+"/pages/visualization?year=1900")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _, _ = get(t, ts.URL+"/pages/visualization?year=abc")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _, _ = get(t, ts.URL+"/pages/gdp")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	code, _, _ = get(t, ts.URL+"/pages/unknown")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestChartRoute(t *testing.T) {
	ts := newTestServer(t)
	code, ct, body := get(t, ts.URL+"/charts/by-country/trend-top.svg")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "image/svg+xml", ct)
	assert.True(t, strings.Contains(body, "<svg"))

	code, ct, body = get(t, ts.URL+"/charts/visualization/total-map.png?year=2015")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "image/png", ct)
	assert.True(t, strings.HasPrefix(body, "\x89PNG"))

	code, _, _ = get(t, ts.URL+"/charts/by-country/missing.svg")
	assert.Equal(t, http.StatusNotFound, code)
	code, _, _ = get(t, ts.URL+"/charts/by-country/trend-top.gif")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAPIPages(t *testing.T) {
	ts := newTestServer(t)
	code, ct, body := get(t, ts.URL+"/api/pages")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "application/json", ct)
	var infos []dashboard.Info
	require.NoError(t, json.Unmarshal([]byte(body), &infos))
	require.NotEmpty(t, infos)
	assert.Equal(t, "overview", infos[0].Slug)

	code, _, body = get(t, ts.URL+"/api/pages/overview")
	require.Equal(t, http.StatusOK, code)
	var p dashboard.Page
	require.NoError(t, json.Unmarshal([]byte(body), &p))
	assert.Equal(t, "overview", p.Slug)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(dashboard.NewBuilder(&emissions.Bundle{Emissions: &emissions.Table{}}, dashboard.DefaultOptions(), nil), Options{Addr: "127.0.0.1:0"}, nil)
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}
