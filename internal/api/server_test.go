package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slice/havoc/internal/db"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := db.Open(":memory:", 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	server := httptest.NewServer(New(store, prom.NewRegistry()).Handler())
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestPing(t *testing.T) {
	server := testServer(t)
	status, body := get(t, server.URL+"/api/v1/ping")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, `"pong"`, body)
}

func TestPingDatabase(t *testing.T) {
	server := testServer(t)
	status, body := get(t, server.URL+"/api/v1/ping/database")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "1 + 1 = 2", body)
}

func TestMetrics(t *testing.T) {
	server := testServer(t)
	status, _ := get(t, server.URL+"/metrics")
	assert.Equal(t, http.StatusOK, status)
}

func TestUnknownRoute(t *testing.T) {
	server := testServer(t)
	status, _ := get(t, server.URL+"/api/v1/nope")
	assert.Equal(t, http.StatusNotFound, status)
}
