package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdminServer(t *testing.T, max int) *Server {
	t.Helper()
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"index.html": indexHTML, "style.css": styleCSS})
	c := DefaultConfig()
	c.Server.HTMLPath = dir
	c.Server.Name = "admin-test"
	c.Server.MaxCacheElements = max
	s, err := New(c)
	require.NoError(t, err)
	return s
}

func doAdmin(s *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.AdminHandler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestStatusHandler(t *testing.T) {
	assert := assert.New(t)
	s := newAdminServer(t, 10)

	rec := doAdmin(s, http.MethodGet, "/status")
	assert.Equal(http.StatusOK, rec.Code)
	assert.Equal("application/json", rec.Header().Get("Content-Type"))

	var st status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal("admin-test", st.Name)
	assert.Equal(s.Cache().Root(), st.Root)
	assert.False(st.TLS)
	require.NotNil(t, st.Generation)
	assert.Equal(uint64(1), st.Generation.ID)
	assert.Equal(2, st.Generation.Entries)
	assert.Equal(4, st.Generation.Capacity)
	assert.Equal(int64(len(indexHTML)+len(styleCSS)), st.Generation.Bytes)
	assert.Empty(st.Error)
}

func TestReloadHandler(t *testing.T) {
	assert := assert.New(t)
	s := newAdminServer(t, 3)

	require.NoError(t, os.WriteFile(filepath.Join(s.Cache().Root(), "app.js"), []byte("run()"), 0o644))
	rec := doAdmin(s, http.MethodPost, "/reload")
	assert.Equal(http.StatusOK, rec.Code)
	var st status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(uint64(2), st.Generation.ID)
	assert.Equal(3, st.Generation.Entries)

	// one file over the limit, the live generation stays
	require.NoError(t, os.WriteFile(filepath.Join(s.Cache().Root(), "extra.txt"), []byte("x"), 0o644))
	rec = doAdmin(s, http.MethodPost, "/reload")
	assert.Equal(http.StatusInternalServerError, rec.Code)
	st = status{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.NotEmpty(st.Error)
	assert.Equal(uint64(2), st.Generation.ID)

	rec = doAdmin(s, http.MethodGet, "/reload")
	assert.Equal(http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsHandler(t *testing.T) {
	assert := assert.New(t)
	s := newAdminServer(t, 10)
	_, err := s.Reload()
	require.NoError(t, err)

	rec := doAdmin(s, http.MethodGet, "/metrics")
	assert.Equal(http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(body, "nvhttpd_cache_entries 2")
	assert.Contains(body, "nvhttpd_cache_generation 2")
	assert.Contains(body, `nvhttpd_cache_reloads_total{result="ok"} 2`)
	assert.Contains(body, "go_goroutines")

	rec = doAdmin(s, http.MethodGet, "/nope")
	assert.Equal(http.StatusNotFound, rec.Code)
}
