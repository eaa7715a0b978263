package export

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickborgers/monorepo/pagegaze/internal/models"
	"github.com/nickborgers/monorepo/pagegaze/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	registry := store.NewRegistry()

	google := store.New(nil)
	google.Set(models.SignalNavigationTiming, models.NewEnvelope(models.NavigationMetrics{TTFB: 11, Load: 50}))
	google.Set(models.SignalVisit, models.NewEnvelope(models.VisitInfo{Type: models.VisitReload}))
	registry.Put("google", google)

	registry.Put("github", store.New(nil))

	srv := httptest.NewServer(New(&Config{Port: 0}, registry).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string, v any) int {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func TestExport_AllSites(t *testing.T) {
	srv := newTestServer(t)

	var body struct {
		Sites map[string]map[string]json.RawMessage `json:"sites"`
	}
	require.Equal(t, http.StatusOK, get(t, srv.URL+"/signals", &body))

	require.Len(t, body.Sites, 2)
	assert.Len(t, body.Sites["google"], 2)
	assert.Empty(t, body.Sites["github"])
}

func TestExport_Site(t *testing.T) {
	srv := newTestServer(t)

	var body map[string]struct {
		Type  string         `json:"type"`
		Value map[string]any `json:"value"`
	}
	require.Equal(t, http.StatusOK, get(t, srv.URL+"/signals/google", &body))

	require.Contains(t, body, "navigation-timing")
	assert.Equal(t, "navigation-timing", body["navigation-timing"].Type)
	assert.Equal(t, 11.0, body["navigation-timing"].Value["TTFB"])
	assert.Contains(t, body, "visit")
}

func TestExport_Signal(t *testing.T) {
	srv := newTestServer(t)

	var env struct {
		Type  string         `json:"type"`
		Value map[string]any `json:"value"`
	}
	require.Equal(t, http.StatusOK, get(t, srv.URL+"/signals/google/navigation-timing", &env))
	assert.Equal(t, "navigation-timing", env.Type)
	assert.Equal(t, 50.0, env.Value["L"])
}

func TestExport_Errors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"unknown site", "/signals/bing", http.StatusNotFound},
		{"unknown site with type", "/signals/bing/visit", http.StatusNotFound},
		{"unknown type", "/signals/google/paint", http.StatusBadRequest},
		{"type not recorded", "/signals/google/environment", http.StatusNotFound},
		{"empty store", "/signals/github/visit", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]string
			assert.Equal(t, tt.status, get(t, srv.URL+tt.path, &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestExport_Disabled(t *testing.T) {
	s := NewServer(&Config{Enabled: false}, store.NewRegistry())
	assert.Nil(t, s)
	assert.NoError(t, s.Close())
}
