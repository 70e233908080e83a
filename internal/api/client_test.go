package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, hits *int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/factions", func(w http.ResponseWriter, r *http.Request) {
		*hits++
		json.NewEncoder(w).Encode([]FactionInfo{{ID: "orks", Name: "Orks", Datasheets: 2}})
	})
	mux.HandleFunc("/api/factions/orks/datasheets/boyz", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "boyz", "base_mm": 25, "default_count": 10})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFactionsCached(t *testing.T) {
	hits := 0
	srv := newTestServer(t, &hits)
	c := NewClient(srv.URL)

	for i := 0; i < 3; i++ {
		fs, err := c.Factions(context.Background())
		require.NoError(t, err)
		require.Len(t, fs, 1)
		assert.Equal(t, "orks", fs[0].ID)
	}
	assert.Equal(t, 1, hits)
}

func TestDatasheetLookup(t *testing.T) {
	hits := 0
	srv := newTestServer(t, &hits)
	c := NewClient(srv.URL)

	d, err := c.Datasheet(context.Background(), "orks", "boyz")
	require.NoError(t, err)
	assert.Equal(t, "boyz", d.ID)
	assert.Equal(t, 10, d.DefaultCount)

	_, err = c.Datasheet(context.Background(), "orks", "missing")
	assert.Error(t, err)
}
