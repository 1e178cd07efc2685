package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cilaosgo/pkg/catalog"
)

func TestCatalog_List(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	tests := []struct {
		name   string
		path   string
		status int
		ids    []int
	}{
		{"campings under 25 by price", "/api/catalog/lodging?subkind=camping&max_price=25&sort=price_asc", http.StatusOK, []int{21, 18, 20, 17}},
		{"text search", "/api/catalog/lodging?q=bras+rouge", http.StatusOK, []int{11}},
		{"capacity and rating", "/api/catalog/lodging?min_capacity=6&min_rating=4.5", http.StatusOK, []int{11, 9, 7}},
		{"kind is case-insensitive", "/api/catalog/Event?q=op%C3%A9ra", http.StatusOK, []int{}},
		{"unknown kind", "/api/catalog/spa", http.StatusNotFound, nil},
		{"bad number", "/api/catalog/lodging?max_price=cheap", http.StatusBadRequest, nil},
		{"bad capacity", "/api/catalog/lodging?min_capacity=two", http.StatusBadRequest, nil},
		{"bad sort", "/api/catalog/restaurant?sort=random", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.get(t, tt.path)
			require.Equal(t, tt.status, resp.StatusCode, string(body))
			if tt.ids == nil {
				var e map[string]string
				require.NoError(t, json.Unmarshal(body, &e))
				assert.NotEmpty(t, e["error"])
				return
			}
			var items []catalog.Item
			require.NoError(t, json.Unmarshal(body, &items))
			got := make([]int, len(items))
			for i, it := range items {
				got[i] = it.ID
			}
			assert.Equal(t, tt.ids, got)
		})
	}
}

func TestCatalog_Get(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	resp, body := env.get(t, "/api/catalog/restaurant/5")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var it catalog.Item
	require.NoError(t, json.Unmarshal(body, &it))
	assert.Equal(t, "Le Relais des Cimes", it.Name)
	assert.Equal(t, catalog.KindRestaurant, it.Kind)
	assert.NotEmpty(t, it.Summary)

	resp, _ = env.get(t, "/api/catalog/restaurant/99")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = env.get(t, "/api/catalog/restaurant/five")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCatalog_Nearby(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	resp, body := env.get(t, "/api/catalog/nearby?lat=-21.1339&lon=55.4708&radius=100m")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hits []catalog.Hit
	require.NoError(t, json.Unmarshal(body, &hits))
	require.Len(t, hits, 3)
	assert.Equal(t, "Ti Fleur Aimée", hits[0].Name)

	_, body = env.get(t, "/api/catalog/nearby?lat=-21.1339&lon=55.4708&radius=100&kind=activity")
	require.NoError(t, json.Unmarshal(body, &hits))
	assert.Len(t, hits, 2)

	// Default radius from config covers at least the close ones.
	_, body = env.get(t, "/api/catalog/nearby?lat=-21.1339&lon=55.4708&kind=lodging,restaurant")
	require.NoError(t, json.Unmarshal(body, &hits))
	assert.NotEmpty(t, hits)
	for _, h := range hits {
		assert.Contains(t, []catalog.Kind{catalog.KindLodging, catalog.KindRestaurant}, h.Kind)
		assert.LessOrEqual(t, h.DistanceM, 1500.0)
	}

	for _, path := range []string{
		"/api/catalog/nearby",
		"/api/catalog/nearby?lat=95&lon=55",
		"/api/catalog/nearby?lat=-21&lon=55&radius=far",
		"/api/catalog/nearby?lat=-21&lon=55&kind=spa",
		"/api/catalog/nearby?lat=NaN&lon=55.47",
		"/api/catalog/nearby?lat=-21.13&lon=Inf",
		"/api/catalog/nearby?lat=-21.13&lon=55.47&radius=NaN",
		"/api/catalog/nearby?lat=-21.13&lon=55.47&radius=Infm",
		"/api/catalog/nearby?lat=-21.13&lon=55.47&radius=-5",
	} {
		resp, _ := env.get(t, path)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
	}
}

func TestCatalog_Stats(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	resp, body := env.get(t, "/api/catalog/stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats map[catalog.Kind]catalog.KindStats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, 22, stats[catalog.KindLodging].Count)
	assert.Equal(t, 6, stats[catalog.KindLodging].Subkinds["camping"])
	assert.Equal(t, 4, stats[catalog.KindEvent].Count)
}
