package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListing_Aggregation(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, topic := range []string{"A", "A", "B"} {
		id := env.start(t, map[string]any{"topic": topic, "test_mode": true})
		env.waitStatus(t, id)
	}

	for _, path := range []string{"/workflows", "/patents"} {
		status, data := env.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, status)

		resp := decode[ListResponse](t, data)
		assert.Len(t, resp.Workflows, 3, path)
		assert.Equal(t, map[string]int{"A": 2, "B": 1}, resp.Summary.ByTopic, path)
		assert.Equal(t, 3, resp.Summary.ByTestMode.Test, path)
		assert.Equal(t, 0, resp.Summary.ByTestMode.Real, path)
		assert.Equal(t, 3, resp.Summary.ByStatus["completed"], path)
	}
}

func TestListing_Empty(t *testing.T) {
	env := newTestEnv(t, nil)
	status, data := env.do(t, http.MethodGet, "/workflows", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(data), `"workflows":[]`)
	assert.Equal(t, 0, decode[ListResponse](t, data).Summary.Total)
}
