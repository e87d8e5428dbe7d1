package review

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-lifecycle-service/internal/config"
	"asset-lifecycle-service/internal/core/domain"
)

func TestClient_RunReview(t *testing.T) {
	var got reviewRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/reviews", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"approved": true, "summary": "matches references"}`))
	}))
	defer srv.Close()

	c := NewClient(&config.ReviewConfig{Enabled: true, URL: srv.URL + "/", Token: "secret"})
	approved, err := c.RunReview(t.Context(), "https://cdn/abc123.glb", nil)
	require.NoError(t, err)
	assert.True(t, approved)
	assert.Equal(t, "https://cdn/abc123.glb", got.ModelURL)
	assert.Empty(t, got.ReferenceImages)
}

func TestClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(&config.ReviewConfig{Enabled: true, URL: srv.URL})
	_, err := c.RunReview(t.Context(), "loc", nil)
	assert.ErrorIs(t, err, domain.ErrReviewUnavailable)
}

func TestClient_Disabled(t *testing.T) {
	c := NewClient(&config.ReviewConfig{Enabled: false})
	_, err := c.RunReview(t.Context(), "loc", nil)
	assert.ErrorIs(t, err, domain.ErrReviewUnavailable)
}
