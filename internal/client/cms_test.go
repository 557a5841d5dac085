package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"bakery/storefront/internal/config"
	"bakery/storefront/internal/endpoint"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCMSConfig() config.CMSConfig {
	return config.CMSConfig{
		APIVersion:           "2024-01-01",
		Dataset:              "production",
		Token:                "secret-token",
		Timeout:              5,
		MaxRetries:           0,
		MaxRequestsPerSecond: 1000,
		CircuitBreakerDelay:  60,
	}
}

func contentServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2024-01-01/data/query/production", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Query().Get("query"), `"category"`) {
			_, _ = w.Write([]byte(`{"result": [{"_id": "cat-bread", "title": "Bread", "slug": "bread"}]}`))
			return
		}
		_, _ = w.Write([]byte(menuItemsBody))
	}))
}

func TestCMSClient_FetchCatalog(t *testing.T) {
	srv := contentServer(t)
	defer srv.Close()

	c := NewCMSClient(testCMSConfig(), endpoint.NewStaticSupplier([]string{srv.URL}))

	catalog, err := c.FetchCatalog(context.Background())
	require.NoError(t, err)
	assert.Len(t, catalog.Items, 3)
	assert.Len(t, catalog.Categories, 1)
	assert.False(t, catalog.FetchedAt.IsZero())
}

func TestCMSClient_RotatesEndpointOnQuota(t *testing.T) {
	var exhaustedHits atomic.Int32
	exhausted := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exhaustedHits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": "Quota Exceeded"}`))
	}))
	defer exhausted.Close()

	healthy := contentServer(t)
	defer healthy.Close()

	c := NewCMSClient(testCMSConfig(), endpoint.NewStaticSupplier([]string{exhausted.URL, healthy.URL}))

	categories, err := c.FetchCategories(context.Background())
	require.NoError(t, err)
	assert.Len(t, categories, 1)
	assert.Equal(t, int32(1), exhaustedHits.Load())
}

func TestCMSClient_OpensCircuitWhenEveryEndpointRefuses(t *testing.T) {
	var hits atomic.Int32
	exhausted := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`quota exceeded for project`))
	}))
	defer exhausted.Close()

	c := NewCMSClient(testCMSConfig(), endpoint.NewStaticSupplier([]string{exhausted.URL}))

	_, err := c.FetchMenuItems(context.Background())
	require.ErrorIs(t, err, ErrCircuitOpen)

	_, err = c.FetchMenuItems(context.Background())
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(1), hits.Load(), "open circuit must not reach the endpoint")
}

func TestCMSClient_HTTPError(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	c := NewCMSClient(testCMSConfig(), endpoint.NewStaticSupplier([]string{broken.URL}))

	_, err := c.FetchCategories(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCircuitOpen)
}

func TestCMSClient_NoEndpoints(t *testing.T) {
	c := NewCMSClient(testCMSConfig(), endpoint.NewStaticSupplier(nil))

	_, err := c.FetchCategories(context.Background())
	assert.Error(t, err)
}
