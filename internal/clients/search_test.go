package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSearchSuccess verifies the request shape and response decoding against
// the collaborator contract.
func TestSearchSuccess(t *testing.T) {
	var gotCity string
	var gotItems []SearchItem

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotCity = r.URL.Query().Get("city")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotItems))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result": [
			{"source": {"code": "ph-a", "lat": 43.24, "lon": 76.95},
			 "products": [{"sku": "sku-1", "quantity": 5, "quantity_desired": 2}],
			 "total_sum": 3000}
		]}`))
	}))
	defer server.Close()

	client := NewSearchClient(server.URL, 5*time.Second)
	pharmacies, err := client.Search(context.Background(), "QWxtYXR5", []SearchItem{
		{Sku: "sku-1", CountDesired: 2},
	})

	require.NoError(t, err)
	assert.Equal(t, "QWxtYXR5", gotCity)
	require.Len(t, gotItems, 1)
	assert.Equal(t, "sku-1", gotItems[0].Sku)

	require.Len(t, pharmacies, 1)
	assert.Equal(t, "ph-a", pharmacies[0].Source.Code)
	assert.Equal(t, int64(3000), pharmacies[0].TotalSum)
	require.Len(t, pharmacies[0].Products, 1)
	assert.Equal(t, 2, pharmacies[0].Products[0].QuantityDesired)
}

// TestSearchNon2xx verifies that any non-2xx status is an error.
func TestSearchNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewSearchClient(server.URL, 5*time.Second)
	_, err := client.Search(context.Background(), "city", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

// TestSearchMalformedBody verifies that an undecodable body is an error, not
// an empty result.
func TestSearchMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewSearchClient(server.URL, 5*time.Second)
	_, err := client.Search(context.Background(), "city", nil)
	assert.Error(t, err)
}

// TestSearchContextCancelled verifies in-flight cancellation surfaces as an
// error.
func TestSearchContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewSearchClient(server.URL, 5*time.Second)
	_, err := client.Search(ctx, "city", nil)
	assert.Error(t, err)
}
