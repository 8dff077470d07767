package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGetProductBySKU(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/catalog/products/sku/HEL-MT-01", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"success": true,
			"message": "ok",
			"data": {
				"sku": "HEL-MT-01",
				"name": "Matte Helmet",
				"brand": "Vega",
				"is_returnable": true,
				"images": [
					{"url": "https://cdn.example/a.jpg", "is_primary": false},
					{"url": "https://cdn.example/b.jpg", "is_primary": true}
				]
			}
		}`))
	}))
	defer srv.Close()

	c := NewCatalogClient(srv.URL, zap.NewNop())
	product, err := c.GetProductBySKU(context.Background(), "HEL-MT-01")
	require.NoError(t, err)
	assert.Equal(t, "Matte Helmet", product.Name)
	assert.True(t, product.IsReturnable)
	assert.Equal(t, "https://cdn.example/b.jpg", product.PrimaryImageURL())
}

func TestGetProductBySKUNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"message":"product not found"}`))
	}))
	defer srv.Close()

	c := NewCatalogClient(srv.URL, zap.NewNop())
	_, err := c.GetProductBySKU(context.Background(), "NOPE")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestPrimaryImageURLFallsBackToFirst(t *testing.T) {
	p := &Product{Images: []ProductImage{
		{URL: "https://cdn.example/first.jpg"},
		{URL: "https://cdn.example/second.jpg"},
	}}
	assert.Equal(t, "https://cdn.example/first.jpg", p.PrimaryImageURL())

	empty := &Product{}
	assert.Equal(t, "", empty.PrimaryImageURL())
}
