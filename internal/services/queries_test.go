package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niaga-platform/service-returns/internal/clients"
	"github.com/niaga-platform/service-returns/internal/models"
)

func TestGetReturn(t *testing.T) {
	f := newFixture(2)
	ret := f.create(t)

	got, err := f.svc.GetReturn(context.Background(), ret.ID)
	require.NoError(t, err)
	assert.Equal(t, ret.ID, got.ID)
	assert.Equal(t, models.StatusRequested, got.ReturnStatus)
}

func TestListUserReturnsEnrichesProduct(t *testing.T) {
	f := newFixture(2)
	f.catalog.products[testSKU].Brand = "Vega"
	f.catalog.products[testSKU].Images = []clients.ProductImage{
		{URL: "https://cdn.example/helmet.jpg", IsPrimary: true},
	}
	f.create(t)

	out, total, err := f.svc.ListUserReturns(context.Background(), testCustomerID, &models.ReturnFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, out, 1)

	product := out[0].Product
	require.NotNil(t, product)
	assert.Equal(t, testSKU, product.SKU)
	assert.Equal(t, "Helmet", product.Name)
	assert.Equal(t, "Vega", product.Brand)
	assert.Equal(t, []string{"https://cdn.example/helmet.jpg"}, product.Images)
	assert.True(t, product.IsReturnable)
}

func TestListUserReturnsDegradesOnCatalogFailure(t *testing.T) {
	f := newFixture(2)
	f.create(t)
	f.catalog.err = errors.New("catalog unreachable")

	out, _, err := f.svc.ListUserReturns(context.Background(), testCustomerID, &models.ReturnFilter{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].Product)
	assert.Equal(t, testSKU, out[0].Product.SKU)
	assert.Empty(t, out[0].Product.Name)
}

func TestStatusCounts(t *testing.T) {
	f := newFixture(2)
	f.create(t)

	counts, total, err := f.svc.StatusCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, int64(1), counts[models.StatusRequested])
}

func TestStatistics(t *testing.T) {
	f := newFixture(2)
	f.create(t)

	stats, err := f.svc.Statistics(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalReturns)
	assert.Equal(t, 1000.0, stats.TotalRefundAmount)
	require.Len(t, stats.Stats, 1)
	assert.Equal(t, models.StatusRequested, stats.Stats[0].Status)
	assert.Equal(t, int64(1), stats.Stats[0].Count)
}
