package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/niaga-platform/service-returns/internal/models"
	"github.com/niaga-platform/service-returns/internal/repository"
)

// UserReturn is a return request enriched with a product summary for
// customer-facing listings.
type UserReturn struct {
	models.ReturnRequest
	Product *ReturnProductSummary `json:"product,omitempty"`
}

// ReturnProductSummary is the catalog snippet shown next to a return.
type ReturnProductSummary struct {
	SKU          string   `json:"sku"`
	Name         string   `json:"name"`
	Brand        string   `json:"brand,omitempty"`
	Images       []string `json:"images,omitempty"`
	IsReturnable bool     `json:"is_returnable"`
}

// ReturnStatistics is the aggregate payload for the stats endpoint.
type ReturnStatistics struct {
	Stats             []repository.StatusStat `json:"stats"`
	TotalReturns      int64                   `json:"total_returns"`
	TotalRefundAmount float64                 `json:"total_refund_amount"`
}

// GetReturn fetches a single return request.
func (s *ReturnLifecycleService) GetReturn(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	return s.loadReturn(ctx, id)
}

// ListReturns returns a filtered, paginated page of return requests.
func (s *ReturnLifecycleService) ListReturns(ctx context.Context, filter *models.ReturnFilter) ([]models.ReturnRequest, int64, error) {
	return s.returns.List(ctx, filter)
}

// ListDealerReturns is the fulfillment-staff view, scoped to the
// dealers the staff member covers.
func (s *ReturnLifecycleService) ListDealerReturns(ctx context.Context, dealerIDs []string, filter *models.ReturnFilter) ([]models.ReturnRequest, int64, error) {
	filter.DealerIDs = dealerIDs
	return s.returns.List(ctx, filter)
}

// ListUserReturns lists one customer's returns with product summaries
// attached. Catalog failures degrade to a bare summary rather than
// failing the listing.
func (s *ReturnLifecycleService) ListUserReturns(ctx context.Context, userID string, filter *models.ReturnFilter) ([]UserReturn, int64, error) {
	filter.CustomerID = userID
	rets, total, err := s.returns.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	out := make([]UserReturn, 0, len(rets))
	for _, ret := range rets {
		enriched := UserReturn{ReturnRequest: ret}

		product, err := s.catalog.GetProductBySKU(ctx, ret.SKU)
		if err != nil || product == nil {
			if err != nil {
				s.logger.Warn("Could not fetch product details for return listing",
					zap.String("sku", ret.SKU), zap.Error(err))
			}
			enriched.Product = &ReturnProductSummary{SKU: ret.SKU}
		} else {
			images := make([]string, 0, len(product.Images))
			for _, img := range product.Images {
				images = append(images, img.URL)
			}
			enriched.Product = &ReturnProductSummary{
				SKU:          product.SKU,
				Name:         product.Name,
				Brand:        product.Brand,
				Images:       images,
				IsReturnable: product.IsReturnable,
			}
		}
		out = append(out, enriched)
	}
	return out, total, nil
}

// StatusCounts returns the per-status breakdown across the fixed status
// enumeration, served from cache when fresh.
func (s *ReturnLifecycleService) StatusCounts(ctx context.Context) (map[models.ReturnStatus]int64, int64, error) {
	if s.stats != nil {
		if cached, _ := s.stats.GetStatusCounts(ctx); cached != nil {
			return cached.Counts, cached.Total, nil
		}
	}

	counts, total, err := s.returns.StatusCounts(ctx)
	if err != nil {
		return nil, 0, err
	}
	if s.stats != nil {
		_ = s.stats.SetStatusCounts(ctx, counts, total)
	}
	return counts, total, nil
}

// Statistics aggregates counts and refund amounts per status over an
// optional creation-date range.
func (s *ReturnLifecycleService) Statistics(ctx context.Context, startDate, endDate *time.Time) (*ReturnStatistics, error) {
	startKey, endKey := "", ""
	if startDate != nil {
		startKey = startDate.Format("2006-01-02")
	}
	if endDate != nil {
		endKey = endDate.Format("2006-01-02")
	}

	if s.stats != nil {
		var cached ReturnStatistics
		if hit, _ := s.stats.GetStats(ctx, startKey, endKey, &cached); hit {
			return &cached, nil
		}
	}

	stats, totalReturns, totalRefund, err := s.returns.Stats(ctx, startDate, endDate)
	if err != nil {
		return nil, err
	}
	result := &ReturnStatistics{
		Stats:             stats,
		TotalReturns:      totalReturns,
		TotalRefundAmount: totalRefund,
	}
	if s.stats != nil {
		_ = s.stats.SetStats(ctx, startKey, endKey, result)
	}
	return result, nil
}
