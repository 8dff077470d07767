package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/niaga-platform/service-returns/internal/models"
)

// ErrVersionConflict is returned when an optimistic-lock update matches
// no row, meaning a concurrent transition won the race.
var ErrVersionConflict = errors.New("return request was modified concurrently")

// ReturnRepository handles persistence of return requests
type ReturnRepository struct {
	db *gorm.DB
}

// NewReturnRepository creates a new ReturnRepository
func NewReturnRepository(db *gorm.DB) *ReturnRepository {
	return &ReturnRepository{db: db}
}

// Create inserts a new return request
func (r *ReturnRepository) Create(ctx context.Context, ret *models.ReturnRequest) error {
	return r.db.WithContext(ctx).Create(ret).Error
}

// GetByID fetches a return request by id. Returns gorm.ErrRecordNotFound
// if the record does not exist.
func (r *ReturnRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	var ret models.ReturnRequest
	if err := r.db.WithContext(ctx).First(&ret, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ret, nil
}

// FindBlockingByOrderAndSKU returns the return request that blocks a new
// attempt for the (order, sku) pair, if any. Rejected returns do not
// block: the line becomes returnable again after rejection.
func (r *ReturnRepository) FindBlockingByOrderAndSKU(ctx context.Context, orderID uuid.UUID, sku string) (*models.ReturnRequest, error) {
	var ret models.ReturnRequest
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND sku = ? AND return_status <> ?", orderID, sku, models.StatusRejected).
		First(&ret).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

// UpdateWithVersion persists all mutated fields of ret guarded by its
// version column. On success the in-memory version is bumped; if the
// stored version moved underneath us, ErrVersionConflict is returned
// and the record is left untouched.
func (r *ReturnRepository) UpdateWithVersion(ctx context.Context, ret *models.ReturnRequest) error {
	current := ret.Version
	ret.Version = current + 1

	tx := r.db.WithContext(ctx).
		Model(&models.ReturnRequest{}).
		Where("id = ? AND version = ?", ret.ID, current).
		Select("*").
		Omit("id", "created_at").
		Updates(ret)
	if tx.Error != nil {
		ret.Version = current
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		ret.Version = current
		return ErrVersionConflict
	}
	return nil
}

// FindByCourierOrderID locates the return tied to a courier booking.
// Returns nil, nil when no return carries that booking id.
func (r *ReturnRepository) FindByCourierOrderID(ctx context.Context, courierOrderID string) (*models.ReturnRequest, error) {
	var ret models.ReturnRequest
	err := r.db.WithContext(ctx).
		Where(datatypes.JSONQuery("tracking").Equals(courierOrderID, "courier_order_id")).
		First(&ret).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

// sortColumns maps API sort keys to database columns.
var sortColumns = map[string]string{
	"requestedAt":  "created_at",
	"createdAt":    "created_at",
	"updatedAt":    "updated_at",
	"returnStatus": "return_status",
	"sku":          "sku",
}

// List returns a page of return requests matching the filter plus the
// total count before pagination.
func (r *ReturnRepository) List(ctx context.Context, filter *models.ReturnFilter) ([]models.ReturnRequest, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.ReturnRequest{})

	if filter.CustomerID != "" {
		q = q.Where("return_requests.customer_id = ?", filter.CustomerID)
	}
	if len(filter.DealerIDs) > 0 {
		q = q.Where("return_requests.dealer_id IN ?", filter.DealerIDs)
	}
	if filter.Status != "" {
		q = q.Where("return_requests.return_status = ?", filter.Status)
	}
	if filter.RefundMethod != "" {
		q = q.Where(datatypes.JSONQuery("refund").Equals(string(filter.RefundMethod), "method"))
	}
	if filter.StartDate != nil && filter.EndDate != nil {
		q = q.Where("return_requests.created_at BETWEEN ? AND ?", *filter.StartDate, *filter.EndDate)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Joins("LEFT JOIN orders ON orders.id = return_requests.order_id").
			Where("return_requests.sku ILIKE ? OR return_requests.return_reason ILIKE ? OR orders.order_number ILIKE ?",
				like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 10
	}

	column, ok := sortColumns[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	order := column + " ASC"
	if filter.SortDesc {
		order = column + " DESC"
	}

	var rets []models.ReturnRequest
	err := q.Order(order).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rets).Error
	if err != nil {
		return nil, 0, err
	}
	return rets, total, nil
}

// StatusCounts returns the number of return requests per lifecycle
// status across the fixed status enumeration, plus the overall total.
func (r *ReturnRepository) StatusCounts(ctx context.Context) (map[models.ReturnStatus]int64, int64, error) {
	type row struct {
		ReturnStatus models.ReturnStatus
		Count        int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.ReturnRequest{}).
		Select("return_status, count(*) as count").
		Group("return_status").
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	counts := make(map[models.ReturnStatus]int64, len(models.AllStatuses))
	for _, s := range models.AllStatuses {
		counts[s] = 0
	}
	var total int64
	for _, rw := range rows {
		counts[rw.ReturnStatus] = rw.Count
		total += rw.Count
	}
	return counts, total, nil
}

// StatusStat is one per-status row from the statistics aggregation.
type StatusStat struct {
	Status      models.ReturnStatus `json:"status"`
	Count       int64               `json:"count"`
	TotalAmount float64             `json:"total_amount"`
}

// Stats aggregates per-status counts and refund amounts, optionally
// limited to a creation-date range.
func (r *ReturnRepository) Stats(ctx context.Context, startDate, endDate *time.Time) ([]StatusStat, int64, float64, error) {
	q := r.db.WithContext(ctx).Model(&models.ReturnRequest{})
	if startDate != nil && endDate != nil {
		q = q.Where("created_at BETWEEN ? AND ?", *startDate, *endDate)
	}

	type row struct {
		ReturnStatus models.ReturnStatus
		Count        int64
		TotalAmount  float64
	}
	var rows []row
	err := q.
		Select("return_status, count(*) as count, coalesce(sum((refund->>'amount')::numeric), 0) as total_amount").
		Group("return_status").
		Scan(&rows).Error
	if err != nil {
		return nil, 0, 0, err
	}

	stats := make([]StatusStat, 0, len(rows))
	var totalReturns int64
	var totalRefund float64
	for _, rw := range rows {
		stats = append(stats, StatusStat{Status: rw.ReturnStatus, Count: rw.Count, TotalAmount: rw.TotalAmount})
		totalReturns += rw.Count
		totalRefund += rw.TotalAmount
	}
	return stats, totalReturns, totalRefund, nil
}
