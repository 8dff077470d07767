package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/niaga-platform/service-returns/internal/middleware"
	"github.com/niaga-platform/service-returns/internal/models"
	"github.com/niaga-platform/service-returns/internal/services"
)

// ReturnHandler handles the returns API
type ReturnHandler struct {
	service *services.ReturnLifecycleService
	logger  *zap.Logger
}

// NewReturnHandler creates a new ReturnHandler
func NewReturnHandler(service *services.ReturnLifecycleService, logger *zap.Logger) *ReturnHandler {
	return &ReturnHandler{
		service: service,
		logger:  logger,
	}
}

func (h *ReturnHandler) returnID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("returnId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid return ID")
		return uuid.Nil, false
	}
	return id, true
}

// actor resolves the acting user from the auth claims, falling back to
// an explicit body field for service-to-service calls.
func actor(c *gin.Context, fallback string) string {
	if id := middleware.UserID(c); id != "" {
		return id
	}
	return fallback
}

// CreateReturnRequest opens a return for an order line
// POST /api/v1/returns
func (h *ReturnHandler) CreateReturnRequest(c *gin.Context) {
	var req struct {
		OrderID           string              `json:"order_id" binding:"required"`
		SKU               string              `json:"sku" binding:"required"`
		Quantity          int                 `json:"quantity"`
		ReturnReason      string              `json:"return_reason" binding:"required"`
		ReturnDescription string              `json:"return_description"`
		ReturnImages      []string            `json:"return_images"`
		RefundMethod      models.RefundMethod `json:"refund_method"`
		DeliveryChannel   models.DeliveryChannel `json:"delivery_channel"`
		CustomerID        string              `json:"customer_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Missing required fields: order_id, sku, return_reason")
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid order ID")
		return
	}

	customerID := actor(c, req.CustomerID)
	if customerID == "" {
		respondError(c, http.StatusBadRequest, "Missing customer ID")
		return
	}

	ret, err := h.service.CreateReturnRequest(c.Request.Context(), services.CreateReturnInput{
		OrderID:           orderID,
		SKU:               req.SKU,
		CustomerID:        customerID,
		Quantity:          req.Quantity,
		ReturnReason:      req.ReturnReason,
		ReturnDescription: req.ReturnDescription,
		ReturnImages:      req.ReturnImages,
		RefundMethod:      req.RefundMethod,
		DeliveryChannel:   req.DeliveryChannel,
	})
	if err != nil {
		h.logger.Warn("Create return request failed", zap.Error(err))
		respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, ret, "Return request created successfully")
}

// GetReturnRequest fetches one return
// GET /api/v1/returns/:returnId
func (h *ReturnHandler) GetReturnRequest(c *gin.Context) {
	id, ok := h.returnID(c)
	if !ok {
		return
	}

	ret, err := h.service.GetReturn(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ret, "Return request fetched successfully")
}

// parseFilter reads the shared listing query parameters.
func parseFilter(c *gin.Context) *models.ReturnFilter {
	filter := &models.ReturnFilter{
		Page:     1,
		PageSize: 10,
		SortBy:   "requestedAt",
		SortDesc: true,
	}

	filter.CustomerID = c.Query("customer_id")
	if status := c.Query("status"); status != "" {
		filter.Status = models.ReturnStatus(status)
	}
	if method := c.Query("refund_method"); method != "" {
		filter.RefundMethod = models.RefundMethod(method)
	}
	filter.Search = c.Query("search")

	if start, err := time.Parse("2006-01-02", c.Query("start_date")); err == nil {
		if end, err := time.Parse("2006-01-02", c.Query("end_date")); err == nil {
			endOfDay := end.AddDate(0, 0, 1)
			filter.StartDate = &start
			filter.EndDate = &endOfDay
		}
	}

	if page, err := strconv.Atoi(c.Query("page")); err == nil && page > 0 {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
		filter.PageSize = limit
	}
	if sortBy := c.Query("sort_by"); sortBy != "" {
		filter.SortBy = sortBy
	}
	if order := c.Query("sort_order"); order == "asc" {
		filter.SortDesc = false
	}
	return filter
}

func paginated(items interface{}, filter *models.ReturnFilter, total int64) gin.H {
	pages := total / int64(filter.PageSize)
	if total%int64(filter.PageSize) != 0 {
		pages++
	}
	return gin.H{
		"return_requests": items,
		"pagination": gin.H{
			"page":  filter.Page,
			"limit": filter.PageSize,
			"total": total,
			"pages": pages,
		},
	}
}

// ListReturnRequests lists returns with filters
// GET /api/v1/returns
func (h *ReturnHandler) ListReturnRequests(c *gin.Context) {
	filter := parseFilter(c)

	rets, total, err := h.service.ListReturns(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list return requests", zap.Error(err))
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, paginated(rets, filter, total), "Return requests fetched successfully")
}

// ListUserReturnRequests lists one customer's returns with product
// summaries attached
// GET /api/v1/returns/user/:userId
func (h *ReturnHandler) ListUserReturnRequests(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		respondError(c, http.StatusBadRequest, "User ID is required")
		return
	}
	filter := parseFilter(c)

	rets, total, err := h.service.ListUserReturns(c.Request.Context(), userID, filter)
	if err != nil {
		h.logger.Error("Failed to list user return requests",
			zap.String("user_id", userID), zap.Error(err))
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, paginated(rets, filter, total), "User return requests fetched successfully")
}

// ListDealerReturnRequests is the fulfillment-staff listing scoped to
// the staff member's dealers
// POST /api/v1/returns/fulfillment
func (h *ReturnHandler) ListDealerReturnRequests(c *gin.Context) {
	var req struct {
		DealerIDs []string `json:"dealer_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	filter := parseFilter(c)

	rets, total, err := h.service.ListDealerReturns(c.Request.Context(), req.DealerIDs, filter)
	if err != nil {
		h.logger.Error("Failed to list dealer return requests", zap.Error(err))
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, paginated(rets, filter, total), "Return requests fetched successfully")
}

// GetReturnStats aggregates counts and refund amounts per status
// GET /api/v1/returns/stats
func (h *ReturnHandler) GetReturnStats(c *gin.Context) {
	var startDate, endDate *time.Time
	if start, err := time.Parse("2006-01-02", c.Query("start_date")); err == nil {
		if end, err := time.Parse("2006-01-02", c.Query("end_date")); err == nil {
			endOfDay := end.AddDate(0, 0, 1)
			startDate, endDate = &start, &endOfDay
		}
	}

	stats, err := h.service.Statistics(c.Request.Context(), startDate, endDate)
	if err != nil {
		h.logger.Error("Failed to fetch return statistics", zap.Error(err))
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, stats, "Return statistics fetched successfully")
}

// GetReturnStatusCounts returns the per-status breakdown
// GET /api/v1/returns/status-counts
func (h *ReturnHandler) GetReturnStatusCounts(c *gin.Context) {
	counts, total, err := h.service.StatusCounts(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to fetch return status counts", zap.Error(err))
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"status_counts": counts,
		"total_returns": total,
	}, "Return status counts fetched successfully")
}

// AddNote appends a note to a return
// POST /api/v1/returns/:returnId/notes
func (h *ReturnHandler) AddNote(c *gin.Context) {
	id, ok := h.returnID(c)
	if !ok {
		return
	}
	var req struct {
		Note    string `json:"note" binding:"required"`
		AddedBy string `json:"added_by"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Note text is required")
		return
	}

	ret, err := h.service.AddNote(c.Request.Context(), id, req.Note, actor(c, req.AddedBy))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ret, "Note added successfully")
}

// ValidateReturnRequest re-checks eligibility and advances the return
// PUT /api/v1/returns/:returnId/validate
func (h *ReturnHandler) ValidateReturnRequest(c *gin.Context) {
	id, ok := h.returnID(c)
	if !ok {
		return
	}

	ret, err := h.service.ValidateReturnRequest(c.Request.Context(), id, actor(c, "system"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ret, "Return request validated successfully")
}

// SchedulePickup books the reverse pickup
// PUT /api/v1/returns/:returnId/schedule-pickup
func (h *ReturnHandler) SchedulePickup(c *gin.Context) {
	id, ok := h.returnID(c)
	if !ok {
		return
	}

	ret, err := h.service.SchedulePickup(c.Request.Context(), id, actor(c, "system"))
	if err != nil {
		h.logger.Warn("Schedule pickup failed", zap.String("return_id", id.String()), zap.Error(err))
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ret, "Pickup scheduled successfully")
}

// CompletePickup records the courier handover
// PUT /api/v1/returns/:returnId/complete-pickup
func (h *ReturnHandler) CompletePickup(c *gin.Context) {
	id, ok := h.returnID(c)
	if !ok {
		return
	}
	var req struct {
		TrackingNumber string `json:"tracking_number"`
	}
	_ = c.ShouldBindJSON(&req)

	ret, err := h.service.CompletePickup(c.Request.Context(), id, req.TrackingNumber, actor(c, "system"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ret, "Pickup completed successfully")
}

// StartInspection opens the inspection
// PUT /api/v1/returns/:returnId/start-inspection
func (h *ReturnHandler) StartInspection(c *gin.Context) {
	id, ok := h.returnID(c)
	if !ok {
		return
	}
	var req struct {
		StaffID string `json:"staff_id"`
	}
	_ = c.ShouldBindJSON(&req)

	ret, err := h.service.StartInspection(c.Request.Context(), id, actor(c, req.StaffID))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ret, "Inspection started successfully")
}

type inspectionRequest struct {
	InspectedBy     string               `json:"inspected_by"`
	SKUMatch        bool                 `json:"sku_match"`
	Condition       models.ItemCondition `json:"condition"`
	Notes           string               `json:"notes"`
	Images          []string             `json:"inspection_images"`
	IsApproved      bool                 `json:"is_approved"`
	RejectionReason string               `json:"rejection_reason"`
}

func (r inspectionRequest) toInput(c *gin.Context) services.InspectionInput {
	return services.InspectionInput{
		InspectedBy:     actor(c, r.InspectedBy),
		SKUMatch:        r.SKUMatch,
		Condition:       r.Condition,
		Notes:           r.Notes,
		Images:          r.Images,
		IsApproved:      r.IsApproved,
		RejectionReason: r.RejectionReason,
	}
}

// CompleteInspection records findings and settles the pickup-path return
// PUT /api/v1/returns/:returnId/complete-inspection
func (h *ReturnHandler) CompleteInspection(c *gin.Context) {
	id, ok := h.returnID(c)
	if !ok {
		return
	}
	var req inspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	ret, err := h.service.CompleteInspection(c.Request.Context(), id, req.toInput(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ret, "Inspection completed successfully")
}

// ProcessRefund pushes the refund through the gateway
// PUT /api/v1/returns/:returnId/process-refund
func (h *ReturnHandler) ProcessRefund(c *gin.Context) {
	id, ok := h.returnID(c)
	if !ok {
		return
	}
	var req struct {
		AdminID       string `json:"admin_id"`
		RefundNotes   string `json:"refund_notes"`
		TransactionID string `json:"transaction_id"`
	}
	_ = c.ShouldBindJSON(&req)

	ret, err := h.service.ProcessRefund(c.Request.Context(), id, services.RefundInput{
		ProcessedBy:   actor(c, req.AdminID),
		Notes:         req.RefundNotes,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		h.logger.Warn("Process refund failed", zap.String("return_id", id.String()), zap.Error(err))
		respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, ret, "Refund processed successfully")
}

// CompleteReturn closes out a refunded return
// PUT /api/v1/returns/:returnId/complete
func (h *ReturnHandler) CompleteReturn(c *gin.Context) {
	id, ok := h.returnID(c)
	if !ok {
		return
	}

	ret, err := h.service.CompleteReturn(c.Request.Context(), id, actor(c, "system"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ret, "Return completed successfully")
}

// InitiateCourierShipment books a reverse shipment with the courier
// POST /api/v1/returns/:returnId/shipment
func (h *ReturnHandler) InitiateCourierShipment(c *gin.Context) {
	id, ok := h.returnID(c)
	if !ok {
		return
	}

	ret, err := h.service.InitiateCourierShipment(c.Request.Context(), id, actor(c, "system"))
	if err != nil {
		h.logger.Warn("Initiate courier shipment failed", zap.String("return_id", id.String()), zap.Error(err))
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ret, "Courier shipment initiated successfully")
}

// StartShipmentInspection opens the inspection on a shipped-back return
// PUT /api/v1/returns/:returnId/shipment/start-inspection
func (h *ReturnHandler) StartShipmentInspection(c *gin.Context) {
	id, ok := h.returnID(c)
	if !ok {
		return
	}
	var req struct {
		InspectedBy string `json:"inspected_by"`
	}
	_ = c.ShouldBindJSON(&req)

	ret, err := h.service.StartShipmentInspection(c.Request.Context(), id, actor(c, req.InspectedBy))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ret, "Return request inspection started successfully")
}

// CompleteShipmentInspection records findings on a shipped-back return
// PUT /api/v1/returns/:returnId/shipment/complete-inspection
func (h *ReturnHandler) CompleteShipmentInspection(c *gin.Context) {
	id, ok := h.returnID(c)
	if !ok {
		return
	}
	var req inspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	ret, err := h.service.CompleteShipmentInspection(c.Request.Context(), id, req.toInput(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ret, "Return request inspection completed successfully")
}

// RejectReturnRequest rejects a return from any non-terminal state
// PUT /api/v1/returns/:returnId/reject
func (h *ReturnHandler) RejectReturnRequest(c *gin.Context) {
	id, ok := h.returnID(c)
	if !ok {
		return
	}
	var req struct {
		RejectionReason string `json:"rejection_reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Rejection reason is required")
		return
	}

	ret, err := h.service.RejectReturnRequest(c.Request.Context(), id, req.RejectionReason, actor(c, "system"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ret, "Return request rejected successfully")
}

// InitiateManualPickup switches the return to the manual courier channel
// POST /api/v1/returns/:returnId/manual-pickup
func (h *ReturnHandler) InitiateManualPickup(c *gin.Context) {
	id, ok := h.returnID(c)
	if !ok {
		return
	}

	ret, err := h.service.InitiateManualPickup(c.Request.Context(), id, actor(c, "system"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ret, "Manual pickup initiated successfully")
}

// MarkManualPickupDelivered records arrival of a manually couriered return
// PUT /api/v1/returns/:returnId/manual-pickup/delivered
func (h *ReturnHandler) MarkManualPickupDelivered(c *gin.Context) {
	id, ok := h.returnID(c)
	if !ok {
		return
	}

	ret, err := h.service.MarkManualPickupDelivered(c.Request.Context(), id, actor(c, "system"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ret, "Return marked as delivered successfully")
}
