package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/niaga-platform/service-returns/internal/clients"
	"github.com/niaga-platform/service-returns/internal/courier/borzo"
	"github.com/niaga-platform/service-returns/internal/events"
	"github.com/niaga-platform/service-returns/internal/gateway"
	"github.com/niaga-platform/service-returns/internal/geocode"
	"github.com/niaga-platform/service-returns/internal/models"
	"github.com/niaga-platform/service-returns/internal/repository"
)

// ReturnStore is the persistence surface the lifecycle engine needs.
type ReturnStore interface {
	Create(ctx context.Context, ret *models.ReturnRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error)
	FindBlockingByOrderAndSKU(ctx context.Context, orderID uuid.UUID, sku string) (*models.ReturnRequest, error)
	FindByCourierOrderID(ctx context.Context, courierOrderID string) (*models.ReturnRequest, error)
	UpdateWithVersion(ctx context.Context, ret *models.ReturnRequest) error
	List(ctx context.Context, filter *models.ReturnFilter) ([]models.ReturnRequest, int64, error)
	StatusCounts(ctx context.Context) (map[models.ReturnStatus]int64, int64, error)
	Stats(ctx context.Context, startDate, endDate *time.Time) ([]repository.StatusStat, int64, float64, error)
}

// OrderStore reads orders and writes back line-level return linkage.
type OrderStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Save(ctx context.Context, order *models.Order) error
}

// ProductCatalog looks up product returnability for eligibility checks.
type ProductCatalog interface {
	GetProductBySKU(ctx context.Context, sku string) (*clients.Product, error)
}

// UserDirectory resolves dealers and fulfillment staff.
type UserDirectory interface {
	GetDealer(ctx context.Context, dealerID string) (*clients.Dealer, error)
	GetFulfillmentAdmins(ctx context.Context) ([]clients.StaffUser, error)
}

// CourierBooker books reverse-logistics deliveries.
type CourierBooker interface {
	CreateOrder(ctx context.Context, req *borzo.CreateOrderRequest) (*borzo.Order, error)
}

// Geocoder resolves addresses to coordinates.
type Geocoder interface {
	Resolve(ctx context.Context, query string) (*geocode.Coordinates, error)
}

// Notifier publishes user notifications and lifecycle events.
type Notifier interface {
	PublishUserNotification(event *events.UserNotification) error
	PublishStatusChanged(event *events.ReturnStatusChangedEvent) error
}

// LifecycleConfig holds return policy and courier booking parameters.
type LifecycleConfig struct {
	ReturnWindowDays int
	DefaultWeightKg  float64
	CourierMatter    string
	FallbackPickup   geocode.Coordinates
	FallbackDrop     geocode.Coordinates
}

// ReturnLifecycleService owns the return state machine. Every mutation
// goes through an optimistic-version update; a concurrent transition
// surfaces as repository.ErrVersionConflict for the caller to retry.
type ReturnLifecycleService struct {
	returns  ReturnStore
	orders   OrderStore
	catalog  ProductCatalog
	users    UserDirectory
	courier  CourierBooker
	geocoder Geocoder
	gateway  gateway.RefundGateway
	notifier Notifier
	stats    *StatsCacheService
	logger   *zap.Logger
	cfg      LifecycleConfig
}

// NewReturnLifecycleService creates a new ReturnLifecycleService
func NewReturnLifecycleService(
	returns ReturnStore,
	orders OrderStore,
	catalog ProductCatalog,
	users UserDirectory,
	courier CourierBooker,
	geocoder Geocoder,
	refundGateway gateway.RefundGateway,
	notifier Notifier,
	stats *StatsCacheService,
	cfg LifecycleConfig,
	logger *zap.Logger,
) *ReturnLifecycleService {
	if cfg.ReturnWindowDays <= 0 {
		cfg.ReturnWindowDays = 7
	}
	if cfg.DefaultWeightKg <= 0 {
		cfg.DefaultWeightKg = borzo.DefaultWeightKg
	}
	return &ReturnLifecycleService{
		returns:  returns,
		orders:   orders,
		catalog:  catalog,
		users:    users,
		courier:  courier,
		geocoder: geocoder,
		gateway:  refundGateway,
		notifier: notifier,
		stats:    stats,
		logger:   logger,
		cfg:      cfg,
	}
}

// CreateReturnInput is the customer-facing creation payload.
type CreateReturnInput struct {
	OrderID           uuid.UUID
	SKU               string
	CustomerID        string
	Quantity          int
	ReturnReason      string
	ReturnDescription string
	ReturnImages      []string
	RefundMethod      models.RefundMethod
	DeliveryChannel   models.DeliveryChannel
}

// InspectionInput carries the findings of an inspection.
type InspectionInput struct {
	InspectedBy     string
	SKUMatch        bool
	Condition       models.ItemCondition
	Notes           string
	Images          []string
	IsApproved      bool
	RejectionReason string
}

// RefundInput carries refund processing parameters.
type RefundInput struct {
	ProcessedBy   string
	Notes         string
	TransactionID string // reference for Manual_Refund
}

// CreateReturnRequest opens a return for one (order, SKU) line. The
// eligibility snapshot is evaluated up front and an ineligible request
// is refused; only a Rejected prior return frees the line for another
// attempt.
func (s *ReturnLifecycleService) CreateReturnRequest(ctx context.Context, in CreateReturnInput) (*models.ReturnRequest, error) {
	if in.Quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if in.RefundMethod == "" {
		in.RefundMethod = models.RefundMethodOriginal
	}
	if in.DeliveryChannel == "" {
		in.DeliveryChannel = models.ChannelPrimaryCourier
	}

	order, err := s.loadOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != in.CustomerID {
		return nil, ErrNotOrderOwner
	}

	line := order.Line(in.SKU)
	if line == nil {
		return nil, ErrSKUNotInOrder
	}
	if in.Quantity > line.Quantity {
		return nil, ErrQuantityExceeds
	}

	existing, err := s.returns.FindBlockingByOrderAndSKU(ctx, in.OrderID, in.SKU)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing returns: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateReturn
	}

	eligibility := s.evaluate(ctx, line)
	if !eligibility.IsEligible {
		return nil, fmt.Errorf("%w: %s", ErrNotEligible, eligibility.Reason)
	}

	now := time.Now()
	ret := &models.ReturnRequest{
		OrderID:           in.OrderID,
		SKU:               in.SKU,
		CustomerID:        in.CustomerID,
		Quantity:          in.Quantity,
		ReturnReason:      in.ReturnReason,
		ReturnDescription: in.ReturnDescription,
		ReturnImages:      datatypes.NewJSONSlice(in.ReturnImages),

		IsEligible:           eligibility.IsEligible,
		EligibilityReason:    eligibility.Reason,
		IsWithinReturnWindow: eligibility.IsWithinReturnWindow,
		IsProductReturnable:  eligibility.IsProductReturnable,
		ReturnWindowDays:     eligibility.ReturnWindowDays,

		ReturnStatus:    models.StatusRequested,
		DeliveryChannel: in.DeliveryChannel,

		Refund: datatypes.NewJSONType(models.Refund{
			Amount: line.TotalPrice,
			Method: in.RefundMethod,
			Status: models.RefundStatusPending,
		}),
		Inspection: datatypes.NewJSONType(models.Inspection{
			Status:    models.InspectionNotStarted,
			Condition: models.ConditionNA,
		}),
		Milestones: datatypes.NewJSONType(models.Milestones{
			RequestedAt: &now,
		}),

		OriginalOrderDate:    &order.OrderDate,
		OriginalDeliveryDate: line.Tracking.DeliveredAt,
	}
	if line.DealerID != "" {
		ret.DealerID = &line.DealerID
	}

	if err := s.returns.Create(ctx, ret); err != nil {
		return nil, fmt.Errorf("failed to create return request: %w", err)
	}

	s.syncOrderLinkage(ctx, ret, true)
	s.invalidateStats(ctx)
	s.publishStatusChanged(ret, "", in.CustomerID)
	s.notifyUsers([]string{in.CustomerID}, "Return Request Created",
		fmt.Sprintf("Your return request for %s has been submitted", in.SKU))
	s.notifyAdmins(ctx, "New Return Request",
		fmt.Sprintf("Return requested for %s on order %s", in.SKU, order.OrderNumber))

	return ret, nil
}

// ValidateReturnRequest re-runs the eligibility check and, when the
// request passes, moves it to Validated and auto-schedules the reverse
// pickup on the primary courier channel. An ineligible request stays
// in Requested with the refreshed snapshot.
func (s *ReturnLifecycleService) ValidateReturnRequest(ctx context.Context, id uuid.UUID, actorID string) (*models.ReturnRequest, error) {
	ret, err := s.loadReturn(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardTransition(OpValidate, ret.ReturnStatus); err != nil {
		return nil, err
	}

	order, err := s.loadOrder(ctx, ret.OrderID)
	if err != nil {
		return nil, err
	}
	line := order.Line(ret.SKU)
	if line == nil {
		return nil, ErrSKUNotInOrder
	}

	eligibility := s.evaluate(ctx, line)
	from := ret.ReturnStatus
	ret.IsEligible = eligibility.IsEligible
	ret.EligibilityReason = eligibility.Reason
	ret.IsWithinReturnWindow = eligibility.IsWithinReturnWindow
	ret.IsProductReturnable = eligibility.IsProductReturnable
	ret.ReturnWindowDays = eligibility.ReturnWindowDays

	if eligibility.IsEligible {
		now := time.Now()
		ret.ReturnStatus = models.StatusValidated
		ms := ret.Milestones.Data()
		ms.ValidatedAt = &now
		ret.Milestones = datatypes.NewJSONType(ms)
	}

	if err := s.returns.UpdateWithVersion(ctx, ret); err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)

	verdict := "rejected"
	if eligibility.IsEligible {
		verdict = "approved"
		s.publishStatusChanged(ret, from, actorID)
	}
	s.notifyUsers([]string{ret.CustomerID}, "Return Request Validated",
		fmt.Sprintf("Your return request has been %s: %s", verdict, eligibility.Reason))

	if eligibility.IsEligible && ret.DeliveryChannel == models.ChannelPrimaryCourier {
		scheduled, err := s.SchedulePickup(ctx, id, actorID)
		if err != nil {
			s.logger.Warn("Auto pickup scheduling failed, return stays Validated",
				zap.String("return_id", id.String()), zap.Error(err))
			return ret, nil
		}
		return scheduled, nil
	}
	return ret, nil
}

// SchedulePickup books a reverse pickup with the courier and moves the
// return to Pickup_Scheduled.
func (s *ReturnLifecycleService) SchedulePickup(ctx context.Context, id uuid.UUID, actorID string) (*models.ReturnRequest, error) {
	ret, err := s.loadReturn(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardTransition(OpSchedulePickup, ret.ReturnStatus); err != nil {
		return nil, err
	}

	order, err := s.loadOrder(ctx, ret.OrderID)
	if err != nil {
		return nil, err
	}

	tracking, err := s.bookCourier(ctx, ret, order)
	if err != nil {
		return nil, fmt.Errorf("failed to book courier pickup: %w", err)
	}

	from := ret.ReturnStatus
	now := time.Now()
	ret.ReturnStatus = models.StatusPickupScheduled
	ret.Tracking = datatypes.NewJSONType(tracking)
	ms := ret.Milestones.Data()
	ms.PickupScheduledAt = &now
	ret.Milestones = datatypes.NewJSONType(ms)

	if err := s.returns.UpdateWithVersion(ctx, ret); err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)
	s.publishStatusChanged(ret, from, actorID)
	s.notifyUsers([]string{ret.CustomerID}, "Pickup Scheduled",
		fmt.Sprintf("Pickup scheduled for your return of %s", ret.SKU))

	return ret, nil
}

// CompletePickup records the courier handover and moves the return to
// Pickup_Completed.
func (s *ReturnLifecycleService) CompletePickup(ctx context.Context, id uuid.UUID, trackingNumber, actorID string) (*models.ReturnRequest, error) {
	ret, err := s.loadReturn(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardTransition(OpCompletePickup, ret.ReturnStatus); err != nil {
		return nil, err
	}

	from := ret.ReturnStatus
	now := time.Now()
	tracking := ret.Tracking.Data()
	tracking.Status = "Picked_Up"
	tracking.PickedUpAt = &now
	tracking.LastUpdatedAt = &now
	if trackingNumber != "" {
		tracking.TrackingNumber = trackingNumber
	}
	ret.Tracking = datatypes.NewJSONType(tracking)

	ret.ReturnStatus = models.StatusPickupCompleted
	ms := ret.Milestones.Data()
	ms.PickupCompletedAt = &now
	ret.Milestones = datatypes.NewJSONType(ms)

	if err := s.returns.UpdateWithVersion(ctx, ret); err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)
	s.publishStatusChanged(ret, from, actorID)
	if ret.DealerID != nil {
		s.notifyUsers([]string{*ret.DealerID}, "Return Item Received",
			fmt.Sprintf("Return item %s received and ready for inspection", ret.SKU))
	}

	return ret, nil
}

// StartInspection opens the inspection on a picked-up return.
func (s *ReturnLifecycleService) StartInspection(ctx context.Context, id uuid.UUID, staffID string) (*models.ReturnRequest, error) {
	return s.startInspection(ctx, id, staffID, OpStartInspection, models.StatusUnderInspection)
}

// StartShipmentInspection opens the inspection on a shipped-back return.
func (s *ReturnLifecycleService) StartShipmentInspection(ctx context.Context, id uuid.UUID, staffID string) (*models.ReturnRequest, error) {
	return s.startInspection(ctx, id, staffID, OpStartShipmentInspection, models.StatusInspectionStarted)
}

func (s *ReturnLifecycleService) startInspection(ctx context.Context, id uuid.UUID, staffID string, op Operation, target models.ReturnStatus) (*models.ReturnRequest, error) {
	ret, err := s.loadReturn(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardTransition(op, ret.ReturnStatus); err != nil {
		return nil, err
	}

	from := ret.ReturnStatus
	now := time.Now()
	inspection := ret.Inspection.Data()
	inspection.InspectedBy = staffID
	inspection.StartedAt = &now
	inspection.Status = models.InspectionInProgress
	ret.Inspection = datatypes.NewJSONType(inspection)

	ret.ReturnStatus = target
	ms := ret.Milestones.Data()
	ms.InspectionStartedAt = &now
	ret.Milestones = datatypes.NewJSONType(ms)

	if err := s.returns.UpdateWithVersion(ctx, ret); err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)
	s.publishStatusChanged(ret, from, staffID)
	return ret, nil
}

// CompleteInspection records the findings on a pickup-path return and
// settles it as Approved or Rejected.
func (s *ReturnLifecycleService) CompleteInspection(ctx context.Context, id uuid.UUID, in InspectionInput) (*models.ReturnRequest, error) {
	ret, err := s.loadReturn(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardTransition(OpCompleteInspection, ret.ReturnStatus); err != nil {
		return nil, err
	}

	from := ret.ReturnStatus
	now := time.Now()
	s.applyInspectionFindings(ret, in, now)

	if in.IsApproved {
		ret.ReturnStatus = models.StatusApproved
	} else {
		ret.ReturnStatus = models.StatusRejected
		ret.RejectReason = in.RejectionReason
		ms := ret.Milestones.Data()
		ms.RejectedAt = &now
		ret.Milestones = datatypes.NewJSONType(ms)
	}

	if err := s.returns.UpdateWithVersion(ctx, ret); err != nil {
		return nil, err
	}
	if !in.IsApproved {
		s.syncOrderLinkage(ctx, ret, false)
	}
	s.invalidateStats(ctx)
	s.publishStatusChanged(ret, from, in.InspectedBy)

	if in.IsApproved {
		s.notifyUsers([]string{ret.CustomerID}, "Return Approved",
			"Your return has been approved and will be processed for refund")
		s.notifyAdmins(ctx, "Return Ready for Refund",
			fmt.Sprintf("Return %s approved and ready for refund processing", ret.SKU))
	} else {
		s.notifyUsers([]string{ret.CustomerID}, "Return Rejected",
			fmt.Sprintf("Your return has been rejected: %s", in.RejectionReason))
	}

	return ret, nil
}

// CompleteShipmentInspection records the findings on a shipment-path
// return. The refund or rejection decision follows as a separate step.
func (s *ReturnLifecycleService) CompleteShipmentInspection(ctx context.Context, id uuid.UUID, in InspectionInput) (*models.ReturnRequest, error) {
	ret, err := s.loadReturn(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardTransition(OpCompleteShipmentInspection, ret.ReturnStatus); err != nil {
		return nil, err
	}

	from := ret.ReturnStatus
	now := time.Now()
	s.applyInspectionFindings(ret, in, now)
	ret.ReturnStatus = models.StatusInspectionCompleted

	if err := s.returns.UpdateWithVersion(ctx, ret); err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)
	s.publishStatusChanged(ret, from, in.InspectedBy)
	return ret, nil
}

func (s *ReturnLifecycleService) applyInspectionFindings(ret *models.ReturnRequest, in InspectionInput, now time.Time) {
	inspection := ret.Inspection.Data()
	if in.InspectedBy != "" {
		inspection.InspectedBy = in.InspectedBy
	}
	inspection.SKUMatch = in.SKUMatch
	inspection.Condition = in.Condition
	inspection.Notes = in.Notes
	inspection.Images = in.Images
	inspection.IsApproved = in.IsApproved
	inspection.Rejection = in.RejectionReason
	inspection.CompletedAt = &now
	inspection.Status = models.InspectionCompleted
	ret.Inspection = datatypes.NewJSONType(inspection)

	ms := ret.Milestones.Data()
	ms.InspectionCompletedAt = &now
	ret.Milestones = datatypes.NewJSONType(ms)
}

// ProcessRefund pushes the refund through the configured gateway. Any
// gateway failure, transport or decline, leaves the return in its
// current status so the admin can retry or reject once the underlying
// problem is resolved. The return only reaches Refund_Processed on
// gateway success.
func (s *ReturnLifecycleService) ProcessRefund(ctx context.Context, id uuid.UUID, in RefundInput) (*models.ReturnRequest, error) {
	ret, err := s.loadReturn(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardTransition(OpProcessRefund, ret.ReturnStatus); err != nil {
		return nil, err
	}
	if ret.ReturnStatus == models.StatusInspectionCompleted && !ret.Inspection.Data().IsApproved {
		return nil, fmt.Errorf("%w: inspection did not approve the return", ErrInvalidTransition)
	}

	from := ret.ReturnStatus
	now := time.Now()
	refund := ret.Refund.Data()
	if refund.IdempotencyKey == "" {
		refund.IdempotencyKey = uuid.NewString()
	}

	switch refund.Method {
	case models.RefundMethodManual:
		refund.TransactionID = in.TransactionID

	default:
		order, err := s.loadOrder(ctx, ret.OrderID)
		if err != nil {
			return nil, err
		}
		result, err := s.gateway.Refund(ctx, gateway.RefundRequest{
			PaymentID: order.PaymentID,
			Amount:    refund.Amount,
			Receipt:   refund.IdempotencyKey,
			Notes: map[string]string{
				"return_id": ret.ID.String(),
				"sku":       ret.SKU,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRefundFailed, err)
		}
		if !result.Success {
			refund.Status = models.RefundStatusFailed
			refund.Notes = result.Message
			ret.Refund = datatypes.NewJSONType(refund)
			if err := s.returns.UpdateWithVersion(ctx, ret); err != nil {
				return nil, err
			}
			s.notifyAdmins(ctx, "Refund Failed",
				fmt.Sprintf("Refund for return %s was declined: %s", ret.ID, result.Message))
			return nil, fmt.Errorf("%w: %s", ErrRefundFailed, result.Message)
		}
		refund.TransactionID = result.TransactionID
	}

	refund.Status = models.RefundStatusProcessed
	refund.ProcessedBy = in.ProcessedBy
	refund.ProcessedAt = &now
	if in.Notes != "" {
		refund.Notes = in.Notes
	}
	ret.Refund = datatypes.NewJSONType(refund)

	ret.ReturnStatus = models.StatusRefundProcessed
	ms := ret.Milestones.Data()
	ms.RefundInitiatedAt = &now
	ret.Milestones = datatypes.NewJSONType(ms)

	if err := s.returns.UpdateWithVersion(ctx, ret); err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)
	s.publishStatusChanged(ret, from, in.ProcessedBy)
	s.notifyUsers([]string{ret.CustomerID}, "Refund Processed",
		fmt.Sprintf("Your refund of ₹%.2f has been processed successfully", refund.Amount))

	return ret, nil
}

// CompleteReturn closes out a refunded return.
func (s *ReturnLifecycleService) CompleteReturn(ctx context.Context, id uuid.UUID, actorID string) (*models.ReturnRequest, error) {
	ret, err := s.loadReturn(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardTransition(OpCompleteReturn, ret.ReturnStatus); err != nil {
		return nil, err
	}

	from := ret.ReturnStatus
	now := time.Now()
	ret.ReturnStatus = models.StatusCompleted
	refund := ret.Refund.Data()
	refund.Status = models.RefundStatusCompleted
	refund.CompletedAt = &now
	ret.Refund = datatypes.NewJSONType(refund)
	ms := ret.Milestones.Data()
	ms.CompletedAt = &now
	ms.RefundCompletedAt = &now
	ret.Milestones = datatypes.NewJSONType(ms)

	if err := s.returns.UpdateWithVersion(ctx, ret); err != nil {
		return nil, err
	}
	// Completed keeps the line marked returned; only Rejected frees it.
	s.syncOrderLinkage(ctx, ret, true)
	s.invalidateStats(ctx)
	s.publishStatusChanged(ret, from, actorID)
	s.notifyUsers([]string{ret.CustomerID}, "Return Completed",
		"Your return process has been completed successfully")

	return ret, nil
}

// InitiateCourierShipment books a courier shipment from the customer
// back to the dealer and moves the return to Shipment_Initiated.
func (s *ReturnLifecycleService) InitiateCourierShipment(ctx context.Context, id uuid.UUID, actorID string) (*models.ReturnRequest, error) {
	ret, err := s.loadReturn(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardTransition(OpInitiateCourierShipment, ret.ReturnStatus); err != nil {
		return nil, err
	}

	order, err := s.loadOrder(ctx, ret.OrderID)
	if err != nil {
		return nil, err
	}

	tracking, err := s.bookCourier(ctx, ret, order)
	if err != nil {
		return nil, fmt.Errorf("failed to book courier shipment: %w", err)
	}

	from := ret.ReturnStatus
	now := time.Now()
	ret.ReturnStatus = models.StatusShipmentInitiated
	ret.Tracking = datatypes.NewJSONType(tracking)
	ms := ret.Milestones.Data()
	ms.ShipmentInitiatedAt = &now
	ret.Milestones = datatypes.NewJSONType(ms)

	if err := s.returns.UpdateWithVersion(ctx, ret); err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)
	s.publishStatusChanged(ret, from, actorID)
	s.notifyUsers([]string{ret.CustomerID}, "Return Shipment Initiated",
		fmt.Sprintf("A courier has been booked to collect your return of %s", ret.SKU))

	return ret, nil
}

// InitiateManualPickup switches the return to the manual courier
// channel and marks the shipment as started without a platform booking.
func (s *ReturnLifecycleService) InitiateManualPickup(ctx context.Context, id uuid.UUID, actorID string) (*models.ReturnRequest, error) {
	ret, err := s.loadReturn(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardTransition(OpInitiateManualPickup, ret.ReturnStatus); err != nil {
		return nil, err
	}

	from := ret.ReturnStatus
	now := time.Now()
	ret.DeliveryChannel = models.ChannelManualCourier
	tracking := ret.Tracking.Data()
	tracking.Status = "Confirmed"
	tracking.ConfirmedAt = &now
	tracking.LastUpdatedAt = &now
	ret.Tracking = datatypes.NewJSONType(tracking)

	ret.ReturnStatus = models.StatusShipmentInitiated
	ms := ret.Milestones.Data()
	ms.ShipmentInitiatedAt = &now
	ret.Milestones = datatypes.NewJSONType(ms)

	if err := s.returns.UpdateWithVersion(ctx, ret); err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)
	s.publishStatusChanged(ret, from, actorID)
	return ret, nil
}

// MarkManualPickupDelivered records arrival of a manually couriered
// return and moves it to Shipment_Completed.
func (s *ReturnLifecycleService) MarkManualPickupDelivered(ctx context.Context, id uuid.UUID, actorID string) (*models.ReturnRequest, error) {
	ret, err := s.loadReturn(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardTransition(OpMarkManualDelivered, ret.ReturnStatus); err != nil {
		return nil, err
	}

	from := ret.ReturnStatus
	now := time.Now()
	tracking := ret.Tracking.Data()
	tracking.Status = "Delivered"
	tracking.DeliveredAt = &now
	tracking.LastUpdatedAt = &now
	ret.Tracking = datatypes.NewJSONType(tracking)

	ret.ReturnStatus = models.StatusShipmentCompleted
	ms := ret.Milestones.Data()
	ms.ShipmentCompletedAt = &now
	ret.Milestones = datatypes.NewJSONType(ms)

	if err := s.returns.UpdateWithVersion(ctx, ret); err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)
	s.publishStatusChanged(ret, from, actorID)
	return ret, nil
}

// RejectReturnRequest rejects a return from any non-terminal state and
// frees the order line for a fresh attempt.
func (s *ReturnLifecycleService) RejectReturnRequest(ctx context.Context, id uuid.UUID, reason, actorID string) (*models.ReturnRequest, error) {
	ret, err := s.loadReturn(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardTransition(OpReject, ret.ReturnStatus); err != nil {
		return nil, err
	}

	from := ret.ReturnStatus
	now := time.Now()
	ret.ReturnStatus = models.StatusRejected
	ret.RejectReason = reason
	ms := ret.Milestones.Data()
	ms.RejectedAt = &now
	ret.Milestones = datatypes.NewJSONType(ms)

	if err := s.returns.UpdateWithVersion(ctx, ret); err != nil {
		return nil, err
	}
	s.syncOrderLinkage(ctx, ret, false)
	s.invalidateStats(ctx)
	s.publishStatusChanged(ret, from, actorID)
	s.notifyUsers([]string{ret.CustomerID}, "Return Rejected",
		fmt.Sprintf("Your return has been rejected: %s", reason))

	return ret, nil
}

// AddNote appends an audit note to the return.
func (s *ReturnLifecycleService) AddNote(ctx context.Context, id uuid.UUID, text, addedBy string) (*models.ReturnRequest, error) {
	ret, err := s.loadReturn(ctx, id)
	if err != nil {
		return nil, err
	}

	notes := []models.Note(ret.Notes)
	notes = append(notes, models.Note{Text: text, AddedBy: addedBy, AddedAt: time.Now()})
	ret.Notes = datatypes.NewJSONSlice(notes)

	if err := s.returns.UpdateWithVersion(ctx, ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// HandleCourierTracking applies a courier webhook relay event to the
// matching return's tracking sub-record. Lifecycle status is not
// advanced from here; staff confirm handovers explicitly.
func (s *ReturnLifecycleService) HandleCourierTracking(event *events.CourierTrackingEvent) error {
	ctx := context.Background()

	ret, err := s.returns.FindByCourierOrderID(ctx, event.CourierOrderID)
	if err != nil {
		return fmt.Errorf("failed to look up return for courier order: %w", err)
	}
	if ret == nil {
		s.logger.Debug("Courier tracking event for unknown order",
			zap.String("courier_order_id", event.CourierOrderID))
		return nil
	}

	now := time.Now()
	tracking := ret.Tracking.Data()
	tracking.Status = event.Status
	if event.TrackingNumber != "" {
		tracking.TrackingNumber = event.TrackingNumber
	}
	if event.TrackingURL != "" {
		tracking.TrackingURL = event.TrackingURL
	}
	tracking.LastUpdatedAt = &now
	ret.Tracking = datatypes.NewJSONType(tracking)

	return s.returns.UpdateWithVersion(ctx, ret)
}

// bookCourier books a reverse delivery: pickup at the customer, drop at
// the dealer. Geocoding failures fall back to configured coordinates so
// an unreachable geocoder never blocks the booking.
func (s *ReturnLifecycleService) bookCourier(ctx context.Context, ret *models.ReturnRequest, order *models.Order) (models.TrackingInfo, error) {
	customer := order.Customer.Data()
	line := order.Line(ret.SKU)

	weightKg := s.cfg.DefaultWeightKg
	if line != nil && line.Tracking.WeightKg > 0 {
		weightKg = line.Tracking.WeightKg
	}

	pickupCoords := s.resolveCoords(ctx, customer.Pincode, s.cfg.FallbackPickup)

	dropAddress := "Dealer Warehouse"
	dropContact := borzo.ContactPerson{Name: "Dealer", Phone: "0000000000"}
	dropQuery := ""
	if ret.DealerID != nil {
		dealer, err := s.users.GetDealer(ctx, *ret.DealerID)
		if err != nil {
			s.logger.Warn("Failed to fetch dealer for courier booking",
				zap.String("dealer_id", *ret.DealerID), zap.Error(err))
		} else if dealer != nil {
			dropAddress = dealer.Address
			dropContact = borzo.ContactPerson{Name: dealer.Name, Phone: dealer.Phone}
			dropQuery = dealer.Pincode
		}
	}
	dropCoords := s.resolveCoords(ctx, dropQuery, s.cfg.FallbackDrop)

	clientOrderID := fmt.Sprintf("RTN,%s,%s", ret.ID, ret.SKU)
	idempotencyKey := uuid.NewString()

	req := &borzo.CreateOrderRequest{
		Type:                  "standard",
		Matter:                s.cfg.CourierMatter,
		TotalWeightKg:         strconv.FormatFloat(weightKg, 'f', -1, 64),
		InsuranceAmount:       "0.00",
		VehicleTypeID:         borzo.VehicleTypeForWeight(weightKg),
		IsClientNotification:  true,
		IsContactNotification: true,
		Points: []borzo.Point{
			{
				Address: customer.Address,
				ContactPerson: borzo.ContactPerson{
					Name:  customer.Name,
					Phone: customer.Phone,
				},
				Latitude:      pickupCoords.Latitude,
				Longitude:     pickupCoords.Longitude,
				ClientOrderID: clientOrderID,
				Note:          idempotencyKey,
			},
			{
				Address:       dropAddress,
				ContactPerson: dropContact,
				Latitude:      dropCoords.Latitude,
				Longitude:     dropCoords.Longitude,
				ClientOrderID: clientOrderID,
			},
		},
	}

	courierOrder, err := s.courier.CreateOrder(ctx, req)
	if err != nil {
		return models.TrackingInfo{}, err
	}

	now := time.Now()
	tracking := ret.Tracking.Data()
	tracking.CourierOrderID = strconv.FormatInt(courierOrder.OrderID, 10)
	tracking.TrackingNumber = courierOrder.TrackingNumber
	if len(courierOrder.Points) > 1 {
		tracking.TrackingURL = courierOrder.Points[1].TrackingURL
	}
	tracking.Status = "Confirmed"
	tracking.PaymentAmount = parseAmount(courierOrder.PaymentAmount)
	tracking.DeliveryFeeAmount = parseAmount(courierOrder.DeliveryFeeAmount)
	tracking.WeightFeeAmount = parseAmount(courierOrder.WeightFeeAmount)
	tracking.WeightKg = weightKg
	tracking.IdempotencyKey = idempotencyKey
	tracking.ConfirmedAt = &now
	tracking.LastUpdatedAt = &now
	return tracking, nil
}

func (s *ReturnLifecycleService) resolveCoords(ctx context.Context, query string, fallback geocode.Coordinates) geocode.Coordinates {
	if query == "" {
		return fallback
	}
	coords, err := s.geocoder.Resolve(ctx, query)
	if err != nil {
		s.logger.Warn("Geocoding failed, using fallback coordinates",
			zap.String("query", query), zap.Error(err))
		return fallback
	}
	if coords == nil {
		return fallback
	}
	return *coords
}

func parseAmount(v string) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

// evaluate runs the eligibility check for an order line, fetching the
// catalog returnability flag fail-closed.
func (s *ReturnLifecycleService) evaluate(ctx context.Context, line *models.OrderLine) EligibilityResult {
	product, err := s.catalog.GetProductBySKU(ctx, line.SKU)
	lookupFailed := err != nil || product == nil
	if err != nil {
		s.logger.Warn("Catalog lookup failed, treating product as non-returnable",
			zap.String("sku", line.SKU), zap.Error(err))
	}
	returnable := false
	if !lookupFailed {
		returnable = product.IsReturnable
	}

	return EvaluateEligibility(EligibilityInput{
		DeliveredAt:         line.Tracking.DeliveredAt,
		ReturnWindowDays:    s.cfg.ReturnWindowDays,
		ProductReturnable:   returnable,
		ProductLookupFailed: lookupFailed,
		Now:                 time.Now(),
	})
}

func (s *ReturnLifecycleService) loadReturn(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	ret, err := s.returns.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReturnNotFound
		}
		return nil, fmt.Errorf("failed to load return request: %w", err)
	}
	return ret, nil
}

func (s *ReturnLifecycleService) loadOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return order, nil
}

// syncOrderLinkage mirrors the return's existence onto the order line.
// Best-effort: linkage failures are logged, never rolled back into the
// lifecycle transition.
func (s *ReturnLifecycleService) syncOrderLinkage(ctx context.Context, ret *models.ReturnRequest, returned bool) {
	order, err := s.orders.GetByID(ctx, ret.OrderID)
	if err != nil {
		s.logger.Error("Failed to load order for linkage update",
			zap.String("order_id", ret.OrderID.String()), zap.Error(err))
		return
	}
	line := order.Line(ret.SKU)
	if line == nil {
		return
	}

	if returned {
		id := ret.ID
		line.ReturnInfo.IsReturned = true
		line.ReturnInfo.ReturnID = &id
	} else {
		line.ReturnInfo.IsReturned = false
		line.ReturnInfo.ReturnID = nil
	}
	order.SetLine(*line)

	if err := s.orders.Save(ctx, order); err != nil {
		s.logger.Error("Failed to save order linkage update",
			zap.String("order_id", ret.OrderID.String()), zap.Error(err))
	}
}

func (s *ReturnLifecycleService) invalidateStats(ctx context.Context) {
	if s.stats != nil {
		s.stats.Invalidate(ctx)
	}
}

// notifyUsers is best-effort: a broken broker never fails a transition.
func (s *ReturnLifecycleService) notifyUsers(userIDs []string, title, message string) {
	if s.notifier == nil || len(userIDs) == 0 {
		return
	}
	err := s.notifier.PublishUserNotification(&events.UserNotification{
		UserIDs:  userIDs,
		Title:    title,
		Message:  message,
		Category: "Return",
	})
	if err != nil {
		s.logger.Warn("Failed to publish user notification",
			zap.String("title", title), zap.Error(err))
	}
}

func (s *ReturnLifecycleService) notifyAdmins(ctx context.Context, title, message string) {
	if s.notifier == nil || s.users == nil {
		return
	}
	admins, err := s.users.GetFulfillmentAdmins(ctx)
	if err != nil {
		s.logger.Warn("Failed to fetch fulfillment admins", zap.Error(err))
		return
	}
	ids := make([]string, 0, len(admins))
	for _, a := range admins {
		ids = append(ids, a.ID)
	}
	s.notifyUsers(ids, title, message)
}

func (s *ReturnLifecycleService) publishStatusChanged(ret *models.ReturnRequest, from models.ReturnStatus, actorID string) {
	if s.notifier == nil {
		return
	}
	dealerID := ""
	if ret.DealerID != nil {
		dealerID = *ret.DealerID
	}
	err := s.notifier.PublishStatusChanged(&events.ReturnStatusChangedEvent{
		ReturnID:   ret.ID,
		OrderID:    ret.OrderID.String(),
		SKU:        ret.SKU,
		CustomerID: ret.CustomerID,
		DealerID:   dealerID,
		FromStatus: string(from),
		ToStatus:   string(ret.ReturnStatus),
		ActorID:    actorID,
	})
	if err != nil {
		s.logger.Warn("Failed to publish status change event",
			zap.String("return_id", ret.ID.String()), zap.Error(err))
	}
}
