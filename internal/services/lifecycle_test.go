package services

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

// memReturnStore is an in-memory ReturnStore with the same
// optimistic-version semantics as the gorm repository.
type memReturnStore struct {
	items     map[uuid.UUID]*models.ReturnRequest
	updateErr error
}

func newMemReturnStore() *memReturnStore {
	return &memReturnStore{items: make(map[uuid.UUID]*models.ReturnRequest)}
}

func (m *memReturnStore) Create(_ context.Context, ret *models.ReturnRequest) error {
	if ret.ID == uuid.Nil {
		ret.ID = uuid.New()
	}
	ret.Version = 1
	cp := *ret
	m.items[ret.ID] = &cp
	return nil
}

func (m *memReturnStore) GetByID(_ context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	stored, ok := m.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *stored
	return &cp, nil
}

func (m *memReturnStore) FindBlockingByOrderAndSKU(_ context.Context, orderID uuid.UUID, sku string) (*models.ReturnRequest, error) {
	for _, r := range m.items {
		if r.OrderID == orderID && r.SKU == sku && r.ReturnStatus != models.StatusRejected {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memReturnStore) FindByCourierOrderID(_ context.Context, courierOrderID string) (*models.ReturnRequest, error) {
	for _, r := range m.items {
		if r.Tracking.Data().CourierOrderID == courierOrderID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memReturnStore) UpdateWithVersion(_ context.Context, ret *models.ReturnRequest) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	stored, ok := m.items[ret.ID]
	if !ok || stored.Version != ret.Version {
		return repository.ErrVersionConflict
	}
	ret.Version++
	cp := *ret
	m.items[ret.ID] = &cp
	return nil
}

func (m *memReturnStore) List(_ context.Context, filter *models.ReturnFilter) ([]models.ReturnRequest, int64, error) {
	var out []models.ReturnRequest
	for _, r := range m.items {
		if filter.CustomerID != "" && r.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && r.ReturnStatus != filter.Status {
			continue
		}
		out = append(out, *r)
	}
	return out, int64(len(out)), nil
}

func (m *memReturnStore) StatusCounts(_ context.Context) (map[models.ReturnStatus]int64, int64, error) {
	counts := make(map[models.ReturnStatus]int64)
	var total int64
	for _, r := range m.items {
		counts[r.ReturnStatus]++
		total++
	}
	return counts, total, nil
}

func (m *memReturnStore) Stats(_ context.Context, _, _ *time.Time) ([]repository.StatusStat, int64, float64, error) {
	byStatus := make(map[models.ReturnStatus]*repository.StatusStat)
	var total int64
	var amount float64
	for _, r := range m.items {
		stat, ok := byStatus[r.ReturnStatus]
		if !ok {
			stat = &repository.StatusStat{Status: r.ReturnStatus}
			byStatus[r.ReturnStatus] = stat
		}
		stat.Count++
		stat.TotalAmount += r.Refund.Data().Amount
		total++
		amount += r.Refund.Data().Amount
	}
	var out []repository.StatusStat
	for _, s := range byStatus {
		out = append(out, *s)
	}
	return out, total, amount, nil
}

type memOrderStore struct {
	items map[uuid.UUID]*models.Order
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{items: make(map[uuid.UUID]*models.Order)}
}

func (m *memOrderStore) put(order *models.Order) {
	m.items[order.ID] = order
}

func (m *memOrderStore) GetByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	stored, ok := m.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *stored
	cp.Lines = datatypes.NewJSONSlice(append([]models.OrderLine(nil), []models.OrderLine(stored.Lines)...))
	return &cp, nil
}

func (m *memOrderStore) Save(_ context.Context, order *models.Order) error {
	m.items[order.ID] = order
	return nil
}

type fakeCatalog struct {
	products map[string]*clients.Product
	err      error
}

func (f *fakeCatalog) GetProductBySKU(_ context.Context, sku string) (*clients.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.products[sku], nil
}

type fakeUsers struct {
	dealer *clients.Dealer
	admins []clients.StaffUser
}

func (f *fakeUsers) GetDealer(_ context.Context, _ string) (*clients.Dealer, error) {
	return f.dealer, nil
}

func (f *fakeUsers) GetFulfillmentAdmins(_ context.Context) ([]clients.StaffUser, error) {
	return f.admins, nil
}

type fakeCourier struct {
	order   *borzo.Order
	err     error
	calls   int
	lastReq *borzo.CreateOrderRequest
}

func (f *fakeCourier) CreateOrder(_ context.Context, req *borzo.CreateOrderRequest) (*borzo.Order, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.order, nil
}

type fakeGeocoder struct {
	coords *geocode.Coordinates
	err    error
}

func (f *fakeGeocoder) Resolve(_ context.Context, _ string) (*geocode.Coordinates, error) {
	return f.coords, f.err
}

type fakeRefundGateway struct {
	result  *gateway.RefundResult
	err     error
	calls   int
	lastReq gateway.RefundRequest
}

func (f *fakeRefundGateway) Refund(_ context.Context, req gateway.RefundRequest) (*gateway.RefundResult, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeNotifier struct {
	notifications []*events.UserNotification
	statusEvents  []*events.ReturnStatusChangedEvent
}

func (f *fakeNotifier) PublishUserNotification(e *events.UserNotification) error {
	f.notifications = append(f.notifications, e)
	return nil
}

func (f *fakeNotifier) PublishStatusChanged(e *events.ReturnStatusChangedEvent) error {
	f.statusEvents = append(f.statusEvents, e)
	return nil
}

type fixture struct {
	svc      *ReturnLifecycleService
	returns  *memReturnStore
	orders   *memOrderStore
	catalog  *fakeCatalog
	courier  *fakeCourier
	gateway  *fakeRefundGateway
	notifier *fakeNotifier
	orderID  uuid.UUID
}

const (
	testCustomerID = "cust-1"
	testDealerID   = "dealer-1"
	testSKU        = "SKU-1"
	testPaymentID  = "pay_abc123"
)

func newFixture(deliveredDaysAgo int) *fixture {
	now := time.Now()
	delivered := now.AddDate(0, 0, -deliveredDaysAgo)
	orderID := uuid.New()

	order := &models.Order{
		ID:          orderID,
		OrderNumber: "ORD-1001",
		OrderDate:   now.AddDate(0, 0, -deliveredDaysAgo-3),
		CustomerID:  testCustomerID,
		PaymentID:   testPaymentID,
		Customer: datatypes.NewJSONType(models.CustomerDetails{
			UserID:  testCustomerID,
			Name:    "Asha Rao",
			Phone:   "9876543210",
			Address: "12 MG Road, Bengaluru",
			Pincode: "560001",
		}),
		Lines: datatypes.NewJSONSlice([]models.OrderLine{
			{
				SKU:        testSKU,
				Quantity:   2,
				UnitPrice:  500,
				TotalPrice: 1000,
				DealerID:   testDealerID,
				Tracking:   models.LineTracking{DeliveredAt: &delivered, WeightKg: 2.5},
			},
		}),
		TotalAmount: 1000,
	}

	f := &fixture{
		returns: newMemReturnStore(),
		orders:  newMemOrderStore(),
		catalog: &fakeCatalog{products: map[string]*clients.Product{
			testSKU: {SKU: testSKU, Name: "Helmet", IsReturnable: true},
		}},
		courier: &fakeCourier{order: &borzo.Order{
			OrderID:           987654,
			Status:            "new",
			TrackingNumber:    "TRK123",
			PaymentAmount:     "120.00",
			DeliveryFeeAmount: "100.00",
			WeightFeeAmount:   "20.00",
			Points: []borzo.OrderPoint{
				{TrackingURL: "https://track.example/p0"},
				{TrackingURL: "https://track.example/p1"},
			},
		}},
		gateway:  &fakeRefundGateway{result: &gateway.RefundResult{Success: true, TransactionID: "rfnd_1"}},
		notifier: &fakeNotifier{},
		orderID:  orderID,
	}
	f.orders.put(order)

	users := &fakeUsers{
		dealer: &clients.Dealer{
			ID: testDealerID, Name: "Murni Motors", Phone: "9000000000",
			Address: "Plot 4, Industrial Area", Pincode: "560058",
		},
		admins: []clients.StaffUser{{ID: "admin-1", Role: "fulfillment_admin"}},
	}

	f.svc = NewReturnLifecycleService(
		f.returns, f.orders, f.catalog, users, f.courier,
		&fakeGeocoder{coords: &geocode.Coordinates{Latitude: 12.97, Longitude: 77.59}},
		f.gateway, f.notifier, nil,
		LifecycleConfig{
			ReturnWindowDays: 7,
			CourierMatter:    "Return parcel",
			FallbackPickup:   geocode.Coordinates{Latitude: 12.9, Longitude: 77.5},
			FallbackDrop:     geocode.Coordinates{Latitude: 13.0, Longitude: 77.6},
		},
		zap.NewNop(),
	)
	return f
}

func (f *fixture) create(t *testing.T) *models.ReturnRequest {
	t.Helper()
	ret, err := f.svc.CreateReturnRequest(context.Background(), CreateReturnInput{
		OrderID:      f.orderID,
		SKU:          testSKU,
		CustomerID:   testCustomerID,
		Quantity:     1,
		ReturnReason: "Damaged",
	})
	require.NoError(t, err)
	return ret
}

func (f *fixture) stored(t *testing.T, id uuid.UUID) *models.ReturnRequest {
	t.Helper()
	ret, err := f.returns.GetByID(context.Background(), id)
	require.NoError(t, err)
	return ret
}

func (f *fixture) orderLine(t *testing.T) *models.OrderLine {
	t.Helper()
	order, err := f.orders.GetByID(context.Background(), f.orderID)
	require.NoError(t, err)
	line := order.Line(testSKU)
	require.NotNil(t, line)
	return line
}

func TestCreateReturnRequest(t *testing.T) {
	f := newFixture(2)
	ret := f.create(t)

	assert.Equal(t, models.StatusRequested, ret.ReturnStatus)
	assert.Equal(t, models.ChannelPrimaryCourier, ret.DeliveryChannel)
	assert.True(t, ret.IsEligible)
	assert.True(t, ret.IsWithinReturnWindow)
	assert.True(t, ret.IsProductReturnable)
	require.NotNil(t, ret.DealerID)
	assert.Equal(t, testDealerID, *ret.DealerID)

	refund := ret.Refund.Data()
	assert.Equal(t, 1000.0, refund.Amount)
	assert.Equal(t, models.RefundMethodOriginal, refund.Method)
	assert.Equal(t, models.RefundStatusPending, refund.Status)
	assert.NotNil(t, ret.Milestones.Data().RequestedAt)

	line := f.orderLine(t)
	assert.True(t, line.ReturnInfo.IsReturned)
	require.NotNil(t, line.ReturnInfo.ReturnID)
	assert.Equal(t, ret.ID, *line.ReturnInfo.ReturnID)

	require.NotEmpty(t, f.notifier.statusEvents)
	evt := f.notifier.statusEvents[0]
	assert.Equal(t, "", evt.FromStatus)
	assert.Equal(t, string(models.StatusRequested), evt.ToStatus)
	// customer plus fulfillment admins
	assert.Len(t, f.notifier.notifications, 2)
}

func TestCreateReturnRequestRejectsNonOwner(t *testing.T) {
	f := newFixture(2)
	_, err := f.svc.CreateReturnRequest(context.Background(), CreateReturnInput{
		OrderID: f.orderID, SKU: testSKU, CustomerID: "someone-else", ReturnReason: "Damaged",
	})
	assert.ErrorIs(t, err, ErrNotOrderOwner)
}

func TestCreateReturnRequestUnknownSKU(t *testing.T) {
	f := newFixture(2)
	_, err := f.svc.CreateReturnRequest(context.Background(), CreateReturnInput{
		OrderID: f.orderID, SKU: "NOPE", CustomerID: testCustomerID, ReturnReason: "Damaged",
	})
	assert.ErrorIs(t, err, ErrSKUNotInOrder)
}

func TestCreateReturnRequestQuantityExceedsLine(t *testing.T) {
	f := newFixture(2)
	_, err := f.svc.CreateReturnRequest(context.Background(), CreateReturnInput{
		OrderID: f.orderID, SKU: testSKU, CustomerID: testCustomerID,
		Quantity: 3, ReturnReason: "Damaged",
	})
	assert.ErrorIs(t, err, ErrQuantityExceeds)
}

func TestCreateReturnRequestNegativeQuantity(t *testing.T) {
	f := newFixture(2)
	_, err := f.svc.CreateReturnRequest(context.Background(), CreateReturnInput{
		OrderID: f.orderID, SKU: testSKU, CustomerID: testCustomerID,
		Quantity: -1, ReturnReason: "Damaged",
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestCreateReturnRequestZeroQuantityDefaultsToOne(t *testing.T) {
	f := newFixture(2)
	ret, err := f.svc.CreateReturnRequest(context.Background(), CreateReturnInput{
		OrderID: f.orderID, SKU: testSKU, CustomerID: testCustomerID,
		ReturnReason: "Damaged",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, ret.Quantity)
}

func TestCreateReturnRequestDuplicateBlocked(t *testing.T) {
	f := newFixture(2)
	f.create(t)

	_, err := f.svc.CreateReturnRequest(context.Background(), CreateReturnInput{
		OrderID: f.orderID, SKU: testSKU, CustomerID: testCustomerID, ReturnReason: "Damaged",
	})
	assert.ErrorIs(t, err, ErrDuplicateReturn)
}

func TestCreateReturnRequestAfterRejection(t *testing.T) {
	f := newFixture(2)
	first := f.create(t)

	_, err := f.svc.RejectReturnRequest(context.Background(), first.ID, "photos inconclusive", "staff-1")
	require.NoError(t, err)

	// rejection frees the line for another attempt
	line := f.orderLine(t)
	assert.False(t, line.ReturnInfo.IsReturned)
	assert.Nil(t, line.ReturnInfo.ReturnID)

	second, err := f.svc.CreateReturnRequest(context.Background(), CreateReturnInput{
		OrderID: f.orderID, SKU: testSKU, CustomerID: testCustomerID, ReturnReason: "Damaged",
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestCreateReturnRequestExpiredWindow(t *testing.T) {
	f := newFixture(30)
	_, err := f.svc.CreateReturnRequest(context.Background(), CreateReturnInput{
		OrderID: f.orderID, SKU: testSKU, CustomerID: testCustomerID, ReturnReason: "Damaged",
	})
	assert.ErrorIs(t, err, ErrNotEligible)
	assert.Contains(t, err.Error(), "Return window has expired")
}

func TestCreateReturnRequestCatalogFailureFailsClosed(t *testing.T) {
	f := newFixture(2)
	f.catalog.err = errors.New("catalog unreachable")

	_, err := f.svc.CreateReturnRequest(context.Background(), CreateReturnInput{
		OrderID: f.orderID, SKU: testSKU, CustomerID: testCustomerID, ReturnReason: "Damaged",
	})
	assert.ErrorIs(t, err, ErrNotEligible)
	assert.Contains(t, err.Error(), "Product is not returnable")
}

func TestCreateReturnRequestOrderNotFound(t *testing.T) {
	f := newFixture(2)
	_, err := f.svc.CreateReturnRequest(context.Background(), CreateReturnInput{
		OrderID: uuid.New(), SKU: testSKU, CustomerID: testCustomerID, ReturnReason: "Damaged",
	})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestValidateAutoSchedulesPickup(t *testing.T) {
	f := newFixture(2)
	ret := f.create(t)

	validated, err := f.svc.ValidateReturnRequest(context.Background(), ret.ID, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPickupScheduled, validated.ReturnStatus)

	tracking := validated.Tracking.Data()
	assert.Equal(t, strconv.FormatInt(987654, 10), tracking.CourierOrderID)
	assert.Equal(t, "TRK123", tracking.TrackingNumber)
	assert.Equal(t, "https://track.example/p1", tracking.TrackingURL)
	assert.Equal(t, "Confirmed", tracking.Status)
	assert.Equal(t, 2.5, tracking.WeightKg)
	assert.NotEmpty(t, tracking.IdempotencyKey)

	ms := validated.Milestones.Data()
	assert.NotNil(t, ms.ValidatedAt)
	assert.NotNil(t, ms.PickupScheduledAt)

	require.NotNil(t, f.courier.lastReq)
	req := f.courier.lastReq
	assert.Equal(t, borzo.VehicleBike, req.VehicleTypeID)
	assert.Equal(t, "2.5", req.TotalWeightKg)
	require.Len(t, req.Points, 2)
	assert.Equal(t, "12 MG Road, Bengaluru", req.Points[0].Address)
	assert.Equal(t, "Plot 4, Industrial Area", req.Points[1].Address)
	assert.NotEmpty(t, req.Points[0].Note)
}

func TestValidateStaysValidatedWhenCourierFails(t *testing.T) {
	f := newFixture(2)
	ret := f.create(t)
	f.courier.err = errors.New("courier api down")

	validated, err := f.svc.ValidateReturnRequest(context.Background(), ret.ID, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusValidated, validated.ReturnStatus)
	assert.Equal(t, models.StatusValidated, f.stored(t, ret.ID).ReturnStatus)
}

func TestValidateIneligibleStaysRequested(t *testing.T) {
	f := newFixture(2)
	ret := f.create(t)
	f.catalog.products[testSKU].IsReturnable = false

	validated, err := f.svc.ValidateReturnRequest(context.Background(), ret.ID, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRequested, validated.ReturnStatus)
	assert.False(t, validated.IsEligible)
	assert.Equal(t, "Product is not returnable", validated.EligibilityReason)
	assert.Zero(t, f.courier.calls)
}

func TestCompletePickupFromWrongState(t *testing.T) {
	f := newFixture(2)
	ret := f.create(t)

	_, err := f.svc.CompletePickup(context.Background(), ret.ID, "TRKX", "staff-1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, models.StatusRequested, f.stored(t, ret.ID).ReturnStatus)
}

func TestPickupPathEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(2)
	ret := f.create(t)

	_, err := f.svc.ValidateReturnRequest(ctx, ret.ID, "staff-1")
	require.NoError(t, err)

	picked, err := f.svc.CompletePickup(ctx, ret.ID, "TRK123-POD", "staff-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPickupCompleted, picked.ReturnStatus)
	assert.Equal(t, "Picked_Up", picked.Tracking.Data().Status)
	assert.Equal(t, "TRK123-POD", picked.Tracking.Data().TrackingNumber)

	inspecting, err := f.svc.StartInspection(ctx, ret.ID, "staff-2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnderInspection, inspecting.ReturnStatus)
	assert.Equal(t, models.InspectionInProgress, inspecting.Inspection.Data().Status)
	assert.Equal(t, "staff-2", inspecting.Inspection.Data().InspectedBy)

	approved, err := f.svc.CompleteInspection(ctx, ret.ID, InspectionInput{
		InspectedBy: "staff-2", SKUMatch: true,
		Condition: models.ConditionGood, IsApproved: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.ReturnStatus)
	assert.Equal(t, models.InspectionCompleted, approved.Inspection.Data().Status)

	refunded, err := f.svc.ProcessRefund(ctx, ret.ID, RefundInput{ProcessedBy: "admin-1"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefundProcessed, refunded.ReturnStatus)
	refund := refunded.Refund.Data()
	assert.Equal(t, models.RefundStatusProcessed, refund.Status)
	assert.Equal(t, "rfnd_1", refund.TransactionID)
	assert.Equal(t, "admin-1", refund.ProcessedBy)
	assert.NotEmpty(t, refund.IdempotencyKey)

	assert.Equal(t, 1, f.gateway.calls)
	assert.Equal(t, testPaymentID, f.gateway.lastReq.PaymentID)
	assert.Equal(t, 1000.0, f.gateway.lastReq.Amount)
	assert.Equal(t, refund.IdempotencyKey, f.gateway.lastReq.Receipt)

	completed, err := f.svc.CompleteReturn(ctx, ret.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.ReturnStatus)
	assert.Equal(t, models.RefundStatusCompleted, completed.Refund.Data().Status)
	assert.NotNil(t, completed.Milestones.Data().CompletedAt)

	// a completed return keeps the line marked returned
	assert.True(t, f.orderLine(t).ReturnInfo.IsReturned)
}

func TestCompleteInspectionRejectedFreesLine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(2)
	ret := f.create(t)

	_, err := f.svc.ValidateReturnRequest(ctx, ret.ID, "staff-1")
	require.NoError(t, err)
	_, err = f.svc.CompletePickup(ctx, ret.ID, "", "staff-1")
	require.NoError(t, err)
	_, err = f.svc.StartInspection(ctx, ret.ID, "staff-2")
	require.NoError(t, err)

	rejected, err := f.svc.CompleteInspection(ctx, ret.ID, InspectionInput{
		InspectedBy: "staff-2", SKUMatch: false,
		Condition: models.ConditionDamaged, IsApproved: false,
		RejectionReason: "item does not match the order",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.ReturnStatus)
	assert.Equal(t, "item does not match the order", rejected.RejectReason)
	assert.False(t, f.orderLine(t).ReturnInfo.IsReturned)
}

func approvedReturn(t *testing.T, f *fixture) *models.ReturnRequest {
	t.Helper()
	ctx := context.Background()
	ret := f.create(t)
	_, err := f.svc.ValidateReturnRequest(ctx, ret.ID, "staff-1")
	require.NoError(t, err)
	_, err = f.svc.CompletePickup(ctx, ret.ID, "", "staff-1")
	require.NoError(t, err)
	_, err = f.svc.StartInspection(ctx, ret.ID, "staff-2")
	require.NoError(t, err)
	approved, err := f.svc.CompleteInspection(ctx, ret.ID, InspectionInput{
		InspectedBy: "staff-2", SKUMatch: true,
		Condition: models.ConditionGood, IsApproved: true,
	})
	require.NoError(t, err)
	return approved
}

func TestProcessRefundTransportFailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture(2)
	ret := approvedReturn(t, f)
	f.gateway.err = errors.New("gateway timeout")

	_, err := f.svc.ProcessRefund(context.Background(), ret.ID, RefundInput{ProcessedBy: "admin-1"})
	assert.ErrorIs(t, err, ErrRefundFailed)

	stored := f.stored(t, ret.ID)
	assert.Equal(t, models.StatusApproved, stored.ReturnStatus)
	assert.Equal(t, models.RefundStatusPending, stored.Refund.Data().Status)

	// the admin can retry once the gateway recovers
	f.gateway.err = nil
	retried, err := f.svc.ProcessRefund(context.Background(), ret.ID, RefundInput{ProcessedBy: "admin-1"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefundProcessed, retried.ReturnStatus)
}

func TestProcessRefundDeclineKeepsReturnRetryable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(2)
	ret := approvedReturn(t, f)
	f.gateway.result = &gateway.RefundResult{Success: false, Message: "payment already refunded"}

	_, err := f.svc.ProcessRefund(ctx, ret.ID, RefundInput{ProcessedBy: "admin-1"})
	assert.ErrorIs(t, err, ErrRefundFailed)
	assert.Contains(t, err.Error(), "payment already refunded")

	// the return stays put with the decline recorded on the refund
	stored := f.stored(t, ret.ID)
	assert.Equal(t, models.StatusApproved, stored.ReturnStatus)
	refund := stored.Refund.Data()
	assert.Equal(t, models.RefundStatusFailed, refund.Status)
	assert.Equal(t, "payment already refunded", refund.Notes)
	assert.Nil(t, refund.ProcessedAt)

	// the admin may retry once the gateway accepts the refund
	f.gateway.result = &gateway.RefundResult{Success: true, TransactionID: "rfnd_retry"}
	retried, err := f.svc.ProcessRefund(ctx, ret.ID, RefundInput{ProcessedBy: "admin-1"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefundProcessed, retried.ReturnStatus)
	assert.Equal(t, models.RefundStatusProcessed, retried.Refund.Data().Status)
}

func TestProcessRefundDeclineAllowsRejection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(2)
	ret := approvedReturn(t, f)
	f.gateway.result = &gateway.RefundResult{Success: false, Message: "refund window closed"}

	_, err := f.svc.ProcessRefund(ctx, ret.ID, RefundInput{ProcessedBy: "admin-1"})
	require.ErrorIs(t, err, ErrRefundFailed)

	rejected, err := f.svc.RejectReturnRequest(ctx, ret.ID, "refund not possible", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.ReturnStatus)
}

func TestProcessRefundManualSkipsGateway(t *testing.T) {
	ctx := context.Background()
	f := newFixture(2)
	ret, err := f.svc.CreateReturnRequest(ctx, CreateReturnInput{
		OrderID: f.orderID, SKU: testSKU, CustomerID: testCustomerID,
		ReturnReason: "Damaged", RefundMethod: models.RefundMethodManual,
	})
	require.NoError(t, err)
	_, err = f.svc.ValidateReturnRequest(ctx, ret.ID, "staff-1")
	require.NoError(t, err)
	_, err = f.svc.CompletePickup(ctx, ret.ID, "", "staff-1")
	require.NoError(t, err)
	_, err = f.svc.StartInspection(ctx, ret.ID, "staff-2")
	require.NoError(t, err)
	_, err = f.svc.CompleteInspection(ctx, ret.ID, InspectionInput{
		InspectedBy: "staff-2", SKUMatch: true,
		Condition: models.ConditionGood, IsApproved: true,
	})
	require.NoError(t, err)

	refunded, err := f.svc.ProcessRefund(ctx, ret.ID, RefundInput{
		ProcessedBy: "admin-1", TransactionID: "NEFT-20260310-77",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefundProcessed, refunded.ReturnStatus)
	assert.Equal(t, "NEFT-20260310-77", refunded.Refund.Data().TransactionID)
	assert.Zero(t, f.gateway.calls)
}

func TestShipmentPathEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(2)
	ret := f.create(t)

	shipped, err := f.svc.InitiateCourierShipment(ctx, ret.ID, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipmentInitiated, shipped.ReturnStatus)
	assert.Equal(t, 1, f.courier.calls)

	delivered, err := f.svc.MarkManualPickupDelivered(ctx, ret.ID, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipmentCompleted, delivered.ReturnStatus)
	assert.Equal(t, "Delivered", delivered.Tracking.Data().Status)

	started, err := f.svc.StartShipmentInspection(ctx, ret.ID, "staff-2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInspectionStarted, started.ReturnStatus)

	inspected, err := f.svc.CompleteShipmentInspection(ctx, ret.ID, InspectionInput{
		InspectedBy: "staff-2", SKUMatch: true,
		Condition: models.ConditionExcellent, IsApproved: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInspectionCompleted, inspected.ReturnStatus)

	refunded, err := f.svc.ProcessRefund(ctx, ret.ID, RefundInput{ProcessedBy: "admin-1"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefundProcessed, refunded.ReturnStatus)

	completed, err := f.svc.CompleteReturn(ctx, ret.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.ReturnStatus)
}

func TestProcessRefundRequiresApprovedInspection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(2)
	ret := f.create(t)

	_, err := f.svc.InitiateCourierShipment(ctx, ret.ID, "staff-1")
	require.NoError(t, err)
	_, err = f.svc.MarkManualPickupDelivered(ctx, ret.ID, "staff-1")
	require.NoError(t, err)
	_, err = f.svc.StartShipmentInspection(ctx, ret.ID, "staff-2")
	require.NoError(t, err)
	_, err = f.svc.CompleteShipmentInspection(ctx, ret.ID, InspectionInput{
		InspectedBy: "staff-2", SKUMatch: false,
		Condition: models.ConditionDamaged, IsApproved: false,
		RejectionReason: "damaged beyond resale",
	})
	require.NoError(t, err)

	_, err = f.svc.ProcessRefund(ctx, ret.ID, RefundInput{ProcessedBy: "admin-1"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Zero(t, f.gateway.calls)
}

func TestInitiateManualPickupSwitchesChannel(t *testing.T) {
	f := newFixture(2)
	ret := f.create(t)

	manual, err := f.svc.InitiateManualPickup(context.Background(), ret.ID, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipmentInitiated, manual.ReturnStatus)
	assert.Equal(t, models.ChannelManualCourier, manual.DeliveryChannel)
	assert.Equal(t, "Confirmed", manual.Tracking.Data().Status)
	assert.Zero(t, f.courier.calls)
}

func TestHandleCourierTracking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(2)
	ret := f.create(t)
	_, err := f.svc.ValidateReturnRequest(ctx, ret.ID, "staff-1")
	require.NoError(t, err)

	err = f.svc.HandleCourierTracking(&events.CourierTrackingEvent{
		CourierOrderID: "987654",
		Status:         "courier_assigned",
		TrackingNumber: "TRK999",
		TrackingURL:    "https://track.example/new",
	})
	require.NoError(t, err)

	stored := f.stored(t, ret.ID)
	tracking := stored.Tracking.Data()
	assert.Equal(t, "courier_assigned", tracking.Status)
	assert.Equal(t, "TRK999", tracking.TrackingNumber)
	assert.Equal(t, "https://track.example/new", tracking.TrackingURL)
	// tracking relay never advances the lifecycle
	assert.Equal(t, models.StatusPickupScheduled, stored.ReturnStatus)
}

func TestHandleCourierTrackingUnknownOrder(t *testing.T) {
	f := newFixture(2)
	err := f.svc.HandleCourierTracking(&events.CourierTrackingEvent{
		CourierOrderID: "does-not-exist", Status: "active",
	})
	assert.NoError(t, err)
}

func TestAddNote(t *testing.T) {
	f := newFixture(2)
	ret := f.create(t)

	updated, err := f.svc.AddNote(context.Background(), ret.ID, "customer called about status", "staff-1")
	require.NoError(t, err)
	notes := []models.Note(updated.Notes)
	require.Len(t, notes, 1)
	assert.Equal(t, "customer called about status", notes[0].Text)
	assert.Equal(t, "staff-1", notes[0].AddedBy)
}

func TestVersionConflictSurfaces(t *testing.T) {
	f := newFixture(2)
	ret := f.create(t)
	f.returns.updateErr = repository.ErrVersionConflict

	_, err := f.svc.ValidateReturnRequest(context.Background(), ret.ID, "staff-1")
	assert.ErrorIs(t, err, repository.ErrVersionConflict)
}

func TestReturnNotFound(t *testing.T) {
	f := newFixture(2)
	_, err := f.svc.ValidateReturnRequest(context.Background(), uuid.New(), "staff-1")
	assert.ErrorIs(t, err, ErrReturnNotFound)
}
