package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ReturnStatus is the lifecycle state of a return request.
type ReturnStatus string

const (
	// Pickup-path states (platform-scheduled reverse pickup)
	StatusRequested       ReturnStatus = "Requested"
	StatusValidated       ReturnStatus = "Validated"
	StatusPickupScheduled ReturnStatus = "Pickup_Scheduled"
	StatusPickupCompleted ReturnStatus = "Pickup_Completed"
	StatusUnderInspection ReturnStatus = "Under_Inspection"

	// Shipment-path states (courier-booked reverse shipment)
	StatusShipmentInitiated   ReturnStatus = "Shipment_Initiated"
	StatusShipmentCompleted   ReturnStatus = "Shipment_Completed"
	StatusInspectionStarted   ReturnStatus = "Inspection_Started"
	StatusInspectionCompleted ReturnStatus = "Inspection_Completed"

	// Shared tail states
	StatusApproved        ReturnStatus = "Approved"
	StatusRejected        ReturnStatus = "Rejected"
	StatusRefundProcessed ReturnStatus = "Refund_Processed"
	StatusRefundFailed    ReturnStatus = "Refund_Failed"
	StatusCompleted       ReturnStatus = "Completed"
)

// AllStatuses is the fixed enumeration used by the status-counts endpoint.
var AllStatuses = []ReturnStatus{
	StatusRequested,
	StatusValidated,
	StatusPickupScheduled,
	StatusPickupCompleted,
	StatusUnderInspection,
	StatusShipmentInitiated,
	StatusShipmentCompleted,
	StatusInspectionStarted,
	StatusInspectionCompleted,
	StatusApproved,
	StatusRejected,
	StatusRefundProcessed,
	StatusRefundFailed,
	StatusCompleted,
}

// IsTerminal reports whether the status permits no further transitions.
func (s ReturnStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusRefundFailed:
		return true
	}
	return false
}

// DeliveryChannel selects which reverse-logistics sub-path a return follows.
type DeliveryChannel string

const (
	ChannelPrimaryCourier DeliveryChannel = "Primary_Courier"
	ChannelManualCourier  DeliveryChannel = "Manual_Courier"
)

// RefundMethod is how the money goes back to the customer.
type RefundMethod string

const (
	RefundMethodOriginal RefundMethod = "Original_Payment_Method"
	RefundMethodManual   RefundMethod = "Manual_Refund"
)

// RefundStatus tracks the refund sub-record.
type RefundStatus string

const (
	RefundStatusPending    RefundStatus = "Pending"
	RefundStatusProcessing RefundStatus = "Processing"
	RefundStatusProcessed  RefundStatus = "Processed"
	RefundStatusCompleted  RefundStatus = "Completed"
	RefundStatusFailed     RefundStatus = "Failed"
)

// InspectionStatus tracks the inspection sub-record.
type InspectionStatus string

const (
	InspectionNotStarted InspectionStatus = "Not_Started"
	InspectionInProgress InspectionStatus = "In_Progress"
	InspectionCompleted  InspectionStatus = "Completed"
)

// ItemCondition is the grade assigned during inspection.
type ItemCondition string

const (
	ConditionExcellent ItemCondition = "Excellent"
	ConditionGood      ItemCondition = "Good"
	ConditionFair      ItemCondition = "Fair"
	ConditionPoor      ItemCondition = "Poor"
	ConditionDamaged   ItemCondition = "Damaged"
	ConditionNA        ItemCondition = "N/A"
)

// TrackingInfo is the shipment-tracking sub-record for a return.
type TrackingInfo struct {
	CourierOrderID    string     `json:"courier_order_id,omitempty"`
	TrackingURL       string     `json:"tracking_url,omitempty"`
	TrackingNumber    string     `json:"tracking_number,omitempty"`
	Status            string     `json:"status,omitempty"`
	PaymentAmount     float64    `json:"payment_amount,omitempty"`
	DeliveryFeeAmount float64    `json:"delivery_fee_amount,omitempty"`
	WeightFeeAmount   float64    `json:"weight_fee_amount,omitempty"`
	WeightKg          float64    `json:"weight_kg,omitempty"`
	IdempotencyKey    string     `json:"idempotency_key,omitempty"`
	ConfirmedAt       *time.Time `json:"confirmed_at,omitempty"`
	PickedUpAt        *time.Time `json:"picked_up_at,omitempty"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty"`
	LastUpdatedAt     *time.Time `json:"last_updated_at,omitempty"`
}

// Inspection is the inspection sub-record for a return.
type Inspection struct {
	InspectedBy string           `json:"inspected_by,omitempty"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	SKUMatch    bool             `json:"sku_match"`
	Condition   ItemCondition    `json:"condition"`
	Notes       string           `json:"notes,omitempty"`
	Images      []string         `json:"images,omitempty"`
	IsApproved  bool             `json:"is_approved"`
	Rejection   string           `json:"rejection_reason,omitempty"`
	Status      InspectionStatus `json:"status"`
}

// Refund is the refund sub-record for a return. Amount is fixed at
// creation to the order line's total price and never changes once
// processing starts.
type Refund struct {
	Amount         float64      `json:"amount"`
	Method         RefundMethod `json:"method"`
	Status         RefundStatus `json:"status"`
	TransactionID  string       `json:"transaction_id,omitempty"`
	ProcessedBy    string       `json:"processed_by,omitempty"`
	Notes          string       `json:"notes,omitempty"`
	IdempotencyKey string       `json:"idempotency_key,omitempty"`
	ProcessedAt    *time.Time   `json:"processed_at,omitempty"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
}

// Milestones records one timestamp per lifecycle milestone.
type Milestones struct {
	RequestedAt          *time.Time `json:"requested_at,omitempty"`
	ValidatedAt          *time.Time `json:"validated_at,omitempty"`
	PickupScheduledAt    *time.Time `json:"pickup_scheduled_at,omitempty"`
	PickupCompletedAt    *time.Time `json:"pickup_completed_at,omitempty"`
	ShipmentInitiatedAt  *time.Time `json:"shipment_initiated_at,omitempty"`
	ShipmentCompletedAt  *time.Time `json:"shipment_completed_at,omitempty"`
	InspectionStartedAt  *time.Time `json:"inspection_started_at,omitempty"`
	InspectionCompletedAt *time.Time `json:"inspection_completed_at,omitempty"`
	RefundInitiatedAt    *time.Time `json:"refund_initiated_at,omitempty"`
	RefundCompletedAt    *time.Time `json:"refund_completed_at,omitempty"`
	RejectedAt           *time.Time `json:"rejected_at,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
}

// Note is one append-only note on a return request.
type Note struct {
	Text    string    `json:"text"`
	AddedBy string    `json:"added_by"`
	AddedAt time.Time `json:"added_at"`
}

// ReturnRequest is one return-in-progress for a single (order, SKU)
// pair. It is mutated exclusively through lifecycle transitions and
// never deleted; terminal rows are kept for audit.
type ReturnRequest struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID    uuid.UUID `gorm:"type:uuid;not null;index:idx_returns_order_sku" json:"order_id"`
	SKU        string    `gorm:"type:varchar(64);not null;index:idx_returns_order_sku" json:"sku"`
	CustomerID string    `gorm:"type:varchar(64);not null;index" json:"customer_id"`
	DealerID   *string   `gorm:"type:varchar(64);index" json:"dealer_id,omitempty"`
	Quantity   int       `gorm:"not null;default:1" json:"quantity"`

	ReturnReason      string                      `gorm:"type:varchar(128);not null" json:"return_reason"`
	ReturnDescription string                      `gorm:"type:text" json:"return_description,omitempty"`
	ReturnImages      datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"return_images"`

	// Eligibility snapshot, refreshed on validation
	IsEligible           bool   `json:"is_eligible"`
	EligibilityReason    string `gorm:"type:text" json:"eligibility_reason,omitempty"`
	IsWithinReturnWindow bool   `json:"is_within_return_window"`
	IsProductReturnable  bool   `json:"is_product_returnable"`
	ReturnWindowDays     int    `gorm:"default:7" json:"return_window_days"`

	ReturnStatus    ReturnStatus    `gorm:"type:varchar(32);not null;index" json:"return_status"`
	DeliveryChannel DeliveryChannel `gorm:"type:varchar(32);not null;default:'Primary_Courier'" json:"delivery_channel"`
	RejectReason    string          `gorm:"type:text" json:"reject_reason,omitempty"`

	Tracking   datatypes.JSONType[TrackingInfo] `gorm:"type:jsonb" json:"tracking"`
	Inspection datatypes.JSONType[Inspection]   `gorm:"type:jsonb" json:"inspection"`
	Refund     datatypes.JSONType[Refund]       `gorm:"type:jsonb" json:"refund"`
	Milestones datatypes.JSONType[Milestones]   `gorm:"type:jsonb" json:"milestones"`
	Notes      datatypes.JSONSlice[Note]        `gorm:"type:jsonb" json:"notes"`

	OriginalOrderDate    *time.Time `json:"original_order_date,omitempty"`
	OriginalDeliveryDate *time.Time `json:"original_delivery_date,omitempty"`

	// Version guards concurrent transitions (optimistic lock).
	Version int `gorm:"not null;default:1" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (ReturnRequest) TableName() string {
	return "return_requests"
}

// ReturnFilter holds query parameters for listing return requests.
type ReturnFilter struct {
	CustomerID   string
	DealerIDs    []string
	Status       ReturnStatus
	RefundMethod RefundMethod
	StartDate    *time.Time
	EndDate      *time.Time
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortDesc     bool
}
