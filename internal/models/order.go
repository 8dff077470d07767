package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CustomerDetails is the denormalized customer snapshot on an order.
type CustomerDetails struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address"`
	Pincode string `json:"pincode"`
}

// LineTracking is the per-line forward-shipment tracking snapshot.
// DeliveredAt anchors the return window.
type LineTracking struct {
	Status      string     `json:"status,omitempty"`
	WeightKg    float64    `json:"weight_kg,omitempty"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// LineReturnInfo mirrors the existence of an active return for a line.
type LineReturnInfo struct {
	IsReturned       bool       `json:"is_returned"`
	ReturnID         *uuid.UUID `json:"return_id,omitempty"`
	IsReturnable     bool       `json:"is_returnable"`
	ReturnWindowDays int        `json:"return_window_days"`
}

// OrderLine is one SKU line on an order.
type OrderLine struct {
	SKU         string         `json:"sku"`
	ProductID   string         `json:"product_id,omitempty"`
	ProductName string         `json:"product_name,omitempty"`
	Quantity    int            `json:"quantity"`
	UnitPrice   float64        `json:"unit_price"`
	TotalPrice  float64        `json:"total_price"`
	DealerID    string         `json:"dealer_id,omitempty"`
	Tracking    LineTracking   `json:"tracking"`
	ReturnInfo  LineReturnInfo `json:"return_info"`
}

// Order is the originating purchase the returns service reads from and
// whose line-level return_info it keeps in sync.
type Order struct {
	ID          uuid.UUID                        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNumber string                           `gorm:"type:varchar(64);uniqueIndex" json:"order_number"`
	OrderDate   time.Time                        `json:"order_date"`
	CustomerID  string                           `gorm:"type:varchar(64);index" json:"customer_id"`
	Customer    datatypes.JSONType[CustomerDetails] `gorm:"type:jsonb" json:"customer"`
	Lines       datatypes.JSONSlice[OrderLine]   `gorm:"type:jsonb" json:"lines"`
	TotalAmount float64                          `json:"total_amount"`
	PaymentType string                           `gorm:"type:varchar(16)" json:"payment_type"`
	PaymentID   string                           `gorm:"type:varchar(64)" json:"payment_id,omitempty"`
	CreatedAt   time.Time                        `json:"created_at"`
	UpdatedAt   time.Time                        `json:"updated_at"`
}

// TableName overrides the table name
func (Order) TableName() string {
	return "orders"
}

// Line returns the order line for sku, or nil if the order has none.
func (o *Order) Line(sku string) *OrderLine {
	lines := []OrderLine(o.Lines)
	for i := range lines {
		if lines[i].SKU == sku {
			return &lines[i]
		}
	}
	return nil
}

// SetLine replaces the line matching line.SKU in place.
func (o *Order) SetLine(line OrderLine) {
	lines := []OrderLine(o.Lines)
	for i := range lines {
		if lines[i].SKU == line.SKU {
			lines[i] = line
			o.Lines = datatypes.NewJSONSlice(lines)
			return
		}
	}
}
