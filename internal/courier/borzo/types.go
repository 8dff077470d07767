package borzo

import "time"

// Vehicle type ids per the Borzo India fleet.
const (
	VehicleBike         = 8  // up to 20 kg
	VehicleThreeWheeler = 10 // up to 500 kg
	VehicleSmallTruck   = 3  // up to 750 kg
	VehicleLargeTruck   = 2  // above 750 kg
)

// DefaultWeightKg is assumed when a parcel weight is not recorded.
const DefaultWeightKg = 3.0

// VehicleTypeForWeight maps a parcel weight in kg to the smallest
// vehicle class that can carry it. Non-positive weights fall back to
// DefaultWeightKg.
func VehicleTypeForWeight(weightKg float64) int {
	if weightKg <= 0 {
		weightKg = DefaultWeightKg
	}
	switch {
	case weightKg <= 20:
		return VehicleBike
	case weightKg <= 500:
		return VehicleThreeWheeler
	case weightKg <= 750:
		return VehicleSmallTruck
	default:
		return VehicleLargeTruck
	}
}

// ContactPerson is the person met at a route point.
type ContactPerson struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Point is one stop on a delivery route.
type Point struct {
	Address       string        `json:"address"`
	ContactPerson ContactPerson `json:"contact_person"`
	Latitude      float64       `json:"latitude"`
	Longitude     float64       `json:"longitude"`
	ClientOrderID string        `json:"client_order_id,omitempty"`
	Note          string        `json:"note,omitempty"`
}

// CreateOrderRequest is the payload for booking a delivery.
type CreateOrderRequest struct {
	Type                     string  `json:"type"`
	Matter                   string  `json:"matter"`
	TotalWeightKg            string  `json:"total_weight_kg"`
	InsuranceAmount          string  `json:"insurance_amount"`
	VehicleTypeID            int     `json:"vehicle_type_id"`
	IsClientNotification     bool    `json:"is_client_notification_enabled"`
	IsContactNotification    bool    `json:"is_contact_person_notification_enabled"`
	Points                   []Point `json:"points"`
}

// OrderPoint is a route point as echoed back by the API.
type OrderPoint struct {
	Address       string `json:"address"`
	ClientOrderID string `json:"client_order_id"`
	TrackingURL   string `json:"tracking_url"`
}

// Order is the booked delivery as returned by the API.
type Order struct {
	OrderID           int64        `json:"order_id"`
	Status            string       `json:"status"`
	TrackingNumber    string       `json:"tracking_number"`
	PaymentAmount     string       `json:"payment_amount"`
	DeliveryFeeAmount string       `json:"delivery_fee_amount"`
	WeightFeeAmount   string       `json:"weight_fee_amount"`
	CreatedDatetime   time.Time    `json:"created_datetime"`
	Points            []OrderPoint `json:"points"`
}

// createOrderResponse is the raw API envelope.
type createOrderResponse struct {
	IsSuccessful bool  `json:"is_successful"`
	Order        Order `json:"order"`
}
