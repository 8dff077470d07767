package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Event subjects
const (
	SubjectNotifyUser           = "notify.user"
	SubjectReturnStatusChanged  = "returns.status.changed"
	SubjectCourierTrackingEvent = "courier.tracking.updated"
)

// UserNotification asks the notification service to deliver a message
// to one or more users.
type UserNotification struct {
	UserIDs   []string  `json:"user_ids"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
}

// ReturnStatusChangedEvent announces a lifecycle transition.
type ReturnStatusChangedEvent struct {
	ReturnID   uuid.UUID `json:"return_id"`
	OrderID    string    `json:"order_id"`
	SKU        string    `json:"sku"`
	CustomerID string    `json:"customer_id"`
	DealerID   string    `json:"dealer_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	ActorID    string    `json:"actor_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// CourierTrackingEvent carries a tracking update from the courier
// webhook relay.
type CourierTrackingEvent struct {
	CourierOrderID string    `json:"courier_order_id"`
	Status         string    `json:"status"`
	TrackingNumber string    `json:"tracking_number,omitempty"`
	TrackingURL    string    `json:"tracking_url,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Publisher handles publishing events to NATS
type Publisher struct {
	nc     *nats.Conn
	logger *zap.Logger
}

// NewPublisher creates a new NATS publisher
func NewPublisher(nc *nats.Conn, logger *zap.Logger) *Publisher {
	return &Publisher{nc: nc, logger: logger}
}

// PublishUserNotification publishes a notification for one or more users.
func (p *Publisher) PublishUserNotification(event *UserNotification) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.nc.Publish(SubjectNotifyUser, data)
}

// PublishStatusChanged publishes a return lifecycle transition event.
func (p *Publisher) PublishStatusChanged(event *ReturnStatusChangedEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.nc.Publish(SubjectReturnStatusChanged, data)
}
