package events

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Subscriber handles NATS event subscriptions
type Subscriber struct {
	nc      *nats.Conn
	logger  *zap.Logger
	handler EventHandler
	subs    []*nats.Subscription
}

// EventHandler defines the interface for handling events
type EventHandler interface {
	HandleCourierTracking(event *CourierTrackingEvent) error
}

// NewSubscriber creates a new NATS subscriber
func NewSubscriber(nc *nats.Conn, handler EventHandler, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		nc:      nc,
		logger:  logger,
		handler: handler,
		subs:    make([]*nats.Subscription, 0),
	}
}

// Start subscribes to all relevant events
func (s *Subscriber) Start() error {
	sub, err := s.nc.Subscribe(SubjectCourierTrackingEvent, s.handleCourierTracking)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	s.logger.Info("Subscribed to event", zap.String("subject", SubjectCourierTrackingEvent))

	s.logger.Info("NATS subscriber started with all subscriptions")
	return nil
}

// Stop unsubscribes from all events
func (s *Subscriber) Stop() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.logger.Info("NATS subscriber stopped")
}

// handleCourierTracking processes courier tracking updates
func (s *Subscriber) handleCourierTracking(msg *nats.Msg) {
	var event CourierTrackingEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		s.logger.Error("Failed to unmarshal courier tracking event", zap.Error(err))
		return
	}

	s.logger.Info("Received courier tracking event",
		zap.String("courier_order_id", event.CourierOrderID),
		zap.String("status", event.Status),
	)

	if err := s.handler.HandleCourierTracking(&event); err != nil {
		s.logger.Error("Failed to handle courier tracking event",
			zap.String("courier_order_id", event.CourierOrderID),
			zap.Error(err),
		)
	}
}
