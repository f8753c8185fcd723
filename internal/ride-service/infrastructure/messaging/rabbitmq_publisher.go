package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ride-sim/internal/ride-service/domain"
	"ride-sim/pkg/logger"
	"ride-sim/pkg/rabbitmq"
)

// Broker is the publishing side of a message broker connection.
type Broker interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// RabbitMQEventPublisher implements EventPublisher interface
type RabbitMQEventPublisher struct {
	broker Broker
	logger logger.Logger
}

// NewRabbitMQEventPublisher creates a new RabbitMQ event publisher
func NewRabbitMQEventPublisher(broker Broker, logger logger.Logger) *RabbitMQEventPublisher {
	return &RabbitMQEventPublisher{
		broker: broker,
		logger: logger,
	}
}

// Publish publishes a domain event to RabbitMQ
func (p *RabbitMQEventPublisher) Publish(ctx context.Context, event domain.DomainEvent) error {
	message, exchange, routingKey := eventToMessage(event)
	if message == nil {
		return fmt.Errorf("unsupported event type: %s", event.EventType())
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.broker.Publish(ctx, exchange, routingKey, body); err != nil {
		return fmt.Errorf("publish to rabbitmq: %w", err)
	}

	p.logger.WithFields(logger.LogFields{
		"event_type":  event.EventType(),
		"exchange":    exchange,
		"routing_key": routingKey,
	}).Debug("event_published", "Domain event published to RabbitMQ")

	return nil
}

func location(v domain.LocationView) map[string]interface{} {
	return map[string]interface{}{
		"latitude":  v.Latitude,
		"longitude": v.Longitude,
		"address":   v.Address,
	}
}

// eventToMessage converts a domain event to its wire body, exchange and routing key
func eventToMessage(event domain.DomainEvent) (interface{}, string, string) {
	switch e := event.(type) {
	case domain.RideRequestedEvent:
		return map[string]interface{}{
			"ride_id":              e.Ride.ID,
			"passenger_id":         e.Ride.PassengerID,
			"pickup_location":      location(e.Ride.Pickup),
			"destination_location": location(e.Ride.Destination),
			"ride_type":            e.Ride.RideTypeID,
			"payment_method":       e.Ride.PaymentMethodID,
			"estimated_fare":       e.Ride.Fare,
			"requested_at":         e.RequestedAt,
		}, rabbitmq.RideExchange, fmt.Sprintf("ride.requested.%s", e.Ride.RideTypeID)

	case domain.RideStatusChangedEvent:
		return map[string]interface{}{
			"ride_id":           e.Ride.ID,
			"passenger_id":      e.Ride.PassengerID,
			"driver_id":         e.Ride.DriverID,
			"old_status":        e.OldStatus,
			"status":            e.NewStatus,
			"fare":              e.Ride.Fare,
			"estimated_arrival": e.Ride.EstimatedArrival,
			"updated_at":        e.ChangedAt,
		}, rabbitmq.RideExchange, fmt.Sprintf("ride.status.%s", strings.ToLower(e.NewStatus.String()))

	case domain.RideCancelledEvent:
		return map[string]interface{}{
			"ride_id":      e.RideID,
			"passenger_id": e.PassengerID,
			"driver_id":    e.DriverID,
			"status":       domain.StatusCancelled,
			"reason_id":    e.ReasonID,
			"reason":       e.Reason,
			"cancelled_at": e.CancelledAt,
		}, rabbitmq.RideExchange, fmt.Sprintf("ride.cancelled.%s", e.RideID)

	case domain.RideCompletedEvent:
		return map[string]interface{}{
			"ride_id":      e.RideID,
			"passenger_id": e.PassengerID,
			"driver_id":    e.DriverID,
			"status":       domain.StatusCompleted,
			"final_fare":   e.FinalFare,
			"completed_at": e.CompletedAt,
		}, rabbitmq.RideExchange, fmt.Sprintf("ride.completed.%s", e.RideID)

	case domain.DriverLocationUpdatedEvent:
		return map[string]interface{}{
			"ride_id":   e.RideID,
			"driver_id": e.DriverID,
			"location": map[string]interface{}{
				"latitude":  e.Location.Lat,
				"longitude": e.Location.Lng,
			},
			"geohash":    e.Geohash,
			"heading":    e.HeadingDegrees,
			"updated_at": e.UpdatedAt,
		}, rabbitmq.LocationExchange, ""

	default:
		return nil, "", ""
	}
}
