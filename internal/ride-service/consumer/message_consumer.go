// Package consumer applies ride commands received over RabbitMQ.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ride-sim/internal/ride-service/domain"
	"ride-sim/internal/ride-service/service"
	"ride-sim/pkg/logger"
	"ride-sim/pkg/rabbitmq"

	amqp "github.com/rabbitmq/amqp091-go"
)

// CancelCommandKey is the routing key of remote cancel commands.
const CancelCommandKey = "ride.command.cancel"

const handleTimeout = 10 * time.Second

// Subscriber delivers messages of a queue to a handler.
type Subscriber interface {
	Consume(queueName string, handler func(amqp.Delivery)) error
}

// Canceller is the cancel use case.
type Canceller interface {
	Execute(ctx context.Context, cmd service.CancelRideCommand) (domain.RideView, error)
}

// CancelCommandMessage asks the ride service to cancel a ride on behalf of
// an operator.
type CancelCommandMessage struct {
	RideID      string    `json:"ride_id"`
	ReasonID    string    `json:"reason_id"`
	RequestedBy string    `json:"requested_by,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// RideConsumer handles incoming messages for the Ride Service
type RideConsumer struct {
	rabbit Subscriber
	cancel Canceller
	log    logger.Logger
}

func New(rabbit Subscriber, cancel Canceller, log logger.Logger) *RideConsumer {
	return &RideConsumer{
		rabbit: rabbit,
		cancel: cancel,
		log:    log,
	}
}

// StartConsuming starts all message consumers
func (c *RideConsumer) StartConsuming(ctx context.Context) error {
	c.log.WithFields(logger.LogFields{
		"queue": rabbitmq.RideCommandsQueue,
	}).Info("consumer_starting", "Starting ride command consumer")

	err := c.rabbit.Consume(rabbitmq.RideCommandsQueue, func(msg amqp.Delivery) {
		c.HandleDelivery(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", rabbitmq.RideCommandsQueue, err)
	}
	return nil
}

// HandleDelivery applies one command and settles the delivery. Malformed and
// rejected commands are dropped; anything else is requeued once.
func (c *RideConsumer) HandleDelivery(ctx context.Context, msg amqp.Delivery) {
	log := c.log.WithFields(logger.LogFields{
		"routing_key":  msg.RoutingKey,
		"delivery_tag": msg.DeliveryTag,
	})

	err := c.handle(ctx, msg.RoutingKey, msg.Body)
	switch {
	case err == nil:
		if ackErr := msg.Ack(false); ackErr != nil {
			log.Error("command_ack_failed", ackErr)
		}
	case errors.Is(err, errMalformed), domain.IsValidationError(err):
		log.WithFields(logger.LogFields{"reason": err.Error()}).Warn("command_rejected", "Ride command dropped")
		if nackErr := msg.Nack(false, false); nackErr != nil {
			log.Error("command_nack_failed", nackErr)
		}
	default:
		log.Error("command_failed", err)
		if nackErr := msg.Nack(false, !msg.Redelivered); nackErr != nil {
			log.Error("command_nack_failed", nackErr)
		}
	}
}

var errMalformed = errors.New("malformed command")

func (c *RideConsumer) handle(ctx context.Context, routingKey string, body []byte) error {
	if routingKey != CancelCommandKey {
		return fmt.Errorf("%w: unknown routing key %q", errMalformed, routingKey)
	}

	var cmd CancelCommandMessage
	if err := json.Unmarshal(body, &cmd); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	ride, err := c.cancel.Execute(ctx, service.CancelRideCommand{
		RideID:   cmd.RideID,
		ReasonID: cmd.ReasonID,
	})
	if err != nil {
		return err
	}

	c.log.WithFields(logger.LogFields{
		"ride_id":      ride.ID,
		"passenger_id": ride.PassengerID,
		"requested_by": cmd.RequestedBy,
	}).Info("ride_cancelled_by_command", "Ride cancelled by remote command")
	return nil
}
