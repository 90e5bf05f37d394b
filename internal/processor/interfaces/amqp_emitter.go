package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"ztbus-analyser/internal/processor/events"
	windows "ztbus-analyser/internal/windows/domain"
)

// Channel is the subset of an AMQP channel used for publishing.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPEmitter fans emitted windows out to a RabbitMQ topic exchange. The
// routing key is the prefix followed by the window type name.
type AMQPEmitter struct {
	channel  Channel
	exchange string
	prefix   string
}

// NewAMQPEmitter opens a channel on conn and declares the exchange.
func NewAMQPEmitter(conn *amqp.Connection, exchange, routingPrefix string) (*AMQPEmitter, error) {
	if conn == nil {
		return nil, errors.New("amqp emitter: nil connection")
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("amqp emitter: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("amqp emitter: declare exchange %s: %w", exchange, err)
	}
	return NewAMQPEmitterWithChannel(ch, exchange, routingPrefix)
}

// NewAMQPEmitterWithChannel wraps an existing channel.
func NewAMQPEmitterWithChannel(ch Channel, exchange, routingPrefix string) (*AMQPEmitter, error) {
	if ch == nil {
		return nil, errors.New("amqp emitter: nil channel")
	}
	if exchange == "" {
		return nil, errors.New("amqp emitter: empty exchange")
	}
	if routingPrefix == "" {
		routingPrefix = "windows"
	}
	return &AMQPEmitter{channel: ch, exchange: exchange, prefix: routingPrefix}, nil
}

// Emit implements windows.Emitter.
func (e *AMQPEmitter) Emit(ctx context.Context, window windows.Window) error {
	event := events.NewWindowEmitted(window, time.Now())
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("amqp emitter: encode: %w", err)
	}
	err = e.channel.PublishWithContext(ctx,
		e.exchange,
		e.prefix+"."+window.Type.Name,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.WindowKey,
			Timestamp:    event.OccurredAt,
			Type:         window.Type.String(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("amqp emitter: publish %s: %w", window.Type.Name, err)
	}
	return nil
}
