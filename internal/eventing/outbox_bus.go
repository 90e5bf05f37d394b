package eventing

import (
	"context"
	"log"
	"reflect"
	"time"

	"ztbus-analyser/internal/eventing/eventbus"
	"ztbus-analyser/internal/observability/metrics"
)

const slowPublishThreshold = 50 * time.Millisecond

// Publisher writes events to the outbox. Delivery happens later through
// the Dispatcher, so handlers never run inside the publishing call.
type Publisher struct {
	outbox   OutboxWriter
	notifier Notifier
	source   string
	sub      Subscriber
	logger   *log.Logger
}

// OutboxWriter inserts outbox records.
type OutboxWriter interface {
	Insert(ctx context.Context, env Envelope) (string, error)
}

// Notifier is told that new outbox records are pending.
type Notifier interface {
	Notify()
}

// Subscriber registers handlers.
type Subscriber interface {
	Subscribe(eventType string, handler eventbus.EventHandler)
}

// NewPublisher constructs a publisher. notifier and sub may be nil.
func NewPublisher(outbox OutboxWriter, notifier Notifier, source string, sub Subscriber) *Publisher {
	return &Publisher{outbox: outbox, notifier: notifier, source: source, sub: sub, logger: log.Default()}
}

// Publish writes the event to outbox.
func (p *Publisher) Publish(ctx context.Context, event any) error {
	start := time.Now()
	result := metrics.ResultSuccess
	if p == nil || p.outbox == nil {
		metrics.ObserveOutboxPublish(result, time.Since(start))
		return nil
	}
	meta := MetaFromContext(ctx, p.source)
	env, err := BuildEnvelope(event, meta)
	if err != nil {
		result = metrics.ResultError
		metrics.ObserveOutboxPublish(result, time.Since(start))
		return err
	}
	if _, err := p.outbox.Insert(ctx, env); err != nil {
		result = metrics.ResultError
		metrics.ObserveOutboxPublish(result, time.Since(start))
		return err
	}
	duration := time.Since(start)
	metrics.ObserveOutboxPublish(result, duration)
	if duration > slowPublishThreshold {
		p.logger.Printf("outbox_publish duration_ms=%d result=%s event_type=%s",
			duration.Milliseconds(),
			result,
			reflect.TypeOf(event).String(),
		)
	}
	if p.notifier != nil {
		p.notifier.Notify()
	}
	return nil
}

// Subscribe delegates to the underlying subscriber when available.
func (p *Publisher) Subscribe(eventType string, handler eventbus.EventHandler) {
	if p == nil || p.sub == nil {
		return
	}
	p.sub.Subscribe(eventType, handler)
}
