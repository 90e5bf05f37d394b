package processor

import (
	"context"
	"errors"
	"time"

	"ztbus-analyser/internal/eventing"
	"ztbus-analyser/internal/processor/events"
	windows "ztbus-analyser/internal/windows/domain"
)

// EventPublisher publishes events to the outbox.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// PublisherEmitter emits windows as WindowEmitted events. The event id is
// derived from the window key, so emitting a window twice stores it once.
type PublisherEmitter struct {
	publisher EventPublisher
	now       func() time.Time
}

// NewPublisherEmitter constructs the emitter.
func NewPublisherEmitter(publisher EventPublisher) (*PublisherEmitter, error) {
	if publisher == nil {
		return nil, errors.New("publisher emitter: nil publisher")
	}
	return &PublisherEmitter{publisher: publisher, now: time.Now}, nil
}

// Emit implements windows.Emitter.
func (e *PublisherEmitter) Emit(ctx context.Context, window windows.Window) error {
	if err := window.Validate(); err != nil {
		return err
	}
	event := events.NewWindowEmitted(window, e.now())
	ctx = eventing.WithEventID(ctx, eventing.DerivedEventID("window", event.WindowKey))
	return e.publisher.Publish(ctx, event)
}

// MultiEmitter emits every window to all emitters, joining their errors.
type MultiEmitter []windows.Emitter

// Emit implements windows.Emitter.
func (m MultiEmitter) Emit(ctx context.Context, window windows.Window) error {
	var errs []error
	for _, emitter := range m {
		if emitter == nil {
			continue
		}
		if err := emitter.Emit(ctx, window); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
