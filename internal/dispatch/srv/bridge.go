package srv

import (
	"context"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/errors"
	idspkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/ids"
	jsoncodec "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/jsoncodec"
	loggingpkg "github.com/lianas10tb/cds-ts-dispatcher/internal/dispatch/logging"
)

// Metadata keys set on bridge messages.
const (
	// HeaderEventName carries the full namespaced event identifier.
	HeaderEventName = "dispatcher_event"
	// HeaderRequestID carries the originating request identifier, when any.
	HeaderRequestID = "dispatcher_request_id"
)

// TopicForEvent maps a namespaced event identifier to its transport topic by
// dropping everything from the last '.' onward, so "sap.capire.bookshop.
// BookCreated" lands on topic "sap.capire.bookshop". A name without a dot is
// used unchanged.
func TopicForEvent(name string) string {
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		return name[:idx]
	}
	return name
}

// EventBridge connects the runtime's custom-event hooks to a messaging
// transport. Inbound messages on a subscribed topic become requests emitted
// to the hooks registered under that topic key; Publish sends events the
// same way for other services to consume.
type EventBridge struct {
	rt     *Runtime
	pub    message.Publisher
	sub    message.Subscriber
	logger loggingpkg.ServiceLogger
}

// NewEventBridge wires the runtime to a publisher/subscriber pair. Either
// side may be nil when the service only produces or only consumes events.
func NewEventBridge(rt *Runtime, pub message.Publisher, sub message.Subscriber, log loggingpkg.ServiceLogger) *EventBridge {
	if rt == nil {
		panic("dispatcher: event bridge requires a runtime")
	}
	if log == nil {
		log = rt.logger
	}
	return &EventBridge{rt: rt, pub: pub, sub: sub, logger: log}
}

// Subscribe starts consuming the topic and dispatching its messages to the
// runtime's event hooks. The consume loop runs until the subscription
// channel closes or ctx is cancelled.
func (b *EventBridge) Subscribe(ctx context.Context, topic string) error {
	if b.sub == nil {
		return errspkg.ErrSubscriberRequired
	}
	if topic == "" {
		return errspkg.ErrTopicRequired
	}

	msgs, err := b.sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	b.logger.Info("Subscribed to event topic", loggingpkg.LogFields{"topic": topic})
	go b.consume(ctx, topic, msgs)
	return nil
}

func (b *EventBridge) consume(ctx context.Context, topic string, msgs <-chan *message.Message) {
	for msg := range msgs {
		req := b.requestFromMessage(msg)
		if err := b.rt.Emit(ctx, topic, req); err != nil {
			b.logger.Error("Event handler failed", err, loggingpkg.LogFields{
				"topic":        topic,
				"event":        string(req.Event),
				"message_uuid": msg.UUID,
			})
			msg.Nack()
			continue
		}
		msg.Ack()
	}
}

func (b *EventBridge) requestFromMessage(msg *message.Message) *Request {
	req := NewRequest(Event(msg.Metadata.Get(HeaderEventName)), nil)
	if id := msg.Metadata.Get(HeaderRequestID); id != "" {
		req.ID = id
	}
	for k, v := range msg.Metadata {
		req.Headers[k] = v
	}

	if len(msg.Payload) > 0 {
		var data Record
		if err := jsoncodec.Unmarshal(msg.Payload, &data); err != nil {
			b.logger.Debug("Event payload is not a JSON object", loggingpkg.LogFields{
				"message_uuid": msg.UUID,
				"error":        err.Error(),
			})
		} else {
			req.Data = data
		}
	}

	return req
}

// Publish emits a namespaced event with the given payload. The topic is
// derived from the event name via TopicForEvent.
func (b *EventBridge) Publish(ctx context.Context, event string, data Record) error {
	if b.pub == nil {
		return errspkg.ErrPublisherRequired
	}
	if event == "" {
		return errspkg.ErrEventNameRequired
	}

	payload, err := jsoncodec.Marshal(data)
	if err != nil {
		return err
	}

	msg := message.NewMessage(idspkg.CreateULID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(HeaderEventName, event)

	return b.pub.Publish(TopicForEvent(event), msg)
}
