package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"chatsync-be/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// EventHandler is a function that processes an event.
type EventHandler func(ctx context.Context, event events.Event) error

// Subscriber handles listening for events from NATS.
type Subscriber struct {
	nc       *nats.Conn
	js       jetstream.JetStream
	consumes []jetstream.ConsumeContext
}

func NewSubscriber(url string) (*Subscriber, error) {
	nc, js, err := connect(url, "chatsync-subscriber")
	if err != nil {
		return nil, err
	}
	return &Subscriber{nc: nc, js: js}, nil
}

// DecodeMessage rebuilds an event from a JetStream subject, headers and JSON body.
// Without an occurred-at header the event is stamped with the decode time.
func DecodeMessage(subject string, header nats.Header, data []byte) (events.Event, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal event data: %w", err)
	}
	at := time.Now()
	if raw := header.Get(HeaderOccurredAt); raw != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			at = parsed
		}
	}
	return events.BaseEvent{
		Type:       strings.TrimPrefix(subject, SubjectPrefix),
		Data:       payload,
		OccurredAt: at,
	}, nil
}

// Subscribe registers a handler on a durable consumer so events survive restarts.
// Handler errors Nak the message for redelivery.
func (s *Subscriber) Subscribe(ctx context.Context, subject string, durableName string, handler EventHandler) error {
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       durableName,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    5,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		event, err := DecodeMessage(msg.Subject(), msg.Headers(), msg.Data())
		if err != nil {
			log.Printf("Dropping undecodable event on %s: %v", msg.Subject(), err)
			msg.Term()
			return
		}

		if err := handler(ctx, event); err != nil {
			log.Printf("Handler failed for event %s: %v", msg.Subject(), err)
			msg.Nak()
			return
		}
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	s.consumes = append(s.consumes, cc)

	log.Printf("Subscribed to %s with durable %s", subject, durableName)
	return nil
}

// Close stops consumers and closes the connection.
func (s *Subscriber) Close() {
	for _, cc := range s.consumes {
		cc.Stop()
	}
	if s.nc != nil {
		s.nc.Close()
	}
}
