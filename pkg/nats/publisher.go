package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"chatsync-be/pkg/events"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// HeaderOccurredAt carries the event time so consumers do not rely on delivery time.
const HeaderOccurredAt = "Chatsync-Occurred-At"

// Publisher puts chat events on the CHAT_EVENTS stream.
type Publisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewPublisher(url string) (*Publisher, error) {
	nc, js, err := connect(url, "chatsync-publisher")
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ensureStream(ctx, js); err != nil {
		// NATS may still be starting; publishes fail until the stream shows up
		log.Printf("Warn: %v", err)
	}

	return &Publisher{nc: nc, js: js}, nil
}

func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	msg, err := encodeEvent(event)
	if err != nil {
		return err
	}
	if _, err := p.js.PublishMsg(ctx, msg, jetstream.WithMsgID(uuid.NewString())); err != nil {
		return fmt.Errorf("publish %s: %w", event.EventType(), err)
	}
	return nil
}

func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}

func encodeEvent(event events.Event) (*nats.Msg, error) {
	data, err := json.Marshal(event.Payload())
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event.EventType(), err)
	}
	msg := nats.NewMsg(Subject(event.EventType()))
	msg.Data = data
	if at := event.Timestamp(); !at.IsZero() {
		msg.Header.Set(HeaderOccurredAt, at.UTC().Format(time.RFC3339Nano))
	}
	return msg, nil
}
