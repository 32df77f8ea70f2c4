package service

import (
	"context"
	"fmt"

	"chatsync-be/internal/pkg/logger"
	"chatsync-be/pkg/events"
	pktNats "chatsync-be/pkg/nats"
	"chatsync-be/pkg/realtime"

	"github.com/google/uuid"
)

// ActivityDelivery fans a frame out to every connection of a user, on every instance.
type ActivityDelivery interface {
	SendToUser(userId uuid.UUID, data []byte)
}

// EventSubscriber is implemented by pkg/nats.Subscriber.
type EventSubscriber interface {
	Subscribe(ctx context.Context, subject string, durableName string, handler pktNats.EventHandler) error
}

// ActivityService turns chat activity events from the bus into `activity`
// frames, so a user's other devices can reorder their chat list.
type ActivityService struct {
	subscriber EventSubscriber
	delivery   ActivityDelivery
	logger     logger.ILogger
}

func NewActivityService(sub EventSubscriber, delivery ActivityDelivery, log logger.ILogger) *ActivityService {
	return &ActivityService{
		subscriber: sub,
		delivery:   delivery,
		logger:     log,
	}
}

func (s *ActivityService) Start(ctx context.Context) error {
	subject := pktNats.Subject(events.TypeChatActivity)
	if err := s.subscriber.Subscribe(ctx, subject, "chat-activity-worker", s.HandleEvent); err != nil {
		s.logger.Error("ActivityService", "Failed to start activity subscriber", map[string]interface{}{"error": err})
		return err
	}
	s.logger.Info("ActivityService", "Activity service started, listening to "+subject, nil)
	return nil
}

func (s *ActivityService) HandleEvent(ctx context.Context, event events.Event) error {
	if event.EventType() != events.TypeChatActivity {
		return nil
	}

	userId, chatId, lastActivity, ok := events.ChatRef(event)
	if !ok {
		// malformed payloads are not retried
		s.logger.Warn("ActivityService", "Ignoring malformed activity event", map[string]interface{}{"payload": event.Payload()})
		return nil
	}

	frame, err := realtime.Encode(realtime.EventActivity, realtime.ActivityPayload{
		ChatId:       chatId,
		LastActivity: lastActivity,
	})
	if err != nil {
		return fmt.Errorf("encode activity frame: %w", err)
	}

	s.delivery.SendToUser(userId, frame)
	return nil
}
