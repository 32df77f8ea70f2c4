package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"chatsync-be/internal/pkg/logger"
	"chatsync-be/pkg/events"
	pktNats "chatsync-be/pkg/nats"
	"chatsync-be/pkg/realtime"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSubscriber struct {
	subject string
	durable string
	handler pktNats.EventHandler
}

func (s *stubSubscriber) Subscribe(ctx context.Context, subject string, durableName string, handler pktNats.EventHandler) error {
	s.subject, s.durable, s.handler = subject, durableName, handler
	return nil
}

func TestActivityServiceFansOutToUser(t *testing.T) {
	sub := &stubSubscriber{}
	sink := newFrameSink()
	svc := NewActivityService(sub, sink, logger.NewNopLogger())
	require.NoError(t, svc.Start(context.Background()))
	assert.Equal(t, "events.CHAT_ACTIVITY", sub.subject)

	userId, chatId := uuid.New(), uuid.New()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// round-trip through the bus encoding
	raw := events.NewChatActivity(userId, chatId, at)
	decoded, err := pktNats.DecodeMessage(pktNats.Subject(raw.EventType()), nil, mustJSON(t, raw.Payload()))
	require.NoError(t, err)
	require.NoError(t, sub.handler(context.Background(), decoded))

	frames := sink.users[userId]
	require.Len(t, frames, 1)
	activity := decodeFrame[realtime.ActivityPayload](t, frames[0], realtime.EventActivity)
	assert.Equal(t, chatId, activity.ChatId)
	assert.True(t, at.Equal(activity.LastActivity))
}

func TestActivityServiceIgnoresOtherEvents(t *testing.T) {
	sink := newFrameSink()
	svc := NewActivityService(&stubSubscriber{}, sink, logger.NewNopLogger())

	err := svc.HandleEvent(context.Background(), events.NewChatCreated(uuid.New(), uuid.New(), "t", time.Now()))
	assert.NoError(t, err)

	err = svc.HandleEvent(context.Background(), events.BaseEvent{Type: events.TypeChatActivity, Data: map[string]interface{}{"user_id": "nope"}})
	assert.NoError(t, err)

	assert.Empty(t, sink.users)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
