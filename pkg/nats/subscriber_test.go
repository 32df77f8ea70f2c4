package nats

import (
	"testing"
	"time"

	"chatsync-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessageStripsSubjectPrefix(t *testing.T) {
	event, err := DecodeMessage(Subject(events.TypeChatActivity), nil, []byte(`{"chat_id":"x"}`))
	require.NoError(t, err)

	assert.Equal(t, events.TypeChatActivity, event.EventType())
	assert.Equal(t, "x", event.Payload()["chat_id"])
}

func TestDecodeMessageRejectsGarbage(t *testing.T) {
	_, err := DecodeMessage("events.CHAT_ACTIVITY", nil, []byte("{"))
	assert.Error(t, err)
}

func TestEncodeDecodeKeepsOccurredAt(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 30, 0, 123, time.UTC)
	userId, chatId := uuid.New(), uuid.New()

	msg, err := encodeEvent(events.NewChatActivity(userId, chatId, at))
	require.NoError(t, err)
	assert.Equal(t, "events.CHAT_ACTIVITY", msg.Subject)

	decoded, err := DecodeMessage(msg.Subject, msg.Header, msg.Data)
	require.NoError(t, err)
	assert.True(t, decoded.Timestamp().Equal(at))

	gotUser, gotChat, gotAt, ok := events.ChatRef(decoded)
	require.True(t, ok)
	assert.Equal(t, userId, gotUser)
	assert.Equal(t, chatId, gotChat)
	assert.True(t, gotAt.Equal(at))
}
