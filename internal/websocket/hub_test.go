package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"chatsync-be/internal/entity"
	"chatsync-be/internal/pkg/logger"
	"chatsync-be/pkg/apperror"
	"chatsync-be/pkg/realtime"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSendHandler struct {
	err   error
	calls []realtime.SendPayload
}

func (s *stubSendHandler) HandleSend(ctx context.Context, userID, connID uuid.UUID, payload realtime.SendPayload) (*entity.Message, error) {
	s.calls = append(s.calls, payload)
	if s.err != nil {
		return nil, s.err
	}
	return &entity.Message{Id: uuid.New(), ChatId: payload.ChatId, Seq: 1}, nil
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub(nil, logger.NewNopLogger())
	go hub.Run(ctx)
	return hub
}

func registerClient(t *testing.T, hub *Hub, userID uuid.UUID, buffer int, handler SendHandler) *Client {
	t.Helper()
	c := &Client{Hub: hub, ID: uuid.New(), UserID: userID, Send: make(chan []byte, buffer), handler: handler}
	hub.register <- c
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		for _, x := range hub.clients[userID] {
			if x == c {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	return c
}

func TestSendToConnectionTargetsOneConnection(t *testing.T) {
	hub := startHub(t)
	userID := uuid.New()
	a := registerClient(t, hub, userID, 4, nil)
	b := registerClient(t, hub, userID, 4, nil)

	assert.True(t, hub.SendToConnection(userID, a.ID, []byte("for a")))
	assert.Equal(t, "for a", string(<-a.Send))
	assert.Empty(t, b.Send)

	assert.False(t, hub.SendToConnection(userID, uuid.New(), []byte("nobody")))
	assert.False(t, hub.SendToConnection(uuid.New(), a.ID, []byte("wrong user")))
}

func TestSendToUserReachesEveryDevice(t *testing.T) {
	hub := startHub(t)
	userID := uuid.New()
	a := registerClient(t, hub, userID, 4, nil)
	b := registerClient(t, hub, userID, 4, nil)
	other := registerClient(t, hub, uuid.New(), 4, nil)

	hub.SendToUser(userID, []byte("activity"))

	assert.Equal(t, "activity", string(<-a.Send))
	assert.Equal(t, "activity", string(<-b.Send))
	assert.Empty(t, other.Send)
	assert.Equal(t, 2, hub.ConnectionCount(userID))
}

func TestUnregisteredConnectionIsUndeliverable(t *testing.T) {
	hub := startHub(t)
	userID := uuid.New()
	c := registerClient(t, hub, userID, 4, nil)

	hub.unregister <- c
	require.Eventually(t, func() bool { return hub.ConnectionCount(userID) == 0 }, time.Second, 5*time.Millisecond)

	_, open := <-c.Send
	assert.False(t, open)
	assert.False(t, hub.SendToConnection(userID, c.ID, []byte("late reply")))
}

func TestFullBufferDropsConnectionOnce(t *testing.T) {
	hub := startHub(t)
	userID := uuid.New()
	c := registerClient(t, hub, userID, 1, nil)

	assert.True(t, hub.SendToConnection(userID, c.ID, []byte("1")))
	assert.False(t, hub.SendToConnection(userID, c.ID, []byte("2")))
	assert.False(t, hub.SendToConnection(userID, c.ID, []byte("3")))

	require.Eventually(t, func() bool { return hub.ConnectionCount(userID) == 0 }, time.Second, 5*time.Millisecond)
}

func TestClusterMessagesSkipOwnOrigin(t *testing.T) {
	hub := startHub(t)
	userID := uuid.New()
	c := registerClient(t, hub, userID, 4, nil)

	own, _ := json.Marshal(clusterMessage{Origin: hub.instanceID, TargetUserID: userID.String(), Message: json.RawMessage(`{"type":"activity"}`)})
	hub.handleClusterMessage(own)
	assert.Empty(t, c.Send)

	remote, _ := json.Marshal(clusterMessage{Origin: "other", TargetUserID: userID.String(), Message: json.RawMessage(`{"type":"activity"}`)})
	hub.handleClusterMessage(remote)
	assert.JSONEq(t, `{"type":"activity"}`, string(<-c.Send))
}

func TestDispatchRejectsWithFailedFrame(t *testing.T) {
	hub := startHub(t)
	chatID := uuid.New()

	tests := []struct {
		name     string
		raw      string
		err      error
		wantKind apperror.Kind
		wantChat uuid.UUID
	}{
		{name: "malformed", raw: "{{", wantKind: apperror.KindValidation},
		{name: "unknown type", raw: `{"type":"reply","data":{}}`, wantKind: apperror.KindValidation},
		{name: "forbidden", raw: `{"type":"send","data":{"chatId":"` + chatID.String() + `","content":"hi","clientMessageId":"c-1"}}`, err: apperror.Forbidden("chat belongs to another user"), wantKind: apperror.KindForbidden, wantChat: chatID},
		{name: "internal", raw: `{"type":"send","data":{"chatId":"` + chatID.String() + `","content":"hi"}}`, err: assert.AnError, wantKind: apperror.KindInternal, wantChat: chatID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := registerClient(t, hub, uuid.New(), 4, &stubSendHandler{err: tt.err})
			c.dispatch(context.Background(), []byte(tt.raw))

			env, err := realtime.Decode(<-c.Send)
			require.NoError(t, err)
			require.Equal(t, realtime.EventFailed, env.Type)
			failed, err := realtime.DecodeData[realtime.FailedPayload](env)
			require.NoError(t, err)
			assert.Equal(t, string(tt.wantKind), failed.Kind)
			assert.Equal(t, tt.wantChat, failed.ChatId)
			if tt.wantKind == apperror.KindInternal {
				assert.Equal(t, "internal error", failed.Reason)
			}
		})
	}
}

func TestDispatchAcceptedSendIsSilent(t *testing.T) {
	hub := startHub(t)
	handler := &stubSendHandler{}
	c := registerClient(t, hub, uuid.New(), 4, handler)

	chatID := uuid.New()
	frame, err := realtime.Encode(realtime.EventSend, realtime.SendPayload{ChatId: chatID, Content: "hello"})
	require.NoError(t, err)
	c.dispatch(context.Background(), frame)

	require.Len(t, handler.calls, 1)
	assert.Equal(t, chatID, handler.calls[0].ChatId)
	assert.Empty(t, c.Send)
}

func TestConnectionsCountsEveryUser(t *testing.T) {
	hub := startHub(t)
	alice, bob := uuid.New(), uuid.New()

	registerClient(t, hub, alice, 1, nil)
	registerClient(t, hub, alice, 1, nil)
	registerClient(t, hub, bob, 1, nil)

	assert.Equal(t, 3, hub.Connections())
	assert.Equal(t, 2, hub.ConnectionCount(alice))
	assert.False(t, hub.Clustered())
}
