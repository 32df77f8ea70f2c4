package realtime

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeProducesTypedEnvelope(t *testing.T) {
	chatId := uuid.New()
	raw, err := Encode(EventSend, SendPayload{ChatId: chatId, Content: "hello", ClientMessageId: "c-1"})
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"type":"send","data":{"chatId":"`+chatId.String()+`","content":"hello","clientMessageId":"c-1"}}`,
		string(raw))
}

func TestDecodeRejectsMalformedFrames(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: "hello"},
		{name: "missing type", raw: `{"data":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}

func TestDecodeDataRequiresPayload(t *testing.T) {
	env, err := Decode([]byte(`{"type":"send"}`))
	require.NoError(t, err)

	_, err = DecodeData[SendPayload](env)
	assert.EqualError(t, err, "send event has no data")
}

func TestDecodeDataReply(t *testing.T) {
	chatId := uuid.New()
	env, err := Decode([]byte(`{"type":"reply","data":{"chatId":"` + chatId.String() + `","seq":2,"content":"hi"}}`))
	require.NoError(t, err)

	reply, err := DecodeData[ReplyPayload](env)
	require.NoError(t, err)
	assert.Equal(t, chatId, reply.ChatId)
	assert.Equal(t, int64(2), reply.Seq)
	assert.Equal(t, "hi", reply.Content)
}
