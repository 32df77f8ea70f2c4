package chatclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"chatsync-be/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(w http.ResponseWriter, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"success": code < 300,
		"code":    code,
		"message": message,
		"data":    data,
	})
}

func TestAPIClientCreateChatSendsToken(t *testing.T) {
	var gotAuth, gotTitle string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var body struct {
			Title string `json:"title"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		gotTitle = body.Title
		writeEnvelope(w, http.StatusCreated, "chat created", map[string]any{
			"chat": map[string]any{"id": uuid.NewString(), "title": body.Title},
		})
	}))
	defer srv.Close()

	chat, err := NewAPIClient(srv.URL+"/", "tok").CreateChat(context.Background(), "Trip")
	require.NoError(t, err)
	assert.Equal(t, "Trip", chat.Title)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "Trip", gotTitle)
}

func TestAPIClientMapsErrorStatus(t *testing.T) {
	tests := []struct {
		status int
		want   apperror.Kind
	}{
		{http.StatusBadRequest, apperror.KindValidation},
		{http.StatusUnauthorized, apperror.KindAuth},
		{http.StatusForbidden, apperror.KindForbidden},
		{http.StatusNotFound, apperror.KindNotFound},
		{http.StatusInternalServerError, apperror.KindInternal},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, tt.status, "nope", nil)
			}))
			defer srv.Close()

			_, err := NewAPIClient(srv.URL, "tok").ListChats(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.want, apperror.KindOf(err))
			assert.Equal(t, "nope", err.Error())
		})
	}
}

func TestAPIClientHistoryFollowsCursor(t *testing.T) {
	chatId := uuid.New()
	var seenAfter []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/v1/"+chatId.String()+"/messages", r.URL.Path)
		after := r.URL.Query().Get("after_seq")
		seenAfter = append(seenAfter, after)

		switch after {
		case "":
			writeEnvelope(w, http.StatusOK, "ok", map[string]any{
				"messages": []map[string]any{
					{"id": uuid.NewString(), "seq": 1, "role": "user", "content": "a"},
					{"id": uuid.NewString(), "seq": 2, "role": "assistant", "content": "b"},
				},
				"next_cursor": 2,
			})
		default:
			writeEnvelope(w, http.StatusOK, "ok", map[string]any{
				"messages": []map[string]any{
					{"id": uuid.NewString(), "seq": 3, "role": "user", "content": "c"},
				},
			})
		}
	}))
	defer srv.Close()

	msgs, err := NewAPIClient(srv.URL, "tok").History(context.Background(), chatId)
	require.NoError(t, err)
	assert.Equal(t, []string{"user:a", "assistant:b", "user:c"}, contents(msgs))
	assert.Equal(t, []string{"", "2"}, seenAfter)
}

func TestAPIClientListChatsFollowsOffset(t *testing.T) {
	var seenOffsets []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/v1", r.URL.Path)
		offset := r.URL.Query().Get("offset")
		seenOffsets = append(seenOffsets, offset)

		switch offset {
		case "":
			writeEnvelope(w, http.StatusOK, "ok", map[string]any{
				"chats": []map[string]any{
					{"id": uuid.NewString(), "title": "Tokyo"},
					{"id": uuid.NewString(), "title": "Lisbon"},
				},
				"next_offset": 2,
			})
		default:
			writeEnvelope(w, http.StatusOK, "ok", map[string]any{
				"chats": []map[string]any{
					{"id": uuid.NewString(), "title": "Oslo"},
				},
			})
		}
	}))
	defer srv.Close()

	chats, err := NewAPIClient(srv.URL, "tok").ListChats(context.Background())
	require.NoError(t, err)
	titles := make([]string, 0, len(chats))
	for _, c := range chats {
		titles = append(titles, c.Title)
	}
	assert.Equal(t, []string{"Tokyo", "Lisbon", "Oslo"}, titles)
	assert.Equal(t, []string{"", "2"}, seenOffsets)
}
