package controller

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatsync-be/internal/dto"
	"chatsync-be/internal/pkg/serverutils"
	"chatsync-be/pkg/apperror"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "controller-secret"

type stubChatService struct {
	gotUser  uuid.UUID
	gotMsgs  *dto.GetMessagesRequest
	gotList  *dto.ListChatsRequest
	createFn func(req *dto.CreateChatRequest) (*dto.CreateChatResponse, error)
	msgsErr  error
}

func (s *stubChatService) CreateChat(ctx context.Context, userId uuid.UUID, req *dto.CreateChatRequest) (*dto.CreateChatResponse, error) {
	s.gotUser = userId
	return s.createFn(req)
}

func (s *stubChatService) ListChats(ctx context.Context, userId uuid.UUID, req *dto.ListChatsRequest) (*dto.ListChatsResponse, error) {
	s.gotUser = userId
	s.gotList = req
	return &dto.ListChatsResponse{Chats: []*dto.ChatResponse{{Id: uuid.New(), Title: "one"}}}, nil
}

func (s *stubChatService) GetMessages(ctx context.Context, userId uuid.UUID, req *dto.GetMessagesRequest) (*dto.GetMessagesResponse, error) {
	s.gotUser = userId
	s.gotMsgs = req
	if s.msgsErr != nil {
		return nil, s.msgsErr
	}
	return &dto.GetMessagesResponse{Messages: []*dto.MessageResponse{}}, nil
}

func (s *stubChatService) VerifyOwnership(ctx context.Context, userId, chatId uuid.UUID) error {
	return nil
}

func newTestApp(svc *stubChatService) *fiber.App {
	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	NewChatController(svc).RegisterRoutes(app.Group("/api"), serverutils.NewJwtMiddleware(testSecret))
	return app
}

func authed(t *testing.T, req *http.Request, userId uuid.UUID) {
	t.Helper()
	token, err := serverutils.IssueUserToken(testSecret, userId, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
}

func decodeBody[T any](t *testing.T, body io.Reader) serverutils.BaseResponse[T] {
	t.Helper()
	var out serverutils.BaseResponse[T]
	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestCreateChatEndpoint(t *testing.T) {
	svc := &stubChatService{createFn: func(req *dto.CreateChatRequest) (*dto.CreateChatResponse, error) {
		return &dto.CreateChatResponse{Chat: &dto.ChatResponse{Id: uuid.New(), Title: req.Title}}, nil
	}}
	app := newTestApp(svc)
	userId := uuid.New()

	req := httptest.NewRequest("POST", "/api/chat/v1", strings.NewReader(`{"title":"Trip"}`))
	req.Header.Set("Content-Type", "application/json")
	authed(t, req, userId)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, userId, svc.gotUser)

	out := decodeBody[dto.CreateChatResponse](t, resp.Body)
	assert.True(t, out.Success)
	assert.Equal(t, "Trip", out.Data.Chat.Title)
}

func TestCreateChatEndpointMapsValidation(t *testing.T) {
	svc := &stubChatService{createFn: func(req *dto.CreateChatRequest) (*dto.CreateChatResponse, error) {
		return nil, apperror.Validation("title must not be empty")
	}}
	app := newTestApp(svc)

	req := httptest.NewRequest("POST", "/api/chat/v1", strings.NewReader(`{"title":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	authed(t, req, uuid.New())

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestChatEndpointsRequireToken(t *testing.T) {
	app := newTestApp(&stubChatService{})

	for _, path := range []string{"/api/chat/v1", "/api/chat/v1/" + uuid.NewString() + "/messages"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestListChatsEndpointParsesPaging(t *testing.T) {
	svc := &stubChatService{}
	app := newTestApp(svc)

	req := httptest.NewRequest("GET", "/api/chat/v1?limit=10&offset=20", nil)
	authed(t, req, uuid.New())

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotNil(t, svc.gotList)
	assert.Equal(t, 10, svc.gotList.Limit)
	assert.Equal(t, 20, svc.gotList.Offset)
}

func TestGetMessagesEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		svcErr   error
		wantCode int
	}{
		{name: "ok", path: "/api/chat/v1/" + uuid.NewString() + "/messages?after_seq=3&limit=5", wantCode: fiber.StatusOK},
		{name: "bad id", path: "/api/chat/v1/not-a-uuid/messages", wantCode: fiber.StatusBadRequest},
		{name: "forbidden", path: "/api/chat/v1/" + uuid.NewString() + "/messages", svcErr: apperror.Forbidden("chat belongs to another user"), wantCode: fiber.StatusForbidden},
		{name: "missing", path: "/api/chat/v1/" + uuid.NewString() + "/messages", svcErr: apperror.NotFound("chat not found"), wantCode: fiber.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubChatService{msgsErr: tt.svcErr}
			app := newTestApp(svc)

			req := httptest.NewRequest("GET", tt.path, nil)
			authed(t, req, uuid.New())
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, resp.StatusCode)

			if tt.name == "ok" {
				require.NotNil(t, svc.gotMsgs)
				assert.Equal(t, int64(3), svc.gotMsgs.AfterSeq)
				assert.Equal(t, 5, svc.gotMsgs.Limit)
			}
		})
	}
}
