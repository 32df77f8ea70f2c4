// Package chatclient is the client side of the chat sync protocol: a REST
// client for the chat catalog, the realtime channel, and the conversation
// state that reconciles the two.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"chatsync-be/pkg/apperror"

	"github.com/google/uuid"
)

type Chat struct {
	Id           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
}

type Message struct {
	Id              uuid.UUID `json:"id"`
	Seq             int64     `json:"seq"`
	Role            string    `json:"role"`
	Content         string    `json:"content"`
	ClientMessageId string    `json:"client_message_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`

	// Pending marks an optimistic user message not yet confirmed by the server.
	Pending bool `json:"-"`
	// Failed marks an optimistic message whose send was rejected or timed out.
	Failed bool `json:"-"`
}

type MessagePage struct {
	Messages   []Message `json:"messages"`
	NextCursor *int64    `json:"next_cursor,omitempty"`
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// APIClient talks to the chat REST endpoints under /api.
type APIClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *APIClient) CreateChat(ctx context.Context, title string) (*Chat, error) {
	body, _ := json.Marshal(map[string]string{"title": title})

	var out struct {
		Chat Chat `json:"chat"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/chat/v1", body, &out); err != nil {
		return nil, err
	}
	return &out.Chat, nil
}

// ListChats returns all of the caller's chats, most recent activity first,
// following next_offset across pages.
func (c *APIClient) ListChats(ctx context.Context) ([]Chat, error) {
	var all []Chat
	offset := 0
	for {
		path := "/api/chat/v1"
		if offset > 0 {
			path += "?offset=" + strconv.Itoa(offset)
		}
		var page struct {
			Chats      []Chat `json:"chats"`
			NextOffset *int   `json:"next_offset,omitempty"`
		}
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Chats...)
		if page.NextOffset == nil || len(page.Chats) == 0 {
			return all, nil
		}
		offset = *page.NextOffset
	}
}

func (c *APIClient) GetMessages(ctx context.Context, chatId uuid.UUID, afterSeq int64, limit int) (*MessagePage, error) {
	q := url.Values{}
	if afterSeq > 0 {
		q.Set("after_seq", strconv.FormatInt(afterSeq, 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/chat/v1/" + chatId.String() + "/messages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var page MessagePage
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// History follows the cursor until the whole chat has been read.
func (c *APIClient) History(ctx context.Context, chatId uuid.UUID) ([]Message, error) {
	var all []Message
	var after int64
	for {
		page, err := c.GetMessages(ctx, chatId, after, 0)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Messages...)
		if page.NextCursor == nil {
			return all, nil
		}
		after = *page.NextCursor
	}
}

func (c *APIClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope[json.RawMessage]
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 300 {
			return apperror.New(kindForStatus(resp.StatusCode), strings.TrimSpace(string(raw)))
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		return apperror.New(kindForStatus(resp.StatusCode), env.Message)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

func kindForStatus(status int) apperror.Kind {
	switch status {
	case http.StatusBadRequest:
		return apperror.KindValidation
	case http.StatusUnauthorized:
		return apperror.KindAuth
	case http.StatusForbidden:
		return apperror.KindForbidden
	case http.StatusNotFound:
		return apperror.KindNotFound
	case http.StatusServiceUnavailable:
		return apperror.KindChannelUnavailable
	case http.StatusBadGateway:
		return apperror.KindResponder
	default:
		return apperror.KindInternal
	}
}
