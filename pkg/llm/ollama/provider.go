// Package ollama answers chats through a local Ollama server's /api/chat.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"chatsync-be/pkg/llm"
)

const chatPath = "/api/chat"

type Config struct {
	BaseURL string
	Model   string
	// SystemPrompt, when set, is sent ahead of the chat history.
	SystemPrompt string
	// KeepAlive tells Ollama how long to keep the model loaded, e.g. "10m".
	KeepAlive string
}

type OllamaProvider struct {
	cfg    Config
	client *http.Client
}

var _ llm.LLMProvider = (*OllamaProvider)(nil)

// NewOllamaProvider has no transport timeout. Generation time is unbounded
// and the caller's context decides when to stop waiting.
func NewOllamaProvider(cfg Config) *OllamaProvider {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &OllamaProvider{cfg: cfg, client: &http.Client{}}
}

func (o *OllamaProvider) BaseURL() string { return o.cfg.BaseURL }

type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string       `json:"model"`
	Messages  []chatTurn   `json:"messages"`
	Stream    bool         `json:"stream"`
	KeepAlive string       `json:"keep_alive,omitempty"`
	Options   *chatOptions `json:"options,omitempty"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatResponse struct {
	Message chatTurn `json:"message"`
	Done    bool     `json:"done"`
	Error   string   `json:"error,omitempty"`
}

func (o *OllamaProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	if len(history) == 0 {
		return "", errors.New("ollama: empty history")
	}
	options := llm.ApplyOptions(opts...)

	body := chatRequest{
		Model:     o.cfg.Model,
		Messages:  make([]chatTurn, 0, len(history)+1),
		KeepAlive: o.cfg.KeepAlive,
		Options:   &chatOptions{Temperature: options.Temperature, NumPredict: options.MaxTokens},
	}
	if options.Model != "" {
		body.Model = options.Model
	}
	if o.cfg.SystemPrompt != "" {
		body.Messages = append(body.Messages, chatTurn{Role: llm.RoleSystem, Content: o.cfg.SystemPrompt})
	}
	for _, m := range history {
		body.Messages = append(body.Messages, chatTurn{Role: m.Role, Content: m.Content})
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+chatPath, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ollama: read response: %w", err)
	}

	var out chatResponse
	decodeErr := json.Unmarshal(payload, &out)
	if resp.StatusCode != http.StatusOK {
		reason := strings.TrimSpace(string(payload))
		if decodeErr == nil && out.Error != "" {
			reason = out.Error
		}
		return "", fmt.Errorf("ollama: status %d: %s", resp.StatusCode, reason)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("ollama: decode response: %w", decodeErr)
	}
	if !out.Done {
		return "", errors.New("ollama: generation did not finish")
	}
	return out.Message.Content, nil
}
