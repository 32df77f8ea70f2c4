// Package echo is a responder for local development and tests: it answers
// with the last user turn, optionally after a delay.
package echo

import (
	"context"
	"fmt"
	"time"

	"chatsync-be/pkg/llm"
)

type EchoProvider struct {
	Prefix string
	Delay  time.Duration
}

var _ llm.LLMProvider = &EchoProvider{}

func NewEchoProvider(prefix string, delay time.Duration) *EchoProvider {
	return &EchoProvider{Prefix: prefix, Delay: delay}
}

func (e *EchoProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	var last string
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == llm.RoleUser {
			last = history[i].Content
			break
		}
	}
	if last == "" {
		return "", fmt.Errorf("echo: no user turn in history")
	}

	if e.Delay > 0 {
		select {
		case <-time.After(e.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return e.Prefix + last, nil
}
