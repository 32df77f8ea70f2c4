package llm

import (
	"context"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat turn in a provider-agnostic format
type Message struct {
	Role    string
	Content string
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func ApplyOptions(opts ...Option) *Options {
	options := &Options{Temperature: 0.7}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// LLMProvider is the responder: conversation in, assistant text out.
// Latency is unbounded; callers bound it through ctx if they want to.
type LLMProvider interface {
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)
}
