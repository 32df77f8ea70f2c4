package factory

import (
	"fmt"
	"time"

	"chatsync-be/pkg/llm"
	"chatsync-be/pkg/llm/echo"
	"chatsync-be/pkg/llm/ollama"
)

const defaultOllamaURL = "http://localhost:11434"

type Config struct {
	Provider     string // "ollama" or "echo"
	Model        string
	BaseURL      string
	SystemPrompt string
	// EchoDelay simulates responder latency for the echo provider.
	EchoDelay time.Duration
}

func NewLLMProvider(cfg Config) (llm.LLMProvider, error) {
	switch cfg.Provider {
	case "ollama":
		if cfg.BaseURL == "" {
			cfg.BaseURL = defaultOllamaURL
		}
		return ollama.NewOllamaProvider(ollama.Config{
			BaseURL:      cfg.BaseURL,
			Model:        cfg.Model,
			SystemPrompt: cfg.SystemPrompt,
			KeepAlive:    "10m",
		}), nil
	case "echo":
		return echo.NewEchoProvider("echo: ", cfg.EchoDelay), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}
