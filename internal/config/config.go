package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Ai        AIConfig
	Responder ResponderConfig
	Tracing   TracingConfig
}

type AppConfig struct {
	Port                string
	Environment         string
	LogFilePath         string
	RealtimeLogFilePath string
	CorsAllowedOrigins  string
	NatsURL             string
	RedisURL            string
}

type DatabaseConfig struct {
	Connection   string
	MaxOpenConns int
	MaxIdleConns int
}

type AuthConfig struct {
	JWTSecret string
}

type AIConfig struct {
	LLMProvider   string // "ollama" or "echo"
	LLMModel      string
	OllamaBaseURL string
	SystemPrompt  string
	EchoDelay     time.Duration
}

type ResponderConfig struct {
	Topic         string
	Timeout       time.Duration // 0 means no timeout
	Concurrency   int
	HistoryWindow int
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
	SampleRatio float64
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:                getEnv("APP_PORT", "3000"),
			Environment:         getEnv("GO_ENV", "development"),
			LogFilePath:         getEnv("LOG_FILE_PATH", "logs/app.log"),
			RealtimeLogFilePath: getEnv("REALTIME_LOG_FILE_PATH", "logs/realtime.log"),
			CorsAllowedOrigins:  getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:             getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection:   getEnv("DB_CONNECTION_STRING", ""),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Ai: AIConfig{
			LLMProvider:   getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:      getEnv("LLM_MODEL", "llama3"),
			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			SystemPrompt:  getEnv("LLM_SYSTEM_PROMPT", ""),
			EchoDelay:     getEnvAsDuration("ECHO_DELAY", 500*time.Millisecond),
		},
		Responder: ResponderConfig{
			Topic:         getEnv("RESPONDER_TOPIC", "chat.reply.requested"),
			Timeout:       getEnvAsDuration("RESPONDER_TIMEOUT", 0),
			Concurrency:   getEnvAsInt("RESPONDER_CONCURRENCY", 16),
			HistoryWindow: getEnvAsInt("RESPONDER_HISTORY_WINDOW", 20),
		},
		Tracing: TracingConfig{
			Enabled:     getEnv("OTEL_ENABLED", "false") == "true",
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "chatsync-backend"),
			SampleRatio: getEnvAsFloat("OTEL_SAMPLE_RATIO", 1.0),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
