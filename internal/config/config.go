package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Chat     ChatConfig
	Otel     OtelConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	WsLogFilePath      string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JwtSecret          string
}

type DatabaseConfig struct {
	Driver     string // "postgres" or "memory"
	Connection string
}

type ChatConfig struct {
	SendBuffer           int
	MaxContentLength     int
	HistoryPageSize      int
	SyncLimit            int
	ImplicitDelivery     bool
	ConversationCacheTTL time.Duration
	RedisChannel         string
	EventsTopic          string
}

type OtelConfig struct {
	Enabled  bool
	Endpoint string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			WsLogFilePath:      getEnv("WS_LOG_FILE_PATH", "logs/chat_ws.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			JwtSecret:          getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("STORAGE_DRIVER", StorageDriverPostgres),
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Chat: ChatConfig{
			SendBuffer:           getEnvAsInt("CHAT_SEND_BUFFER", 256),
			MaxContentLength:     getEnvAsInt("CHAT_MAX_CONTENT_LENGTH", 4000),
			HistoryPageSize:      getEnvAsInt("CHAT_HISTORY_PAGE_SIZE", 50),
			SyncLimit:            getEnvAsInt("CHAT_SYNC_LIMIT", 200),
			ImplicitDelivery:     getEnvAsBool("CHAT_IMPLICIT_DELIVERY", true),
			ConversationCacheTTL: getEnvAsDuration("CHAT_CONVERSATION_CACHE_TTL", 10*time.Minute),
			RedisChannel:         getEnv("CHAT_REDIS_CHANNEL", "chat_cluster_events"),
			EventsTopic:          getEnv("CHAT_EVENTS_TOPIC", "chat_events"),
		},
		Otel: OtelConfig{
			Enabled:  getEnvAsBool("OTEL_ENABLED", false),
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
	}
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

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90s", "10m").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
