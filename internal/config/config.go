package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Ai       AIConfig
	Pipeline PipelineConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type AIConfig struct {
	LLMProvider       string // "ollama", "gemini", "huggingface"
	LLMModel          string // e.g. "llama3", "gemini-2.0-flash"
	OllamaBaseURL     string
	GeminiAPIKey      string
	HuggingFaceAPIKey string
	HuggingFaceURL    string
	EmbeddingProvider string // "ollama" or "gemini"
	EmbeddingModel    string
}

// PipelineConfig tunes the analysis scheduler gates and timers.
type PipelineConfig struct {
	InsightsMinWords    int           // new words required before insights re-runs
	InsightsMinInterval time.Duration // or this much elapsed time since the last run
	DifferentialSettle  time.Duration // settle window after an insights completion
	HandoutInsightsWait time.Duration // bounded wait before handout proceeds anyway
	RetrievalTimeout    time.Duration // per-call timeout for knowledge lookups
	RetrievalLimit      int           // max evidence snippets folded into a prompt
	SpeakerBatchSize    int           // utterances per content-classification batch
	SessionTTL          time.Duration // idle live-session eviction
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			GeminiAPIKey:      getEnv("GOOGLE_GEMINI_API_KEY", ""),
			HuggingFaceAPIKey: getEnv("HUGGINGFACE_API_KEY", ""),
			HuggingFaceURL:    getEnv("HUGGINGFACE_BASE_URL", ""),
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
		},
		Pipeline: PipelineConfig{
			InsightsMinWords:    getEnvAsInt("INSIGHTS_MIN_WORDS", 30),
			InsightsMinInterval: getEnvAsDuration("INSIGHTS_MIN_INTERVAL", 45*time.Second),
			DifferentialSettle:  getEnvAsDuration("DIFFERENTIAL_SETTLE_WINDOW", 3*time.Second),
			HandoutInsightsWait: getEnvAsDuration("HANDOUT_INSIGHTS_WAIT", 10*time.Second),
			RetrievalTimeout:    getEnvAsDuration("RETRIEVAL_TIMEOUT", 5*time.Second),
			RetrievalLimit:      getEnvAsInt("RETRIEVAL_LIMIT", 5),
			SpeakerBatchSize:    getEnvAsInt("SPEAKER_BATCH_SIZE", 8),
			SessionTTL:          getEnvAsDuration("SESSION_TTL", 4*time.Hour),
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
