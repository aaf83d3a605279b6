package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AIBackend describes one selectable model provider: where to reach it, how
// to authenticate, and which models to use. The active backend is chosen
// once at startup via the AI_BACKEND environment variable and passed by
// injection into every component that needs it.
type AIBackend struct {
	APIKey     string
	BaseURL    string
	ChatModel  string
	ImageModel string
}

// Config holds application configuration values loaded from environment variables.
type Config struct {
	DatabaseURL     string
	JWTSecret       string
	HTTPPort        string
	TokenExpiration time.Duration

	AI AIBackend

	// MediaDir is where generated images are written; PublicBaseURL is the
	// externally reachable prefix under which they are served.
	MediaDir      string
	PublicBaseURL string

	// SummaryMinMessages: no summary is generated until a chat has more than
	// this many messages. ResummarizeGap: once a summary exists, regenerate
	// only after this many additional messages have accumulated.
	SummaryMinMessages int
	ResummarizeGap     int
}

// LoadConfig loads configuration from environment variables.
// It looks for a .env file first, then checks actual environment variables.
func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Could not load .env file. Using environment variables only.", err)
		// Don't fail if .env is not present, might be in production
	}

	port := getEnv("HTTP_PORT", "8080")
	jwtSecret := getEnv("JWT_SECRET", "default-super-secret-key") // CHANGE THIS IN PRODUCTION!
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set.")
	}

	tokenExpStr := getEnv("JWT_EXPIRATION_HOURS", "24")
	tokenExpHours, err := strconv.Atoi(tokenExpStr)
	if err != nil {
		log.Printf("Warning: Invalid JWT_EXPIRATION_HOURS '%s', using default 24h. Error: %v", tokenExpStr, err)
		tokenExpHours = 24
	}

	backend, err := loadAIBackend()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPPort:           port,
		JWTSecret:          jwtSecret,
		DatabaseURL:        dbURL,
		TokenExpiration:    time.Hour * time.Duration(tokenExpHours),
		AI:                 backend,
		MediaDir:           getEnv("MEDIA_DIR", "./media"),
		PublicBaseURL:      getEnv("PUBLIC_BASE_URL", "http://localhost:"+port),
		SummaryMinMessages: getEnvInt("SUMMARY_MIN_MESSAGES", 1),
		ResummarizeGap:     getEnvInt("RESUMMARIZE_GAP", 5),
	}

	log.Printf("Loaded config: Port=%s, DB_URL=***, TokenExp=%s, AIBackend=%s", cfg.HTTPPort, cfg.TokenExpiration, cfg.AI.BaseURL)

	return cfg, nil
}

// loadAIBackend resolves the AI_BACKEND selector into a concrete backend.
// "openai" is the hosted default; "llama" targets a local model server with
// an OpenAI-compatible API.
func loadAIBackend() (AIBackend, error) {
	name := getEnv("AI_BACKEND", "openai")

	switch name {
	case "openai":
		apiKey := getEnv("OPENAI_API_KEY", "")
		if apiKey == "" {
			return AIBackend{}, fmt.Errorf("OPENAI_API_KEY is required when AI_BACKEND=openai")
		}
		return AIBackend{
			APIKey:     apiKey,
			BaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			ChatModel:  getEnv("CHAT_MODEL", "gpt-4o"),
			ImageModel: getEnv("IMAGE_MODEL", "dall-e-3"),
		}, nil
	case "llama":
		return AIBackend{
			APIKey:     "not-needed",
			BaseURL:    getEnv("LLAMA_BASE_URL", "http://localhost:1234/v1"),
			ChatModel:  getEnv("CHAT_MODEL", "lmstudio-community/Meta-Llama-3-8B-Instruct-GGUF/Meta-Llama-3-8B-Instruct-Q4_K_M.gguf"),
			ImageModel: getEnv("IMAGE_MODEL", "dall-e-3"),
		}, nil
	default:
		return AIBackend{}, fmt.Errorf("unknown AI_BACKEND %q (expected openai or llama)", name)
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Env variable %s not set, using default: %s", key, fallback)
	return fallback
}

// getEnvInt retrieves an integer environment variable or returns a default.
func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: Invalid %s '%s', using default %d. Error: %v", key, value, fallback, err)
		return fallback
	}
	return n
}
