package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Raivel16/gestor-tareas/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort     string
	AppURL      string
	DatabaseURL string
	JWTSecret   string
	JWTTTL      time.Duration
	CORSOrigins []string

	// Redis (optional: board cache + rate limits)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	BoardCacheTTL time.Duration

	// Rate limits
	APIRateLimit      int
	APIRateWindow     time.Duration
	AuthRateLimit     int
	AuthRateWindow    time.Duration
	SuggestRateLimit  int
	SuggestRateWindow time.Duration

	LLM     LLMConfig
	Storage StorageConfig
	Log     LogConfig
}

// LLMConfig describes the suggestion backend.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// StorageConfig selects between disk and S3-compatible image storage.
type StorageConfig struct {
	UploadDir   string
	MaxBytes    int64
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool
	S3Region    string
	S3PublicURL string
}

type LogConfig struct {
	Level string
	JSON  bool
	File  string
}

const (
	DefaultLLMBaseURL = "https://api.groq.com/openai/v1"
	DefaultLLMModel   = "llama-3.3-70b-versatile"
)

// values that ship in sample configs and must never be sent upstream
var placeholderKeys = map[string]bool{
	"your api key":               true,
	"gsk_coloca_tu_api_key_aqui": true,
	"changeme":                   true,
}

// Configured reports whether a real credential is present.
func (c LLMConfig) Configured() bool {
	key := strings.TrimSpace(c.APIKey)
	if key == "" || strings.HasPrefix(key, "<") {
		return false
	}
	return !placeholderKeys[strings.ToLower(key)]
}

// S3Enabled reports whether images go to a bucket instead of disk.
func (s StorageConfig) S3Enabled() bool {
	return s.S3Endpoint != ""
}

// Load reads the config from env (and .env when present)
func Load() *Config {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	return FromEnv(dbURL, jwtSecret)
}

// FromEnv fills everything except the two required values from env,
// falling back to defaults.
func FromEnv(dbURL, jwtSecret string) *Config {
	port := getString("APP_PORT", "8080")

	baseURL := strings.TrimSpace(getString("LLM_BASE_URL", DefaultLLMBaseURL))
	baseURL = strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/chat/completions")

	var origins []string
	for _, o := range strings.Split(getString("CORS_ORIGINS", "*"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return &Config{
		AppPort:     port,
		AppURL:      strings.TrimSuffix(getString("APP_URL", "http://localhost:"+port), "/"),
		DatabaseURL: dbURL,
		JWTSecret:   jwtSecret,
		JWTTTL:      time.Duration(getInt("JWT_TTL_HOURS", 24)) * time.Hour,
		CORSOrigins: origins,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),
		BoardCacheTTL: seconds("BOARD_CACHE_TTL_SECONDS", 60),

		APIRateLimit:      getInt("API_RATE_LIMIT", 120),
		APIRateWindow:     seconds("API_RATE_WINDOW_SECONDS", 60),
		AuthRateLimit:     getInt("AUTH_RATE_LIMIT", 10),
		AuthRateWindow:    seconds("AUTH_RATE_WINDOW_SECONDS", 60),
		SuggestRateLimit:  getInt("SUGGEST_RATE_LIMIT", 10),
		SuggestRateWindow: seconds("SUGGEST_RATE_WINDOW_SECONDS", 60),

		LLM: LLMConfig{
			APIKey:  os.Getenv("LLM_API_KEY"),
			BaseURL: baseURL,
			Model:   getString("LLM_MODEL", DefaultLLMModel),
			Timeout: seconds("LLM_TIMEOUT_SECONDS", 30),
		},
		Storage: StorageConfig{
			UploadDir:   getString("UPLOAD_DIR", "uploads"),
			MaxBytes:    int64(getInt("UPLOAD_MAX_BYTES", 5*1024*1024)),
			S3Endpoint:  os.Getenv("S3_ENDPOINT"),
			S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
			S3SecretKey: os.Getenv("S3_SECRET_KEY"),
			S3Bucket:    getString("S3_BUCKET", "task-images"),
			S3UseSSL:    os.Getenv("S3_USE_SSL") == "true",
			S3Region:    getString("S3_REGION", "us-east-1"),
			S3PublicURL: os.Getenv("S3_PUBLIC_URL"),
		},
		Log: LogConfig{
			Level: getString("LOG_LEVEL", "info"),
			JSON:  os.Getenv("LOG_JSON") == "true",
			File:  os.Getenv("LOG_FILE"),
		},
	}
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getInt ignores malformed and non-positive values, except for keys whose
// default is zero.
func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 || (n == 0 && def != 0) {
		return def
	}
	return n
}

func seconds(key string, def int) time.Duration {
	return time.Duration(getInt(key, def)) * time.Second
}
