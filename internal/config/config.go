package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	PlantNet PlantNetConfig
	Image    ImageConfig
	Identify IdentifyConfig
	TTS      TTSConfig
	Audio    AudioConfig
	Storage  StorageConfig
	Worker   WorkerConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	TrustProxy     bool // take the client IP from X-Forwarded-For / X-Real-IP
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string // empty disables auth
}

type PlantNetConfig struct {
	BaseURL       string
	APIKey        string // used when the request carries none
	Project       string
	Lang          string
	AutoThreshold float64
	Timeout       time.Duration
}

type ImageConfig struct {
	MaxBytes     int64
	FetchTimeout time.Duration
	FetchRetries int
}

type IdentifyConfig struct {
	CacheTTL time.Duration
}

type TTSConfig struct {
	Backend       string // "openai" or "local"
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
	DefaultVoice  string
	LocalBinPath  string // default: "piper"
	LocalModel    string // required when backend=local
	MaxChars      int
}

type AudioConfig struct {
	Backend       string // "local" or "supabase"
	Dir           string
	PublicBaseURL string
	TTL           time.Duration
	SweepInterval time.Duration
}

type StorageConfig struct {
	SupabaseURL string
	SupabaseKey string
	Bucket      string
}

type WorkerConfig struct {
	Concurrency int
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	rps, err := getEnvFloat("RATE_LIMIT_RPS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	burst, err := getEnvInt("RATE_LIMIT_BURST", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	trustProxy, err := getEnvBool("TRUST_PROXY", false)
	if err != nil {
		return nil, fmt.Errorf("invalid TRUST_PROXY: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 1)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	threshold, err := getEnvFloat("PLANTNET_AUTO_THRESHOLD", 0.5)
	if err != nil {
		return nil, fmt.Errorf("invalid PLANTNET_AUTO_THRESHOLD: %w", err)
	}

	plantnetTimeout, err := getEnvDuration("PLANTNET_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid PLANTNET_TIMEOUT: %w", err)
	}

	maxImage, err := getEnvInt("IMAGE_MAX_BYTES", 10<<20)
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_MAX_BYTES: %w", err)
	}

	fetchTimeout, err := getEnvDuration("IMAGE_FETCH_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_FETCH_TIMEOUT: %w", err)
	}

	fetchRetries, err := getEnvInt("IMAGE_FETCH_RETRIES", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_FETCH_RETRIES: %w", err)
	}

	cacheTTL, err := getEnvDuration("IDENTIFY_CACHE_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid IDENTIFY_CACHE_TTL: %w", err)
	}

	maxChars, err := getEnvInt("TTS_MAX_CHARS", 4096)
	if err != nil {
		return nil, fmt.Errorf("invalid TTS_MAX_CHARS: %w", err)
	}

	audioTTL, err := getEnvDuration("AUDIO_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid AUDIO_TTL: %w", err)
	}

	sweep, err := getEnvDuration("AUDIO_SWEEP_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid AUDIO_SWEEP_INTERVAL: %w", err)
	}

	concurrency, err := getEnvInt("WORKER_CONCURRENCY", 4)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           port,
			CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "*")),
			RateLimitRPS:   rps,
			RateLimitBurst: burst,
			TrustProxy:     trustProxy,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		PlantNet: PlantNetConfig{
			BaseURL:       strings.TrimRight(getEnv("PLANTNET_BASE_URL", "https://my-api.plantnet.org"), "/"),
			APIKey:        getEnv("PLANTNET_API_KEY", ""),
			Project:       getEnv("PLANTNET_PROJECT", "all"),
			Lang:          getEnv("PLANTNET_LANG", ""),
			AutoThreshold: threshold,
			Timeout:       plantnetTimeout,
		},
		Image: ImageConfig{
			MaxBytes:     int64(maxImage),
			FetchTimeout: fetchTimeout,
			FetchRetries: fetchRetries,
		},
		Identify: IdentifyConfig{
			CacheTTL: cacheTTL,
		},
		TTS: TTSConfig{
			Backend:       getEnv("TTS_BACKEND", "openai"),
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("TTS_OPENAI_BASE_URL", ""),
			OpenAIModel:   getEnv("TTS_OPENAI_MODEL", "tts-1"),
			DefaultVoice:  getEnv("TTS_DEFAULT_VOICE", "alloy"),
			LocalBinPath:  getEnv("TTS_LOCAL_PIPER_BIN", "piper"),
			LocalModel:    getEnv("TTS_LOCAL_PIPER_MODEL", ""),
			MaxChars:      maxChars,
		},
		Audio: AudioConfig{
			Backend:       getEnv("AUDIO_BACKEND", "local"),
			Dir:           getEnv("AUDIO_DIR", "audio"),
			PublicBaseURL: strings.TrimRight(getEnv("AUDIO_PUBLIC_BASE_URL", ""), "/"),
			TTL:           audioTTL,
			SweepInterval: sweep,
		},
		Storage: StorageConfig{
			SupabaseURL: getEnv("SUPABASE_URL", ""),
			SupabaseKey: getEnv("SUPABASE_SERVICE_KEY", ""),
			Bucket:      getEnv("STORAGE_BUCKET", "audio"),
		},
		Worker: WorkerConfig{
			Concurrency: concurrency,
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate reports settings that would make the selected backends unusable.
func (c *Config) Validate() error {
	var problems []string

	switch c.TTS.Backend {
	case "openai":
		if c.TTS.OpenAIKey == "" {
			problems = append(problems, "OPENAI_API_KEY is required for TTS_BACKEND=openai")
		}
	case "local":
		if c.TTS.LocalModel == "" {
			problems = append(problems, "TTS_LOCAL_PIPER_MODEL is required for TTS_BACKEND=local")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown TTS_BACKEND %q", c.TTS.Backend))
	}

	switch c.Audio.Backend {
	case "local":
		if c.Audio.Dir == "" {
			problems = append(problems, "AUDIO_DIR is required for AUDIO_BACKEND=local")
		}
	case "supabase":
		if c.Storage.SupabaseURL == "" || c.Storage.SupabaseKey == "" {
			problems = append(problems, "SUPABASE_URL and SUPABASE_SERVICE_KEY are required for AUDIO_BACKEND=supabase")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown AUDIO_BACKEND %q", c.Audio.Backend))
	}

	if c.PlantNet.AutoThreshold < 0 || c.PlantNet.AutoThreshold > 1 {
		problems = append(problems, "PLANTNET_AUTO_THRESHOLD must be between 0 and 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
