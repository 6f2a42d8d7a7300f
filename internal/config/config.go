package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	JWT        JWTConfig
	RateLimit  RateLimitConfig
	Deepgram   DeepgramConfig
	OpenAI     OpenAIConfig
	ElevenLabs ElevenLabsConfig
	Audio      AudioConfig
	R2         R2Config
	Credits    CreditsConfig
	Worker     WorkerConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type RateLimitConfig struct {
	SubmitPerHour int
	UploadPerHour int
}

type DeepgramConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout int // seconds
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout int // seconds
}

type ElevenLabsConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout int // seconds
}

type AudioConfig struct {
	ServiceURL string
	Timeout    int // seconds
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type CreditsConfig struct {
	PerLanguage int64
}

type WorkerConfig struct {
	Concurrency   int
	RetryBudget   int
	BackoffBaseMs int
	RetentionDays int
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("DEEPGRAM_API_KEY")
	readSecret("OPENAI_API_KEY")
	readSecret("ELEVENLABS_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("ratelimit.submit_per_hour", "RATELIMIT_SUBMIT_PER_HOUR")
	_ = viper.BindEnv("ratelimit.upload_per_hour", "RATELIMIT_UPLOAD_PER_HOUR")
	_ = viper.BindEnv("deepgram.api_key", "DEEPGRAM_API_KEY")
	_ = viper.BindEnv("deepgram.base_url", "DEEPGRAM_BASE_URL")
	_ = viper.BindEnv("deepgram.model", "DEEPGRAM_MODEL")
	_ = viper.BindEnv("deepgram.timeout", "DEEPGRAM_TIMEOUT")
	_ = viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = viper.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	_ = viper.BindEnv("openai.model", "OPENAI_MODEL")
	_ = viper.BindEnv("openai.timeout", "OPENAI_TIMEOUT")
	_ = viper.BindEnv("elevenlabs.api_key", "ELEVENLABS_API_KEY")
	_ = viper.BindEnv("elevenlabs.base_url", "ELEVENLABS_BASE_URL")
	_ = viper.BindEnv("elevenlabs.model", "ELEVENLABS_MODEL")
	_ = viper.BindEnv("elevenlabs.timeout", "ELEVENLABS_TIMEOUT")
	_ = viper.BindEnv("audio.service_url", "AUDIO_SERVICE_URL")
	_ = viper.BindEnv("audio.timeout", "AUDIO_SERVICE_TIMEOUT")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("credits.per_language", "CREDITS_PER_LANGUAGE")
	_ = viper.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")
	_ = viper.BindEnv("worker.retry_budget", "WORKER_RETRY_BUDGET")
	_ = viper.BindEnv("worker.backoff_base_ms", "WORKER_BACKOFF_BASE_MS")
	_ = viper.BindEnv("worker.retention_days", "WORKER_RETENTION_DAYS")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("ratelimit.submit_per_hour", 20)
	viper.SetDefault("ratelimit.upload_per_hour", 50)

	// Deepgram defaults
	viper.SetDefault("deepgram.base_url", "https://api.deepgram.com/v1")
	viper.SetDefault("deepgram.model", "nova-2")
	viper.SetDefault("deepgram.timeout", 120)

	// OpenAI defaults
	viper.SetDefault("openai.base_url", "https://api.openai.com/v1")
	viper.SetDefault("openai.model", "gpt-4o-mini")
	viper.SetDefault("openai.timeout", 60)

	// ElevenLabs defaults
	viper.SetDefault("elevenlabs.base_url", "https://api.elevenlabs.io/v1")
	viper.SetDefault("elevenlabs.model", "eleven_multilingual_v2")
	viper.SetDefault("elevenlabs.timeout", 120)

	// Audio mixing service defaults
	viper.SetDefault("audio.service_url", "http://localhost:8084")
	viper.SetDefault("audio.timeout", 120)

	// Pricing and worker defaults
	viper.SetDefault("credits.per_language", 10)
	viper.SetDefault("worker.concurrency", 10)
	viper.SetDefault("worker.retry_budget", 3)
	viper.SetDefault("worker.backoff_base_ms", 500)
	viper.SetDefault("worker.retention_days", 7)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		RateLimit: RateLimitConfig{
			SubmitPerHour: viper.GetInt("ratelimit.submit_per_hour"),
			UploadPerHour: viper.GetInt("ratelimit.upload_per_hour"),
		},
		Deepgram: DeepgramConfig{
			APIKey:  viper.GetString("deepgram.api_key"),
			BaseURL: viper.GetString("deepgram.base_url"),
			Model:   viper.GetString("deepgram.model"),
			Timeout: viper.GetInt("deepgram.timeout"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  viper.GetString("openai.api_key"),
			BaseURL: viper.GetString("openai.base_url"),
			Model:   viper.GetString("openai.model"),
			Timeout: viper.GetInt("openai.timeout"),
		},
		ElevenLabs: ElevenLabsConfig{
			APIKey:  viper.GetString("elevenlabs.api_key"),
			BaseURL: viper.GetString("elevenlabs.base_url"),
			Model:   viper.GetString("elevenlabs.model"),
			Timeout: viper.GetInt("elevenlabs.timeout"),
		},
		Audio: AudioConfig{
			ServiceURL: viper.GetString("audio.service_url"),
			Timeout:    viper.GetInt("audio.timeout"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		Credits: CreditsConfig{
			PerLanguage: viper.GetInt64("credits.per_language"),
		},
		Worker: WorkerConfig{
			Concurrency:   viper.GetInt("worker.concurrency"),
			RetryBudget:   viper.GetInt("worker.retry_budget"),
			BackoffBaseMs: viper.GetInt("worker.backoff_base_ms"),
			RetentionDays: viper.GetInt("worker.retention_days"),
		},
	}

	return cfg, nil
}
